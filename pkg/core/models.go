package core

import (
	"time"
)

// RunStatus is the lifecycle state of a tracked run.
type RunStatus string

const (
	StatusRunning  RunStatus = "RUNNING"
	StatusFinished RunStatus = "FINISHED"
	StatusFailed   RunStatus = "FAILED"
	StatusKilled   RunStatus = "KILLED"
)

// Terminal reports whether a run in this status will never change again.
func (s RunStatus) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusKilled
}

// Progress is a single progress report emitted by the engine while a job is
// running. Reward is the rolling mean episode reward as reported by the
// engine; FPS is environment frames per second summed across workers.
type Progress struct {
	JobID     string    `json:"job_id"`
	Step      int64     `json:"step"`
	Reward    float64   `json:"reward"`
	FPS       float64   `json:"fps"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
