package engine

import (
	"fmt"
	"time"

	"github.com/rlworks/rollout/pkg/config"
	"github.com/rlworks/rollout/pkg/envs"
)

// JobKind selects the engine entry point.
type JobKind string

const (
	KindTrain JobKind = "train"
	KindEval  JobKind = "eval"
)

// JobState is the engine-side lifecycle of a submitted job.
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// JobRequest is the payload for submitting a training or evaluation job.
// The engine reads the config for hyperparameters and the env spec to build
// its environment instances.
type JobRequest struct {
	Kind   JobKind           `json:"kind"`
	Config *config.RunConfig `json:"config"`
	Env    *envs.Spec        `json:"env"`
}

// EvalResult carries the outcome of a completed evaluation job.
type EvalResult struct {
	Episodes int       `json:"episodes"`
	Rewards  []float64 `json:"rewards"`
	// VideoFile is the rendered replay, relative to the run directory.
	// Empty when rendering was disabled.
	VideoFile string `json:"video_file,omitempty"`
}

// Job is the engine's view of a submitted job.
type Job struct {
	ID        string      `json:"id"`
	Kind      JobKind     `json:"kind"`
	State     JobState    `json:"state"`
	Step      int64       `json:"step"`
	Error     string      `json:"error,omitempty"`
	Result    *EvalResult `json:"result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// APIError is an error response from the engine. It is returned as-is;
// retrying or translating engine failures is not this client's job.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("engine: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("engine: %s (status %d)", e.Message, e.Status)
}
