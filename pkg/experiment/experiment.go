// Package experiment ties the pieces together: it turns a validated run
// configuration into engine jobs, tracks them locally, fans progress out to
// subscribers and hands artifacts to the hub when asked.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rlworks/rollout/pkg/config"
	"github.com/rlworks/rollout/pkg/core"
	"github.com/rlworks/rollout/pkg/engine"
	"github.com/rlworks/rollout/pkg/envs"
	"github.com/rlworks/rollout/pkg/events"
	"github.com/rlworks/rollout/pkg/hub"
	"github.com/rlworks/rollout/pkg/runs"
)

// Engine submits jobs to the external training engine and waits on them.
type Engine interface {
	SubmitJob(ctx context.Context, req engine.JobRequest) (*engine.Job, error)
	Wait(ctx context.Context, id string, onProgress func(core.Progress)) (*engine.Job, error)
}

// Hub uploads a local artifact directory to a remote repository.
type Hub interface {
	Push(ctx context.Context, repo hub.RepoID, src string) error
}

// Tracker records runs locally.
type Tracker interface {
	Create(ctx context.Context, experiment, algo, env string) (*runs.Run, error)
	Finish(ctx context.Context, id string, status core.RunStatus) error
}

// Status describes what the runner is currently doing.
type Status struct {
	Running   bool
	JobID     string
	StartTime time.Time
	EndTime   time.Time
}

// Report summarizes a finished evaluation.
type Report struct {
	Experiment string
	Episodes   int
	Rewards    []float64
	MeanReward float64
	StdReward  float64
	// VideoPath is where the rendered replay landed, empty when none was
	// saved.
	VideoPath string
}

// Runner drives training and evaluation runs.
type Runner struct {
	registry *envs.Registry
	engine   Engine
	hub      Hub
	tracker  Tracker
	bus      core.Bus
	history  *events.History
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
}

type RunnerOption func(*Runner)

func WithRegistry(r *envs.Registry) RunnerOption {
	return func(run *Runner) {
		run.registry = r
	}
}

func WithHub(h Hub) RunnerOption {
	return func(run *Runner) {
		run.hub = h
	}
}

func WithTracker(t Tracker) RunnerOption {
	return func(run *Runner) {
		run.tracker = t
	}
}

func WithBus(b core.Bus) RunnerOption {
	return func(run *Runner) {
		run.bus = b
	}
}

func WithLogger(l *slog.Logger) RunnerOption {
	return func(run *Runner) {
		run.logger = l
	}
}

// NewRunner creates a runner on top of an engine client. Hub and tracker are
// optional; without them pushes fail and runs go unrecorded.
func NewRunner(eng Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: envs.Default(),
		engine:   eng,
		history:  events.NewHistory(256),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status returns a snapshot of the runner's current state.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// History returns recent progress events, oldest first.
func (r *Runner) History() []core.Progress {
	return r.history.All()
}

// Train runs a training job until the configured step budget is exhausted.
// Checkpoints are persisted by the engine under cfg.RunDir().
func (r *Runner) Train(ctx context.Context, cfg *config.RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	spec, err := r.registry.Make(cfg.Env)
	if err != nil {
		return err
	}

	r.logger.Info("Starting training",
		"experiment", cfg.Experiment, "algo", cfg.Algo, "env", cfg.Env,
		"steps", cfg.TrainForEnvSteps, "workers", cfg.NumWorkers)

	_, err = r.runJob(ctx, cfg, engine.JobRequest{
		Kind:   engine.KindTrain,
		Config: cfg,
		Env:    spec,
	})
	return err
}

// Evaluate loads the latest checkpoint of cfg.Experiment, runs a bounded
// number of episodes and returns a report. When cfg.PushToHub is set the run
// directory is uploaded to cfg.HFRepository afterwards.
func (r *Runner) Evaluate(ctx context.Context, cfg *config.RunConfig) (*Report, error) {
	cfg.Eval = true
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	spec, err := r.registry.Make(cfg.Env)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Starting evaluation",
		"experiment", cfg.Experiment, "episodes", cfg.MaxNumEpisodes,
		"render", !cfg.NoRender, "save_video", cfg.SaveVideo)

	job, err := r.runJob(ctx, cfg, engine.JobRequest{
		Kind:   engine.KindEval,
		Config: cfg,
		Env:    spec,
	})
	if err != nil {
		return nil, err
	}
	if job.Result == nil {
		return nil, fmt.Errorf("experiment: evaluation job %s returned no result", job.ID)
	}

	report := buildReport(cfg, job.Result)

	if cfg.PushToHub {
		if r.hub == nil {
			return nil, fmt.Errorf("experiment: push_to_hub requested but no hub client configured")
		}
		repo, err := hub.ParseRepoID(cfg.HFRepository)
		if err != nil {
			return nil, err
		}
		r.logger.Info("Pushing run directory to hub", "repo", repo.String(), "dir", cfg.RunDir())
		if err := r.hub.Push(ctx, repo, cfg.RunDir()); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// runJob submits a job, tracks it and waits for a terminal state.
func (r *Runner) runJob(ctx context.Context, cfg *config.RunConfig, req engine.JobRequest) (*engine.Job, error) {
	var runID string
	if r.tracker != nil {
		rec, err := r.tracker.Create(ctx, cfg.Experiment, cfg.Algo, cfg.Env)
		if err != nil {
			return nil, err
		}
		runID = rec.ID
	}

	job, err := r.engine.SubmitJob(ctx, req)
	if err != nil {
		r.finishRun(runID, core.StatusFailed)
		return nil, err
	}

	r.setRunning(job.ID)
	defer r.setStopped()

	final, err := r.engine.Wait(ctx, job.ID, r.onProgress)
	if err != nil {
		status := core.StatusFailed
		if ctx.Err() != nil {
			status = core.StatusKilled
		}
		r.finishRun(runID, status)
		return nil, err
	}

	if final.State == engine.StateFailed {
		r.finishRun(runID, core.StatusFailed)
		return nil, fmt.Errorf("experiment: job %s failed: %s", final.ID, final.Error)
	}

	r.finishRun(runID, core.StatusFinished)
	return final, nil
}

func (r *Runner) onProgress(p core.Progress) {
	r.history.Add(p)
	if r.bus != nil {
		if err := r.bus.Publish(p); err != nil {
			r.logger.Debug("Dropped progress event", "error", err)
		}
	}
}

func (r *Runner) finishRun(runID string, status core.RunStatus) {
	if r.tracker == nil || runID == "" {
		return
	}
	// Bookkeeping only; the job outcome has already been decided.
	if err := r.tracker.Finish(context.Background(), runID, status); err != nil {
		r.logger.Warn("Failed to record run status", "run", runID, "error", err)
	}
}

func (r *Runner) setRunning(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = Status{
		Running:   true,
		JobID:     jobID,
		StartTime: time.Now(),
	}
}

func (r *Runner) setStopped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Running = false
	r.status.EndTime = time.Now()
}

func buildReport(cfg *config.RunConfig, res *engine.EvalResult) *Report {
	report := &Report{
		Experiment: cfg.Experiment,
		Episodes:   res.Episodes,
		Rewards:    res.Rewards,
	}
	if len(res.Rewards) > 0 {
		report.MeanReward = stat.Mean(res.Rewards, nil)
	}
	if len(res.Rewards) > 1 {
		report.StdReward = stat.StdDev(res.Rewards, nil)
	}
	if cfg.SaveVideo && res.VideoFile != "" {
		report.VideoPath = filepath.Join(cfg.RunDir(), res.VideoFile)
	}
	return report
}
