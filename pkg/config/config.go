package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
)

// RunConfig holds every parameter for one training or evaluation run. It is
// assembled once from an argument list, optionally tweaked by direct field
// assignment, and then passed by pointer into the train/eval entry points.
//
// Flag names keep the engine's snake_case convention since they are part of
// its argument-parser contract, not ours.
type RunConfig struct {
	Algo       string `json:"algo"`
	Env        string `json:"env"`
	Experiment string `json:"experiment"`
	TrainDir   string `json:"train_dir"`

	RewardScale      float64 `json:"reward_scale"`
	GAELambda        float64 `json:"gae_lambda"`
	TrainForEnvSteps int64   `json:"train_for_env_steps"`

	NumWorkers       int    `json:"num_workers"`
	NumEnvsPerWorker int    `json:"num_envs_per_worker"`
	Seed             int64  `json:"seed"`
	Device           string `json:"device"`

	// Evaluation-only knobs. Eval is set by the enjoy path and unset for
	// training.
	Eval           bool   `json:"eval"`
	NoRender       bool   `json:"no_render"`
	MaxNumEpisodes int    `json:"max_num_episodes"`
	SaveVideo      bool   `json:"save_video"`
	PushToHub      bool   `json:"push_to_hub"`
	HFRepository   string `json:"hf_repository,omitempty"`
}

// Default returns a RunConfig with the engine's default values filled in.
// Algo, Env and Experiment have no defaults and must come from the caller.
func Default() *RunConfig {
	return &RunConfig{
		TrainDir:         "train_dir",
		RewardScale:      1.0,
		GAELambda:        0.95,
		TrainForEnvSteps: 4_000_000,
		NumWorkers:       8,
		NumEnvsPerWorker: 4,
		Seed:             0,
		Device:           "cpu",
		MaxNumEpisodes:   10,
	}
}

// ParseArgs builds a RunConfig from a command-line style argument list.
// Unknown flags are an error.
func ParseArgs(args []string) (*RunConfig, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("rollout", pflag.ContinueOnError)
	fs.StringVar(&cfg.Algo, "algo", cfg.Algo, "training algorithm identifier, e.g. APPO")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "registered environment identifier")
	fs.StringVar(&cfg.Experiment, "experiment", cfg.Experiment, "experiment name, namespaces checkpoints and artifacts")
	fs.StringVar(&cfg.TrainDir, "train_dir", cfg.TrainDir, "root directory for run artifacts")
	fs.Float64Var(&cfg.RewardScale, "reward_scale", cfg.RewardScale, "reward scaling factor")
	fs.Float64Var(&cfg.GAELambda, "gae_lambda", cfg.GAELambda, "generalized advantage estimation lambda")
	fs.Int64Var(&cfg.TrainForEnvSteps, "train_for_env_steps", cfg.TrainForEnvSteps, "environment step budget")
	fs.IntVar(&cfg.NumWorkers, "num_workers", cfg.NumWorkers, "number of rollout workers")
	fs.IntVar(&cfg.NumEnvsPerWorker, "num_envs_per_worker", cfg.NumEnvsPerWorker, "environments per worker")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	fs.StringVar(&cfg.Device, "device", cfg.Device, "compute device, cpu or gpu")
	fs.BoolVar(&cfg.Eval, "eval", cfg.Eval, "run in evaluation mode")
	fs.BoolVar(&cfg.NoRender, "no_render", cfg.NoRender, "disable rendering during evaluation")
	fs.IntVar(&cfg.MaxNumEpisodes, "max_num_episodes", cfg.MaxNumEpisodes, "episode budget for evaluation")
	fs.BoolVar(&cfg.SaveVideo, "save_video", cfg.SaveVideo, "write a replay video during evaluation")
	fs.BoolVar(&cfg.PushToHub, "push_to_hub", cfg.PushToHub, "upload the run directory to the hub after evaluation")
	fs.StringVar(&cfg.HFRepository, "hf_repository", cfg.HFRepository, "hub repository as owner/name")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected positional arguments: %v", fs.Args())
	}
	return cfg, nil
}

// Validate checks the fields that must be present before the config is
// handed to any consuming call. Numeric range checks beyond obvious
// nonsense are left to the engine, which owns those constraints.
func (c *RunConfig) Validate() error {
	if c.Algo == "" {
		return fmt.Errorf("config: algo is required")
	}
	if c.Env == "" {
		return fmt.Errorf("config: env is required")
	}
	if c.Experiment == "" {
		return fmt.Errorf("config: experiment is required")
	}
	if c.NumWorkers < 1 {
		return fmt.Errorf("config: num_workers must be positive, got %d", c.NumWorkers)
	}
	if c.NumEnvsPerWorker < 1 {
		return fmt.Errorf("config: num_envs_per_worker must be positive, got %d", c.NumEnvsPerWorker)
	}
	if c.PushToHub && c.HFRepository == "" {
		return fmt.Errorf("config: push_to_hub requires hf_repository")
	}
	return nil
}

// RunDir returns the directory that holds all artifacts for this run,
// <train_dir>/<experiment>. Checkpoints and videos land here.
func (c *RunConfig) RunDir() string {
	return filepath.Join(c.TrainDir, c.Experiment)
}

// VideoPath returns where a rendered evaluation video ends up.
func (c *RunConfig) VideoPath() string {
	return filepath.Join(c.RunDir(), "replay.mp4")
}
