package config

import (
	"path/filepath"
	"testing"
)

func TestParseArgs(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"--algo", "APPO",
		"--env", "LunarLander-v2",
		"--experiment", "lander-appo",
		"--num_workers", "20",
		"--num_envs_per_worker", "6",
		"--train_for_env_steps", "8000000",
		"--seed", "42",
		"--device", "gpu",
	})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}

	if cfg.Algo != "APPO" {
		t.Errorf("Algo = %q, want APPO", cfg.Algo)
	}
	if cfg.Env != "LunarLander-v2" {
		t.Errorf("Env = %q, want LunarLander-v2", cfg.Env)
	}
	if cfg.Experiment != "lander-appo" {
		t.Errorf("Experiment = %q, want lander-appo", cfg.Experiment)
	}
	if cfg.NumWorkers != 20 {
		t.Errorf("NumWorkers = %d, want 20", cfg.NumWorkers)
	}
	if cfg.NumEnvsPerWorker != 6 {
		t.Errorf("NumEnvsPerWorker = %d, want 6", cfg.NumEnvsPerWorker)
	}
	if cfg.TrainForEnvSteps != 8_000_000 {
		t.Errorf("TrainForEnvSteps = %d, want 8000000", cfg.TrainForEnvSteps)
	}
	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
	if cfg.Device != "gpu" {
		t.Errorf("Device = %q, want gpu", cfg.Device)
	}

	// Untouched fields keep their defaults.
	if cfg.GAELambda != 0.95 {
		t.Errorf("GAELambda = %v, want default 0.95", cfg.GAELambda)
	}
	if cfg.Eval {
		t.Error("Eval should be unset for a training argument list")
	}
}

func TestParseArgsUnknownFlag(t *testing.T) {
	if _, err := ParseArgs([]string{"--algo", "APPO", "--does_not_exist", "1"}); err == nil {
		t.Error("Expected error for unknown flag, got nil")
	}
}

func TestParseArgsPositional(t *testing.T) {
	if _, err := ParseArgs([]string{"--algo", "APPO", "stray"}); err == nil {
		t.Error("Expected error for positional argument, got nil")
	}
}

func TestFieldOverrideAfterParse(t *testing.T) {
	cfg, err := ParseArgs([]string{"--algo", "APPO", "--env", "CartPole-v1", "--experiment", "cartpole"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}

	cfg.RewardScale = 0.05
	if cfg.RewardScale != 0.05 {
		t.Errorf("RewardScale after override = %v, want 0.05", cfg.RewardScale)
	}
}

func TestEvalFlag(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"--algo", "APPO",
		"--env", "CartPole-v1",
		"--experiment", "cartpole",
		"--eval",
		"--max_num_episodes", "10",
		"--no_render",
		"--save_video",
	})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if !cfg.Eval {
		t.Error("Eval should be set")
	}
	if !cfg.NoRender {
		t.Error("NoRender should be set")
	}
	if !cfg.SaveVideo {
		t.Error("SaveVideo should be set")
	}
	if cfg.MaxNumEpisodes != 10 {
		t.Errorf("MaxNumEpisodes = %d, want 10", cfg.MaxNumEpisodes)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
	}{
		{"complete", func(c *RunConfig) {}, false},
		{"missing algo", func(c *RunConfig) { c.Algo = "" }, true},
		{"missing env", func(c *RunConfig) { c.Env = "" }, true},
		{"missing experiment", func(c *RunConfig) { c.Experiment = "" }, true},
		{"zero workers", func(c *RunConfig) { c.NumWorkers = 0 }, true},
		{"push without repo", func(c *RunConfig) { c.PushToHub = true }, true},
		{"push with repo", func(c *RunConfig) {
			c.PushToHub = true
			c.HFRepository = "user/model"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Algo = "APPO"
			cfg.Env = "CartPole-v1"
			cfg.Experiment = "cartpole"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestArtifactPaths(t *testing.T) {
	cfg := Default()
	cfg.TrainDir = "train_dir"
	cfg.Experiment = "lander-appo"

	if got, want := cfg.RunDir(), filepath.Join("train_dir", "lander-appo"); got != want {
		t.Errorf("RunDir() = %q, want %q", got, want)
	}
	if got, want := cfg.VideoPath(), filepath.Join("train_dir", "lander-appo", "replay.mp4"); got != want {
		t.Errorf("VideoPath() = %q, want %q", got, want)
	}
}
