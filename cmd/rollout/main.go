package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rlworks/rollout/internal/logging"
	"github.com/rlworks/rollout/pkg/config"
	"github.com/rlworks/rollout/pkg/core"
	"github.com/rlworks/rollout/pkg/engine"
	"github.com/rlworks/rollout/pkg/events"
	"github.com/rlworks/rollout/pkg/experiment"
	"github.com/rlworks/rollout/pkg/hub"
	"github.com/rlworks/rollout/pkg/runs"
)

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	logging.Setup(os.Getenv("ROLLOUT_DEBUG") == "1", os.Getenv("ROLLOUT_LOG_FILE"))

	rootCmd := &cobra.Command{
		Use:   "rollout",
		Short: "Rollout trains and evaluates RL policies on an external engine and exchanges the resulting models with a hub.",
	}

	rootCmd.AddCommand(trainCmd(), enjoyCmd(), pullCmd(), pushCmd(), runsCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	return ctx, cancel
}

func engineClient() *engine.Client {
	opts := []engine.ClientOption{}
	if url := os.Getenv("ROLLOUT_ENGINE_URL"); url != "" {
		opts = append(opts, engine.WithBaseURL(url))
	}
	if token := os.Getenv("ROLLOUT_ENGINE_TOKEN"); token != "" {
		opts = append(opts, engine.WithToken(token))
	}
	return engine.NewClient(opts...)
}

func hubClient() *hub.Client {
	opts := []hub.ClientOption{}
	if url := os.Getenv("HF_ENDPOINT"); url != "" {
		opts = append(opts, hub.WithBaseURL(url))
	}
	if token := os.Getenv("HF_TOKEN"); token != "" {
		opts = append(opts, hub.WithToken(token))
	}
	return hub.NewClient(opts...)
}

func openRunStore() (*runs.Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".rollout")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return runs.Open(filepath.Join(dir, "runs.db"))
}

func newRunner() (*experiment.Runner, *runs.Store, *events.Bus, error) {
	store, err := openRunStore()
	if err != nil {
		return nil, nil, nil, err
	}
	bus := events.NewBus()
	runner := experiment.NewRunner(
		engineClient(),
		experiment.WithHub(hubClient()),
		experiment.WithTracker(store),
		experiment.WithBus(bus),
	)
	return runner, store, bus, nil
}

// printProgress subscribes to the bus and logs engine progress until ctx is
// cancelled.
func printProgress(ctx context.Context, bus *events.Bus) {
	ch := make(chan core.Progress, 64)
	if err := bus.Subscribe("cli", ch); err != nil {
		return
	}
	go func() {
		defer bus.Unsubscribe("cli")
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-ch:
				slog.Info("Progress", "step", p.Step, "reward", p.Reward, "fps", p.FPS, "status", p.Status)
			}
		}
	}()
}

func trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train [engine flags]",
		Short: "Train a policy until the configured step budget is exhausted",
		// The argument list is the engine's contract; hand it through
		// untouched instead of letting cobra interpret it.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ParseArgs(args)
			if err != nil {
				return err
			}

			runner, store, bus, err := newRunner()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := signalContext()
			defer cancel()
			printProgress(ctx, bus)

			if err := runner.Train(ctx, cfg); err != nil {
				return err
			}
			fmt.Printf("Training finished. Checkpoints are under %s\n", cfg.RunDir())
			return nil
		},
	}
}

func enjoyCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "enjoy [engine flags]",
		Short:              "Evaluate the latest checkpoint of an experiment, optionally rendering a video and pushing to the hub",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ParseArgs(args)
			if err != nil {
				return err
			}

			runner, store, bus, err := newRunner()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := signalContext()
			defer cancel()
			printProgress(ctx, bus)

			report, err := runner.Evaluate(ctx, cfg)
			if err != nil {
				return err
			}

			fmt.Printf("Evaluated %s over %d episodes: reward %.2f ± %.2f\n",
				report.Experiment, report.Episodes, report.MeanReward, report.StdReward)
			if report.VideoPath != "" {
				fmt.Printf("Replay video: %s\n", report.VideoPath)
			}
			return nil
		},
	}
}

func pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <owner/name> [dest]",
		Short: "Download a model repository from the hub into a local directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := hub.ParseRepoID(args[0])
			if err != nil {
				return err
			}
			dest := repo.Name
			if len(args) == 2 {
				dest = args[1]
			}

			ctx, cancel := signalContext()
			defer cancel()

			if err := hubClient().Pull(ctx, repo, dest); err != nil {
				return err
			}
			fmt.Printf("Pulled %s into %s\n", repo, dest)
			return nil
		},
	}
}

func pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <owner/name> [dir]",
		Short: "Upload a local run directory to the hub",
		Long: `Upload a local run directory to the hub.

Without an explicit directory, push uploads train_dir/<name>, i.e. it assumes
the experiment is named after the hub repository. Pass the directory when your
experiment name differs from the repository name.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := hub.ParseRepoID(args[0])
			if err != nil {
				return err
			}
			src := defaultPushDir(repo)
			if len(args) == 2 {
				src = args[1]
			}

			ctx, cancel := signalContext()
			defer cancel()

			if err := hubClient().Push(ctx, repo, src); err != nil {
				return err
			}
			fmt.Printf("Pushed %s to %s\n", src, repo)
			return nil
		},
	}
}

// defaultPushDir is where push looks for artifacts when no directory is
// given: the run directory of an experiment named after the repository.
func defaultPushDir(repo hub.RepoID) string {
	return filepath.Join("train_dir", repo.Name)
}

func runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List locally tracked runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRunStore()
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEXPERIMENT\tALGO\tENV\tSTATUS\tSTARTED")
			for _, run := range all {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					run.ID, run.Experiment, run.Algo, run.Env, run.Status,
					run.StartTime.Local().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}
