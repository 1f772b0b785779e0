package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	app "github.com/okian/walletmatch/internal/app"
	"github.com/okian/walletmatch/internal/config"
	"github.com/okian/walletmatch/pkg/logger"
	"github.com/okian/walletmatch/pkg/metrics"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "walletmatch <profiles.json>",
		Short: "Score every pair of wallet profiles and write score_file.json",
		Long: "walletmatch reads a JSON object of wallet profiles, scores every unordered\n" +
			"pair once and writes the pairs, best first, to score_file.json in the\n" +
			"working directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Past argument checks, failures are not usage errors.
			cmd.SilenceUsage = true
			return run(cmd.Context(), args[0])
		},
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
}

func run(ctx context.Context, inputPath string) error {
	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	runID := uuid.NewString()
	metrics.Init(metrics.WithCustomLabels(map[string]string{"run_id": runID}))

	svc, err := app.NewFromConfig(cfg, app.WithRunID(runID), app.WithLogger(log.Named("service")))
	if err != nil {
		log.Error(ctx, "invalid configuration", logger.Error(err))
		return err
	}

	if _, err := svc.Run(ctx, inputPath); err != nil {
		log.Error(ctx, "run failed", logger.String("input", inputPath), logger.Error(err))
		return err
	}
	return nil
}
