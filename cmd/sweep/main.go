// Command sweep runs a single maturity sweep and exits. It is meant for
// external schedulers such as cron or a Kubernetes CronJob.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"yield-ledger/config"
	"yield-ledger/internal/app"
	"yield-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	report, err := a.Sweep.Run(ctx)
	a.Close()
	if err != nil {
		log.Error().Err(err).Msg("Sweep failed")
		os.Exit(1)
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Sweep finished")
	if len(report.Errors) > 0 {
		os.Exit(2)
	}
}
