package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"itracksy/internal/campaigns"
	"itracksy/internal/config"
	"itracksy/internal/database"
	"itracksy/internal/email"
	"itracksy/internal/metrics"
)

// Runs a single campaign batch pass, for schedulers that exec a binary
// instead of calling /api/cron/campaigns.
func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "Abort the pass after this long")
	flag.Parse()

	cfg := config.Load()
	logger := cfg.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	writeClient := database.NewWriteClient(db)
	defer func() { _ = writeClient.Close() }()

	if err := database.Migrate(ctx, writeClient); err != nil {
		logger.Fatal().Err(err).Msg("Schema migration failed")
	}

	mailer := email.NewEmailService(email.Options{
		APIKey:   cfg.SendGridAPIKey,
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
		Sandbox:  cfg.EmailSandbox,
	}, logger)

	batcher := campaigns.NewBatcher(
		database.NewCampaignService(writeClient),
		mailer,
		database.NewEventService(writeClient),
		metrics.New(),
		cfg.SiteURL,
		logger,
	)

	results, err := batcher.Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Campaign dispatch failed")
	}

	if len(results) == 0 {
		fmt.Println("No campaigns to dispatch")
		return
	}
	for _, r := range results {
		fmt.Printf("%s: selected %d, sent %d, failed %d, skipped %d, completed %t\n",
			r.CampaignID, r.Selected, r.Sent, r.Failed, r.Skipped, r.Completed)
	}
}
