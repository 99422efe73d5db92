package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	_ "itracksy/docs"
	"itracksy/internal/analytics"
	"itracksy/internal/cache"
	"itracksy/internal/campaigns"
	"itracksy/internal/config"
	"itracksy/internal/database"
	"itracksy/internal/email"
	"itracksy/internal/metrics"
	"itracksy/internal/server"
	"itracksy/internal/threads"
	"itracksy/internal/webhooks"
)

// @title iTracksy API
// @version 1.0
// @description Feedback inbox, lead capture, email campaigns and delivery analytics for iTracksy.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := cfg.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	logger.Info().Msg("Database connection established successfully")

	writeClient := database.NewWriteClient(db)
	defer func() { _ = writeClient.Close() }()

	if err := database.Migrate(ctx, writeClient); err != nil {
		logger.Fatal().Err(err).Msg("Schema migration failed")
	}

	m := metrics.New()

	messages := database.NewMessageService(writeClient)
	conversations := database.NewConversationService(writeClient)
	events := database.NewEventService(writeClient)
	leadStore := database.NewLeadService(writeClient)
	campaignStore := database.NewCampaignService(writeClient)

	statsCache := newStatsCache(ctx, cfg, logger)
	stats, err := analytics.NewService(events, statsCache, time.Duration(cfg.StatsCacheSeconds)*time.Second, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create analytics service")
	}

	mailer := email.NewEmailService(email.Options{
		APIKey:      cfg.SendGridAPIKey,
		From:        cfg.EmailFrom,
		FromName:    cfg.EmailFromName,
		Sandbox:     cfg.EmailSandbox,
		FetchURL:    cfg.EmailAPIBaseURL,
		FetchAPIKey: cfg.EmailAPIKey,
	}, logger)
	if cfg.SendGridAPIKey == "" {
		logger.Warn().Msg("SENDGRID_API_KEY not set, replies and campaigns will fail to send")
	}

	batcher := campaigns.NewBatcher(campaignStore, mailer, events, m, cfg.SiteURL, logger)

	services := server.Services{
		Messages:      messages,
		Conversations: conversations,
		Events:        events,
		Leads:         leadStore,
		Campaigns:     campaignStore,
		Mailer:        mailer,
		Matcher:       threads.NewMatcher(messages, conversations, logger),
		Dispatcher:    batcher,
		Stats:         stats,
		Metrics:       m,
	}
	if cfg.EmailAPIKey != "" {
		services.Fetcher = mailer
	}
	if cfg.WebhookSecret != "" {
		verifier, err := webhooks.NewVerifier(cfg.WebhookSecret)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid WEBHOOK_SECRET")
		}
		services.Verifier = verifier
	} else {
		logger.Warn().Msg("WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	// Create and initialize server
	srv := server.New(cfg, db, services, logger)
	srv.Initialize()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(srv.Start)

	if cfg.CampaignScheduleMinutes > 0 {
		group.Go(func() error {
			runSchedule(groupCtx, batcher, time.Duration(cfg.CampaignScheduleMinutes)*time.Minute, logger)
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server shutdown error")
		}
		if closer, ok := statsCache.(*cache.Redis); ok {
			_ = closer.Close()
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server exited cleanly")
}

// newStatsCache connects to Redis when configured and falls back to process memory
func newStatsCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) cache.Store {
	if cfg.RedisURL == "" {
		return cache.New()
	}
	r, err := cache.NewRedis(ctx, cfg.RedisURL, "itracksy:")
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, using in-memory stats cache")
		return cache.New()
	}
	logger.Info().Msg("Using Redis stats cache")
	return r
}

// runSchedule runs a campaign batch pass every interval until ctx is done
func runSchedule(ctx context.Context, batcher *campaigns.Batcher, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("Campaign scheduler started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Campaign scheduler stopped")
			return
		case <-ticker.C:
			results, err := batcher.Run(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Scheduled campaign dispatch failed")
				continue
			}
			for _, r := range results {
				logger.Info().
					Str("campaign_id", r.CampaignID).
					Int("sent", r.Sent).
					Int("failed", r.Failed).
					Bool("completed", r.Completed).
					Msg("Scheduled campaign batch")
			}
		}
	}
}
