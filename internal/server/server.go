package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"itracksy/internal/auth"
	"itracksy/internal/config"
	"itracksy/internal/handlers"
	"itracksy/internal/metrics"
	"itracksy/internal/webhooks"
)

// Services are the collaborators the routes are wired to
type Services struct {
	Messages      handlers.MessageStore
	Conversations handlers.ConversationStore
	Events        handlers.EventStore
	Leads         handlers.LeadStore
	Campaigns     handlers.CampaignStore
	Mailer        handlers.Mailer
	Fetcher       handlers.InboundFetcher // Optional
	Matcher       handlers.ThreadMatcher
	Dispatcher    handlers.Dispatcher
	Stats         handlers.StatsProvider
	Verifier      *webhooks.Verifier // Optional
	Metrics       *metrics.Metrics
}

// Server represents the application server
type Server struct {
	echo     *echo.Echo
	db       *sqlx.DB
	config   *config.Config
	logger   zerolog.Logger
	services Services
	auth     *auth.Manager
}

// New creates a new server instance
func New(cfg *config.Config, db *sqlx.DB, services Services, logger zerolog.Logger) *Server {
	if services.Metrics == nil {
		services.Metrics = metrics.New()
	}
	return &Server{
		config:   cfg,
		db:       db,
		logger:   logger,
		services: services,
		auth:     auth.NewManager(cfg),
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			event := s.logger.Info()
			if res.Status >= http.StatusInternalServerError {
				event = s.logger.Error()
			}
			event.
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	// Middleware
	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(s.services.Metrics.Middleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Hide Echo banner
	s.echo.HideBanner = true

	// Setup routes
	s.setupRoutes()
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	svc := s.services

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health and metrics (kept at root level for monitoring)
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.db))
	s.echo.GET("/metrics", echo.WrapHandler(svc.Metrics.Handler()))

	api := s.echo.Group("/api")
	api.GET("/", handlers.RootHandler(s.config.Version))

	// Public site endpoints
	api.POST("/leads", handlers.CaptureLeadHandler(svc.Leads, s.logger))
	api.POST("/feedback", handlers.SubmitFeedbackHandler(svc.Conversations, s.logger))

	// Provider webhooks, authenticated by signature when a secret is configured
	hooks := handlers.WebhookDeps{
		Messages:   svc.Messages,
		Events:     svc.Events,
		Recipients: svc.Campaigns,
		Matcher:    svc.Matcher,
		Fetcher:    svc.Fetcher,
		Verifier:   svc.Verifier,
		Metrics:    svc.Metrics,
		Logger:     s.logger,
	}
	api.POST("/webhooks/inbound-email", handlers.InboundEmailHandler(hooks))
	api.POST("/webhooks/email-events", handlers.EmailEventsHandler(hooks))

	// Scheduler trigger
	cron := api.Group("/cron", auth.CronMiddleware(s.config.CronSecret))
	cron.POST("/campaigns", handlers.DispatchCampaignsHandler(svc.Dispatcher, s.logger))
	cron.GET("/campaigns", handlers.DispatchCampaignsHandler(svc.Dispatcher, s.logger))

	// Admin dashboard
	admin := api.Group("/admin", auth.Middleware(s.auth))

	admin.GET("/feedback", handlers.ListFeedbackHandler(svc.Conversations))
	admin.GET("/feedback/:id/thread", handlers.FeedbackThreadHandler(svc.Conversations, svc.Messages))
	admin.POST("/feedback/reply", handlers.ReplyHandler(handlers.ReplyDeps{
		Conversations: svc.Conversations,
		Messages:      svc.Messages,
		Mailer:        svc.Mailer,
		Metrics:       svc.Metrics,
		From:          s.config.EmailFrom,
		FromName:      s.config.EmailFromName,
		ReplyTo:       s.config.ReplyToEmail,
		SiteURL:       s.config.SiteURL,
		Logger:        s.logger,
	}))

	admin.GET("/messages", handlers.ListMessagesHandler(svc.Messages))
	admin.PATCH("/messages/:id/read", handlers.MarkMessageReadHandler(svc.Messages))

	admin.GET("/leads", handlers.ListLeadsHandler(svc.Leads))
	admin.POST("/leads/upload", handlers.UploadLeadsHandler(svc.Leads, s.logger))
	admin.POST("/leads/import-feedback", handlers.ImportFeedbackLeadsHandler(svc.Leads))

	admin.GET("/campaigns", handlers.ListCampaignsHandler(svc.Campaigns))
	admin.POST("/campaigns", handlers.CreateCampaignHandler(svc.Campaigns))
	admin.GET("/campaigns/:id", handlers.GetCampaignHandler(svc.Campaigns))
	admin.POST("/campaigns/:id/recipients", handlers.AddRecipientsHandler(svc.Campaigns))
	admin.GET("/campaigns/:id/preview", handlers.PreviewCampaignHandler(svc.Campaigns, s.config.SiteURL))

	admin.GET("/email-stats", handlers.EmailStatsHandler(svc.Stats, s.logger))
	admin.GET("/email-events", handlers.EmailEventsListHandler(svc.Events))
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Server shutting down")
	return s.echo.Shutdown(ctx)
}
