package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds all configuration for the application
type Config struct {
	Port                    string
	DatabaseURL             string
	Version                 string
	LogLevel                string
	LogFile                 string   // Optional rotating log file, stdout only when empty
	SendGridAPIKey          string   // Transactional email API key used for outbound mail
	EmailAPIBaseURL         string   // Base URL of the provider API used to fetch received emails
	EmailAPIKey             string   // Bearer key for EmailAPIBaseURL
	EmailFrom               string   // Default sender address
	EmailFromName           string   // Default sender display name
	ReplyToEmail            string   // Reply-To for feedback replies, routes answers back to the inbound webhook
	EmailSandbox            bool     // Provider validates but does not deliver
	AuthJWTSecret           string   // HS256 secret of the auth provider
	AdminEmails             []string // Accounts allowed into /api/admin
	CronSecret              string   // Bearer token expected by the campaign trigger
	WebhookSecret           string   // whsec_ signing secret for provider webhooks, verification disabled when empty
	RedisURL                string   // Stats cache backend, in-memory cache when empty
	StatsCacheSeconds       int
	CampaignScheduleMinutes int // In-process campaign dispatch interval, disabled when 0
	SiteURL                 string
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:                    getEnv("PORT", "8080"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		Version:                 getEnv("VERSION", "1.0.0"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFile:                 os.Getenv("LOG_FILE"),
		SendGridAPIKey:          os.Getenv("SENDGRID_API_KEY"),
		EmailAPIBaseURL:         getEnv("EMAIL_API_BASE_URL", "https://api.resend.com"),
		EmailAPIKey:             os.Getenv("EMAIL_API_KEY"),
		EmailFrom:               getEnv("EMAIL_FROM", "hello@itracksy.com"),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "iTracksy"),
		ReplyToEmail:            getEnv("REPLY_TO_EMAIL", "support@itracksy.com"),
		EmailSandbox:            getEnvBool("EMAIL_SANDBOX", false),
		AuthJWTSecret:           os.Getenv("AUTH_JWT_SECRET"),
		AdminEmails:             getEnvList("ADMIN_EMAILS"),
		CronSecret:              os.Getenv("CRON_SECRET"),
		WebhookSecret:           os.Getenv("WEBHOOK_SECRET"),
		RedisURL:                os.Getenv("REDIS_URL"),
		StatsCacheSeconds:       getEnvInt("STATS_CACHE_SECONDS", 60),
		CampaignScheduleMinutes: getEnvInt("CAMPAIGN_SCHEDULE_MINUTES", 0),
		SiteURL:                 getEnv("SITE_URL", "https://itracksy.com"),
	}

	return config
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean with a default fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks and lower-casing entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsAdminEmail reports whether email is in the ADMIN_EMAILS allowlist
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stdout
	if c.LogFile != "" {
		out = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	logger := zerolog.New(out).With().
		Timestamp().
		Str("service", "itracksy").
		Str("version", c.Version).
		Logger()

	// Set log level based on configuration
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
