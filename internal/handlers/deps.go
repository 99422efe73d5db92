package handlers

import (
	"context"
	"time"

	"itracksy/internal/database"
	"itracksy/internal/email"
	"itracksy/internal/models"
	"itracksy/internal/threads"
)

// The handlers depend on these narrow views of the database services so they
// can be exercised with in-memory fakes.

// MessageStore persists email_threads rows
type MessageStore interface {
	Insert(ctx context.Context, msg *models.Message) error
	List(ctx context.Context, f database.MessageFilter) ([]models.Message, error)
	Thread(ctx context.Context, feedbackID string) ([]models.Message, error)
	MarkRead(ctx context.Context, id string, read bool) error
}

// ConversationStore persists feedback submissions
type ConversationStore interface {
	Create(ctx context.Context, c *models.Conversation) error
	Get(ctx context.Context, id string) (*models.Conversation, error)
	List(ctx context.Context, unrepliedOnly bool, limit, offset int) ([]models.Conversation, error)
	MarkReplied(ctx context.Context, id string, at time.Time) (bool, error)
}

// EventStore persists delivery events and beta invite engagement
type EventStore interface {
	Insert(ctx context.Context, e *models.EmailEvent) error
	MarkBetaInvite(ctx context.Context, email, eventType string, at time.Time) (int64, error)
	List(ctx context.Context, f models.EmailStatsFilter) ([]models.EmailEvent, error)
}

// LeadStore persists marketing leads
type LeadStore interface {
	Upsert(ctx context.Context, lead *models.Lead) error
	Import(ctx context.Context, leads []models.Lead) (int, error)
	ImportFromFeedback(ctx context.Context) (int, error)
	List(ctx context.Context, group string, limit, offset int) ([]models.Lead, error)
}

// CampaignStore persists campaigns and their recipients
type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	Get(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context, limit, offset int) ([]models.Campaign, error)
	RecipientCounts(ctx context.Context, campaignID string) (map[string]int, error)
	AddRecipients(ctx context.Context, campaignID string, leadIDs []string) (int, error)
	AddRecipientsByGroup(ctx context.Context, campaignID, group string) (int, error)
	ApplyEvent(ctx context.Context, recipientID, eventType string, at time.Time) (bool, error)
}

// Mailer sends one email
type Mailer interface {
	Send(ctx context.Context, msg email.Outgoing) error
}

// InboundFetcher loads the full content of a received email
type InboundFetcher interface {
	FetchReceived(ctx context.Context, emailID string) (*email.Received, error)
}

// ThreadMatcher resolves inbound email to a conversation
type ThreadMatcher interface {
	Match(ctx context.Context, in threads.Inbound) threads.Result
}

// Dispatcher runs one campaign batch pass
type Dispatcher interface {
	Run(ctx context.Context) ([]models.DispatchResult, error)
}

// StatsProvider computes delivery statistics
type StatsProvider interface {
	EmailStats(ctx context.Context, f models.EmailStatsFilter) (*models.EmailStats, error)
}
