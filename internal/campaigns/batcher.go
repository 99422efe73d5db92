package campaigns

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"itracksy/internal/email"
	"itracksy/internal/metrics"
	"itracksy/internal/models"
)

const (
	// Window is the maximum distance between a lead's submission and now
	Window = 90 * time.Minute
	// BatchSize bounds sends per campaign per pass
	BatchSize = 10
	// SendInterval is the pause between two sends
	SendInterval = time.Second
	// ClaimLease is how long a claimed recipient stays reserved if its runner dies
	ClaimLease = 10 * time.Minute
)

// Store is the persistence the batcher needs
type Store interface {
	Dispatchable(ctx context.Context) ([]models.Campaign, error)
	PendingRecipients(ctx context.Context, campaignID string) ([]models.PendingRecipient, error)
	Claim(ctx context.Context, recipientID string, now, staleBefore time.Time) (bool, error)
	Release(ctx context.Context, recipientID string) error
	MarkSent(ctx context.Context, recipientID string, at time.Time) error
	Activate(ctx context.Context, campaignID string) error
	CompleteIfDrained(ctx context.Context, campaignID string, at time.Time) (bool, error)
}

// Sender delivers one email
type Sender interface {
	Send(ctx context.Context, msg email.Outgoing) error
}

// InviteRecorder tracks beta invitations for later engagement events
type InviteRecorder interface {
	RecordBetaInvite(ctx context.Context, email string, at time.Time) error
}

// Batcher sends a bounded, time-windowed, throttled batch of campaign email
type Batcher struct {
	store   Store
	sender  Sender
	invites InviteRecorder
	limiter *rate.Limiter
	metrics *metrics.Metrics
	siteURL string
	now     func() time.Time
	logger  zerolog.Logger
}

// NewBatcher creates a new campaign batcher
func NewBatcher(store Store, sender Sender, invites InviteRecorder, m *metrics.Metrics, siteURL string, logger zerolog.Logger) *Batcher {
	return &Batcher{
		store:   store,
		sender:  sender,
		invites: invites,
		limiter: rate.NewLimiter(rate.Every(SendInterval), 1),
		metrics: m,
		siteURL: siteURL,
		now:     time.Now,
		logger:  logger.With().Str("component", "campaign_batcher").Logger(),
	}
}

// InWindow reports whether a submission time is within Window of now, in either direction
func InWindow(submittedAt, now time.Time) bool {
	d := now.Sub(submittedAt)
	if d < 0 {
		d = -d
	}
	return d <= Window
}

// Select applies the window filter then the batch cap, preserving order
func Select(recipients []models.PendingRecipient, now time.Time) []models.PendingRecipient {
	selected := make([]models.PendingRecipient, 0, BatchSize)
	for _, r := range recipients {
		if len(selected) == BatchSize {
			break
		}
		if InWindow(r.SubmittedAt, now) {
			selected = append(selected, r)
		}
	}
	return selected
}

// Run processes every draft or active campaign once. Individual send failures
// are logged and counted; only failing to list campaigns is an error.
func (b *Batcher) Run(ctx context.Context) ([]models.DispatchResult, error) {
	campaigns, err := b.store.Dispatchable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaigns: %w", err)
	}

	results := make([]models.DispatchResult, 0, len(campaigns))
	for _, c := range campaigns {
		if ctx.Err() != nil {
			break
		}
		results = append(results, b.runCampaign(ctx, c))
	}

	b.logger.Info().Int("campaigns", len(results)).Msg("Campaign dispatch pass finished")
	return results, nil
}

func (b *Batcher) runCampaign(ctx context.Context, c models.Campaign) models.DispatchResult {
	res := models.DispatchResult{CampaignID: c.ID}
	log := b.logger.With().Str("campaign_id", c.ID).Logger()

	recipients, err := b.store.PendingRecipients(ctx, c.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load pending recipients")
		return res
	}

	batch := Select(recipients, b.now())
	res.Selected = len(batch)

	for _, r := range batch {
		if err := b.limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("Dispatch interrupted")
			break
		}

		sent, err := b.sendOne(ctx, c, r)
		switch {
		case sent:
			res.Sent++
			b.metrics.CampaignSends.WithLabelValues("sent").Inc()
			if err != nil {
				log.Error().Err(err).Str("recipient_id", r.ID).Msg("Recipient bookkeeping failed")
			}
		case err != nil:
			res.Failed++
			b.metrics.CampaignSends.WithLabelValues("failed").Inc()
			log.Error().Err(err).Str("recipient_id", r.ID).Str("to", r.Email).Msg("Campaign send failed")
		default:
			res.Skipped++
			b.metrics.CampaignSends.WithLabelValues("skipped").Inc()
		}
	}

	if res.Sent > 0 && c.Status == models.CampaignDraft {
		if err := b.store.Activate(ctx, c.ID); err != nil {
			log.Error().Err(err).Msg("Failed to activate campaign")
		}
	}

	completed, err := b.store.CompleteIfDrained(ctx, c.ID, b.now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to complete campaign")
	}
	if completed {
		res.Completed = true
		b.metrics.CampaignsCompleted.Inc()
		log.Info().Msg("Campaign completed")
	}

	log.Info().
		Int("pending", len(recipients)).
		Int("selected", res.Selected).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("Campaign batch processed")
	return res
}

// sendOne claims, renders, sends and marks one recipient. It returns false
// without error when another runner holds the claim.
func (b *Batcher) sendOne(ctx context.Context, c models.Campaign, r models.PendingRecipient) (bool, error) {
	now := b.now()
	claimed, err := b.store.Claim(ctx, r.ID, now, now.Add(-ClaimLease))
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	rendered, err := email.Render(c.Subject, c.TemplateKey, c.Content, email.Vars{
		Name: r.Name, Email: r.Email, SiteURL: b.siteURL,
	})
	if err != nil {
		b.release(ctx, r.ID)
		return false, fmt.Errorf("failed to render campaign: %w", err)
	}

	err = b.sender.Send(ctx, email.Outgoing{
		To:      r.Email,
		ToName:  r.Name,
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
		Tags: map[string]string{
			"email_type":       emailType(c),
			"campaign_id":      c.ID,
			"campaign_lead_id": r.ID,
		},
	})
	if err != nil {
		b.release(ctx, r.ID)
		return false, err
	}

	sentAt := b.now()
	if err := b.store.MarkSent(ctx, r.ID, sentAt); err != nil {
		// The email is out; the lease keeps other runners off until it expires.
		return true, fmt.Errorf("sent but failed to mark recipient: %w", err)
	}

	if emailType(c) == models.EmailTypeBetaInvite && b.invites != nil {
		if err := b.invites.RecordBetaInvite(ctx, r.Email, sentAt); err != nil {
			b.logger.Warn().Err(err).Str("to", r.Email).Msg("Failed to record beta invite")
		}
	}
	return true, nil
}

func (b *Batcher) release(ctx context.Context, recipientID string) {
	if err := b.store.Release(ctx, recipientID); err != nil {
		b.logger.Warn().Err(err).Str("recipient_id", recipientID).Msg("Failed to release recipient")
	}
}

// emailType tags campaign mail for delivery events: the template key, or "campaign"
func emailType(c models.Campaign) string {
	if c.TemplateKey != nil && *c.TemplateKey != "" {
		return *c.TemplateKey
	}
	return "campaign"
}
