package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"itracksy/internal/models"
)

const campaignColumns = `id, name, description, subject, template_key, content, status, sent_at, created_at`

// CampaignService stores campaigns and their recipients
type CampaignService struct {
	writeClient *WriteClient
}

// NewCampaignService creates a new campaign service
func NewCampaignService(writeClient *WriteClient) *CampaignService {
	return &CampaignService{writeClient: writeClient}
}

// Create stores a new campaign as a draft
func (s *CampaignService) Create(ctx context.Context, c *models.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Status = models.CampaignDraft

	query := `
		INSERT INTO campaigns (` + campaignColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.writeClient.Exec(ctx, query,
		c.ID, c.Name, c.Description, c.Subject, c.TemplateKey, c.Content, c.Status, c.SentAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// Get returns a campaign by id
func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	var c models.Campaign
	if err := s.writeClient.Get(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &c, nil
}

// List returns campaigns newest first
func (s *CampaignService) List(ctx context.Context, limit, offset int) ([]models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	campaigns := []models.Campaign{}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &campaigns, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// RecipientCounts returns the number of recipients per status
func (s *CampaignService) RecipientCounts(ctx context.Context, campaignID string) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM campaign_leads WHERE campaign_id = $1 GROUP BY status`
	if err := s.writeClient.Select(ctx, &rows, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to count recipients: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// AddRecipients attaches leads to a campaign, skipping pairs that already exist
func (s *CampaignService) AddRecipients(ctx context.Context, campaignID string, leadIDs []string) (int, error) {
	query := `
		INSERT INTO campaign_leads (id, campaign_id, lead_id, status)
		SELECT gen_random_uuid(), $1, l.id, 'pending'
		FROM leads l
		WHERE l.id = ANY($2::uuid[])
			AND NOT EXISTS (
				SELECT 1 FROM campaign_leads cl WHERE cl.campaign_id = $1 AND cl.lead_id = l.id
			)
		ON CONFLICT (campaign_id, lead_id) DO NOTHING
	`
	res, err := s.writeClient.Exec(ctx, query, campaignID, pq.Array(leadIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to add recipients: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// AddRecipientsByGroup attaches every lead carrying the group tag
func (s *CampaignService) AddRecipientsByGroup(ctx context.Context, campaignID, group string) (int, error) {
	query := `
		INSERT INTO campaign_leads (id, campaign_id, lead_id, status)
		SELECT gen_random_uuid(), $1, l.id, 'pending'
		FROM leads l
		WHERE l.group_tag = $2
			AND NOT EXISTS (
				SELECT 1 FROM campaign_leads cl WHERE cl.campaign_id = $1 AND cl.lead_id = l.id
			)
		ON CONFLICT (campaign_id, lead_id) DO NOTHING
	`
	res, err := s.writeClient.Exec(ctx, query, campaignID, group)
	if err != nil {
		return 0, fmt.Errorf("failed to add group recipients: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Dispatchable returns campaigns the batcher should work on, oldest first
func (s *CampaignService) Dispatchable(ctx context.Context) ([]models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status IN ('draft', 'active') ORDER BY created_at ASC`

	campaigns := []models.Campaign{}
	if err := s.writeClient.Select(ctx, &campaigns, query); err != nil {
		return nil, fmt.Errorf("failed to list dispatchable campaigns: %w", err)
	}
	return campaigns, nil
}

// PendingRecipients returns the pending recipients of a campaign whose lead has
// a submission time, oldest submission first
func (s *CampaignService) PendingRecipients(ctx context.Context, campaignID string) ([]models.PendingRecipient, error) {
	query := `
		SELECT cl.id, cl.campaign_id, cl.lead_id, l.name, l.email, l.submitted_at
		FROM campaign_leads cl
		JOIN leads l ON l.id = cl.lead_id
		WHERE cl.campaign_id = $1
			AND cl.status = 'pending'
			AND l.submitted_at IS NOT NULL
		ORDER BY l.submitted_at ASC
	`
	recipients := []models.PendingRecipient{}
	if err := s.writeClient.Select(ctx, &recipients, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to get pending recipients: %w", err)
	}
	return recipients, nil
}

// Claim leases a pending recipient so concurrent runners never send it twice.
// A lease older than staleBefore is considered abandoned.
func (s *CampaignService) Claim(ctx context.Context, recipientID string, now, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE campaign_leads SET claimed_at = $2
		WHERE id = $1
			AND status = 'pending'
			AND (claimed_at IS NULL OR claimed_at < $3)
	`
	res, err := s.writeClient.Exec(ctx, query, recipientID, now, staleBefore)
	if err != nil {
		return false, fmt.Errorf("failed to claim recipient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// Release drops the lease on a recipient left pending after a failed send
func (s *CampaignService) Release(ctx context.Context, recipientID string) error {
	_, err := s.writeClient.Exec(ctx,
		`UPDATE campaign_leads SET claimed_at = NULL WHERE id = $1 AND status = 'pending'`, recipientID)
	if err != nil {
		return fmt.Errorf("failed to release recipient: %w", err)
	}
	return nil
}

// MarkSent records a successful send and clears the lease
func (s *CampaignService) MarkSent(ctx context.Context, recipientID string, at time.Time) error {
	_, err := s.writeClient.Exec(ctx,
		`UPDATE campaign_leads SET status = 'sent', sent_at = $2, claimed_at = NULL WHERE id = $1`, recipientID, at)
	if err != nil {
		return fmt.Errorf("failed to mark recipient sent: %w", err)
	}
	return nil
}

// Activate moves a draft campaign to active
func (s *CampaignService) Activate(ctx context.Context, campaignID string) error {
	_, err := s.writeClient.Exec(ctx,
		`UPDATE campaigns SET status = 'active' WHERE id = $1 AND status = 'draft'`, campaignID)
	if err != nil {
		return fmt.Errorf("failed to activate campaign: %w", err)
	}
	return nil
}

// CompleteIfDrained marks a campaign completed when it has recipients and none
// of them is pending. It reports whether the campaign transitioned.
func (s *CampaignService) CompleteIfDrained(ctx context.Context, campaignID string, at time.Time) (bool, error) {
	query := `
		UPDATE campaigns SET status = 'completed', sent_at = $2
		WHERE id = $1
			AND status IN ('draft', 'active')
			AND EXISTS (SELECT 1 FROM campaign_leads WHERE campaign_id = $1)
			AND NOT EXISTS (SELECT 1 FROM campaign_leads WHERE campaign_id = $1 AND status = 'pending')
	`
	res, err := s.writeClient.Exec(ctx, query, campaignID, at)
	if err != nil {
		return false, fmt.Errorf("failed to complete campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ApplyEvent advances a recipient from a delivery event. Timestamps are set
// once; a bounce is terminal. It reports whether a row changed.
func (s *CampaignService) ApplyEvent(ctx context.Context, recipientID, eventType string, at time.Time) (bool, error) {
	var query string
	args := []interface{}{recipientID, at}
	switch eventType {
	case models.EventOpened:
		query = `
			UPDATE campaign_leads
			SET opened_at = $2,
				status = CASE WHEN status IN ('pending', 'sent') THEN 'opened' ELSE status END
			WHERE id = $1 AND opened_at IS NULL AND status <> 'bounced'
		`
	case models.EventClicked:
		query = `
			UPDATE campaign_leads
			SET clicked_at = $2,
				status = CASE WHEN status IN ('pending', 'sent', 'opened') THEN 'clicked' ELSE status END
			WHERE id = $1 AND clicked_at IS NULL AND status <> 'bounced'
		`
	case models.EventBounced:
		query = `UPDATE campaign_leads SET status = 'bounced', claimed_at = NULL WHERE id = $1 AND status <> 'bounced'`
		args = args[:1]
	default:
		return false, nil
	}

	res, err := s.writeClient.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to apply %s event to recipient: %w", eventType, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
