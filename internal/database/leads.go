package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"itracksy/internal/models"
)

const leadColumns = `id, name, email, phone, message, group_tag, submitted_at, created_at`

// FeedbackLeadGroup tags leads imported from feedback submitters
const FeedbackLeadGroup = "feedback"

// LeadService stores marketing leads, keyed by lower-cased email
type LeadService struct {
	writeClient *WriteClient
}

// NewLeadService creates a new lead service
func NewLeadService(writeClient *WriteClient) *LeadService {
	return &LeadService{writeClient: writeClient}
}

// NormalizeEmail is the dedup key for leads
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Upsert captures a lead from the site. An existing lead with the same email
// takes the new contact fields and submission time.
func (s *LeadService) Upsert(ctx context.Context, lead *models.Lead) error {
	lead.Email = NormalizeEmail(lead.Email)
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.SubmittedAt == nil {
		now := time.Now().UTC()
		lead.SubmittedAt = &now
	}

	query := `
		INSERT INTO leads (id, name, email, phone, message, group_tag, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			message = EXCLUDED.message,
			group_tag = COALESCE(EXCLUDED.group_tag, leads.group_tag),
			submitted_at = EXCLUDED.submitted_at
		RETURNING id
	`
	err := s.writeClient.Get(ctx, &lead.ID, query,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.Message, lead.GroupTag, lead.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert lead: %w", err)
	}
	return nil
}

// Import writes a batch of leads in one transaction. An existing lead is only
// overwritten when the incoming submission time is later than the stored one.
// It returns the number of rows inserted or updated.
func (s *LeadService) Import(ctx context.Context, leads []models.Lead) (int, error) {
	query := `
		INSERT INTO leads (id, name, email, phone, message, group_tag, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			message = EXCLUDED.message,
			group_tag = COALESCE(EXCLUDED.group_tag, leads.group_tag),
			submitted_at = EXCLUDED.submitted_at
		WHERE leads.submitted_at IS NULL
			OR (EXCLUDED.submitted_at IS NOT NULL AND EXCLUDED.submitted_at > leads.submitted_at)
	`

	written := 0
	err := WithTx(ctx, s.writeClient.GetDB(), func(tx *sqlx.Tx) error {
		for _, lead := range leads {
			res, err := tx.ExecContext(ctx, query,
				uuid.NewString(), lead.Name, NormalizeEmail(lead.Email), lead.Phone,
				lead.Message, lead.GroupTag, lead.SubmittedAt)
			if err != nil {
				return fmt.Errorf("failed to import lead %s: %w", lead.Email, err)
			}
			n, _ := res.RowsAffected()
			written += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// ImportFromFeedback turns every feedback submitter without a lead into one
func (s *LeadService) ImportFromFeedback(ctx context.Context) (int, error) {
	query := `
		INSERT INTO leads (id, name, email, message, group_tag, submitted_at)
		SELECT DISTINCT ON (lower(f.email))
			gen_random_uuid(), f.name, lower(f.email), f.message, $1, f.created_at
		FROM feedback f
		WHERE NOT EXISTS (SELECT 1 FROM leads l WHERE l.email = lower(f.email))
		ORDER BY lower(f.email), f.created_at DESC
		ON CONFLICT (email) DO NOTHING
	`
	res, err := s.writeClient.Exec(ctx, query, FeedbackLeadGroup)
	if err != nil {
		return 0, fmt.Errorf("failed to import feedback leads: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// List returns leads newest first, optionally restricted to a group
func (s *LeadService) List(ctx context.Context, group string, limit, offset int) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []interface{}{}
	if group != "" {
		args = append(args, group)
		query += ` WHERE group_tag = $1`
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	leads := []models.Lead{}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &leads, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}
