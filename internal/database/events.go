package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"itracksy/internal/models"
)

const eventColumns = `id, email_id, event_type, email_type, recipient, from_email, subject, click_url, created_at`

// EventService stores provider delivery events and beta invite engagement
type EventService struct {
	writeClient *WriteClient
}

// NewEventService creates a new event service
func NewEventService(writeClient *WriteClient) *EventService {
	return &EventService{writeClient: writeClient}
}

// Insert records one delivery event
func (s *EventService) Insert(ctx context.Context, e *models.EmailEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO email_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.writeClient.Exec(ctx, query,
		e.ID, e.EmailID, e.EventType, e.EmailType, e.Recipient, e.FromEmail, e.Subject, e.ClickURL, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert email event: %w", err)
	}
	return nil
}

// MarkBetaInvite sets opened_at or clicked_at on the invites sent to email,
// only where the timestamp is still null. Other event types are a no-op.
func (s *EventService) MarkBetaInvite(ctx context.Context, email, eventType string, at time.Time) (int64, error) {
	var column string
	switch eventType {
	case models.EventOpened:
		column = "opened_at"
	case models.EventClicked:
		column = "clicked_at"
	default:
		return 0, nil
	}

	query := fmt.Sprintf(`UPDATE beta_invites SET %[1]s = $1 WHERE lower(email) = $2 AND %[1]s IS NULL`, column)
	res, err := s.writeClient.Exec(ctx, query, at, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return 0, fmt.Errorf("failed to update beta invite: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecordBetaInvite stores a sent invitation so later events can be attributed
func (s *EventService) RecordBetaInvite(ctx context.Context, email string, at time.Time) error {
	_, err := s.writeClient.Exec(ctx,
		`INSERT INTO beta_invites (id, email, sent_at) VALUES ($1, $2, $3)`,
		uuid.NewString(), strings.ToLower(strings.TrimSpace(email)), at)
	if err != nil {
		return fmt.Errorf("failed to record beta invite: %w", err)
	}
	return nil
}

// eventWhere builds the WHERE clause shared by listings and aggregates
func eventWhere(f models.EmailStatsFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.EmailType != "" {
		args = append(args, f.EmailType)
		conds = append(conds, fmt.Sprintf("email_type = $%d", len(args)))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		conds = append(conds, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns events newest first
func (s *EventService) List(ctx context.Context, f models.EmailStatsFilter) ([]models.EmailEvent, error) {
	where, args := eventWhere(f)
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM email_events%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		eventColumns, where, len(args)-1, len(args))

	events := []models.EmailEvent{}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list email events: %w", err)
	}
	return events, nil
}

// CountByType returns event counts per event type plus the number of distinct emails
func (s *EventService) CountByType(ctx context.Context, f models.EmailStatsFilter) (map[string]int, int, error) {
	where, args := eventWhere(f)

	var rows []struct {
		EventType string `db:"event_type"`
		Count     int    `db:"count"`
	}
	query := `SELECT event_type, COUNT(*) AS count FROM email_events` + where + ` GROUP BY event_type`
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count email events: %w", err)
	}

	var unique int
	query = `SELECT COUNT(DISTINCT email_id) FROM email_events` + where
	if err := ExecuteReadOnlyQuerySingle(ctx, s.writeClient.GetDB(), &unique, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count distinct emails: %w", err)
	}

	counts := make(map[string]int, len(models.EventTypes))
	for _, t := range models.EventTypes {
		counts[t] = 0
	}
	for _, r := range rows {
		counts[r.EventType] = r.Count
	}
	return counts, unique, nil
}
