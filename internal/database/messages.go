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

const messageColumns = `id, message_id, from_email, from_name, to_email, subject, body_text, body_html,
	direction, is_read, in_reply_to, "references", feedback_id, campaign_id, created_at`

// MessageFilter narrows the admin message listing
type MessageFilter struct {
	Direction  string
	FeedbackID string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// MessageService stores inbound and outbound email messages
type MessageService struct {
	writeClient *WriteClient
}

// NewMessageService creates a new message service
func NewMessageService(writeClient *WriteClient) *MessageService {
	return &MessageService{writeClient: writeClient}
}

// Insert stores one message, assigning an id and creation time when absent
func (s *MessageService) Insert(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO email_threads (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.writeClient.Exec(ctx, query,
		msg.ID, msg.MessageID, msg.FromEmail, msg.FromName, msg.ToEmail, msg.Subject,
		msg.BodyText, msg.BodyHTML, msg.Direction, msg.IsRead, msg.InReplyTo,
		msg.References, msg.FeedbackID, msg.CampaignID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// FeedbackIDByMessageID returns the conversation owning any stored message whose
// message_id is one of ids. Messages without a conversation are skipped.
func (s *MessageService) FeedbackIDByMessageID(ctx context.Context, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", ErrNotFound
	}

	query := `
		SELECT feedback_id
		FROM email_threads
		WHERE message_id = ANY($1) AND feedback_id IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	var feedbackID string
	if err := s.writeClient.Get(ctx, &feedbackID, query, pq.Array(ids)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("failed to look up message id: %w", err)
	}
	return feedbackID, nil
}

// HasMessageID reports whether any stored message carries one of ids
func (s *MessageService) HasMessageID(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}

	var count int
	query := `SELECT COUNT(*) FROM email_threads WHERE message_id = ANY($1)`
	if err := s.writeClient.Get(ctx, &count, query, pq.Array(ids)); err != nil {
		return false, fmt.Errorf("failed to check message id: %w", err)
	}
	return count > 0, nil
}

// List returns messages newest first
func (s *MessageService) List(ctx context.Context, f MessageFilter) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM email_threads WHERE 1=1`
	var args []interface{}
	if f.Direction != "" {
		args = append(args, f.Direction)
		query += fmt.Sprintf(" AND direction = $%d", len(args))
	}
	if f.FeedbackID != "" {
		args = append(args, f.FeedbackID)
		query += fmt.Sprintf(" AND feedback_id = $%d", len(args))
	}
	if f.UnreadOnly {
		query += " AND is_read = FALSE"
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	messages := []models.Message{}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &messages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Thread returns every message attached to a conversation, oldest first
func (s *MessageService) Thread(ctx context.Context, feedbackID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM email_threads WHERE feedback_id = $1 ORDER BY created_at ASC`

	messages := []models.Message{}
	if err := s.writeClient.Select(ctx, &messages, query, feedbackID); err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return messages, nil
}

// MarkRead sets the read flag of a message
func (s *MessageService) MarkRead(ctx context.Context, id string, read bool) error {
	res, err := s.writeClient.Exec(ctx, `UPDATE email_threads SET is_read = $1 WHERE id = $2`, read, id)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
