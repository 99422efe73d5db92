package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"itracksy/internal/models"
)

const conversationColumns = `id, name, email, message, feedback_type, replied_at, created_at`

// ConversationService handles feedback conversations
type ConversationService struct {
	writeClient *WriteClient
}

// NewConversationService creates a new conversation service
func NewConversationService(writeClient *WriteClient) *ConversationService {
	return &ConversationService{writeClient: writeClient}
}

// Create stores a new feedback submission
func (s *ConversationService) Create(ctx context.Context, c *models.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.FeedbackType == "" {
		c.FeedbackType = "general"
	}

	query := `
		INSERT INTO feedback (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.writeClient.Exec(ctx, query, c.ID, c.Name, c.Email, c.Message, c.FeedbackType, c.RepliedAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// Get returns a conversation by id
func (s *ConversationService) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.writeClient.Get(ctx, &c, `SELECT `+conversationColumns+` FROM feedback WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return &c, nil
}

// LatestBySender returns the id of the most recent conversation submitted from email
func (s *ConversationService) LatestBySender(ctx context.Context, email string) (string, error) {
	query := `
		SELECT id
		FROM feedback
		WHERE lower(email) = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var id string
	if err := s.writeClient.Get(ctx, &id, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("failed to look up sender: %w", err)
	}
	return id, nil
}

// List returns conversations newest first, optionally only those awaiting a reply
func (s *ConversationService) List(ctx context.Context, unrepliedOnly bool, limit, offset int) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM feedback`
	if unrepliedOnly {
		query += ` WHERE replied_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	conversations := []models.Conversation{}
	if err := ExecuteReadOnlyQuery(ctx, s.writeClient.GetDB(), &conversations, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return conversations, nil
}

// MarkReplied stamps replied_at once. It reports false when the conversation
// was already replied to or does not exist.
func (s *ConversationService) MarkReplied(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.writeClient.Exec(ctx, `UPDATE feedback SET replied_at = $1 WHERE id = $2 AND replied_at IS NULL`, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark feedback replied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
