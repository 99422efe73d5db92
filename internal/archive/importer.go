package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"itracksy/internal/models"
	"itracksy/internal/threads"
)

// MessageStore is the persistence the importer needs
type MessageStore interface {
	Insert(ctx context.Context, msg *models.Message) error
	HasMessageID(ctx context.Context, ids []string) (bool, error)
}

// Matcher resolves a message to its feedback conversation
type Matcher interface {
	Match(ctx context.Context, in threads.Inbound) threads.Result
}

// Stats counts the outcome of an import
type Stats struct {
	Imported   int
	Threaded   int // Attached to a feedback conversation
	Duplicates int // Already stored, by Message-ID
	Failed     int
}

// Importer stores archived mail as thread messages
type Importer struct {
	store     MessageStore
	matcher   Matcher
	ownDomain string
	logger    zerolog.Logger
}

// NewImporter creates an importer. Mail sent from ownDomain is stored as outbound.
func NewImporter(store MessageStore, matcher Matcher, ownDomain string, logger zerolog.Logger) *Importer {
	return &Importer{
		store:     store,
		matcher:   matcher,
		ownDomain: strings.ToLower(strings.TrimPrefix(ownDomain, "@")),
		logger:    logger.With().Str("component", "archive_importer").Logger(),
	}
}

// Import stores emails in order. Emails must be oldest first so replies can
// thread onto the messages they answer.
func (im *Importer) Import(ctx context.Context, emails []*Email) (Stats, error) {
	var stats Stats
	for _, e := range emails {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if e.MessageID != "" {
			seen, err := im.store.HasMessageID(ctx, threads.Candidates(e.MessageID))
			if err != nil {
				return stats, fmt.Errorf("failed to check for duplicates: %w", err)
			}
			if seen {
				stats.Duplicates++
				continue
			}
		}

		msg := im.toMessage(ctx, e)
		if err := im.store.Insert(ctx, msg); err != nil {
			im.logger.Warn().Err(err).Str("message_id", e.MessageID).Msg("Failed to store archived email")
			stats.Failed++
			continue
		}
		stats.Imported++
		if msg.FeedbackID != nil {
			stats.Threaded++
		}
	}
	return stats, nil
}

// isOwn reports whether address belongs to the service's own domain
func (im *Importer) isOwn(address string) bool {
	_, domain, ok := strings.Cut(address, "@")
	return ok && im.ownDomain != "" && strings.EqualFold(domain, im.ownDomain)
}

func (im *Importer) toMessage(ctx context.Context, e *Email) *models.Message {
	direction := models.DirectionInbound
	counterpart := e.From
	if im.isOwn(e.From) {
		direction = models.DirectionOutbound
		counterpart = e.To
	}

	// Outbound mail falls back to the recipient's latest conversation
	result := im.matcher.Match(ctx, threads.Inbound{
		InReplyTo:  e.InReplyTo,
		References: e.References,
		From:       counterpart,
	})

	var inReplyTo string
	if ids := threads.ParseMessageIDs(e.InReplyTo); len(ids) > 0 {
		inReplyTo = ids[0]
	}

	return &models.Message{
		MessageID:  optional(e.MessageID),
		FromEmail:  e.From,
		FromName:   optional(e.FromName),
		ToEmail:    e.To,
		Subject:    optional(e.Subject),
		BodyText:   e.Text,
		BodyHTML:   e.HTML,
		Direction:  direction,
		IsRead:     true,
		InReplyTo:  optional(inReplyTo),
		References: optional(e.References),
		FeedbackID: result.FeedbackID,
		CreatedAt:  e.Date,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
