package threads

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"itracksy/internal/database"
)

// Rule names which step of the matcher attached a message
type Rule string

const (
	RuleInReplyTo  Rule = "in_reply_to"
	RuleReferences Rule = "references"
	RuleSender     Rule = "sender"
	RuleNone       Rule = "none"
)

// MessageLookup finds the conversation owning a stored message id
type MessageLookup interface {
	FeedbackIDByMessageID(ctx context.Context, ids []string) (string, error)
}

// SenderLookup finds the latest conversation submitted from an address
type SenderLookup interface {
	LatestBySender(ctx context.Context, email string) (string, error)
}

// Inbound carries the threading inputs of one received email
type Inbound struct {
	InReplyTo  string
	References string
	From       string // Sender address, display name allowed
}

// Result is the outcome of a match; FeedbackID is nil for orphans
type Result struct {
	FeedbackID *string
	Rule       Rule
}

// Matcher resolves inbound email to the feedback conversation it continues
type Matcher struct {
	messages      MessageLookup
	conversations SenderLookup
	logger        zerolog.Logger
}

// NewMatcher creates a new thread matcher
func NewMatcher(messages MessageLookup, conversations SenderLookup, logger zerolog.Logger) *Matcher {
	return &Matcher{
		messages:      messages,
		conversations: conversations,
		logger:        logger.With().Str("component", "thread_matcher").Logger(),
	}
}

// Match tries, in order: the In-Reply-To id, each References id in header
// order, then the most recent conversation from the sender. Lookup failures
// are logged and treated as misses; matching never fails the caller.
func (m *Matcher) Match(ctx context.Context, in Inbound) Result {
	for _, id := range ParseMessageIDs(in.InReplyTo) {
		if fid, ok := m.byMessageID(ctx, id); ok {
			return Result{FeedbackID: &fid, Rule: RuleInReplyTo}
		}
	}

	for _, id := range ParseMessageIDs(in.References) {
		if fid, ok := m.byMessageID(ctx, id); ok {
			return Result{FeedbackID: &fid, Rule: RuleReferences}
		}
	}

	if address, _ := ParseSender(in.From); address != "" {
		fid, err := m.conversations.LatestBySender(ctx, address)
		switch {
		case err == nil:
			return Result{FeedbackID: &fid, Rule: RuleSender}
		case !errors.Is(err, database.ErrNotFound):
			m.logger.Warn().Err(err).Str("from", address).Msg("Sender lookup failed")
		}
	}

	return Result{Rule: RuleNone}
}

func (m *Matcher) byMessageID(ctx context.Context, id string) (string, bool) {
	fid, err := m.messages.FeedbackIDByMessageID(ctx, Candidates(id))
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			m.logger.Warn().Err(err).Str("message_id", id).Msg("Message id lookup failed")
		}
		return "", false
	}
	return fid, true
}
