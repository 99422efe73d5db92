package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"itracksy/internal/database"
	"itracksy/internal/email"
	"itracksy/internal/leads"
	"itracksy/internal/metrics"
	"itracksy/internal/models"
	"itracksy/internal/threads"
)

// SubmitFeedbackHandler stores an in-app feedback submission
// @Summary Submit feedback
// @Tags public
// @Accept json
// @Produce json
// @Param request body models.FeedbackRequest true "Feedback"
// @Success 201 {object} models.FeedbackResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/feedback [post]
func SubmitFeedbackHandler(conversations ConversationStore, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.FeedbackRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}

		req.Email = strings.TrimSpace(req.Email)
		switch {
		case strings.TrimSpace(req.Message) == "":
			return badRequest(c, "Message is required")
		case !leads.ValidEmail(req.Email):
			return badRequest(c, "A valid email is required")
		}

		conv := &models.Conversation{
			Name:         strings.TrimSpace(req.Name),
			Email:        req.Email,
			Message:      strings.TrimSpace(req.Message),
			FeedbackType: strings.TrimSpace(req.FeedbackType),
		}
		if err := conversations.Create(c.Request().Context(), conv); err != nil {
			logger.Error().Err(err).Msg("Failed to store feedback")
			return serverError(c, "Failed to store feedback")
		}

		return c.JSON(http.StatusCreated, models.FeedbackResponse{Success: true, ID: conv.ID})
	}
}

// ListFeedbackHandler lists feedback conversations, newest first
// @Summary List feedback
// @Tags admin
// @Produce json
// @Param unreplied query bool false "Only conversations without a reply"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} models.ListResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/feedback [get]
func ListFeedbackHandler(conversations ConversationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		unreplied, err := boolParam(c, "unreplied")
		if err != nil {
			return badRequest(c, err.Error())
		}
		limit, offset := pagination(c)

		items, err := conversations.List(c.Request().Context(), unreplied, limit, offset)
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to list feedback: %v", err))
		}
		if items == nil {
			items = []models.Conversation{}
		}

		return c.JSON(http.StatusOK, models.ListResponse{Items: items, Limit: limit, Offset: offset})
	}
}

// FeedbackThreadHandler returns a conversation with every message threaded onto it
// @Summary Get feedback thread
// @Tags admin
// @Produce json
// @Param id path string true "Feedback ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/feedback/{id}/thread [get]
func FeedbackThreadHandler(conversations ConversationStore, messages MessageStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id, ok := idParam(c)
		if !ok {
			return notFound(c, "Feedback not found")
		}

		conv, err := conversations.Get(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			return notFound(c, "Feedback not found")
		}
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to load feedback: %v", err))
		}

		thread, err := messages.Thread(ctx, id)
		if err != nil {
			return serverError(c, fmt.Sprintf("Failed to load messages: %v", err))
		}
		if thread == nil {
			thread = []models.Message{}
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"feedback": conv,
			"messages": thread,
		})
	}
}

// ReplyDeps are the collaborators of the reply-send endpoint
type ReplyDeps struct {
	Conversations ConversationStore
	Messages      MessageStore
	Mailer        Mailer
	Metrics       *metrics.Metrics
	From          string
	FromName      string
	ReplyTo       string
	SiteURL       string
	Logger        zerolog.Logger
}

// replyHeaders picks the message being answered and builds the References chain.
// An explicit inReplyTo wins; otherwise the latest inbound message of the thread.
func replyHeaders(thread []models.Message, explicit *string) (inReplyTo, references string) {
	var parent *models.Message
	if explicit != nil && threads.StripAngles(*explicit) != "" {
		inReplyTo = threads.StripAngles(*explicit)
		for i := range thread {
			if thread[i].MessageID != nil && threads.StripAngles(*thread[i].MessageID) == inReplyTo {
				parent = &thread[i]
				break
			}
		}
	} else {
		for i := range thread {
			m := &thread[i]
			if m.Direction != models.DirectionInbound || m.MessageID == nil {
				continue
			}
			if parent == nil || m.CreatedAt.After(parent.CreatedAt) {
				parent = m
			}
		}
		if parent != nil {
			inReplyTo = threads.StripAngles(*parent.MessageID)
		}
	}
	if inReplyTo == "" {
		return "", ""
	}

	var chain []string
	if parent != nil && parent.References != nil {
		for _, id := range threads.ParseMessageIDs(*parent.References) {
			chain = append(chain, "<"+id+">")
		}
	}
	chain = append(chain, "<"+inReplyTo+">")
	return inReplyTo, strings.Join(chain, " ")
}

// newMessageID returns a bare RFC 5322 message id on the sender's domain
func newMessageID(from string) string {
	domain := "itracksy.com"
	if _, d, ok := strings.Cut(from, "@"); ok && d != "" {
		domain = d
	}
	return uuid.NewString() + "@" + domain
}

// ReplyHandler emails an admin reply to a feedback submitter and threads it
// @Summary Reply to feedback
// @Description Sends the reply, stores it as an outbound message and stamps the conversation as replied
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.ReplyRequest true "Reply"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/feedback/reply [post]
func ReplyHandler(deps ReplyDeps) echo.HandlerFunc {
	logger := deps.Logger.With().Str("handler", "feedback-reply").Logger()

	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var req models.ReplyRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}

		req.To = strings.TrimSpace(req.To)
		feedbackID, validID := canonicalID(req.FeedbackID)
		switch {
		case req.FeedbackID == "":
			return badRequest(c, "feedbackId is required")
		case !validID:
			return badRequest(c, "feedbackId must be a uuid")
		case !leads.ValidEmail(req.To):
			return badRequest(c, "A valid recipient email is required")
		case strings.TrimSpace(req.Subject) == "":
			return badRequest(c, "Subject is required")
		case strings.TrimSpace(req.Message) == "":
			return badRequest(c, "Message is required")
		}
		req.FeedbackID = feedbackID

		// Nothing is sent for a conversation that does not exist
		if _, err := deps.Conversations.Get(ctx, feedbackID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return notFound(c, "Feedback not found")
			}
			logger.Error().Err(err).Str("feedback_id", feedbackID).Msg("Failed to load feedback for reply")
			return serverError(c, fmt.Sprintf("Failed to load feedback: %v", err))
		}

		thread, err := deps.Messages.Thread(ctx, feedbackID)
		if err != nil {
			// Threading headers are best effort
			logger.Warn().Err(err).Str("feedback_id", req.FeedbackID).Msg("Failed to load thread for reply headers")
		}
		inReplyTo, references := replyHeaders(thread, req.InReplyTo)

		html, err := email.RenderReply(req.Message, req.UserName, req.OriginalMessage, deps.SiteURL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to render reply")
			return serverError(c, "Failed to render reply")
		}

		messageID := newMessageID(deps.From)
		headers := map[string]string{"Message-ID": "<" + messageID + ">"}
		if inReplyTo != "" {
			headers["In-Reply-To"] = "<" + inReplyTo + ">"
			headers["References"] = references
		}

		out := email.Outgoing{
			To:      req.To,
			ToName:  req.UserName,
			Subject: req.Subject,
			Text:    req.Message,
			HTML:    html,
			ReplyTo: deps.ReplyTo,
			Headers: headers,
			Tags: map[string]string{
				"email_type":  "feedback_reply",
				"feedback_id": req.FeedbackID,
			},
		}
		if err := deps.Mailer.Send(ctx, out); err != nil {
			logger.Error().Err(err).Str("feedback_id", req.FeedbackID).Msg("Failed to send reply")
			return serverError(c, fmt.Sprintf("Failed to send reply: %v", err))
		}
		deps.Metrics.RepliesSent.Inc()

		// The email is out; bookkeeping failures below are logged, not surfaced
		now := time.Now().UTC()
		msg := &models.Message{
			MessageID:  &messageID,
			FromEmail:  deps.From,
			FromName:   optional(deps.FromName),
			ToEmail:    strings.ToLower(req.To),
			Subject:    optional(req.Subject),
			BodyText:   req.Message,
			BodyHTML:   html,
			Direction:  models.DirectionOutbound,
			IsRead:     true,
			InReplyTo:  optional(inReplyTo),
			References: optional(references),
			FeedbackID: &feedbackID,
			CreatedAt:  now,
		}
		if err := deps.Messages.Insert(ctx, msg); err != nil {
			logger.Error().Err(err).Str("feedback_id", req.FeedbackID).Msg("Reply sent but not stored")
		}

		stamped, err := deps.Conversations.MarkReplied(ctx, req.FeedbackID, now)
		switch {
		case err != nil:
			logger.Error().Err(err).Str("feedback_id", req.FeedbackID).Msg("Reply sent but replied_at not stamped")
		case !stamped:
			logger.Info().Str("feedback_id", req.FeedbackID).Msg("Conversation was already marked replied")
		}

		logger.Info().Str("feedback_id", req.FeedbackID).Str("feedback_type", req.FeedbackType).Msg("Feedback reply sent")
		return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
	}
}
