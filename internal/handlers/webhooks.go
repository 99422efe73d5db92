package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"itracksy/internal/metrics"
	"itracksy/internal/models"
	"itracksy/internal/threads"
	"itracksy/internal/webhooks"
)

// maxWebhookBody caps the bytes read from a provider webhook
const maxWebhookBody = 1 << 20

// RecipientEvents advances campaign recipients from delivery events
type RecipientEvents interface {
	ApplyEvent(ctx context.Context, recipientID, eventType string, at time.Time) (bool, error)
}

// WebhookDeps are the collaborators of the provider webhook endpoints
type WebhookDeps struct {
	Messages   MessageStore
	Events     EventStore
	Recipients RecipientEvents
	Matcher    ThreadMatcher
	Fetcher    InboundFetcher     // Optional, inbound bodies are stored as received when nil
	Verifier   *webhooks.Verifier // Optional, signatures are not checked when nil
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// readWebhook reads and, when configured, authenticates a webhook body.
// When ok is false the error response has already been written.
func readWebhook(c echo.Context, deps WebhookDeps, endpoint string) (body []byte, ok bool, err error) {
	body, err = io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		deps.Metrics.WebhooksRejected.WithLabelValues(endpoint, "read").Inc()
		return nil, false, badRequest(c, "Failed to read request body")
	}
	if len(body) > maxWebhookBody {
		deps.Logger.Warn().Str("endpoint", endpoint).Msg("Rejected oversized webhook")
		deps.Metrics.WebhooksRejected.WithLabelValues(endpoint, "too_large").Inc()
		return nil, false, c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "Webhook body too large"})
	}

	if deps.Verifier != nil {
		if err := deps.Verifier.Verify(c.Request().Header, body); err != nil {
			deps.Logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Rejected webhook with bad signature")
			deps.Metrics.WebhooksRejected.WithLabelValues(endpoint, "signature").Inc()
			return nil, false, c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid webhook signature"})
		}
	}
	return body, true, nil
}

// parseTimestamp reads a provider timestamp, falling back to now
func parseTimestamp(raw string, now time.Time) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", "2006-01-02 15:04:05.999999Z07:00"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// InboundEmailHandler stores one received email, threaded onto a feedback conversation when possible
// @Summary Inbound mail webhook
// @Description Receives email.received events, resolves the conversation and stores the message
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} models.InboundEmailResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/webhooks/inbound-email [post]
func InboundEmailHandler(deps WebhookDeps) echo.HandlerFunc {
	const endpoint = "inbound-email"
	logger := deps.Logger.With().Str("handler", endpoint).Logger()

	return func(c echo.Context) error {
		ctx := c.Request().Context()

		body, ok, err := readWebhook(c, deps, endpoint)
		if !ok {
			return err
		}

		env, err := webhooks.DecodeEnvelope(body)
		if err != nil {
			deps.Metrics.WebhooksRejected.WithLabelValues(endpoint, "invalid").Inc()
			return badRequest(c, err.Error())
		}

		in, err := webhooks.DecodeInbound(env)
		if errors.Is(err, webhooks.ErrUnknownType) {
			logger.Info().Str("type", env.Type).Msg("Ignoring unhandled inbound event type")
			deps.Metrics.WebhooksRejected.WithLabelValues(endpoint, "unknown_type").Inc()
			return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
		}
		if err != nil {
			deps.Metrics.WebhooksRejected.WithLabelValues(endpoint, "invalid").Inc()
			return badRequest(c, err.Error())
		}

		var text, html string
		if in.Text != nil {
			text = *in.Text
		}
		if in.HTML != nil {
			html = *in.HTML
		}
		headers := map[string]string(in.Headers)
		messageID := in.MessageID

		if in.NeedsFetch() && deps.Fetcher != nil {
			full, err := deps.Fetcher.FetchReceived(ctx, in.EmailID)
			if err != nil {
				// Stored with whatever the webhook carried
				logger.Warn().Err(err).Str("email_id", in.EmailID).Msg("Failed to fetch received email")
			} else {
				if in.Text == nil {
					text = full.Text
				}
				if in.HTML == nil {
					html = full.HTML
				}
				if headers == nil {
					headers = full.Headers
				}
				if messageID == "" {
					messageID = full.MessageID
				}
			}
		}
		if messageID == "" {
			messageID = headers["message-id"]
		}

		inReplyTo := headers["in-reply-to"]
		references := strings.Join(strings.Fields(headers["references"]), " ")

		result := deps.Matcher.Match(ctx, threads.Inbound{
			InReplyTo:  inReplyTo,
			References: references,
			From:       in.From,
		})

		fromEmail, fromName := threads.ParseSender(in.From)
		var to string
		if len(in.To) > 0 {
			to, _ = threads.ParseSender(in.To[0])
		}

		msg := &models.Message{
			MessageID:  optional(threads.StripAngles(messageID)),
			FromEmail:  fromEmail,
			FromName:   optional(fromName),
			ToEmail:    to,
			Subject:    optional(in.Subject),
			BodyText:   text,
			BodyHTML:   html,
			Direction:  models.DirectionInbound,
			InReplyTo:  optional(inReplyTo),
			References: optional(references),
			FeedbackID: result.FeedbackID,
			CreatedAt:  parseTimestamp(in.CreatedAt, time.Now()),
		}

		if err := deps.Messages.Insert(ctx, msg); err != nil {
			logger.Error().Err(err).Str("email_id", in.EmailID).Msg("Failed to store inbound email")
			return serverError(c, "Failed to store inbound email")
		}

		deps.Metrics.InboundMessages.WithLabelValues(string(result.Rule)).Inc()
		logger.Info().
			Str("email_id", in.EmailID).
			Str("message_id", msg.ID).
			Str("rule", string(result.Rule)).
			Msg("Inbound email stored")

		return c.JSON(http.StatusOK, models.InboundEmailResponse{
			Success:    true,
			FeedbackID: result.FeedbackID,
		})
	}
}

// EmailEventsHandler records provider delivery-lifecycle events
// @Summary Delivery event webhook
// @Description Records sent/delivered/delayed/complained/bounced/opened/clicked events
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} models.EmailEventResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/webhooks/email-events [post]
func EmailEventsHandler(deps WebhookDeps) echo.HandlerFunc {
	const endpoint = "email-events"
	logger := deps.Logger.With().Str("handler", endpoint).Logger()

	return func(c echo.Context) error {
		ctx := c.Request().Context()

		body, ok, err := readWebhook(c, deps, endpoint)
		if !ok {
			return err
		}

		env, err := webhooks.DecodeEnvelope(body)
		if err != nil {
			deps.Metrics.WebhooksRejected.WithLabelValues(endpoint, "invalid").Inc()
			return badRequest(c, err.Error())
		}

		ev, err := webhooks.DecodeDelivery(env)
		if err != nil {
			reason := "invalid"
			if errors.Is(err, webhooks.ErrUnknownType) {
				reason = "unknown_type"
			}
			logger.Info().Err(err).Str("type", env.Type).Msg("Ignoring delivery event")
			deps.Metrics.WebhooksRejected.WithLabelValues(endpoint, reason).Inc()
			return c.JSON(http.StatusOK, models.EmailEventResponse{Success: true, Ignored: true})
		}

		at := parseTimestamp(ev.CreatedAt, time.Now())
		emailType := optional(ev.Tags["email_type"])
		recipient := strings.ToLower(strings.TrimSpace(ev.Recipient()))

		record := &models.EmailEvent{
			EmailID:   ev.EmailID,
			EventType: ev.Type,
			EmailType: emailType,
			Recipient: recipient,
			FromEmail: ev.From,
			Subject:   ev.Subject,
			ClickURL:  optional(ev.Click.Target()),
			CreatedAt: at,
		}
		if err := deps.Events.Insert(ctx, record); err != nil {
			logger.Error().Err(err).Str("email_id", ev.EmailID).Msg("Failed to record delivery event")
			return serverError(c, "Failed to record delivery event")
		}
		deps.Metrics.DeliveryEvents.WithLabelValues(ev.Type).Inc()

		if emailType != nil && *emailType == models.EmailTypeBetaInvite {
			n, err := deps.Events.MarkBetaInvite(ctx, recipient, ev.Type, at)
			if err != nil {
				logger.Warn().Err(err).Str("recipient", recipient).Msg("Failed to update beta invite")
			} else if n > 0 {
				logger.Info().Str("recipient", recipient).Str("event", ev.Type).Msg("Beta invite engagement recorded")
			}
		}

		if recipientID := ev.Tags["campaign_lead_id"]; recipientID != "" && deps.Recipients != nil {
			if _, err := deps.Recipients.ApplyEvent(ctx, recipientID, ev.Type, at); err != nil {
				logger.Warn().Err(err).Str("campaign_lead_id", recipientID).Msg("Failed to update campaign recipient")
			}
		}

		return c.JSON(http.StatusOK, models.EmailEventResponse{Success: true})
	}
}
