package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sendgrid/rest"
)

// Received is the full content of an inbound email as stored by the provider
type Received struct {
	ID        string            `json:"id"`
	MessageID string            `json:"message_id"`
	From      string            `json:"from"`
	To        []string          `json:"to"`
	Subject   string            `json:"subject"`
	Text      string            `json:"text"`
	HTML      string            `json:"html"`
	Headers   map[string]string `json:"headers"`
}

// FetchReceived loads a received email by provider id.
// Header names are lower-cased so callers can look up "in-reply-to" directly.
func (es *EmailService) FetchReceived(ctx context.Context, emailID string) (*Received, error) {
	if es.opts.FetchAPIKey == "" {
		return nil, ErrNotConfigured
	}

	req := rest.Request{
		Method:  rest.Get,
		BaseURL: strings.TrimRight(es.opts.FetchURL, "/") + "/emails/receiving/" + url.PathEscape(emailID),
		Headers: map[string]string{
			"Authorization": "Bearer " + es.opts.FetchAPIKey,
			"Accept":        "application/json",
		},
	}

	resp, err := es.fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch received email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("email API error: status %d, body: %s", resp.StatusCode, resp.Body)
	}

	var received Received
	if err := json.Unmarshal([]byte(resp.Body), &received); err != nil {
		return nil, fmt.Errorf("failed to decode received email: %w", err)
	}

	headers := make(map[string]string, len(received.Headers))
	for k, v := range received.Headers {
		headers[strings.ToLower(k)] = v
	}
	received.Headers = headers

	return &received, nil
}
