package webhooks

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// ErrInvalidSignature is returned for missing, stale or mismatching signatures
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier checks the svix signature headers (svix-id, svix-timestamp, svix-signature)
// that the mail provider attaches to every webhook delivery.
type Verifier struct {
	wh *svix.Webhook
}

// NewVerifier parses a "whsec_" prefixed base64 secret
func NewVerifier(secret string) (*Verifier, error) {
	if raw := strings.TrimPrefix(secret, "whsec_"); raw == "" {
		return nil, fmt.Errorf("invalid webhook secret: empty key")
	} else if _, err := base64.StdEncoding.DecodeString(raw); err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	return &Verifier{wh: wh}, nil
}

// Verify checks the signature headers against body, rejecting timestamps
// more than five minutes away from now
func (v *Verifier) Verify(header http.Header, body []byte) error {
	if err := v.wh.Verify(body, header); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Sign produces the svix-signature value for a message, as the provider would
func (v *Verifier) Sign(id string, at time.Time, body []byte) (string, error) {
	return v.wh.Sign(id, at, body)
}
