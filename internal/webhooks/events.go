package webhooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"itracksy/internal/models"
)

// TypeEmailReceived is the inbound mail event type
const TypeEmailReceived = "email.received"

var (
	// ErrInvalidPayload marks a body that is not valid JSON or misses required fields
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrUnknownType marks a well-formed event this service does not handle
	ErrUnknownType = errors.New("unknown webhook event type")
)

// Envelope is the outer shape shared by every provider event
type Envelope struct {
	Type      string          `json:"type"`
	CreatedAt string          `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// Headers holds MIME headers keyed by lower-cased name. It decodes from either
// an object or an array of {name, value} pairs.
type Headers map[string]string

// UnmarshalJSON implements json.Unmarshaler
func (h *Headers) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*h = nil
		return nil
	}

	out := Headers{}
	var obj map[string]string
	if err := json.Unmarshal(b, &obj); err == nil {
		for k, v := range obj {
			out[strings.ToLower(k)] = v
		}
		*h = out
		return nil
	}

	var pairs []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &pairs); err != nil {
		return fmt.Errorf("headers must be an object or a list of name/value pairs")
	}
	for _, p := range pairs {
		out[strings.ToLower(p.Name)] = p.Value
	}
	*h = out
	return nil
}

// Tags is the provider's tag list, decoded from an array of {name, value}
// pairs or a plain object.
type Tags map[string]string

// UnmarshalJSON implements json.Unmarshaler
func (t *Tags) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*t = nil
		return nil
	}

	var pairs []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &pairs); err == nil {
		out := make(Tags, len(pairs))
		for _, p := range pairs {
			out[p.Name] = p.Value
		}
		*t = out
		return nil
	}

	var obj map[string]string
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("tags must be a list of name/value pairs or an object")
	}
	*t = obj
	return nil
}

// InboundEmail is the data of an email.received event
type InboundEmail struct {
	EmailID   string   `json:"email_id"`
	To        []string `json:"to"`
	From      string   `json:"from"`
	Subject   string   `json:"subject"`
	MessageID string   `json:"message_id"`
	CreatedAt string   `json:"created_at"`
	Text      *string  `json:"text"`
	HTML      *string  `json:"html"`
	Headers   Headers  `json:"headers"`
}

// NeedsFetch reports whether body or headers must be loaded from the provider API
func (e *InboundEmail) NeedsFetch() bool {
	return e.Headers == nil || (e.Text == nil && e.HTML == nil)
}

// Click is the click detail of an email.clicked event
type Click struct {
	URL       string `json:"url"`
	Link      string `json:"link"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
	Timestamp string `json:"timestamp"`
}

// Target returns the clicked URL whichever field the provider filled
func (c *Click) Target() string {
	if c == nil {
		return ""
	}
	if c.URL != "" {
		return c.URL
	}
	return c.Link
}

// DeliveryEvent is the data of a delivery-lifecycle event
type DeliveryEvent struct {
	Type      string   `json:"-"` // Event type without the "email." prefix
	EmailID   string   `json:"email_id"`
	To        []string `json:"to"`
	From      string   `json:"from"`
	Subject   string   `json:"subject"`
	CreatedAt string   `json:"created_at"`
	Tags      Tags     `json:"tags"`
	Click     *Click   `json:"click"`
}

// Recipient returns the first recipient address
func (e *DeliveryEvent) Recipient() string {
	if len(e.To) == 0 {
		return ""
	}
	return e.To[0]
}

// DecodeEnvelope parses the outer event. It fails on invalid JSON or a missing type.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}
	return &env, nil
}

// DecodeInbound decodes an email.received event
func DecodeInbound(env *Envelope) (*InboundEmail, error) {
	if env.Type != TypeEmailReceived {
		return nil, ErrUnknownType
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}

	var data InboundEmail
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch {
	case data.EmailID == "":
		return nil, fmt.Errorf("%w: missing data.email_id", ErrInvalidPayload)
	case strings.TrimSpace(data.From) == "":
		return nil, fmt.Errorf("%w: missing data.from", ErrInvalidPayload)
	}
	if data.CreatedAt == "" {
		data.CreatedAt = env.CreatedAt
	}
	return &data, nil
}

// DecodeDelivery decodes one of the delivery-lifecycle events
func DecodeDelivery(env *Envelope) (*DeliveryEvent, error) {
	eventType, ok := deliveryType(env.Type)
	if !ok {
		return nil, ErrUnknownType
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}

	var data DeliveryEvent
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch {
	case data.EmailID == "":
		return nil, fmt.Errorf("%w: missing data.email_id", ErrInvalidPayload)
	case len(data.To) == 0:
		return nil, fmt.Errorf("%w: missing data.to", ErrInvalidPayload)
	}
	data.Type = eventType
	if data.CreatedAt == "" {
		data.CreatedAt = env.CreatedAt
	}
	return &data, nil
}

func deliveryType(t string) (string, bool) {
	name, ok := strings.CutPrefix(t, "email.")
	if !ok {
		return "", false
	}
	for _, known := range models.EventTypes {
		if name == known {
			return name, true
		}
	}
	return "", false
}
