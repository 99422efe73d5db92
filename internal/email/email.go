package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrNotConfigured is returned when no provider API key is set
var ErrNotConfigured = errors.New("email provider API key not configured")

// Outgoing is one email to a single recipient
type Outgoing struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
	ReplyTo string
	Headers map[string]string // Extra MIME headers such as In-Reply-To and References
	Tags    map[string]string // Echoed back by the provider on delivery events
}

// mailClient is the part of the SendGrid client the service uses
type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Options configures an EmailService
type Options struct {
	APIKey      string
	From        string
	FromName    string
	Sandbox     bool
	FetchURL    string // Provider API base URL for received emails
	FetchAPIKey string
}

// EmailService sends transactional email and fetches received email from the provider
type EmailService struct {
	opts   Options
	client mailClient
	fetch  func(ctx context.Context, req rest.Request) (*rest.Response, error)
	logger zerolog.Logger
}

// NewEmailService creates a new email service instance
func NewEmailService(opts Options, logger zerolog.Logger) *EmailService {
	if opts.From == "" {
		opts.From = "hello@itracksy.com"
	}
	if opts.FromName == "" {
		opts.FromName = "iTracksy"
	}

	es := &EmailService{
		opts:   opts,
		fetch:  rest.SendWithContext,
		logger: logger.With().Str("component", "email").Logger(),
	}
	if opts.APIKey != "" {
		es.client = sendgrid.NewSendClient(opts.APIKey)
	}
	return es
}

// Send delivers one email. A 4xx/5xx answer from the provider is an error.
func (es *EmailService) Send(ctx context.Context, msg Outgoing) error {
	if es.client == nil {
		return ErrNotConfigured
	}
	if msg.To == "" {
		return fmt.Errorf("recipient address is required")
	}

	response, err := es.client.SendWithContext(ctx, es.build(msg))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	es.logger.Debug().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("status", response.StatusCode).
		Msg("Email sent")
	return nil
}

// build converts an Outgoing into the provider's v3 mail payload
func (es *EmailService) build(msg Outgoing) *mail.SGMailV3 {
	from := mail.NewEmail(es.opts.FromName, es.opts.From)
	to := mail.NewEmail(msg.ToName, msg.To)

	text := msg.Text
	if text == "" {
		text = msg.Subject
	}
	m := mail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(to)
	m.AddPersonalizations(p)

	m.AddContent(mail.NewContent("text/plain", text))
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}

	if msg.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}
	for k, v := range msg.Headers {
		if v != "" {
			m.SetHeader(k, v)
		}
	}
	for k, v := range msg.Tags {
		m.SetCustomArg(k, v)
	}
	if es.opts.Sandbox {
		m.SetMailSettings(mail.NewMailSettings().SetSandboxMode(mail.NewSetting(true)))
	}
	return m
}
