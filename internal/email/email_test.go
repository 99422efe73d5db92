package email

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailClient struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeMailClient) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: `{"errors":[{"message":"bad"}]}`}, nil
}

func newTestService(opts Options, client mailClient) *EmailService {
	es := NewEmailService(opts, zerolog.Nop())
	es.client = client
	return es
}

func TestNewEmailService_Defaults(t *testing.T) {
	es := NewEmailService(Options{}, zerolog.Nop())
	assert.Equal(t, "hello@itracksy.com", es.opts.From)
	assert.Equal(t, "iTracksy", es.opts.FromName)
	assert.Nil(t, es.client)
}

func TestSend_NotConfigured(t *testing.T) {
	es := NewEmailService(Options{}, zerolog.Nop())
	err := es.Send(context.Background(), Outgoing{To: "u@x.com", Subject: "S"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSend_BuildsPayload(t *testing.T) {
	client := &fakeMailClient{status: http.StatusAccepted}
	es := newTestService(Options{From: "support@itracksy.com", FromName: "iTracksy Support", Sandbox: true}, client)

	err := es.Send(context.Background(), Outgoing{
		To:      "user@example.com",
		ToName:  "User",
		Subject: "Re: Feedback",
		Text:    "plain",
		HTML:    "<p>plain</p>",
		ReplyTo: "support@itracksy.com",
		Headers: map[string]string{"In-Reply-To": "<abc@mail>", "References": "", "X-Empty": ""},
		Tags:    map[string]string{"email_type": "feedback_reply"},
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	m := client.sent[0]
	assert.Equal(t, "support@itracksy.com", m.From.Address)
	assert.Equal(t, "iTracksy Support", m.From.Name)
	assert.Equal(t, "Re: Feedback", m.Subject)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "user@example.com", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
	assert.Equal(t, "support@itracksy.com", m.ReplyTo.Address)
	assert.Equal(t, map[string]string{"In-Reply-To": "<abc@mail>"}, m.Headers)
	assert.Equal(t, "feedback_reply", m.CustomArgs["email_type"])
	require.NotNil(t, m.MailSettings)
	require.NotNil(t, m.MailSettings.SandboxMode)
	assert.True(t, *m.MailSettings.SandboxMode.Enable)
}

func TestSend_TextOnlyFallsBackToSubject(t *testing.T) {
	client := &fakeMailClient{status: http.StatusAccepted}
	es := newTestService(Options{}, client)

	require.NoError(t, es.Send(context.Background(), Outgoing{To: "u@x.com", Subject: "Only subject"}))
	m := client.sent[0]
	require.Len(t, m.Content, 1)
	assert.Equal(t, "Only subject", m.Content[0].Value)
	assert.Nil(t, m.MailSettings)
}

func TestSend_Errors(t *testing.T) {
	tests := []struct {
		name    string
		client  *fakeMailClient
		msg     Outgoing
		wantErr string
	}{
		{"missing recipient", &fakeMailClient{status: 202}, Outgoing{Subject: "S"}, "recipient address is required"},
		{"transport failure", &fakeMailClient{err: errors.New("dial tcp: timeout")}, Outgoing{To: "u@x.com"}, "failed to send email"},
		{"provider rejects", &fakeMailClient{status: http.StatusBadRequest}, Outgoing{To: "u@x.com"}, "status 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := newTestService(Options{}, tt.client)
			err := es.Send(context.Background(), tt.msg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFetchReceived(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails/receiving/e%2F1", r.URL.EscapedPath())
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "e/1",
			"message_id": "<m1@mail>",
			"from": "Ann <ann@example.com>",
			"to": ["support@itracksy.com"],
			"subject": "Re: hi",
			"text": "hello",
			"html": "<p>hello</p>",
			"headers": {"In-Reply-To": "<abc123@mail>", "References": "<root@mail> <abc123@mail>"}
		}`))
	}))
	defer server.Close()

	es := NewEmailService(Options{FetchURL: server.URL + "/", FetchAPIKey: "re_test"}, zerolog.Nop())

	received, err := es.FetchReceived(context.Background(), "e/1")
	require.NoError(t, err)
	assert.Equal(t, "hello", received.Text)
	assert.Equal(t, "<abc123@mail>", received.Headers["in-reply-to"])
	assert.Equal(t, "<root@mail> <abc123@mail>", received.Headers["references"])
}

func TestFetchReceived_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		es := NewEmailService(Options{}, zerolog.Nop())
		_, err := es.FetchReceived(context.Background(), "e1")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("provider error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
		}))
		defer server.Close()

		es := NewEmailService(Options{FetchURL: server.URL, FetchAPIKey: "k"}, zerolog.Nop())
		_, err := es.FetchReceived(context.Background(), "e1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
	})

	t.Run("invalid json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		es := NewEmailService(Options{FetchURL: server.URL, FetchAPIKey: "k"}, zerolog.Nop())
		_, err := es.FetchReceived(context.Background(), "e1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode")
	})
}
