package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"itracksy/internal/database"
	"itracksy/internal/email"
	"itracksy/internal/models"
	"itracksy/internal/threads"
)

// Stored rows are keyed by uuid
const (
	feedbackUUID = "3f0c6f2e-5b1d-4d8e-9a57-0c1e2d3f4a5b"
	campaignUUID = "9b2e4c61-7d0a-4f3b-8e15-6a7c8d9e0f12"
	doneUUID     = "9b2e4c61-7d0a-4f3b-8e15-6a7c8d9e0f13"
	brokenUUID   = "9b2e4c61-7d0a-4f3b-8e15-6a7c8d9e0f14"
	messageUUID  = "c4d5e6f7-0a1b-4c2d-8e3f-405162738495"
	leadUUID1    = "1a2b3c4d-5e6f-4a0b-9c1d-2e3f4a5b6c7d"
	leadUUID2    = "1a2b3c4d-5e6f-4a0b-9c1d-2e3f4a5b6c7e"
	missingUUID  = "00000000-0000-4000-8000-000000000000"
)

type fakeMessages struct {
	mu         sync.Mutex
	inserted   []*models.Message
	items      []models.Message
	thread     []models.Message
	lastFilter database.MessageFilter
	read       map[string]bool
	insertErr  error
	listErr    error
	threadErr  error
}

func (f *fakeMessages) Insert(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("m%d", len(f.inserted)+1)
	}
	f.inserted = append(f.inserted, msg)
	return nil
}

func (f *fakeMessages) List(_ context.Context, filter database.MessageFilter) ([]models.Message, error) {
	f.lastFilter = filter
	return f.items, f.listErr
}

func (f *fakeMessages) Thread(_ context.Context, _ string) ([]models.Message, error) {
	return f.thread, f.threadErr
}

func (f *fakeMessages) MarkRead(_ context.Context, id string, read bool) error {
	if _, ok := f.read[id]; !ok {
		return database.ErrNotFound
	}
	f.read[id] = read
	return nil
}

// FeedbackIDByMessageID and LatestBySender let a real threads.Matcher run over the fake
type fakeLookup struct {
	byMessageID map[string]string
	bySender    map[string]string
}

func (f *fakeLookup) FeedbackIDByMessageID(_ context.Context, ids []string) (string, error) {
	for _, id := range ids {
		if fb, ok := f.byMessageID[id]; ok {
			return fb, nil
		}
	}
	return "", database.ErrNotFound
}

func (f *fakeLookup) LatestBySender(_ context.Context, email string) (string, error) {
	if fb, ok := f.bySender[email]; ok {
		return fb, nil
	}
	return "", database.ErrNotFound
}

type fakeConversations struct {
	convs       map[string]*models.Conversation
	created     []*models.Conversation
	items       []models.Conversation
	unreplied   bool
	createErr   error
	getErr      error
	markErr     error
	markedCalls []string
}

func (f *fakeConversations) Create(_ context.Context, c *models.Conversation) error {
	if f.createErr != nil {
		return f.createErr
	}
	c.ID = "fb-new"
	f.created = append(f.created, c)
	return nil
}

func (f *fakeConversations) Get(_ context.Context, id string) (*models.Conversation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if c, ok := f.convs[id]; ok {
		return c, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeConversations) List(_ context.Context, unrepliedOnly bool, _, _ int) ([]models.Conversation, error) {
	f.unreplied = unrepliedOnly
	return f.items, nil
}

func (f *fakeConversations) MarkReplied(_ context.Context, id string, _ time.Time) (bool, error) {
	f.markedCalls = append(f.markedCalls, id)
	if f.markErr != nil {
		return false, f.markErr
	}
	return true, nil
}

type betaKey struct{ email, eventType string }

type fakeEvents struct {
	mu         sync.Mutex
	inserted   []*models.EmailEvent
	insertErr  error
	invites    map[string]bool // recipients with a sent beta invite
	marked     map[betaKey]time.Time
	items      []models.EmailEvent
	lastFilter models.EmailStatsFilter
}

func (f *fakeEvents) Insert(_ context.Context, e *models.EmailEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, e)
	return nil
}

// MarkBetaInvite mirrors the set-once UPDATE ... WHERE <column> IS NULL
func (f *fakeEvents) MarkBetaInvite(_ context.Context, email, eventType string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.invites[email] || (eventType != models.EventOpened && eventType != models.EventClicked) {
		return 0, nil
	}
	if f.marked == nil {
		f.marked = map[betaKey]time.Time{}
	}
	k := betaKey{email, eventType}
	if _, set := f.marked[k]; set {
		return 0, nil
	}
	f.marked[k] = at
	return 1, nil
}

func (f *fakeEvents) List(_ context.Context, filter models.EmailStatsFilter) ([]models.EmailEvent, error) {
	f.lastFilter = filter
	return f.items, nil
}

type appliedEvent struct{ recipientID, eventType string }

type fakeRecipients struct{ applied []appliedEvent }

func (f *fakeRecipients) ApplyEvent(_ context.Context, recipientID, eventType string, _ time.Time) (bool, error) {
	f.applied = append(f.applied, appliedEvent{recipientID, eventType})
	return true, nil
}

type fakeMailer struct {
	sent []email.Outgoing
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg email.Outgoing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeFetcher struct {
	received *email.Received
	err      error
	calls    int
}

func (f *fakeFetcher) FetchReceived(_ context.Context, _ string) (*email.Received, error) {
	f.calls++
	return f.received, f.err
}

type fakeLeads struct {
	upserted     []*models.Lead
	imported     []models.Lead
	items        []models.Lead
	group        string
	fromFeedback int
	err          error
}

func (f *fakeLeads) Upsert(_ context.Context, lead *models.Lead) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, lead)
	return nil
}

func (f *fakeLeads) Import(_ context.Context, leads []models.Lead) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.imported = leads
	return len(leads), nil
}

func (f *fakeLeads) ImportFromFeedback(context.Context) (int, error) {
	return f.fromFeedback, f.err
}

func (f *fakeLeads) List(_ context.Context, group string, _, _ int) ([]models.Lead, error) {
	f.group = group
	return f.items, f.err
}

type fakeCampaigns struct {
	campaigns map[string]*models.Campaign
	created   []*models.Campaign
	counts    map[string]int
	addedIDs  []string
	addedBy   string
	gets      []string
}

func (f *fakeCampaigns) Create(_ context.Context, c *models.Campaign) error {
	c.ID = "c-new"
	c.Status = models.CampaignDraft
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCampaigns) Get(_ context.Context, id string) (*models.Campaign, error) {
	f.gets = append(f.gets, id)
	if c, ok := f.campaigns[id]; ok {
		return c, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeCampaigns) List(context.Context, int, int) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range f.campaigns {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCampaigns) RecipientCounts(context.Context, string) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeCampaigns) AddRecipients(_ context.Context, _ string, leadIDs []string) (int, error) {
	f.addedIDs = leadIDs
	f.addedBy = "ids"
	return len(leadIDs), nil
}

func (f *fakeCampaigns) AddRecipientsByGroup(_ context.Context, _, group string) (int, error) {
	f.addedBy = "group:" + group
	return 3, nil
}

func (f *fakeCampaigns) ApplyEvent(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}

type fakeDispatcher struct {
	results []models.DispatchResult
	err     error
}

func (f *fakeDispatcher) Run(context.Context) ([]models.DispatchResult, error) {
	return f.results, f.err
}

type fakeStats struct {
	stats      *models.EmailStats
	err        error
	lastFilter models.EmailStatsFilter
}

func (f *fakeStats) EmailStats(_ context.Context, filter models.EmailStatsFilter) (*models.EmailStats, error) {
	f.lastFilter = filter
	return f.stats, f.err
}

var _ ThreadMatcher = (*threads.Matcher)(nil)

// serve runs h against a request and returns the recorder. params are name/value pairs.
func serve(t *testing.T, h echo.HandlerFunc, method, target string, body io.Reader, contentType string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	require.NoError(t, h(c))
	return rec
}

func serveJSON(t *testing.T, h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, h, method, target, strings.NewReader(body), echo.MIMEApplicationJSON, params...)
}

func strPtr(s string) *string { return &s }

type echoRequest struct {
	ctx echo.Context
	rec *httptest.ResponseRecorder
}

// newEchoRequest builds a JSON request context with extra headers
func newEchoRequest(method, target, body string, headers map[string]string) echoRequest {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return echoRequest{ctx: e.NewContext(req, rec), rec: rec}
}
