package campaigns

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"itracksy/internal/email"
	"itracksy/internal/metrics"
	"itracksy/internal/models"
)

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store with the same claim and completion rules as the SQL one
type memStore struct {
	mu          sync.Mutex
	campaigns   []models.Campaign
	recipients  map[string][]models.PendingRecipient
	status      map[string]string // recipient id -> status
	claimed     map[string]bool
	activated   map[string]bool
	completed   map[string]bool
	listErr     error
	claimLoser  map[string]bool // recipients another runner already holds
	markSentErr error
}

func newMemStore(campaigns ...models.Campaign) *memStore {
	return &memStore{
		campaigns:  campaigns,
		recipients: map[string][]models.PendingRecipient{},
		status:     map[string]string{},
		claimed:    map[string]bool{},
		activated:  map[string]bool{},
		completed:  map[string]bool{},
		claimLoser: map[string]bool{},
	}
}

func (s *memStore) add(campaignID string, n int, submitted time.Time) []string {
	var ids []string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-r%d-%d", campaignID, len(s.recipients[campaignID]), submitted.Unix())
		s.recipients[campaignID] = append(s.recipients[campaignID], models.PendingRecipient{
			ID: id, CampaignID: campaignID, LeadID: "lead-" + id,
			Name: "lead " + id, Email: id + "@example.com", SubmittedAt: submitted,
		})
		s.status[id] = models.RecipientPending
		ids = append(ids, id)
	}
	return ids
}

func (s *memStore) Dispatchable(context.Context) ([]models.Campaign, error) {
	return s.campaigns, s.listErr
}

func (s *memStore) PendingRecipients(_ context.Context, campaignID string) ([]models.PendingRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PendingRecipient
	for _, r := range s.recipients[campaignID] {
		if s.status[r.ID] == models.RecipientPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Claim(_ context.Context, id string, _, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimLoser[id] || s.claimed[id] || s.status[id] != models.RecipientPending {
		return false, nil
	}
	s.claimed[id] = true
	return true, nil
}

func (s *memStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, id)
	return nil
}

func (s *memStore) MarkSent(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markSentErr != nil {
		return s.markSentErr
	}
	s.status[id] = models.RecipientSent
	delete(s.claimed, id)
	return nil
}

func (s *memStore) Activate(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activated[campaignID] = true
	return nil
}

func (s *memStore) CompleteIfDrained(_ context.Context, campaignID string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recipients[campaignID]) == 0 || s.completed[campaignID] {
		return false, nil
	}
	for _, r := range s.recipients[campaignID] {
		if s.status[r.ID] == models.RecipientPending {
			return false, nil
		}
	}
	s.completed[campaignID] = true
	return true, nil
}

func (s *memStore) pendingCount(campaignID string) int {
	n := 0
	for _, r := range s.recipients[campaignID] {
		if s.status[r.ID] == models.RecipientPending {
			n++
		}
	}
	return n
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []email.Outgoing
	failTo map[string]bool
}

func (f *fakeSender) Send(_ context.Context, msg email.Outgoing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return errors.New("provider rejected recipient")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeInvites struct{ emails []string }

func (f *fakeInvites) RecordBetaInvite(_ context.Context, email string, _ time.Time) error {
	f.emails = append(f.emails, email)
	return nil
}

func strPtr(s string) *string { return &s }

func newTestBatcher(store Store, sender Sender, invites InviteRecorder) (*Batcher, *metrics.Metrics) {
	m := metrics.New()
	b := NewBatcher(store, sender, invites, m, "https://itracksy.com", zerolog.Nop())
	b.limiter = rate.NewLimiter(rate.Inf, 1)
	b.now = func() time.Time { return testNow }
	return b, m
}

func welcomeCampaign(id string) models.Campaign {
	return models.Campaign{ID: id, Subject: "Welcome", TemplateKey: strPtr("welcome"), Status: models.CampaignDraft}
}

func TestNewBatcher_ThrottlesOnePerSecond(t *testing.T) {
	b := NewBatcher(newMemStore(), &fakeSender{}, nil, metrics.New(), "", zerolog.Nop())
	assert.Equal(t, rate.Every(time.Second), b.limiter.Limit())
	assert.Equal(t, 1, b.limiter.Burst())
}

func TestInWindow(t *testing.T) {
	tests := []struct {
		name      string
		submitted time.Time
		want      bool
	}{
		{"just now", testNow, true},
		{"exactly 90 minutes ago", testNow.Add(-90 * time.Minute), true},
		{"91 minutes ago", testNow.Add(-91 * time.Minute), false},
		{"a day ago", testNow.Add(-24 * time.Hour), false},
		{"30 minutes ahead", testNow.Add(30 * time.Minute), true},
		{"2 hours ahead", testNow.Add(2 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InWindow(tt.submitted, testNow))
		})
	}
}

func TestSelect_WindowThenCap(t *testing.T) {
	var recipients []models.PendingRecipient
	for i := 0; i < 5; i++ {
		recipients = append(recipients, models.PendingRecipient{ID: fmt.Sprintf("old%d", i), SubmittedAt: testNow.Add(-3 * time.Hour)})
	}
	for i := 0; i < 12; i++ {
		recipients = append(recipients, models.PendingRecipient{ID: fmt.Sprintf("new%d", i), SubmittedAt: testNow.Add(-time.Duration(i) * time.Minute)})
	}

	selected := Select(recipients, testNow)
	require.Len(t, selected, BatchSize)
	assert.Equal(t, "new0", selected[0].ID)
	assert.Equal(t, "new9", selected[9].ID)
}

func TestRun_ProcessesExactlyBatchSize(t *testing.T) {
	store := newMemStore(welcomeCampaign("c1"))
	store.add("c1", 15, testNow.Add(-10*time.Minute))
	sender := &fakeSender{}
	b, m := newTestBatcher(store, sender, nil)

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 10, results[0].Selected)
	assert.Equal(t, 10, results[0].Sent)
	assert.Len(t, sender.sent, 10)
	assert.Equal(t, 5, store.pendingCount("c1"))
	assert.False(t, results[0].Completed)
	assert.True(t, store.activated["c1"])
	assert.Equal(t, 10.0, testutil.ToFloat64(m.CampaignSends.WithLabelValues("sent")))
}

func TestRun_ExcludesRecipientsOutsideWindow(t *testing.T) {
	store := newMemStore(welcomeCampaign("c1"))
	fresh := store.add("c1", 1, testNow.Add(-30*time.Minute))
	stale := store.add("c1", 1, testNow.Add(-91*time.Minute))
	sender := &fakeSender{}
	b, _ := newTestBatcher(store, sender, nil)

	results, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, results[0].Sent)
	assert.Equal(t, models.RecipientSent, store.status[fresh[0]])
	assert.Equal(t, models.RecipientPending, store.status[stale[0]])
	assert.False(t, results[0].Completed, "a stale pending recipient keeps the campaign open")
}

func TestRun_CompletesAfterLastPendingSent(t *testing.T) {
	store := newMemStore(welcomeCampaign("c1"))
	store.add("c1", 3, testNow.Add(-5*time.Minute))
	b, m := newTestBatcher(store, &fakeSender{}, nil)

	results, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, results[0].Sent)
	assert.True(t, results[0].Completed)
	assert.True(t, store.completed["c1"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CampaignsCompleted))
}

func TestRun_SendFailureLeavesPendingAndContinues(t *testing.T) {
	store := newMemStore(welcomeCampaign("c1"))
	ids := store.add("c1", 3, testNow)
	sender := &fakeSender{failTo: map[string]bool{ids[1] + "@example.com": true}}
	b, m := newTestBatcher(store, sender, nil)

	results, err := b.Run(context.Background())
	require.NoError(t, err, "partial batch failures never fail the pass")

	assert.Equal(t, 2, results[0].Sent)
	assert.Equal(t, 1, results[0].Failed)
	assert.Equal(t, models.RecipientPending, store.status[ids[1]])
	assert.False(t, store.claimed[ids[1]], "failed recipient must be released")
	assert.False(t, results[0].Completed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CampaignSends.WithLabelValues("failed")))
}

func TestRun_SkipsRecipientsClaimedElsewhere(t *testing.T) {
	store := newMemStore(welcomeCampaign("c1"))
	ids := store.add("c1", 2, testNow)
	store.claimLoser[ids[0]] = true
	sender := &fakeSender{}
	b, _ := newTestBatcher(store, sender, nil)

	results, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, results[0].Sent)
	assert.Equal(t, 1, results[0].Skipped)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, ids[1]+"@example.com", sender.sent[0].To)
}

func TestRun_ConcurrentRunnersNeverDoubleSend(t *testing.T) {
	store := newMemStore(welcomeCampaign("c1"))
	store.add("c1", 8, testNow)
	sender := &fakeSender{}
	b1, _ := newTestBatcher(store, sender, nil)
	b2, _ := newTestBatcher(store, sender, nil)

	var wg sync.WaitGroup
	for _, b := range []*Batcher{b1, b2} {
		wg.Add(1)
		go func(b *Batcher) {
			defer wg.Done()
			_, _ = b.Run(context.Background())
		}(b)
	}
	wg.Wait()

	seen := map[string]int{}
	for _, msg := range sender.sent {
		seen[msg.To]++
	}
	assert.Len(t, seen, 8)
	for to, n := range seen {
		assert.Equal(t, 1, n, to)
	}
}

func TestRun_UnknownTemplateIsAFailedSend(t *testing.T) {
	c := models.Campaign{ID: "c1", Subject: "S", TemplateKey: strPtr("missing"), Status: models.CampaignDraft}
	store := newMemStore(c)
	ids := store.add("c1", 1, testNow)
	sender := &fakeSender{}
	b, _ := newTestBatcher(store, sender, nil)

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Failed)
	assert.Empty(t, sender.sent)
	assert.Equal(t, models.RecipientPending, store.status[ids[0]])
	assert.False(t, store.activated["c1"])
}

func TestRun_TagsAndContent(t *testing.T) {
	c := models.Campaign{ID: "c1", Subject: "Hi {{name}}", Content: strPtr("Hello **{{name}}**"), Status: models.CampaignActive}
	store := newMemStore(c)
	ids := store.add("c1", 1, testNow)
	sender := &fakeSender{}
	b, _ := newTestBatcher(store, sender, nil)

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "campaign", msg.Tags["email_type"])
	assert.Equal(t, "c1", msg.Tags["campaign_id"])
	assert.Equal(t, ids[0], msg.Tags["campaign_lead_id"])
	assert.Contains(t, msg.HTML, "<strong>Lead ")
	assert.False(t, store.activated["c1"], "already active campaigns are not re-activated")
}

func TestRun_RecordsBetaInvites(t *testing.T) {
	c := models.Campaign{ID: "c1", Subject: "Beta", TemplateKey: strPtr(models.EmailTypeBetaInvite), Status: models.CampaignDraft}
	store := newMemStore(c)
	ids := store.add("c1", 2, testNow)
	invites := &fakeInvites{}
	b, _ := newTestBatcher(store, &fakeSender{}, invites)

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids[0] + "@example.com", ids[1] + "@example.com"}, invites.emails)
}

func TestRun_MarkSentFailureStillCountsAsSent(t *testing.T) {
	store := newMemStore(welcomeCampaign("c1"))
	store.add("c1", 1, testNow)
	store.markSentErr = errors.New("connection reset")
	b, _ := newTestBatcher(store, &fakeSender{}, nil)

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Sent)
	assert.Zero(t, results[0].Failed)
}

func TestRun_ListFailure(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("db down")
	b, _ := newTestBatcher(store, &fakeSender{}, nil)

	_, err := b.Run(context.Background())
	assert.Error(t, err)
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	store := newMemStore(welcomeCampaign("c1"))
	store.add("c1", 3, testNow)
	sender := &fakeSender{}
	b, _ := newTestBatcher(store, sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := b.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, sender.sent)
}

func TestRun_MultipleCampaigns(t *testing.T) {
	store := newMemStore(welcomeCampaign("c1"), welcomeCampaign("c2"), welcomeCampaign("empty"))
	store.add("c1", 2, testNow)
	store.add("c2", 12, testNow)
	b, _ := newTestBatcher(store, &fakeSender{}, nil)

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Completed)
	assert.Equal(t, 10, results[1].Sent)
	assert.False(t, results[1].Completed)
	assert.False(t, results[2].Completed, "a campaign without recipients stays open")
}
