package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"itracksy/internal/cache"
	"itracksy/internal/metrics"
	"itracksy/internal/models"
)

// Period constants accepted by the stats endpoint as a shorthand for from/to
const (
	PeriodToday      = "today"
	PeriodYesterday  = "yesterday"
	PeriodLast7Days  = "last_7_days"
	PeriodLast30Days = "last_30_days"
)

// statsQueryTimeout bounds a shared stats query once it is detached from its callers
const statsQueryTimeout = 30 * time.Second

// EventCounter aggregates stored delivery events
type EventCounter interface {
	CountByType(ctx context.Context, f models.EmailStatsFilter) (map[string]int, int, error)
}

// Service computes email delivery statistics, cached per filter
type Service struct {
	events  EventCounter
	cache   cache.Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	now     func() time.Time
	logger  zerolog.Logger
}

// NewService creates a new analytics service. A zero ttl disables caching.
func NewService(events EventCounter, store cache.Store, ttl time.Duration, m *metrics.Metrics, logger zerolog.Logger) (*Service, error) {
	if events == nil {
		return nil, fmt.Errorf("event store is required for analytics service")
	}
	return &Service{
		events:  events,
		cache:   store,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
		logger:  logger.With().Str("component", "analytics").Logger(),
	}, nil
}

// ResolvePeriod turns a named period into a [from, to) range in UTC.
// Unknown periods resolve to today.
func ResolvePeriod(period string, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case PeriodYesterday:
		return midnight.AddDate(0, 0, -1), midnight
	case PeriodLast7Days:
		return now.AddDate(0, 0, -7), now
	case PeriodLast30Days:
		return now.AddDate(0, 0, -30), now
	default:
		return midnight, now
	}
}

// EmailStats returns event counts and derived rates for the filter.
// Concurrent identical requests share one database round trip.
func (s *Service) EmailStats(ctx context.Context, f models.EmailStatsFilter) (*models.EmailStats, error) {
	key := cacheKey(f)

	if stats, ok := s.cached(ctx, key); ok {
		s.metrics.StatsCache.WithLabelValues("hit").Inc()
		return stats, nil
	}
	s.metrics.StatsCache.WithLabelValues("miss").Inc()

	// The shared query outlives any one caller; each caller may still give up waiting
	ch := s.group.DoChan(key, func() (interface{}, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsQueryTimeout)
		defer cancel()

		counts, unique, err := s.events.CountByType(qctx, f)
		if err != nil {
			return nil, err
		}

		stats := &models.EmailStats{
			EmailType:    f.EmailType,
			From:         f.From,
			To:           f.To,
			Counts:       counts,
			UniqueEmails: unique,
			GeneratedAt:  s.now().UTC(),
		}
		computeRates(stats)
		s.store(qctx, key, stats)
		return stats, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to compute email stats: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to compute email stats: %w", res.Err)
		}
		return res.Val.(*models.EmailStats), nil
	}
}

func (s *Service) cached(ctx context.Context, key string) (*models.EmailStats, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stats cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var stats models.EmailStats
	if err := json.Unmarshal(data, &stats); err != nil {
		s.logger.Warn().Err(err).Msg("Discarding undecodable stats cache entry")
		return nil, false
	}
	return &stats, true
}

func (s *Service) store(ctx context.Context, key string, stats *models.EmailStats) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn().Err(err).Msg("Stats cache write failed")
	}
}

func cacheKey(f models.EmailStatsFilter) string {
	bound := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("email_stats:%s:%s:%s", f.EmailType, bound(f.From), bound(f.To))
}

func computeRates(s *models.EmailStats) {
	sent := s.Counts[models.EventSent]
	delivered := s.Counts[models.EventDelivered]

	s.DeliveryRate = ratio(delivered, sent)
	s.BounceRate = ratio(s.Counts[models.EventBounced], sent)
	s.OpenRate = ratio(s.Counts[models.EventOpened], delivered)
	s.ClickRate = ratio(s.Counts[models.EventClicked], delivered)
	s.ComplaintRate = ratio(s.Counts[models.EventComplained], delivered)
}

// ratio returns n/d rounded to four decimals, 0 when d is 0
func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	r := float64(n) / float64(d)
	return float64(int64(r*10000+0.5)) / 10000
}
