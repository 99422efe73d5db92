package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	InboundMessages  *prometheus.CounterVec // by matcher rule
	DeliveryEvents   *prometheus.CounterVec // by event type
	WebhooksRejected *prometheus.CounterVec // by endpoint and reason

	CampaignSends      *prometheus.CounterVec // by result
	CampaignsCompleted prometheus.Counter
	RepliesSent        prometheus.Counter

	StatsCache *prometheus.CounterVec // hit or miss
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itracksy_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "itracksy_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		InboundMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itracksy_inbound_messages_total",
				Help: "Inbound emails stored, by the thread matcher rule that attached them",
			},
			[]string{"rule"},
		),
		DeliveryEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itracksy_delivery_events_total",
				Help: "Provider delivery events recorded",
			},
			[]string{"event_type"},
		),
		WebhooksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itracksy_webhooks_rejected_total",
				Help: "Webhook calls rejected or ignored",
			},
			[]string{"endpoint", "reason"},
		),

		CampaignSends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itracksy_campaign_sends_total",
				Help: "Campaign email send attempts",
			},
			[]string{"result"},
		),
		CampaignsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "itracksy_campaigns_completed_total",
			Help: "Campaigns that reached the completed status",
		}),
		RepliesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "itracksy_feedback_replies_total",
			Help: "Admin replies sent to feedback submitters",
		}),

		StatsCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itracksy_stats_cache_total",
				Help: "Email stats cache lookups",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
