package models

import "time"

// EmailStatsFilter narrows stats and event listings
type EmailStatsFilter struct {
	EmailType string
	EventType string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// EmailStats aggregates delivery events for a filter window
type EmailStats struct {
	EmailType     string         `json:"email_type,omitempty"`
	From          *time.Time     `json:"from,omitempty"`
	To            *time.Time     `json:"to,omitempty"`
	Counts        map[string]int `json:"counts"`         // event_type -> count
	UniqueEmails  int            `json:"unique_emails"`  // Distinct provider email ids
	DeliveryRate  float64        `json:"delivery_rate"`  // delivered / sent
	OpenRate      float64        `json:"open_rate"`      // opened / delivered
	ClickRate     float64        `json:"click_rate"`     // clicked / delivered
	BounceRate    float64        `json:"bounce_rate"`    // bounced / sent
	ComplaintRate float64        `json:"complaint_rate"` // complained / delivered
	GeneratedAt   time.Time      `json:"generated_at"`
}

// EmailStatsResponse represents the API response for email statistics
// @Description Email statistics response payload
type EmailStatsResponse struct {
	Success bool        `json:"success" example:"true"`
	Stats   *EmailStats `json:"stats,omitempty"`
	Error   string      `json:"error,omitempty" example:""`
}
