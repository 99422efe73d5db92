package models

import "time"

// Campaign statuses
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignCompleted = "completed"
	CampaignFailed    = "failed"
)

// Campaign recipient statuses
const (
	RecipientPending = "pending"
	RecipientSent    = "sent"
	RecipientOpened  = "opened"
	RecipientClicked = "clicked"
	RecipientBounced = "bounced"
	RecipientFailed  = "failed"
)

// Campaign is a marketing email sent to a set of leads.
// Exactly one of TemplateKey and Content is expected to be set.
type Campaign struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Subject     string     `db:"subject" json:"subject"`
	TemplateKey *string    `db:"template_key" json:"template_key,omitempty"`
	Content     *string    `db:"content" json:"content,omitempty"` // Markdown body
	Status      string     `db:"status" json:"status"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// CampaignLead links a campaign to a lead and tracks delivery of that one email
type CampaignLead struct {
	ID         string     `db:"id" json:"id"`
	CampaignID string     `db:"campaign_id" json:"campaign_id"`
	LeadID     string     `db:"lead_id" json:"lead_id"`
	Status     string     `db:"status" json:"status"`
	SentAt     *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	OpenedAt   *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt  *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
	ClaimedAt  *time.Time `db:"claimed_at" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// PendingRecipient is a pending campaign_leads row joined with its lead
type PendingRecipient struct {
	ID          string    `db:"id"`
	CampaignID  string    `db:"campaign_id"`
	LeadID      string    `db:"lead_id"`
	Name        string    `db:"name"`
	Email       string    `db:"email"`
	SubmittedAt time.Time `db:"submitted_at"`
}

// CampaignDetail is a campaign with per-status recipient counts
type CampaignDetail struct {
	Campaign
	Recipients map[string]int `json:"recipients"`
}

// Lead is a contact captured from the site, a CSV upload or a feedback submission
type Lead struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Email       string     `db:"email" json:"email"`
	Phone       string     `db:"phone" json:"phone"`
	Message     string     `db:"message" json:"message"`
	GroupTag    *string    `db:"group_tag" json:"group,omitempty"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
