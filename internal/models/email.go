package models

import "time"

// Message directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message represents a single inbound or outbound email stored in email_threads
type Message struct {
	ID         string    `db:"id" json:"id"`
	MessageID  *string   `db:"message_id" json:"message_id,omitempty"` // Provider-issued Message-ID, may be absent
	FromEmail  string    `db:"from_email" json:"from_email"`
	FromName   *string   `db:"from_name" json:"from_name,omitempty"`
	ToEmail    string    `db:"to_email" json:"to_email"`
	Subject    *string   `db:"subject" json:"subject,omitempty"`
	BodyText   string    `db:"body_text" json:"body_text"`
	BodyHTML   string    `db:"body_html" json:"body_html"`
	Direction  string    `db:"direction" json:"direction"` // inbound, outbound
	IsRead     bool      `db:"is_read" json:"is_read"`
	InReplyTo  *string   `db:"in_reply_to" json:"in_reply_to,omitempty"`
	References *string   `db:"references" json:"references,omitempty"` // Space separated message ids
	FeedbackID *string   `db:"feedback_id" json:"feedback_id,omitempty"`
	CampaignID *string   `db:"campaign_id" json:"campaign_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Conversation is a feedback submission; inbound and outbound messages thread onto it
type Conversation struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	Message      string     `db:"message" json:"message"`
	FeedbackType string     `db:"feedback_type" json:"feedback_type"`
	RepliedAt    *time.Time `db:"replied_at" json:"replied_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Replied reports whether a reply has been sent for the conversation
func (c Conversation) Replied() bool {
	return c.RepliedAt != nil
}

// Delivery event types, without the provider's "email." prefix
const (
	EventSent            = "sent"
	EventDelivered       = "delivered"
	EventDeliveryDelayed = "delivery_delayed"
	EventComplained      = "complained"
	EventBounced         = "bounced"
	EventOpened          = "opened"
	EventClicked         = "clicked"
)

// EventTypes lists every delivery event type the ingestor records
var EventTypes = []string{
	EventSent,
	EventDelivered,
	EventDeliveryDelayed,
	EventComplained,
	EventBounced,
	EventOpened,
	EventClicked,
}

// EmailTypeBetaInvite tags beta invitation emails
const EmailTypeBetaInvite = "beta_invite"

// EmailEvent is one provider delivery-lifecycle event
type EmailEvent struct {
	ID        string    `db:"id" json:"id"`
	EmailID   string    `db:"email_id" json:"email_id"`
	EventType string    `db:"event_type" json:"event_type"`
	EmailType *string   `db:"email_type" json:"email_type,omitempty"`
	Recipient string    `db:"recipient" json:"recipient"`
	FromEmail string    `db:"from_email" json:"from_email"`
	Subject   string    `db:"subject" json:"subject"`
	ClickURL  *string   `db:"click_url" json:"click_url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BetaInvite tracks engagement with a beta invitation
type BetaInvite struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	SentAt    time.Time  `db:"sent_at" json:"sent_at"`
	OpenedAt  *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
}
