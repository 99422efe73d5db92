package models

import "time"

// HealthResponse represents a basic health check response
// @Description Health check response
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`                 // Health status
	Timestamp time.Time `json:"timestamp" example:"2023-01-01T00:00:00Z"` // Timestamp of the check
	Version   string    `json:"version" example:"1.0.0"`                  // Application version
}

// DBHealthResponse represents a database health check response
// @Description Database health check response
type DBHealthResponse struct {
	Status    string        `json:"status" example:"healthy"`                   // Health status
	Timestamp time.Time     `json:"timestamp" example:"2023-01-01T00:00:00Z"`   // Timestamp of the check
	Connected bool          `json:"connected" example:"true"`                   // Database connection status
	Latency   time.Duration `json:"latency" swaggertype:"string" example:"1ms"` // Database ping latency
	Error     string        `json:"error,omitempty" example:""`                 // Error message if any
}

// ErrorResponse is the body of every failed request
// @Description Error response payload
type ErrorResponse struct {
	Error string `json:"error" example:"invalid email"`
}

// SuccessResponse is the body of a plain successful mutation
// @Description Success response payload
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// InboundEmailResponse is returned by the inbound mail webhook
// @Description Inbound mail webhook response
type InboundEmailResponse struct {
	Success    bool    `json:"success" example:"true"`
	FeedbackID *string `json:"feedbackId" example:"3f1c2a9e-2b1d-4b7e-9a55-2f7c9a0c1d11"` // Matched conversation, null for orphans
}

// EmailEventResponse is returned by the delivery event webhook
// @Description Delivery event webhook response
type EmailEventResponse struct {
	Success bool `json:"success" example:"true"`
	Ignored bool `json:"ignored,omitempty" example:"false"` // Event type or payload not recognised
}

// ReplyRequest is the admin reply-send payload
// @Description Feedback reply request payload
type ReplyRequest struct {
	FeedbackID      string  `json:"feedbackId"`
	To              string  `json:"to"`
	Subject         string  `json:"subject"`
	Message         string  `json:"message"` // Markdown
	UserName        string  `json:"userName"`
	OriginalMessage string  `json:"originalMessage"`
	FeedbackType    string  `json:"feedbackType"`
	InReplyTo       *string `json:"inReplyTo,omitempty"` // Message-ID of the inbound message being answered
}

// LeadRequest is the public lead capture payload
// @Description Lead capture request payload
type LeadRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
	Group   string `json:"group,omitempty"`
}

// FeedbackRequest is the public feedback submission payload
// @Description Feedback submission request payload
type FeedbackRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Message      string `json:"message"`
	FeedbackType string `json:"feedbackType"`
}

// FeedbackResponse is returned after a feedback submission
// @Description Feedback submission response payload
type FeedbackResponse struct {
	Success bool   `json:"success" example:"true"`
	ID      string `json:"id"`
}

// CampaignRequest creates a draft campaign
// @Description Campaign creation request payload
type CampaignRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Subject     string  `json:"subject"`
	TemplateKey *string `json:"templateKey,omitempty"`
	Content     *string `json:"content,omitempty"`
}

// RecipientsRequest attaches leads to a campaign, by id or by group tag
// @Description Campaign recipients request payload
type RecipientsRequest struct {
	LeadIDs []string `json:"leadIds,omitempty"`
	Group   string   `json:"group,omitempty"`
}

// CountResponse reports how many rows a bulk operation touched
// @Description Bulk operation response payload
type CountResponse struct {
	Success bool `json:"success" example:"true"`
	Count   int  `json:"count" example:"12"`
}

// MarkReadRequest toggles the read flag of a message
// @Description Mark read request payload
type MarkReadRequest struct {
	Read bool `json:"read"`
}

// ListResponse wraps a page of rows
// @Description Paginated list response payload
type ListResponse struct {
	Items  interface{} `json:"items"`
	Limit  int         `json:"limit" example:"50"`
	Offset int         `json:"offset" example:"0"`
}

// DispatchResult summarises one campaign within a batcher pass
type DispatchResult struct {
	CampaignID string `json:"campaign_id"`
	Selected   int    `json:"selected"` // Recipients inside the window after the batch cap
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`   // Claimed by another runner
	Completed  bool   `json:"completed"` // Campaign transitioned to completed
}

// DispatchResponse is returned by the campaign trigger
// @Description Campaign dispatch response payload
type DispatchResponse struct {
	Success   bool             `json:"success" example:"true"`
	Campaigns []DispatchResult `json:"campaigns"`
}
