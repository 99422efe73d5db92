package database

import (
	"context"
	"fmt"
)

// schema is applied in order on startup; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS feedback (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		feedback_type TEXT NOT NULL DEFAULT 'general',
		replied_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_email_created ON feedback (lower(email), created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS leads (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		group_tag TEXT,
		submitted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_email ON leads (email)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_group ON leads (group_tag)`,

	`CREATE TABLE IF NOT EXISTS campaigns (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL,
		template_key TEXT,
		content TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		sent_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status)`,

	`CREATE TABLE IF NOT EXISTS campaign_leads (
		id UUID PRIMARY KEY,
		campaign_id UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
		lead_id UUID NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'pending',
		sent_at TIMESTAMPTZ,
		opened_at TIMESTAMPTZ,
		clicked_at TIMESTAMPTZ,
		claimed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_campaign_leads_pair ON campaign_leads (campaign_id, lead_id)`,
	`CREATE INDEX IF NOT EXISTS idx_campaign_leads_status ON campaign_leads (campaign_id, status)`,

	`CREATE TABLE IF NOT EXISTS email_threads (
		id UUID PRIMARY KEY,
		message_id TEXT,
		from_email TEXT NOT NULL,
		from_name TEXT,
		to_email TEXT NOT NULL,
		subject TEXT,
		body_text TEXT NOT NULL DEFAULT '',
		body_html TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		in_reply_to TEXT,
		"references" TEXT,
		feedback_id UUID REFERENCES feedback(id) ON DELETE SET NULL,
		campaign_id UUID REFERENCES campaigns(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_threads_message_id ON email_threads (message_id)`,
	`CREATE INDEX IF NOT EXISTS idx_email_threads_feedback ON email_threads (feedback_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS email_events (
		id UUID PRIMARY KEY,
		email_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		email_type TEXT,
		recipient TEXT NOT NULL DEFAULT '',
		from_email TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		click_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_events_type_created ON email_events (email_type, event_type, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS beta_invites (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		opened_at TIMESTAMPTZ,
		clicked_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_beta_invites_email ON beta_invites (lower(email))`,
}

// Migrate creates the tables and indexes the service needs
func Migrate(ctx context.Context, wc *WriteClient) error {
	for i, stmt := range schema {
		if _, err := wc.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
