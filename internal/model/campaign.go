// internal/model/campaign.go
package model

import "time"

// Campaign statuses. A campaign is created in draft, moves to sending once
// its recipients are materialized, and to sent when every recipient has left
// pending through the sent path. Cancelled is reachable from any non-terminal
// status by owner action.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusSending   = "sending"
	CampaignStatusSent      = "sent"
	CampaignStatusCancelled = "cancelled"
)

type Campaign struct {
	ID              int        `db:"id" json:"id"`
	UserID          int        `db:"user_id" json:"user_id"`
	EmailTemplateID *int       `db:"email_template_id" json:"email_template_id,omitempty"`
	Name            string     `db:"name" json:"name"`
	Subject         string     `db:"subject" json:"subject"`
	Content         string     `db:"content" json:"content"`
	Status          string     `db:"status" json:"status"`
	ScheduledAt     *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	SentAt          *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	TotalRecipients int        `db:"total_recipients" json:"total_recipients"`
	SentCount       int        `db:"sent_count" json:"sent_count"`
	OpenedCount     int        `db:"opened_count" json:"opened_count"`
	ClickedCount    int        `db:"clicked_count" json:"clicked_count"`
	BouncedCount    int        `db:"bounced_count" json:"bounced_count"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// IsTerminal reports whether no further status transitions are allowed.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusSent || c.Status == CampaignStatusCancelled
}

// OpenRate returns opened_count as a percentage of sent_count.
func (c *Campaign) OpenRate() float64 {
	if c.SentCount == 0 {
		return 0
	}
	return float64(c.OpenedCount) / float64(c.SentCount) * 100
}

// ClickRate returns clicked_count as a percentage of sent_count.
func (c *Campaign) ClickRate() float64 {
	if c.SentCount == 0 {
		return 0
	}
	return float64(c.ClickedCount) / float64(c.SentCount) * 100
}
