// internal/model/recipient.go
package model

import "time"

// Recipient statuses. The row only ever moves forward:
// pending -> sending -> sent -> opened -> clicked, with pending|sending -> failed.
// Sending is the transient claim held by the one dispatch job processing the row;
// a transport failure with attempts remaining releases the row back to pending.
const (
	RecipientStatusPending = "pending"
	RecipientStatusSending = "sending"
	RecipientStatusSent    = "sent"
	RecipientStatusOpened  = "opened"
	RecipientStatusClicked = "clicked"
	RecipientStatusFailed  = "failed"
)

// CampaignRecipient is the per-recipient delivery record for one campaign.
// TrackingToken is minted once at creation and never reused; it is the bearer
// credential for the open pixel and unsubscribe links.
type CampaignRecipient struct {
	ID            int        `db:"id" json:"id"`
	CampaignID    int        `db:"email_campaign_id" json:"email_campaign_id"`
	RecipientID   int        `db:"recipient_id" json:"recipient_id"`
	Status        string     `db:"status" json:"status"`
	TrackingToken string     `db:"tracking_token" json:"tracking_token"`
	SentAt        *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	OpenedAt      *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt     *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
	ErrorMessage  string     `db:"error_message" json:"error_message,omitempty"`
	RetryCount    int        `db:"retry_count" json:"retry_count"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
