// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrNoActiveEmailSettings means the tenant has no active outbound mail
// configuration. Dispatch treats this as fatal for the job instance: the
// recipient is marked failed and the job is not retried.
type ErrNoActiveEmailSettings struct {
	UserID int
}

func (e *ErrNoActiveEmailSettings) Error() string {
	return fmt.Sprintf("no active email settings found for user %d", e.UserID)
}

func NewNoActiveEmailSettings(userID int) error {
	return &ErrNoActiveEmailSettings{UserID: userID}
}

// ErrInvalidCampaignStatus rejects an action that is not allowed in the
// campaign's current status (e.g. sending a campaign that is not draft).
type ErrInvalidCampaignStatus struct {
	CampaignID int
	Status     string
	Action     string
}

func (e *ErrInvalidCampaignStatus) Error() string {
	return fmt.Sprintf("campaign %d cannot be %s in status %q", e.CampaignID, e.Action, e.Status)
}

func NewInvalidCampaignStatus(id int, status, action string) error {
	return &ErrInvalidCampaignStatus{CampaignID: id, Status: status, Action: action}
}

// ErrNotCampaignOwner means the acting user does not own the campaign.
type ErrNotCampaignOwner struct {
	CampaignID int
	UserID     int
}

func (e *ErrNotCampaignOwner) Error() string {
	return fmt.Sprintf("user %d does not own campaign %d", e.UserID, e.CampaignID)
}

func NewNotCampaignOwner(campaignID, userID int) error {
	return &ErrNotCampaignOwner{CampaignID: campaignID, UserID: userID}
}
