// internal/model/email_setting.go
package model

import (
	"strings"
	"time"
)

// DaySchedule is one weekday entry of a sending schedule. Times are "HH:MM"
// strings in the setting's timezone. An enabled day without bounds allows the
// whole day.
type DaySchedule struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// SendingSchedule maps lowercase weekday names ("monday" .. "sunday") to
// their window. An empty schedule means sending is always allowed.
type SendingSchedule map[string]DaySchedule

// EmailSetting holds a tenant's outbound SMTP transport, sending schedule and
// tracking flags. Exactly one active row is expected per tenant; dispatch
// fails deterministically when none is active.
type EmailSetting struct {
	ID              int             `db:"id" json:"id"`
	UserID          int             `db:"user_id" json:"user_id"`
	MailHost        string          `db:"mail_host" json:"mail_host"`
	MailPort        int             `db:"mail_port" json:"mail_port"`
	MailUsername    string          `db:"mail_username" json:"mail_username"`
	MailPassword    string          `db:"mail_password" json:"-"`
	MailEncryption  string          `db:"mail_encryption" json:"mail_encryption"`
	MailFromAddress string          `db:"mail_from_address" json:"mail_from_address"`
	MailFromName    string          `db:"mail_from_name" json:"mail_from_name"`
	Timezone        string          `db:"timezone" json:"timezone"`
	SendingSchedule SendingSchedule `db:"sending_schedule" json:"sending_schedule,omitempty"`
	DailySendLimit  int             `db:"daily_send_limit" json:"daily_send_limit"`
	TrackOpens      bool            `db:"track_opens" json:"track_opens"`
	TrackClicks     bool            `db:"track_clicks" json:"track_clicks"`
	IsActive        bool            `db:"is_active" json:"is_active"`
}

// Location returns the setting's timezone, falling back to UTC when the
// stored name is empty or unknown.
func (s *EmailSetting) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsWithinSendingWindow reports whether now falls inside the sending schedule,
// evaluated in the setting's timezone. No schedule means always allowed. A
// missing or disabled weekday entry blocks the whole day. Start/end bounds are
// inclusive. Windows do not wrap midnight: a 22:00-02:00 range never matches
// after midnight; this is a known limitation carried over from the schedule
// format, not a bug to fix here.
func (s *EmailSetting) IsWithinSendingWindow(now time.Time) bool {
	if len(s.SendingSchedule) == 0 {
		return true
	}

	local := now.In(s.Location())
	day := strings.ToLower(local.Weekday().String())

	entry, ok := s.SendingSchedule[day]
	if !ok || !entry.Enabled {
		return false
	}

	if entry.StartTime != "" && entry.EndTime != "" {
		current := local.Format("15:04")
		return current >= entry.StartTime && current <= entry.EndTime
	}

	return true
}

// LocalDate returns now's calendar date in the setting's timezone, used to
// key the daily send cap.
func (s *EmailSetting) LocalDate(now time.Time) string {
	return now.In(s.Location()).Format("2006-01-02")
}
