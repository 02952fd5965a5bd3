// internal/repository/email_setting_repository.go
package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	appErrors "github.com/sportapp/campaign-dispatcher/internal/errors"
	"github.com/sportapp/campaign-dispatcher/internal/model"
)

type EmailSettingRepositoryInterface interface {
	// GetActiveByUserID resolves the tenant's one active outbound mail
	// configuration. Returns ErrNoActiveEmailSettings when none is active.
	GetActiveByUserID(userID int) (*model.EmailSetting, error)
}

type EmailSettingRepository struct {
	DB *sql.DB
}

func (r *EmailSettingRepository) GetActiveByUserID(userID int) (*model.EmailSetting, error) {
	query := `
        SELECT id, user_id, mail_host, mail_port, mail_username, mail_password,
               mail_encryption, mail_from_address, mail_from_name, timezone,
               COALESCE(sending_schedule, 'null'), daily_send_limit, track_opens, track_clicks, is_active
        FROM email_settings
        WHERE user_id=$1 AND is_active=TRUE
        ORDER BY id
        LIMIT 1
    `
	var s model.EmailSetting
	var scheduleJSON []byte
	err := r.DB.QueryRow(query, userID).Scan(
		&s.ID, &s.UserID, &s.MailHost, &s.MailPort, &s.MailUsername, &s.MailPassword,
		&s.MailEncryption, &s.MailFromAddress, &s.MailFromName, &s.Timezone,
		&scheduleJSON, &s.DailySendLimit, &s.TrackOpens, &s.TrackClicks, &s.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNoActiveEmailSettings(userID)
		}
		return nil, err
	}

	if len(scheduleJSON) > 0 && string(scheduleJSON) != "null" {
		if err := json.Unmarshal(scheduleJSON, &s.SendingSchedule); err != nil {
			return nil, fmt.Errorf("invalid sending_schedule for email setting %d: %w", s.ID, err)
		}
	}

	return &s, nil
}

var _ EmailSettingRepositoryInterface = (*EmailSettingRepository)(nil)
