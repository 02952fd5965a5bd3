// internal/repository/recipient_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/sportapp/campaign-dispatcher/internal/model"
)

type RecipientRepositoryInterface interface {
	// CreateIfAbsent inserts a pending recipient row with the given tracking
	// token. Returns false without error when the (campaign, recipient) pair
	// already exists, so audience resolution is idempotent.
	CreateIfAbsent(campaignID, recipientID int, token string) (bool, error)

	GetByID(id int) (*model.CampaignRecipient, error)
	GetByToken(token string) (*model.CampaignRecipient, error)
	ListPending(campaignID, limit int) ([]*model.CampaignRecipient, error)
	ListByCampaign(campaignID, offset, limit int) ([]*model.CampaignRecipient, int, error)
	CountByStatus(campaignID int) (map[string]int, error)

	// State machine transitions. Each is a conditional update guarded on the
	// current status; the bool reports whether this caller won the transition.
	Claim(id int) (bool, error)
	MarkSent(id int, sentAt time.Time) (bool, error)
	MarkOpened(id int, openedAt time.Time) (bool, error)
	ReleaseForRetry(id int, errorMessage string) (bool, error)
	MarkFailed(id int, errorMessage string) (bool, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

const recipientColumns = `id, email_campaign_id, recipient_id, status, tracking_token,
    sent_at, opened_at, clicked_at, error_message, retry_count, created_at, updated_at`

func scanRecipient(row interface{ Scan(...any) error }) (*model.CampaignRecipient, error) {
	var rec model.CampaignRecipient
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.RecipientID, &rec.Status, &rec.TrackingToken,
		&rec.SentAt, &rec.OpenedAt, &rec.ClickedAt, &rec.ErrorMessage, &rec.RetryCount,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecipientRepository) CreateIfAbsent(campaignID, recipientID int, token string) (bool, error) {
	res, err := r.DB.Exec(`
        INSERT INTO email_campaign_recipients
            (email_campaign_id, recipient_id, status, tracking_token, retry_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
        ON CONFLICT (email_campaign_id, recipient_id) DO NOTHING`,
		campaignID, recipientID, model.RecipientStatusPending, token,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *RecipientRepository) GetByID(id int) (*model.CampaignRecipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM email_campaign_recipients WHERE id=$1`
	rec, err := scanRecipient(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepository) GetByToken(token string) (*model.CampaignRecipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM email_campaign_recipients WHERE tracking_token=$1`
	rec, err := scanRecipient(r.DB.QueryRow(query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepository) ListPending(campaignID, limit int) ([]*model.CampaignRecipient, error) {
	query := `SELECT ` + recipientColumns + `
        FROM email_campaign_recipients
        WHERE email_campaign_id=$1 AND status=$2
        ORDER BY id
        LIMIT $3`
	rows, err := r.DB.Query(query, campaignID, model.RecipientStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []*model.CampaignRecipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *RecipientRepository) ListByCampaign(campaignID, offset, limit int) ([]*model.CampaignRecipient, int, error) {
	query := `SELECT ` + recipientColumns + `
        FROM email_campaign_recipients
        WHERE email_campaign_id=$1
        ORDER BY id
        LIMIT $2 OFFSET $3`
	rows, err := r.DB.Query(query, campaignID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recipients := []*model.CampaignRecipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, 0, err
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = r.DB.QueryRow(
		`SELECT COUNT(*) FROM email_campaign_recipients WHERE email_campaign_id=$1`,
		campaignID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	return recipients, total, nil
}

func (r *RecipientRepository) CountByStatus(campaignID int) (map[string]int, error) {
	rows, err := r.DB.Query(
		`SELECT status, COUNT(*) FROM email_campaign_recipients WHERE email_campaign_id=$1 GROUP BY status`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{
		model.RecipientStatusPending: 0,
		model.RecipientStatusSending: 0,
		model.RecipientStatusSent:    0,
		model.RecipientStatusOpened:  0,
		model.RecipientStatusClicked: 0,
		model.RecipientStatusFailed:  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Claim atomically takes ownership of a pending row. Exactly one of any
// number of concurrent dispatch attempts for the same row gets true.
func (r *RecipientRepository) Claim(id int) (bool, error) {
	return r.transition(
		`UPDATE email_campaign_recipients SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
		model.RecipientStatusSending, id, model.RecipientStatusPending,
	)
}

func (r *RecipientRepository) MarkSent(id int, sentAt time.Time) (bool, error) {
	return r.transition(
		`UPDATE email_campaign_recipients SET status=$1, sent_at=$2, error_message='', updated_at=NOW()
         WHERE id=$3 AND status=$4`,
		model.RecipientStatusSent, sentAt, id, model.RecipientStatusSending,
	)
}

func (r *RecipientRepository) MarkOpened(id int, openedAt time.Time) (bool, error) {
	return r.transition(
		`UPDATE email_campaign_recipients SET status=$1, opened_at=$2, updated_at=NOW()
         WHERE id=$3 AND status=$4`,
		model.RecipientStatusOpened, openedAt, id, model.RecipientStatusSent,
	)
}

// ReleaseForRetry returns a claimed row to pending after a transient send
// failure, recording the error and consuming one retry.
func (r *RecipientRepository) ReleaseForRetry(id int, errorMessage string) (bool, error) {
	return r.transition(
		`UPDATE email_campaign_recipients
         SET status=$1, error_message=$2, retry_count=retry_count+1, updated_at=NOW()
         WHERE id=$3 AND status=$4`,
		model.RecipientStatusPending, errorMessage, id, model.RecipientStatusSending,
	)
}

func (r *RecipientRepository) MarkFailed(id int, errorMessage string) (bool, error) {
	return r.transition(
		`UPDATE email_campaign_recipients
         SET status=$1, error_message=$2, updated_at=NOW()
         WHERE id=$3 AND status IN ($4, $5)`,
		model.RecipientStatusFailed, errorMessage, id,
		model.RecipientStatusPending, model.RecipientStatusSending,
	)
}

func (r *RecipientRepository) transition(query string, args ...interface{}) (bool, error) {
	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
