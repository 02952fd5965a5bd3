// internal/repository/campaign_repository.go
package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/sportapp/campaign-dispatcher/internal/errors"
	"github.com/sportapp/campaign-dispatcher/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListByUser(userID, offset, limit int, status string) ([]*model.Campaign, int, error)
	ListSendingDue(now time.Time) ([]*model.Campaign, error)

	// Conditional status transitions; the bool reports whether the guarded
	// update matched a row.
	BeginSending(campaignID, totalRecipients int) (bool, error)
	MarkSent(campaignID int, sentAt time.Time) (bool, error)
	Cancel(campaignID int) (bool, error)

	// Atomic counter increments, safe under concurrent workers.
	IncrementSentCount(campaignID int) error
	IncrementOpenedCount(campaignID int) error

	// Target customer groups.
	GroupIDs(campaignID int) ([]int, error)
	AttachGroups(campaignID int, groupIDs []int) error

	// PurgeTerminalOlderThan deletes sent and cancelled campaigns created
	// before cutoff, together with their recipient rows. Returns the number
	// of campaigns removed.
	PurgeTerminalOlderThan(cutoff time.Time) (int64, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, user_id, email_template_id, name, subject, content, status,
    scheduled_at, sent_at, total_recipients, sent_count, opened_count, clicked_count,
    bounced_count, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.UserID, &c.EmailTemplateID, &c.Name, &c.Subject, &c.Content, &c.Status,
		&c.ScheduledAt, &c.SentAt, &c.TotalRecipients, &c.SentCount, &c.OpenedCount,
		&c.ClickedCount, &c.BouncedCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	query := `
        INSERT INTO email_campaigns (user_id, email_template_id, name, subject, content, status, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.UserID, c.EmailTemplateID, c.Name, c.Subject, c.Content, c.Status, c.ScheduledAt, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM email_campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListByUser(userID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM email_campaigns WHERE user_id=$1`
	args := []interface{}{userID}
	argPos := 2

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM email_campaigns WHERE user_id=$1`
	countArgs := []interface{}{userID}
	if status != "" {
		countQuery += " AND status=$2"
		countArgs = append(countArgs, status)
	}
	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ListSendingDue returns campaigns the batch driver should process: status
// sending and no scheduled_at in the future.
func (r *CampaignRepository) ListSendingDue(now time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
        FROM email_campaigns
        WHERE status=$1 AND (scheduled_at IS NULL OR scheduled_at <= $2)
        ORDER BY id`
	rows, err := r.DB.Query(query, model.CampaignStatusSending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// BeginSending moves a draft campaign to sending and records the resolved
// recipient count. The status guard makes double resolution impossible: the
// second caller matches zero rows.
func (r *CampaignRepository) BeginSending(campaignID, totalRecipients int) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE email_campaigns
        SET status=$1, total_recipients=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4`,
		model.CampaignStatusSending, totalRecipients, campaignID, model.CampaignStatusDraft,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CampaignRepository) MarkSent(campaignID int, sentAt time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE email_campaigns
        SET status=$1, sent_at=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4`,
		model.CampaignStatusSent, sentAt, campaignID, model.CampaignStatusSending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CampaignRepository) Cancel(campaignID int) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE email_campaigns
        SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status NOT IN ($3, $4)`,
		model.CampaignStatusCancelled, campaignID, model.CampaignStatusSent, model.CampaignStatusCancelled,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CampaignRepository) IncrementSentCount(campaignID int) error {
	_, err := r.DB.Exec(
		`UPDATE email_campaigns SET sent_count=sent_count+1, updated_at=NOW() WHERE id=$1`,
		campaignID,
	)
	return err
}

func (r *CampaignRepository) IncrementOpenedCount(campaignID int) error {
	_, err := r.DB.Exec(
		`UPDATE email_campaigns SET opened_count=opened_count+1, updated_at=NOW() WHERE id=$1`,
		campaignID,
	)
	return err
}

func (r *CampaignRepository) GroupIDs(campaignID int) ([]int, error) {
	rows, err := r.DB.Query(
		`SELECT customer_group_id FROM email_campaign_customer_groups WHERE email_campaign_id=$1`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *CampaignRepository) AttachGroups(campaignID int, groupIDs []int) error {
	for _, gid := range groupIDs {
		_, err := r.DB.Exec(`
            INSERT INTO email_campaign_customer_groups (email_campaign_id, customer_group_id)
            VALUES ($1, $2)
            ON CONFLICT DO NOTHING`,
			campaignID, gid,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *CampaignRepository) PurgeTerminalOlderThan(cutoff time.Time) (int64, error) {
	_, err := r.DB.Exec(`
        DELETE FROM email_campaign_recipients
        WHERE email_campaign_id IN (
            SELECT id FROM email_campaigns
            WHERE status IN ($1, $2) AND created_at < $3
        )`,
		model.CampaignStatusSent, model.CampaignStatusCancelled, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old campaign recipients: %w", err)
	}

	res, err := r.DB.Exec(
		`DELETE FROM email_campaigns WHERE status IN ($1, $2) AND created_at < $3`,
		model.CampaignStatusSent, model.CampaignStatusCancelled, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old campaigns: %w", err)
	}
	return res.RowsAffected()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
