// internal/repository/customer_repository.go
package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/sportapp/campaign-dispatcher/internal/model"
)

type CustomerRepositoryInterface interface {
	GetByID(id int) (*model.Customer, error)

	// ListConsentingGroupMembers unions the members of the given customer
	// groups, deduplicated by customer id, keeping only customers who have
	// opted in to marketing email.
	ListConsentingGroupMembers(groupIDs []int) ([]model.Customer, error)

	SetMarketingEmails(customerID int, enabled bool) error
}

type CustomerRepository struct {
	DB *sql.DB
}

const customerColumns = `id, name, email, phone, is_admin, marketing_emails,
    COALESCE(website_name, ''), COALESCE(company_name, '')`

func (r *CustomerRepository) GetByID(id int) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM users WHERE id = $1`
	row := r.DB.QueryRow(query, id)

	var c model.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.IsAdmin, &c.MarketingEmails,
		&c.WebsiteName, &c.CompanyName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) ListConsentingGroupMembers(groupIDs []int) ([]model.Customer, error) {
	if len(groupIDs) == 0 {
		return []model.Customer{}, nil
	}

	query := `
        SELECT DISTINCT u.id, u.name, u.email, u.phone, u.is_admin, u.marketing_emails,
            COALESCE(u.website_name, ''), COALESCE(u.company_name, '')
        FROM users u
        JOIN customer_group_user cgu ON cgu.user_id = u.id
        WHERE cgu.customer_group_id = ANY($1)
          AND u.marketing_emails = TRUE
          AND u.is_admin = FALSE
        ORDER BY u.id
    `
	rows, err := r.DB.Query(query, pq.Array(groupIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		var c model.Customer
		err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.IsAdmin, &c.MarketingEmails,
			&c.WebsiteName, &c.CompanyName)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *CustomerRepository) SetMarketingEmails(customerID int, enabled bool) error {
	_, err := r.DB.Exec(`UPDATE users SET marketing_emails=$1, updated_at=NOW() WHERE id=$2`, enabled, customerID)
	return err
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
