// internal/repository/template_repository.go
package repository

import (
	"database/sql"

	"github.com/sportapp/campaign-dispatcher/internal/model"
)

type TemplateRepositoryInterface interface {
	GetByID(id int) (*model.EmailTemplate, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) GetByID(id int) (*model.EmailTemplate, error) {
	query := `SELECT id, user_id, name, subject, content, is_active FROM email_templates WHERE id=$1`
	var t model.EmailTemplate
	err := r.DB.QueryRow(query, id).Scan(&t.ID, &t.UserID, &t.Name, &t.Subject, &t.Content, &t.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
