// internal/model/email_template.go
package model

// EmailTemplate is a reusable subject/body a campaign may start from. When a
// campaign leaves its own subject or content empty, the template's values are
// used instead.
type EmailTemplate struct {
	ID       int    `db:"id" json:"id"`
	UserID   int    `db:"user_id" json:"user_id"`
	Name     string `db:"name" json:"name"`
	Subject  string `db:"subject" json:"subject"`
	Content  string `db:"content" json:"content"`
	IsActive bool   `db:"is_active" json:"is_active"`
}
