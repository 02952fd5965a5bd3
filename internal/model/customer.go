// internal/model/customer.go
package model

// Customer is a store customer who may receive marketing email. Customers and
// admin tenants share the users table; IsAdmin separates them. MarketingEmails
// is the consent flag checked at audience resolution and flipped by the
// unsubscribe endpoint.
type Customer struct {
	ID              int    `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	Email           string `db:"email" json:"email"`
	Phone           string `db:"phone" json:"phone"`
	IsAdmin         bool   `db:"is_admin" json:"is_admin"`
	MarketingEmails bool   `db:"marketing_emails" json:"marketing_emails"`
	WebsiteName     string `db:"website_name" json:"website_name,omitempty"`
	CompanyName     string `db:"company_name" json:"company_name,omitempty"`
}
