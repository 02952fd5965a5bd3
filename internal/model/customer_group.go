// internal/model/customer_group.go
package model

// CustomerGroup is a named, colored segment of customers. Campaigns target
// zero or more groups; resolution unions their members.
type CustomerGroup struct {
	ID          int    `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	Color       string `db:"color" json:"color,omitempty"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}
