// Package clients manages the companies the laboratory serves and their
// contact people.
package clients

import "time"

type Client struct {
	ID          int64     `json:"id"`
	CompanyName string    `json:"company_name"`
	TaxID       *string   `json:"tax_id,omitempty"`
	Address     *string   `json:"address,omitempty"`
	City        *string   `json:"city,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	Active      bool      `json:"active"`
	Contacts    []Contact `json:"contacts,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Contact struct {
	ID       int64   `json:"id"`
	ClientID int64   `json:"client_id"`
	Name     string  `json:"name"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Role     *string `json:"role,omitempty"`
}
