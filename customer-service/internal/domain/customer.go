package domain

import (
	"strings"
	"time"
)

// Customer is the identity record owned by this service. Only CustomerID and
// Name leave the service, through the customer-changed event.
type Customer struct {
	ID             int64     `json:"customerId"`
	Name           string    `json:"name"`
	Gender         string    `json:"gender,omitempty"`
	Identification string    `json:"identification"`
	Address        string    `json:"address,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	PasswordHash   string    `json:"-"`
	Active         bool      `json:"active"`
	Version        int64     `json:"-"`
	PublishPending bool      `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Normalize trims the free-text fields in place and checks the ones the
// event contract depends on.
func (c *Customer) Normalize() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Gender = strings.TrimSpace(c.Gender)
	c.Identification = strings.TrimSpace(c.Identification)
	c.Address = strings.TrimSpace(c.Address)
	c.Phone = strings.TrimSpace(c.Phone)

	if c.Name == "" {
		return ErrNameRequired
	}
	if c.Identification == "" {
		return ErrIdentificationRequired
	}
	return nil
}
