package domain

import "time"

// CustomerProjection is the local, eventually consistent copy of a customer owned
// by the identity service. It is written only by the projection synchronizer.
type CustomerProjection struct {
	CustomerID int64     `json:"customerId"`
	Name       string    `json:"name"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
