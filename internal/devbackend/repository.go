// Package devbackend is a development stand-in for the authorization backend. It serves the
// five endpoints the dashboard consumes so the gateway and tests can run end to end.
package devbackend

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("devbackend: not found")

type User struct {
	ID           string
	Email        string
	PasswordHash string
}

type Organization struct {
	ID   string
	Name string
}

// Membership is a user's role in one organization.
type Membership struct {
	Organization
	Role string
}

// Repository stores users and their memberships.
type Repository interface {
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	// Memberships lists the user's organizations ordered by organization name.
	Memberships(ctx context.Context, userID string) ([]Membership, error)
	Membership(ctx context.Context, userID, orgID string) (Membership, error)
}
