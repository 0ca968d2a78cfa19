package devbackend

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported token shape. Every token is scoped to exactly one
// organization; switching organization mints a new token.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	OrganizationID string `json:"org_id"`
	Role           string `json:"role"`
}
