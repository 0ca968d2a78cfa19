package session

// Credential is a bearer token scoped to exactly one organization.
// Switching organizations always produces a new Credential; it is never mutated in place.
type Credential struct {
	Token          string `json:"token"`
	OrganizationID string `json:"organization_id"`
	OwnerEmail     string `json:"owner_email"`
	Persistent     bool   `json:"persistent"`
}

// IsZero reports whether no token is carried.
func (c Credential) IsZero() bool { return c.Token == "" }

// Identity is derived by validating a Credential against the backend.
type Identity struct {
	UserID             string `json:"user_id"`
	Email              string `json:"email"`
	IsAdminOfActiveOrg bool   `json:"is_admin"`

	// OrganizationID is the organization the validated token is scoped to.
	OrganizationID string `json:"organization_id,omitempty"`
}

// Organization is a tenant the identity belongs to, with the identity's role in it.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}
