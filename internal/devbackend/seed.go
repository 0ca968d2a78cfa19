package devbackend

import (
	"context"
	"errors"
	"fmt"

	"tenant-dashboard/internal/rbac"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the password of every demo user.
const DemoPassword = "dashboard-demo"

type demoUser struct {
	email       string
	memberships []Membership
}

// Two organizations and two users:
// ada@acme.test owns Acme and is a member of Globex; bob@globex.test views Globex only.
var (
	acme   = Organization{ID: "acme", Name: "Acme"}
	globex = Organization{ID: "globex", Name: "Globex"}

	demoUsers = []demoUser{
		{email: "ada@acme.test", memberships: []Membership{
			{Organization: acme, Role: rbac.RoleOwner},
			{Organization: globex, Role: rbac.RoleMember},
		}},
		{email: "bob@globex.test", memberships: []Membership{
			{Organization: globex, Role: rbac.RoleViewer},
		}},
	}
)

// SeedDemo loads the demo data into r.
func SeedDemo(r *MemoryRepo) error {
	for _, org := range []Organization{acme, globex} {
		r.AddOrganization(org.ID, org.Name)
	}
	for _, du := range demoUsers {
		u, err := r.AddUser(du.email, DemoPassword)
		if err != nil {
			return err
		}
		for _, m := range du.memberships {
			r.Grant(u.ID, m.ID, m.Role)
		}
	}
	return nil
}

// SeedDemoPostgres loads the demo data into r, skipping users that already exist.
func SeedDemoPostgres(ctx context.Context, r *PostgresRepo, cost int) error {
	for _, du := range demoUsers {
		_, err := r.UserByEmail(ctx, du.email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
		if err != nil {
			return err
		}
		u := User{ID: uuid.NewString(), Email: du.email, PasswordHash: string(hash)}
		if err := r.Seed(ctx, u, du.memberships); err != nil {
			return fmt.Errorf("seed %s: %w", du.email, err)
		}
	}
	return nil
}
