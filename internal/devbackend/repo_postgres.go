package devbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tenant-dashboard/pkg/utils"
)

// PostgresRepo reads users and memberships through database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id text PRIMARY KEY,
		email text NOT NULL UNIQUE,
		password_hash text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS organizations (
		id text PRIMARY KEY,
		name text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS memberships (
		user_id text NOT NULL REFERENCES users (id),
		organization_id text NOT NULL REFERENCES organizations (id),
		role text NOT NULL,
		PRIMARY KEY (user_id, organization_id)
	)`,
}

// EnsureSchema creates the three tables if they are missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (User, error) {
	return r.user(ctx, `SELECT id, email, password_hash FROM users WHERE email = $1`, strings.ToLower(email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (User, error) {
	return r.user(ctx, `SELECT id, email, password_hash FROM users WHERE id = $1`, id)
}

func (r *PostgresRepo) user(ctx context.Context, q, arg string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepo) Memberships(ctx context.Context, userID string) ([]Membership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.name, m.role
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY o.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.Name, &m.Role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Membership(ctx context.Context, userID, orgID string) (Membership, error) {
	var m Membership
	err := r.db.QueryRowContext(ctx, `
		SELECT o.id, o.name, m.role
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1 AND m.organization_id = $2`, userID, orgID).Scan(&m.ID, &m.Name, &m.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return Membership{}, ErrNotFound
	}
	if err != nil {
		return Membership{}, fmt.Errorf("query membership: %w", err)
	}
	return m, nil
}

// Seed inserts a user with memberships in one transaction. Existing rows are left untouched.
func (r *PostgresRepo) Seed(ctx context.Context, u User, memberships []Membership) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			u.ID, strings.ToLower(u.Email), u.PasswordHash); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		for _, m := range memberships {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO organizations (id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				m.ID, m.Name); err != nil {
				return fmt.Errorf("insert organization: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO memberships (user_id, organization_id, role) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				u.ID, m.ID, m.Role); err != nil {
				return fmt.Errorf("insert membership: %w", err)
			}
		}
		return nil
	})
}
