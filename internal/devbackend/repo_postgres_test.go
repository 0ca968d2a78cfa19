package devbackend

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_UserByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, email, password_hash FROM users WHERE email = \\$1").
		WithArgs("ada@acme.test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}).AddRow("u1", "ada@acme.test", "hash"))

	u, err := NewPostgresRepo(db).UserByEmail(context.Background(), "Ada@Acme.test")
	require.NoError(t, err)
	assert.Equal(t, User{ID: "u1", Email: "ada@acme.test", PasswordHash: "hash"}, u)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UserNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM users WHERE id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}))

	_, err = NewPostgresRepo(db).UserByID(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgresRepo_Memberships(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM memberships m").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role"}).
			AddRow("acme", "Acme", "owner").
			AddRow("globex", "Globex", "viewer"))

	ms, err := NewPostgresRepo(db).Memberships(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, Membership{Organization: Organization{ID: "globex", Name: "Globex"}, Role: "viewer"}, ms[1])
}

func TestPostgresRepo_MembershipMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("m.organization_id = \\$2").
		WithArgs("u1", "initech").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role"}))

	_, err = NewPostgresRepo(db).Membership(context.Background(), "u1", "initech")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_SeedRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO organizations").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewPostgresRepo(db).Seed(context.Background(),
		User{ID: "u1", Email: "ada@acme.test", PasswordHash: "h"},
		[]Membership{{Organization: Organization{ID: "acme", Name: "Acme"}, Role: "owner"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS organizations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS memberships").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresRepo(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDemoPostgres_SkipsExistingUsers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "email", "password_hash"}
	mock.ExpectQuery("FROM users WHERE email").WithArgs("ada@acme.test").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "ada@acme.test", "hash"))
	mock.ExpectQuery("FROM users WHERE email").WithArgs("bob@globex.test").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u2", "bob@globex.test", "hash"))

	require.NoError(t, SeedDemoPostgres(context.Background(), NewPostgresRepo(db), 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}
