package devbackend

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"tenant-dashboard/internal/backend"
	"tenant-dashboard/internal/config"
	"tenant-dashboard/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestBackend(t *testing.T) (*backend.Client, *MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewMemoryRepo().WithBcryptCost(bcrypt.MinCost)
	require.NoError(t, SeedDemo(repo))
	tokens, err := NewManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	r := gin.New()
	NewServer(repo, tokens, nil).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := backend.NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)
	return c, repo
}

func TestServer_LoginAndWhoAmI(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	grant, err := c.Login(ctx, "ada@acme.test", DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, "acme", grant.OrganizationID)

	id, err := c.WhoAmI(ctx, grant.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@acme.test", id.Email)
	assert.Equal(t, "acme", id.OrganizationID)
	assert.True(t, id.IsAdminOfActiveOrg)
}

func TestServer_LoginRejectsBadPassword(t *testing.T) {
	c, _ := newTestBackend(t)
	_, err := c.Login(context.Background(), "ada@acme.test", "wrong")
	assert.ErrorIs(t, err, session.ErrSessionInvalid)
}

func TestServer_SwitchMintsScopedToken(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()
	grant, err := c.Login(ctx, "ada@acme.test", DemoPassword)
	require.NoError(t, err)

	next, err := c.SwitchOrganization(ctx, grant.Token, "globex")
	require.NoError(t, err)
	assert.NotEqual(t, grant.Token, next.Token)
	assert.Equal(t, "globex", next.OrganizationID)

	id, err := c.WhoAmI(ctx, next.Token)
	require.NoError(t, err)
	assert.Equal(t, "globex", id.OrganizationID)
	assert.False(t, id.IsAdminOfActiveOrg, "ada is a member of globex, not an admin")
}

func TestServer_SwitchToForeignOrganization(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()
	grant, err := c.Login(ctx, "bob@globex.test", DemoPassword)
	require.NoError(t, err)

	_, err = c.SwitchOrganization(ctx, grant.Token, "acme")
	assert.ErrorIs(t, err, session.ErrOrganizationNotFound)
}

func TestServer_OrganizationsAndRoles(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()
	grant, err := c.Login(ctx, "ada@acme.test", DemoPassword)
	require.NoError(t, err)

	orgs, err := c.ListOrganizations(ctx, grant.Token)
	require.NoError(t, err)
	assert.Equal(t, []session.Organization{{ID: "acme", Name: "Acme"}, {ID: "globex", Name: "Globex"}}, orgs)

	role, err := c.OrganizationRole(ctx, grant.Token, "globex")
	require.NoError(t, err)
	assert.Equal(t, "member", role)
}

func TestServer_RevokedMembershipInvalidatesToken(t *testing.T) {
	c, repo := newTestBackend(t)
	ctx := context.Background()
	grant, err := c.Login(ctx, "ada@acme.test", DemoPassword)
	require.NoError(t, err)

	u, err := repo.UserByEmail(ctx, "ada@acme.test")
	require.NoError(t, err)
	repo.Revoke(u.ID, "acme")

	_, err = c.WhoAmI(ctx, grant.Token)
	assert.ErrorIs(t, err, session.ErrSessionInvalid)
}

func TestServer_GarbageToken(t *testing.T) {
	c, _ := newTestBackend(t)
	_, err := c.WhoAmI(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, session.ErrSessionInvalid)
	assert.True(t, backend.Responded(err))
}
