package protect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tenant-dashboard/internal/auth"
	"tenant-dashboard/internal/backend"
	"tenant-dashboard/internal/routeguard"
	"tenant-dashboard/internal/session"

	"github.com/gin-gonic/gin"
)

type stubSession struct {
	snap    auth.Snapshot
	logouts int
	block   bool
}

func (s *stubSession) Mount(ctx context.Context) auth.Snapshot {
	if s.block {
		<-ctx.Done()
		return auth.Snapshot{State: auth.StateUnauthenticated, Err: ctx.Err()}
	}
	return s.snap
}

func (s *stubSession) Logout(ctx context.Context) error {
	s.logouts++
	return nil
}

func TestDecide(t *testing.T) {
	authed := auth.Snapshot{State: auth.StateAuthenticated, Identity: session.Identity{UserID: "u1"}}
	anon := auth.Snapshot{State: auth.StateUnauthenticated, Err: session.ErrAuthenticationRequired}
	offline := auth.Snapshot{State: auth.StateUnauthenticated, Err: fmt.Errorf("backend whoami: %w: dial refused", session.ErrNetworkFailure)}
	rejected5xx := auth.Snapshot{State: auth.StateUnauthenticated, Err: fmt.Errorf("%w: %w", session.ErrSessionInvalid, &backend.StatusError{Op: "whoami", StatusCode: 502})}

	cases := []struct {
		name  string
		snap  auth.Snapshot
		class routeguard.Class
		want  Outcome
	}{
		{"initializing", auth.Snapshot{State: auth.StateInitializing}, routeguard.Protected, Loading},
		{"authenticated", authed, routeguard.Protected, Render},
		{"anonymous on public", anon, routeguard.Public, Render},
		{"anonymous on gated", anon, routeguard.TokenGatedSpecial, Render},
		{"anonymous on protected", anon, routeguard.Protected, Deny},
		{"backend unreachable", offline, routeguard.Protected, Loading},
		{"backend answered 5xx", rejected5xx, routeguard.Protected, Deny},
	}
	for _, tc := range cases {
		if got := Decide(tc.snap, tc.class); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func newRegionRouter(sess *stubSession) *gin.Engine {
	gin.SetMode(gin.TestMode)
	guard := routeguard.New(routeguard.DefaultRules(), routeguard.DefaultPolicy())
	r := gin.New()
	r.Use(Region(func(c *gin.Context) (Session, error) { return sess, nil }, guard, nil))
	r.GET("/settings", func(c *gin.Context) {
		id, _ := auth.IdentityFrom(c.Request.Context())
		c.String(http.StatusOK, "secret settings for "+id.UserID)
	})
	r.GET("/login", func(c *gin.Context) { c.String(http.StatusOK, "login form") })
	return r
}

func TestRegion_RendersForAuthenticated(t *testing.T) {
	sess := &stubSession{snap: auth.Snapshot{
		State:      auth.StateAuthenticated,
		Identity:   session.Identity{UserID: "u1", OrganizationID: "acme"},
		Credential: session.Credential{Token: "tok", OrganizationID: "acme"},
	}}
	r := newRegionRouter(sess)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings", nil))
	if w.Code != http.StatusOK || w.Body.String() != "secret settings for u1" {
		t.Fatalf("expected rendered page, got %d %q", w.Code, w.Body.String())
	}
}

func TestRegion_DenyClearsAndRendersNothing(t *testing.T) {
	sess := &stubSession{snap: auth.Snapshot{State: auth.StateUnauthenticated, Err: session.ErrSessionInvalid}}
	r := newRegionRouter(sess)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?from=/settings" {
		t.Fatalf("unexpected location %q", loc)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", w.Body.String())
	}
	if sess.logouts != 1 {
		t.Fatalf("expected credential cleared once, got %d", sess.logouts)
	}
}

func TestRegion_PublicRendersWhenAnonymous(t *testing.T) {
	sess := &stubSession{snap: auth.Snapshot{State: auth.StateUnauthenticated}}
	r := newRegionRouter(sess)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sess.logouts != 0 {
		t.Fatalf("public page must not clear the credential")
	}
}

func TestRegion_CancelledWhileInitializing(t *testing.T) {
	sess := &stubSession{block: true}
	r := newRegionRouter(sess)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings", nil).WithContext(ctx))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if sess.logouts != 0 {
		t.Fatalf("cancelled request must not clear the credential")
	}
}
