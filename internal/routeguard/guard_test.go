package routeguard

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestClassify(t *testing.T) {
	r := DefaultRules()
	cases := []struct {
		raw  string
		want Class
	}{
		{"/login", Public},
		{"/register", Public},
		{"/forgot-password", Public},
		{"/settings", Protected},
		{"/loginx", Protected},
		{"/verify-email?token=abc", TokenGatedSpecial},
		{"/verify-email", Protected},
		{"/reset-password?token=", Protected},
		{"/accept-invite?token=t1", TokenGatedSpecial},
	}
	for _, tc := range cases {
		u := mustURL(t, tc.raw)
		if got := r.Classify(u.Path, u.Query()); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.raw, tc.want, got)
		}
	}
}

func TestDecide_Table(t *testing.T) {
	g := New(DefaultRules(), DefaultPolicy())
	cases := []struct {
		name   string
		token  string
		raw    string
		action Action
		loc    string
	}{
		{"credential on public goes home", "tok", "/login", RedirectHome, "/home"},
		{"no credential on protected goes to login", "", "/settings", RedirectLogin, "/login?from=/settings"},
		{"nested path keeps slashes", "", "/reports/q1", RedirectLogin, "/login?from=/reports/q1"},
		{"gated with token and no credential", "", "/reset-password?token=x", Allow, ""},
		{"gated with token and credential", "tok", "/accept-invite?token=x", Allow, ""},
		{"gated without token is protected", "", "/verify-email", RedirectLogin, "/login?from=/verify-email"},
		{"no credential on public", "", "/register", Allow, ""},
		{"credential on protected is not validated", "garbage", "/settings", Allow, ""},
	}
	for _, tc := range cases {
		d := g.Decide(tc.token, mustURL(t, tc.raw))
		if d.Action != tc.action || d.Location != tc.loc {
			t.Fatalf("%s: expected %s %q, got %s %q", tc.name, tc.action, tc.loc, d.Action, d.Location)
		}
	}
}

func TestDecide_CheckExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sign := func(exp time.Time) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	g := New(DefaultRules(), Policy{CheckExpiry: true, Now: func() time.Time { return now }})

	if d := g.Decide(sign(now.Add(-time.Minute)), mustURL(t, "/settings")); d.Action != RedirectLogin {
		t.Fatalf("expired token: expected redirect to login, got %s", d.Action)
	}
	if d := g.Decide(sign(now.Add(time.Hour)), mustURL(t, "/settings")); d.Action != Allow {
		t.Fatalf("live token: expected allow, got %s", d.Action)
	}
	if d := g.Decide("opaque-token", mustURL(t, "/settings")); d.Action != Allow {
		t.Fatalf("opaque token: expected allow, got %s", d.Action)
	}

	off := New(DefaultRules(), Policy{Now: func() time.Time { return now }})
	if d := off.Decide(sign(now.Add(-time.Minute)), mustURL(t, "/settings")); d.Action != Allow {
		t.Fatalf("presence-only: expected allow, got %s", d.Action)
	}
}

func newEdgeRouter(g *Guard) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Edge(g, "authToken", nil))
	page := func(c *gin.Context) {
		c.String(http.StatusOK, ClassFrom(c, g.Rules()).String())
	}
	r.GET("/login", page)
	r.GET("/home", page)
	r.GET("/settings", page)
	r.GET("/api/session/me", page)
	return r
}

func TestEdge_CookieOnLoginRedirectsHome(t *testing.T) {
	r := newEdgeRouter(New(DefaultRules(), DefaultPolicy()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: "tok"})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/home" {
		t.Fatalf("expected /home, got %q", loc)
	}
}

func TestEdge_NoCookieOnSettingsRedirectsToLogin(t *testing.T) {
	r := newEdgeRouter(New(DefaultRules(), DefaultPolicy()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?from=/settings" {
		t.Fatalf("expected /login?from=/settings, got %q", loc)
	}
	if w.Body.String() == "protected" {
		t.Fatalf("protected page rendered")
	}
}

func TestEdge_AllowedRequestCarriesClass(t *testing.T) {
	r := newEdgeRouter(New(DefaultRules(), DefaultPolicy()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: "tok"})
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "protected" {
		t.Fatalf("expected 200 protected, got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session/me", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ignored prefix: expected 200, got %d", w.Code)
	}
}
