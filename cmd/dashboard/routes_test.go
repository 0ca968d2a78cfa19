package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tenant-dashboard/internal/backend"
	"tenant-dashboard/internal/credential"
	"tenant-dashboard/internal/httpapi"
	"tenant-dashboard/internal/localstore"
	"tenant-dashboard/internal/metrics"
	"tenant-dashboard/internal/routeguard"
	"tenant-dashboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// Nothing listens here; these tests never reach the backend.
	client, err := backend.NewClient("http://127.0.0.1:1", time.Second)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	reg := prometheus.NewRegistry()
	guard := routeguard.New(routeguard.DefaultRules(), routeguard.DefaultPolicy())
	h := &httpapi.Handlers{
		Backend: client,
		Origins: localstore.MemoryOrigins(),
		Cookies: credential.DefaultCookieConfig(),
		Guard:   guard,
	}
	log := logger.NewWithWriter("test", &bytes.Buffer{})

	r := gin.New()
	registerRoutes(r, routeDeps{
		handlers: h,
		guard:    guard,
		limiter:  httpapi.NewRateLimiter(1, 5),
		metrics:  metrics.New(reg),
		gatherer: reg,
		log:      log,
	})
	return r
}

func get(r http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_Healthz(t *testing.T) {
	w := get(newTestRouter(t), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRoutes_MetricsCountsEdgeDecisions(t *testing.T) {
	r := newTestRouter(t)
	get(r, "/settings")

	w := get(r, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`dashboard_edge_decisions_total{action="redirect_login"} 1`)) {
		t.Fatalf("edge decision not exported:\n%s", w.Body.String())
	}
}

func TestRoutes_ProtectedPageRedirectsWithoutCookie(t *testing.T) {
	w := get(newTestRouter(t), "/settings")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/login?from=/settings" {
		t.Fatalf("unexpected location %q", got)
	}
}

func TestRoutes_LoginPageIsPublic(t *testing.T) {
	w := get(newTestRouter(t), "/login")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRoutes_GatedPageWithTokenRenders(t *testing.T) {
	w := get(newTestRouter(t), "/reset-password?token=abc")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRoutes_UnreachableBackendKeepsLoading(t *testing.T) {
	w := get(newTestRouter(t), "/home", &http.Cookie{Name: credential.CookieName, Value: "opaque"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After")
	}
}
