package main

import (
	"log/slog"
	"net/http"

	"tenant-dashboard/internal/auth"
	"tenant-dashboard/internal/credential"
	"tenant-dashboard/internal/httpapi"
	"tenant-dashboard/internal/metrics"
	"tenant-dashboard/internal/protect"
	"tenant-dashboard/internal/rbac"
	"tenant-dashboard/internal/routeguard"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	handlers *httpapi.Handlers
	guard    *routeguard.Guard
	limiter  *httpapi.RateLimiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))

	// Every page passes the edge tier first; it skips /api, /static and the two above.
	r.Use(routeguard.Edge(d.guard, credential.CookieName, d.metrics))

	d.handlers.Register(r, d.limiter.Middleware())

	r.GET("/login", d.handlers.LoginPage)
	for _, p := range []string{"/register", "/forgot-password"} {
		r.GET(p, httpapi.Page(p[1:]))
	}

	// Protected pages resolve the session in-page before rendering.
	pages := r.Group("/")
	pages.Use(protect.Region(d.handlers.Opener(), d.guard, d.log))
	{
		signedIn := auth.RequireIdentity()
		pages.GET("/", signedIn, httpapi.Page("home"))
		pages.GET("/home", signedIn, httpapi.Page("home"))
		pages.GET("/settings", signedIn, httpapi.Page("settings"))
		// Reachable signed out when the link carries its token.
		pages.GET("/verify-email", httpapi.Page("verify-email"))
		pages.GET("/reset-password", httpapi.Page("reset-password"))
		pages.GET("/accept-invite", httpapi.Page("accept-invite"))
		pages.GET("/organizations", signedIn, rbac.RequireOrganization(), httpapi.Page("organizations"))

		admin := pages.Group("/admin")
		admin.Use(rbac.RequireAdmin())
		{
			admin.GET("", httpapi.Page("admin"))
		}
	}
}
