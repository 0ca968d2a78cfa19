package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenant-dashboard/internal/audit"
	"tenant-dashboard/internal/backend"
	"tenant-dashboard/internal/config"
	"tenant-dashboard/internal/credential"
	"tenant-dashboard/internal/httpapi"
	"tenant-dashboard/internal/localstore"
	"tenant-dashboard/internal/metrics"
	"tenant-dashboard/internal/routeguard"
	"tenant-dashboard/internal/tenancy"
	"tenant-dashboard/pkg/logger"
	"tenant-dashboard/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFiles(".env"); err != nil {
		slog.Error("env file load failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	strategy, err := tenancy.ParseStrategy(cfg.Session.SwitchStrategy)
	if err != nil {
		log.Error("config invalid", "err", err)
		os.Exit(1)
	}

	client, err := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout)
	if err != nil {
		log.Error("backend client init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		origins   localstore.Origins
		auditRepo audit.Repository
	)
	if cfg.UsesRedis() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		origins = localstore.RedisOrigins(rdb, "dashboard", log)
		auditRepo = audit.NewRedisStreamRepo(rdb, "dashboard:audit", 100_000)
	} else {
		log.Warn("REDIS_HOST not set; tab state and audit stay in process memory")
		origins = localstore.MemoryOrigins()
		auditRepo = audit.NewMemoryRepo()
	}

	policy := routeguard.DefaultPolicy()
	policy.CheckExpiry = cfg.Session.EdgeCheckExpiry
	guard := routeguard.New(routeguard.DefaultRules(), policy)

	cookies := credential.DefaultCookieConfig()
	cookies.Secure = cfg.IsProduction()
	cookies.PersistentTTL = cfg.Session.CookiePersistentTTL

	h := &httpapi.Handlers{
		Backend:   client,
		Origins:   origins,
		Cookies:   cookies,
		Guard:     guard,
		Strategy:  strategy,
		Audit:     audit.NewService(auditRepo, log),
		Metrics:   m,
		CacheTTL:  cfg.Session.OrgCacheTTL,
		CacheSize: cfg.Session.OrgCacheSize,
	}
	limiter := httpapi.NewRateLimiter(cfg.Session.LoginRatePerSec, cfg.Session.LoginRateBurst)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, routeDeps{
		handlers: h,
		guard:    guard,
		limiter:  limiter,
		metrics:  m,
		gatherer: reg,
		log:      log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No write timeout: /api/session/events streams for as long as the tab is open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("dashboard listening", "addr", srv.Addr, "env", cfg.App.Env, "switch_strategy", strategy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
