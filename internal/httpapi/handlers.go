package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tenant-dashboard/internal/audit"
	"tenant-dashboard/internal/credential"
	"tenant-dashboard/internal/localstore"
	"tenant-dashboard/internal/metrics"
	"tenant-dashboard/internal/orgcache"
	"tenant-dashboard/internal/protect"
	"tenant-dashboard/internal/routeguard"
	"tenant-dashboard/internal/tab"
	"tenant-dashboard/internal/tenancy"
	"tenant-dashboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DeviceCookie identifies one browser; its tabs share the origin store keyed by it.
const DeviceCookie = "dashboard_device"

// Handlers groups the gateway's session endpoints for dependency injection.
// Keep these thin: parse input, drive the request's tab, return JSON.
type Handlers struct {
	Backend  tab.Backend
	Origins  localstore.Origins
	Cookies  credential.CookieConfig
	Guard    *routeguard.Guard
	Strategy tenancy.Strategy
	Audit    *audit.Service
	Metrics  *metrics.Metrics

	// CacheTTL and CacheSize size each device's org-scoped cache.
	CacheTTL  time.Duration
	CacheSize int

	caches    *expirable.LRU[string, *orgcache.Cache]
	switching sync.Map // device id -> struct{}
	once      sync.Once
}

func (h *Handlers) init() {
	h.once.Do(func() {
		h.caches = expirable.NewLRU[string, *orgcache.Cache](4096, nil, time.Hour)
		if h.Guard == nil {
			h.Guard = routeguard.New(routeguard.DefaultRules(), routeguard.DefaultPolicy())
		}
	})
}

// deviceID returns the browser's device id, issuing one on first contact.
func (h *Handlers) deviceID(c *gin.Context) string {
	if v, err := c.Cookie(DeviceCookie); err == nil && v != "" {
		return v
	}
	id := uuid.NewString()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     DeviceCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
	})
	c.Request.AddCookie(&http.Cookie{Name: DeviceCookie, Value: id})
	return id
}

// tabID reads the tab id from the header, or from the query for EventSource clients that
// cannot set headers.
func tabID(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(logger.HeaderTabID)); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.Query("tab_id")); v != "" {
		return v
	}
	return "gateway"
}

func (h *Handlers) cacheFor(device string) *orgcache.Cache {
	if c, ok := h.caches.Get(device); ok {
		return c
	}
	c := orgcache.New(h.CacheSize, h.CacheTTL, h.Metrics)
	h.caches.Add(device, c)
	return c
}

// Open builds the session core for one request: cookies from the exchange, local keys from
// the device's origin store.
func (h *Handlers) Open(c *gin.Context) (*tab.Tab, error) {
	h.init()
	if h.Backend == nil || h.Origins == nil {
		return nil, fmt.Errorf("httpapi: backend and origins are required")
	}
	device := h.deviceID(c)
	id := tabID(c)
	cookies := credential.NewExchangeCookies(c, h.Cookies)
	local := h.Origins(device).Tab(id)
	c.Set("device_id", device)
	return tab.New(id, cookies, local, h.Backend, tab.Options{
		Strategy: h.Strategy,
		Cache:    h.cacheFor(device),
		Guard:    h.Guard,
		Metrics:  h.Metrics,
		Log:      logger.FromGin(c),
	}), nil
}

// Opener adapts Open for protect.Region.
func (h *Handlers) Opener() protect.Opener {
	return func(c *gin.Context) (protect.Session, error) { return h.Open(c) }
}

// acquireSwitch marks a switch in flight for the request's device.
func (h *Handlers) acquireSwitch(c *gin.Context) (release func(), ok bool) {
	device, _ := c.Get("device_id")
	key, _ := device.(string)
	if _, busy := h.switching.LoadOrStore(key, struct{}{}); busy {
		return nil, false
	}
	return func() { h.switching.Delete(key) }, true
}

// Register mounts the session API.
func (h *Handlers) Register(r gin.IRouter, loginLimit gin.HandlerFunc) {
	api := r.Group("/api/session")
	if loginLimit != nil {
		api.POST("/login", loginLimit, h.Login)
	} else {
		api.POST("/login", h.Login)
	}
	api.POST("/logout", h.Logout)
	api.GET("/me", h.Me)
	api.GET("/organizations", h.Organizations)
	api.POST("/organization", h.SwitchOrganization)
	api.GET("/events", h.Events)
}

func detach(ctx context.Context) context.Context { return context.WithoutCancel(ctx) }
