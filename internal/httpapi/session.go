package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"tenant-dashboard/internal/auth"
	"tenant-dashboard/internal/backend"
	"tenant-dashboard/internal/events"
	"tenant-dashboard/internal/session"
	"tenant-dashboard/internal/tab"
	"tenant-dashboard/internal/tenancy"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
	From       string `json:"from"`
}

type sessionResponse struct {
	Identity      session.Identity       `json:"identity"`
	Organization  session.Organization   `json:"organization"`
	Organizations []session.Organization `json:"organizations,omitempty"`
	Redirect      string                 `json:"redirect,omitempty"`
}

// safeRedirect accepts only local absolute paths, so a login link cannot send the user
// off-site.
func safeRedirect(from, fallback string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.Contains(from, `\`) {
		return fallback
	}
	return from
}

// mount resolves the request's tab and requires an authenticated identity.
func (h *Handlers) mount(c *gin.Context) (*tab.Tab, auth.Snapshot, bool) {
	t, err := h.Open(c)
	if err != nil {
		writeError(c, err)
		return nil, auth.Snapshot{}, false
	}
	ctx := c.Request.Context()
	stored, _, _ := t.Store.Read(ctx)
	snap := t.Mount(ctx)
	if snap.State != auth.StateAuthenticated {
		err := snap.Err
		if err == nil {
			err = session.ErrAuthenticationRequired
		}
		if errors.Is(err, session.ErrSessionInvalid) && backend.Responded(err) {
			h.Audit.LogCredentialRejected(detach(ctx), stored.OwnerEmail, stored.OrganizationID, c.ClientIP(), t.ID)
		}
		writeError(c, err)
		return nil, snap, false
	}
	return t, snap, true
}

// Login handles POST /api/session/login.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	t, err := h.Open(c)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := t.Login(ctx, strings.TrimSpace(req.Email), req.Password, req.RememberMe); err != nil {
		h.Audit.LogLoginFailed(detach(ctx), req.Email, c.ClientIP(), err.Error())
		writeError(c, err)
		return
	}

	snap := t.Auth.Snapshot()
	h.Audit.LogLogin(detach(ctx), snap.Identity.UserID, snap.Identity.Email, snap.Credential.OrganizationID, c.ClientIP(), t.ID)
	c.JSON(http.StatusOK, sessionResponse{
		Identity:      snap.Identity,
		Organization:  t.Tenancy.Displayed(),
		Organizations: t.Orgs.Cached(),
		Redirect:      safeRedirect(req.From, h.Guard.Policy().HomePath),
	})
}

// Logout handles POST /api/session/logout. It succeeds with or without a session.
func (h *Handlers) Logout(c *gin.Context) {
	t, err := h.Open(c)
	if err != nil {
		writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	snap := t.Mount(ctx)
	_ = t.Logout(ctx)
	if snap.State == auth.StateAuthenticated {
		h.Audit.LogLogout(detach(ctx), snap.Identity.UserID, snap.Credential.OrganizationID, c.ClientIP(), t.ID)
	}
	c.Header("Location", h.Guard.LoginURL(""))
	c.Status(http.StatusNoContent)
}

// Me handles GET /api/session/me.
func (h *Handlers) Me(c *gin.Context) {
	t, snap, ok := h.mount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		Identity:     snap.Identity,
		Organization: t.Tenancy.Displayed(),
	})
}

// Organizations handles GET /api/session/organizations. A network failure while
// refreshing still answers with the last-known list and a warning.
func (h *Handlers) Organizations(c *gin.Context) {
	t, _, ok := h.mount(c)
	if !ok {
		return
	}
	list, err := t.LoadOrganizations(c.Request.Context())
	if err != nil && !errors.Is(err, session.ErrNetworkFailure) {
		writeError(c, err)
		return
	}
	resp := gin.H{
		"active":        t.Tenancy.Displayed(),
		"organizations": list,
	}
	if err != nil {
		resp["warning"] = "Could not refresh organizations"
	}
	c.JSON(http.StatusOK, resp)
}

type switchRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
}

// SwitchOrganization handles POST /api/session/organization.
func (h *Handlers) SwitchOrganization(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "organization_id is required"})
		return
	}
	t, snap, ok := h.mount(c)
	if !ok {
		return
	}
	release, ok := h.acquireSwitch(c)
	if !ok {
		writeError(c, session.ErrSwitchInProgress)
		return
	}
	defer release()

	ctx := c.Request.Context()
	from := t.Tenancy.Active().ID
	if err := t.Switch(ctx, req.OrganizationID); err != nil {
		h.Audit.LogSwitchFailed(detach(ctx), snap.Identity.UserID, from, req.OrganizationID, c.ClientIP(), err.Error())
		writeError(c, err)
		return
	}
	if from != req.OrganizationID {
		h.Audit.LogSwitch(detach(ctx), snap.Identity.UserID, from, req.OrganizationID, c.ClientIP(), t.ID)
	}
	c.JSON(http.StatusOK, gin.H{
		"organization": t.Tenancy.Active(),
		"reload":       h.Strategy != tenancy.StrategyRekey,
	})
}

type streamEvent struct {
	name string
	data any
}

// Events handles GET /api/session/events: a server-sent stream of what other tabs of the
// same browser change. It ends when the session ends or the client goes away.
func (h *Handlers) Events(c *gin.Context) {
	t, _, ok := h.mount(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	out := make(chan streamEvent, 16)
	send := func(ev streamEvent) {
		select {
		case out <- ev:
		default:
		}
	}
	defer t.Bus.OrganizationChanged.Subscribe(func(e events.OrganizationChanged) {
		send(streamEvent{"organization", gin.H{"id": e.ID, "name": e.Name, "remote": e.Remote}})
	})()
	defer t.Bus.SessionEnded.Subscribe(func(e events.SessionEnded) {
		send(streamEvent{"session_ended", gin.H{"reason": e.Reason}})
	})()
	defer t.Bus.Notifications.Subscribe(func(n events.Notification) {
		send(streamEvent{"notification", gin.H{"level": n.Level, "message": n.Message}})
	})()

	if err := t.Start(ctx); err != nil {
		writeError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("organization", gin.H{"id": t.Tenancy.Active().ID, "name": t.Tenancy.Active().Name, "remote": false})
	c.Writer.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			c.SSEvent("ping", "")
		case ev := <-out:
			c.SSEvent(ev.name, ev.data)
			if ev.name == "session_ended" {
				c.Writer.Flush()
				return
			}
		}
		c.Writer.Flush()
	}
}
