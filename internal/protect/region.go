// Package protect is the in-page tier: the authoritative, network-backed access decision
// taken once the auth state machine has resolved.
package protect

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"tenant-dashboard/internal/auth"
	"tenant-dashboard/internal/backend"
	"tenant-dashboard/internal/routeguard"
	"tenant-dashboard/internal/session"

	"github.com/gin-gonic/gin"
)

type Outcome int

const (
	Loading Outcome = iota
	Render
	Deny
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Deny:
		return "deny"
	default:
		return "loading"
	}
}

// Decide maps an auth snapshot and route class to what the region shows.
// An unauthenticated snapshot caused by an unreachable backend keeps the neutral loading view,
// because nothing proved the credential invalid.
func Decide(snap auth.Snapshot, class routeguard.Class) Outcome {
	switch snap.State {
	case auth.StateInitializing:
		return Loading
	case auth.StateAuthenticated:
		return Render
	}
	if class == routeguard.Public || class == routeguard.TokenGatedSpecial {
		return Render
	}
	if snap.Err != nil && errors.Is(snap.Err, session.ErrNetworkFailure) && !backend.Responded(snap.Err) {
		return Loading
	}
	return Deny
}

// Session is what the region resolves for a request.
type Session interface {
	Mount(ctx context.Context) auth.Snapshot
	Logout(ctx context.Context) error
}

// Opener builds the session for one request, typically from its cookies and tab id.
type Opener func(c *gin.Context) (Session, error)

// SessionKey is the gin context key holding the request's Session after Render.
const SessionKey = "session"

// RetryAfter is the Retry-After value sent with the loading response.
const RetryAfter = 1

// Region guards page handlers. Deny clears the credential and redirects to login without
// writing any page content.
func Region(open Opener, guard *routeguard.Guard, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		sess, err := open(c)
		if err != nil {
			log.Error("protect: open session", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}

		ctx := c.Request.Context()
		snap := sess.Mount(ctx)
		if ctx.Err() != nil {
			loading(c)
			return
		}

		class := routeguard.ClassFrom(c, guard.Rules())
		switch Decide(snap, class) {
		case Loading:
			loading(c)
		case Deny:
			if err := sess.Logout(ctx); err != nil {
				log.Warn("protect: clear on deny", "err", err)
			}
			c.Header("Location", guard.LoginURL(c.Request.URL.Path))
			c.AbortWithStatus(http.StatusFound)
		case Render:
			if snap.State == auth.StateAuthenticated {
				c.Request = c.Request.WithContext(auth.WithIdentity(ctx, snap.Identity))
			}
			c.Set(SessionKey, sess)
			c.Next()
		}
	}
}

func loading(c *gin.Context) {
	c.Header("Retry-After", strconv.Itoa(RetryAfter))
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatus(http.StatusServiceUnavailable)
}

// SessionFrom returns the Session Region attached to c.
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(Session)
	return s, ok
}
