package httpapi

import (
	"errors"
	"net/http"

	"tenant-dashboard/internal/session"
	"tenant-dashboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// statusFor maps the session error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrAuthenticationRequired), errors.Is(err, session.ErrSessionInvalid):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, session.ErrOrganizationNotFound):
		return http.StatusNotFound, "organization not found"
	case errors.Is(err, session.ErrSwitchInProgress):
		return http.StatusConflict, "organization switch in progress"
	case errors.Is(err, session.ErrStale):
		return http.StatusConflict, "organization changed, retry"
	case errors.Is(err, session.ErrPersistenceFailure):
		return http.StatusInternalServerError, "could not save session"
	case errors.Is(err, session.ErrNetworkFailure):
		return http.StatusBadGateway, "authorization service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c *gin.Context, err error) {
	code, msg := statusFor(err)
	if code >= 500 {
		_ = c.Error(err)
	} else {
		logger.FromGin(c).Debug("session request rejected", "status", code, "err", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
