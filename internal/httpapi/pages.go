package httpapi

import (
	"net/http"

	"tenant-dashboard/internal/auth"
	"tenant-dashboard/internal/protect"
	"tenant-dashboard/internal/tab"

	"github.com/gin-gonic/gin"
)

// Page renders a dashboard page as JSON. Protected pages run behind protect.Region, which
// has already resolved the session; public pages render without one.
func Page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := gin.H{"page": name}
		if id, err := auth.IdentityFrom(c.Request.Context()); err == nil {
			out["identity"] = id
		}
		if s, ok := protect.SessionFrom(c); ok {
			if t, ok := s.(*tab.Tab); ok {
				out["organization"] = t.Tenancy.Displayed()
			}
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, out)
	}
}

// LoginPage renders the login form, prefilled with the device's remembered email.
func (h *Handlers) LoginPage(c *gin.Context) {
	out := gin.H{"page": "login"}
	if t, err := h.Open(c); err == nil {
		if email, ok := t.RememberedEmail(c.Request.Context()); ok {
			out["remembered_email"] = email
		}
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, out)
}
