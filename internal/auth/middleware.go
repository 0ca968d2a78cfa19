package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireIdentity rejects API requests that reached the handler without a resolved identity.
// Identity resolution itself belongs to internal/protect; this only enforces its result.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := IdentityFrom(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		// Also store on gin context for handler convenience.
		c.Set("user_id", id.UserID)
		c.Set("organization_id", id.OrganizationID)

		c.Next()
	}
}
