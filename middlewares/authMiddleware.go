package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates a bearer JWT when one is presented. It is an
// alternative to the opaque session token for machine clients; both
// paths end with uid and email in the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		validate, err := utils.JwtValidate(raw)
		if err != nil || !validate.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetUidInContext(c.Request.Context(), claim.Uid)
		ctx = utils.SetEmailInContext(ctx, claim.Email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
