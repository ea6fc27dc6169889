package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the opaque session token from the "token"
// header against Redis. Requests without a token pass through; auth is
// enforced per handler. An unknown or expired token is rejected here so
// stale clients fail fast.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}

		uid, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUidInContext(ctx, uid)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
