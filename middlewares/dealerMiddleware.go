package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/gin-gonic/gin"
)

// DealerMiddleware resolves the tenant from the x-dealer-id header. The
// session user must be associated with the dealer; the check fails
// closed when no profile can be loaded. Handlers downstream read the
// dealer id and user-id name from the request context only.
func DealerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		dealerId := c.Request.Header.Get("x-dealer-id")
		if dealerId == "" {
			c.Next()
			return
		}

		uid, ok := utils.GetUidFromContext(c.Request.Context())
		if !ok || uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		profile, err := models.GetUserProfileByUid(c.Request.Context(), uid)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		if !models.IsAssociatedWithDealer(profile, dealerId) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not associated with dealer"})
			c.Abort()
			return
		}

		ctx := utils.SetDealerIdInContext(c.Request.Context(), dealerId)
		if mapping := profile.MappingForDealer(dealerId); mapping != nil && mapping.UserIDName != "" {
			ctx = utils.SetUserIDNameInContext(ctx, mapping.UserIDName)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
