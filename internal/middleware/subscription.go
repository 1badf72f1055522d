package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"localmart/api/internal/models"
)

// StateProvider yields an account's live subscription state.
type StateProvider interface {
	State(ctx context.Context, userID string) (models.SubscriptionState, error)
}

// RequireActiveSubscription blocks business-management endpoints for
// accounts whose trial and paid subscription have both lapsed.
func RequireActiveSubscription(states StateProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		state, err := states.State(c.Request.Context(), user.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "subscription_check_failed"})
			return
		}

		if !state.VisibleAt(time.Now()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":                "subscription_required",
				"message":              "Subscription required. Please subscribe to continue.",
				"subscriptionRequired": true,
			})
			return
		}

		c.Next()
	}
}
