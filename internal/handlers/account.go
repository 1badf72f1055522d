package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"localmart/api/internal/middleware"
	"localmart/api/internal/models"
	"localmart/api/internal/service"
)

type changeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ChangeRole switches the account's role; the first adoption of a business
// role also starts the one-time trial.
func (h HandlerSet) ChangeRole(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.accounts.ChangeRole(c.Request.Context(), user.ID, models.UserRole(req.Role))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRole) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("role change failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update role"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trialStarted":       result.TrialStarted,
		"trialActive":        result.TrialActive,
		"trialDaysRemaining": result.TrialDaysRemaining,
		"user":               toUserResponse(result.User),
	})
}

func (h HandlerSet) CanBecome(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	kind := models.ListingKind(c.Param("kind"))
	canBecome, reason, err := h.accounts.CanBecome(c.Request.Context(), user.ID, kind)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRole) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing kind"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check eligibility"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"canBecome": canBecome, "reason": reason})
}

func (h HandlerSet) AccountStatus(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, err := h.accounts.Status(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch account status"})
		return
	}

	owned := make(map[string]listingResponse, len(status.Listings))
	for _, listing := range status.Listings {
		owned[string(listing.Kind)] = toListingResponse(listing)
	}

	c.JSON(http.StatusOK, gin.H{
		"user":     toUserResponse(status.User),
		"listings": owned,
	})
}
