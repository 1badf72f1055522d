package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"localmart/api/internal/middleware"
	"localmart/api/internal/models"
	"localmart/api/internal/service"
)

type createOrderRequest struct {
	PlanType string `json:"planType"`
}

func (h HandlerSet) CreateOrder(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan := models.PlanType(req.PlanType)
	if req.PlanType == "" {
		plan = models.PlanTypeYearly
	}

	order, err := h.subscriptions.CreateOrder(c.Request.Context(), user, plan)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlan), errors.Is(err, service.ErrNotBusinessRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			// Provider failures are surfaced, not retried behind the
			// caller's back.
			h.log.Error().Err(err).Str("user_id", user.ID).Msg("order creation failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create order"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"orderId":  order.OrderID,
		"amount":   order.Amount,
		"currency": order.Currency,
		"key":      order.KeyID,
	})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func (h HandlerSet) VerifyPayment(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.subscriptions.VerifyPayment(c.Request.Context(), user, service.VerifyPaymentInput{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid signature"})
		case errors.Is(err, service.ErrPaymentReplayed):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Payment already processed"})
		default:
			h.log.Error().Err(err).Str("user_id", user.ID).Msg("payment verification failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Payment verification failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Subscription activated successfully"})
}

func (h HandlerSet) CancelSubscription(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.subscriptions.Cancel(c.Request.Context(), user); err != nil {
		if errors.Is(err, service.ErrNoActiveSubscription) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No active subscription found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("cancellation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Cancellation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Subscription cancelled, access continues until expiry"})
}

func (h HandlerSet) SubscriptionStatus(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, err := h.subscriptions.Status(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch subscription status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"subscription": gin.H{
			"isSubscribed":  status.IsSubscribed,
			"isTrialActive": status.IsTrialActive,
			"trialEndsAt":   status.TrialEndsAt,
			"expiresAt":     status.ExpiresAt,
		},
	})
}
