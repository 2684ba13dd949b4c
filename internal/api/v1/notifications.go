package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craft-brew/queue-ingest/internal/cache"
	httperr "github.com/craft-brew/queue-ingest/internal/core/errors"
)

// subscriptionRequest matches the browser PushSubscription.toJSON() shape.
type subscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// HandleSubscribe handles POST /v1/notifications/subscribe
// Re-subscribing an existing endpoint overwrites its keys.
func (s *Service) HandleSubscribe(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid subscription body",
			Details:   err.Error(),
		})
		return
	}

	sub := cache.PushSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := s.cache.AddPushSubscription(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to store subscription",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subscribed": true})
}

// HandleUnsubscribe handles DELETE /v1/notifications/subscribe
func (s *Service) HandleUnsubscribe(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	if err := s.cache.RemovePushSubscription(c.Request.Context(), req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to remove subscription",
			Details:   err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}
