package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"taskdash/internal/dispatch"

	"github.com/gin-gonic/gin"
)

type ActionQueue interface {
	Enqueue(actionType dispatch.ActionType, payload json.RawMessage) (string, error)
}

type DispatchHandler struct {
	queue ActionQueue
}

func NewDispatchHandler(queue ActionQueue) *DispatchHandler {
	return &DispatchHandler{queue: queue}
}

type DispatchRequest struct {
	Type    dispatch.ActionType `json:"type" binding:"required"`
	Payload json.RawMessage     `json:"payload"`
}

// Dispatch accepts an action and returns before it runs; callers watch the
// task and weather state for the outcome.
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	id, err := h.queue.Enqueue(req.Type, req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrUnknownAction):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_action", "message": err.Error()})
		case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue_unavailable", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch_failed", "message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":   id,
		"type": req.Type,
	})
}
