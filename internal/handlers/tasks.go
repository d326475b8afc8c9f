package handlers

import (
	"context"
	"errors"
	"net/http"

	"taskdash/internal/app"
	"taskdash/internal/models"
	"taskdash/internal/tasks"

	"github.com/gin-gonic/gin"
)

type TaskService interface {
	AddTask(ctx context.Context, req app.AddTaskRequest) (models.Task, error)
}

type TaskPipeline interface {
	ToggleTask(ctx context.Context, taskID string) error
	DeleteTask(ctx context.Context, taskID string) error
	UpdateTaskPriority(ctx context.Context, taskID string, priority models.Priority) error
	ClearTasks(ctx context.Context) error
	State() tasks.State
}

type TaskHandler struct {
	service  TaskService
	pipeline TaskPipeline
}

func NewTaskHandler(service TaskService, pipeline TaskPipeline) *TaskHandler {
	return &TaskHandler{service: service, pipeline: pipeline}
}

// taskStateResponse is the {loading, error, data} view of the collection.
type taskStateResponse struct {
	Loading    bool                                      `json:"loading"`
	Error      string                                    `json:"error,omitempty"`
	Data       []models.Task                             `json:"data"`
	Operations map[tasks.Operation]tasks.OperationStatus `json:"operations"`
}

func (h *TaskHandler) stateResponse() taskStateResponse {
	state := h.pipeline.State()
	return taskStateResponse{
		Loading:    state.Loading,
		Error:      state.Error,
		Data:       state.Items,
		Operations: state.Operations,
	}
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req app.AddTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	task, err := h.service.AddTask(c.Request.Context(), req)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) ToggleTask(c *gin.Context) {
	if err := h.pipeline.ToggleTask(c.Request.Context(), c.Param("id")); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *TaskHandler) UpdateTaskPriority(c *gin.Context) {
	var input struct {
		Priority string `json:"priority" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "priority is required",
		})
		return
	}

	priority, err := models.ParsePriority(input.Priority)
	if err != nil {
		handleTaskError(c, tasks.ErrInvalidPriority)
		return
	}

	if err := h.pipeline.UpdateTaskPriority(c.Request.Context(), c.Param("id"), priority); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.pipeline.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *TaskHandler) ClearTasks(c *gin.Context) {
	if err := h.pipeline.ClearTasks(c.Request.Context()); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tasks.ErrEmptyText), errors.Is(err, tasks.ErrInvalidPriority):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "operation_rejected",
			"message": err.Error(),
		})
	}
}
