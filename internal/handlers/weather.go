package handlers

import (
	"context"
	"errors"
	"net/http"

	"taskdash/internal/models"
	"taskdash/internal/weather"

	"github.com/gin-gonic/gin"
)

type WeatherService interface {
	Fetch(ctx context.Context, location string) (*models.WeatherSnapshot, error)
	Refresh(ctx context.Context) (*models.WeatherSnapshot, error)
	Clear()
	State() weather.State
}

type WeatherHandler struct {
	service WeatherService
}

func NewWeatherHandler(service WeatherService) *WeatherHandler {
	return &WeatherHandler{service: service}
}

func (h *WeatherHandler) GetWeather(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.State())
}

func (h *WeatherHandler) FetchWeather(c *gin.Context) {
	var input struct {
		Location string `json:"location"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request format",
		})
		return
	}

	snapshot, err := h.service.Fetch(c.Request.Context(), input.Location)
	if err != nil {
		handleWeatherError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *WeatherHandler) RefreshWeather(c *gin.Context) {
	snapshot, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		handleWeatherError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *WeatherHandler) ClearWeather(c *gin.Context) {
	h.service.Clear()
	c.Status(http.StatusNoContent)
}

func handleWeatherError(c *gin.Context, err error) {
	var providerErr *weather.ProviderError
	switch {
	case errors.Is(err, weather.ErrLocationRequired), errors.Is(err, weather.ErrLocationTooShort):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
		})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "provider_error",
			"message": providerErr.Message,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "weather_failed",
			"message": err.Error(),
		})
	}
}
