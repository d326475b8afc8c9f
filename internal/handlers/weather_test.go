package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"taskdash/internal/handlers"
	"taskdash/internal/models"
	"taskdash/internal/weather"

	"github.com/gin-gonic/gin"
)

func setupWeatherRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	a, _ := setupApp(t)

	handler := handlers.NewWeatherHandler(a.Weather)
	router := gin.New()
	router.GET("/weather", handler.GetWeather)
	router.POST("/weather", handler.FetchWeather)
	router.POST("/weather/refresh", handler.RefreshWeather)
	router.DELETE("/weather", handler.ClearWeather)
	return router
}

func TestFetchWeather(t *testing.T) {
	router := setupWeatherRouter(t)

	w := doJSON(router, "POST", "/weather", gin.H{"location": "Tokyo"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var snapshot models.WeatherSnapshot
	json.Unmarshal(w.Body.Bytes(), &snapshot)
	if snapshot.Location != "Tokyo" || snapshot.Temp != 25 || snapshot.LastUpdated.IsZero() {
		t.Errorf("Unexpected snapshot %+v", snapshot)
	}

	var state weather.State
	json.Unmarshal(doJSON(router, "GET", "/weather", nil).Body.Bytes(), &state)
	if state.Data == nil || state.Data.Location != "Tokyo" {
		t.Errorf("Expected held Tokyo snapshot, got %+v", state.Data)
	}
}

func TestFetchWeather_ShortLocation(t *testing.T) {
	router := setupWeatherRouter(t)

	if w := doJSON(router, "POST", "/weather", gin.H{"location": "T"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestRefreshAndClearWeather(t *testing.T) {
	router := setupWeatherRouter(t)

	w := doJSON(router, "POST", "/weather/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	var snapshot models.WeatherSnapshot
	json.Unmarshal(w.Body.Bytes(), &snapshot)
	if snapshot.Location != "New York" {
		t.Errorf("Expected default location, got %s", snapshot.Location)
	}

	if w := doJSON(router, "DELETE", "/weather", nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, w.Code)
	}

	var state weather.State
	json.Unmarshal(doJSON(router, "GET", "/weather", nil).Body.Bytes(), &state)
	if state.Data != nil {
		t.Errorf("Expected cleared snapshot, got %+v", state.Data)
	}
}
