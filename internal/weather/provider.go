package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskdash/internal/config"
	"taskdash/internal/models"
)

const fallbackErrorMessage = "failed to fetch weather data"

// Provider looks up current conditions for a free-text location. The
// returned snapshot has no LastUpdated stamp; the service sets it.
type Provider interface {
	Current(ctx context.Context, location string) (*models.WeatherSnapshot, error)
}

// ProviderError carries the upstream message verbatim when there is one.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

type OpenWeatherProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	units   string
}

func NewOpenWeatherProvider(cfg config.WeatherConfig) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		units:   cfg.Units,
	}
}

type openWeatherResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
		Icon string `json:"icon"`
	} `json:"weather"`
}

type openWeatherError struct {
	Message string `json:"message"`
}

func (p *OpenWeatherProvider) Current(ctx context.Context, location string) (*models.WeatherSnapshot, error) {
	query := url.Values{}
	query.Set("q", location)
	query.Set("appid", p.apiKey)
	if p.units != "" {
		query.Set("units", p.units)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/data/2.5/weather?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Message: fallbackErrorMessage}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: fallbackErrorMessage}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr openWeatherError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, &ProviderError{StatusCode: resp.StatusCode, Message: apiErr.Message}
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: fallbackErrorMessage}
	}

	var payload openWeatherResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: fallbackErrorMessage}
	}

	snapshot := &models.WeatherSnapshot{
		Location: payload.Name,
		Temp:     payload.Main.Temp,
	}
	if len(payload.Weather) > 0 {
		snapshot.Condition = payload.Weather[0].Main
		snapshot.Icon = payload.Weather[0].Icon
	}
	return snapshot, nil
}

type simulatedReading struct {
	temp      float64
	condition string
	icon      string
}

var simulatedReadings = map[string]simulatedReading{
	"london": {temp: 15, condition: "Rainy", icon: "10d"},
	"tokyo":  {temp: 25, condition: "Clear", icon: "01d"},
	"sydney": {temp: 28, condition: "Sunny", icon: "01d"},
}

var defaultReading = simulatedReading{temp: 22, condition: "Partly Cloudy", icon: "02d"}

// SimulatedProvider answers from a fixed table after a fixed delay. It is
// used when no API key is configured.
type SimulatedProvider struct {
	delay time.Duration
}

func NewSimulatedProvider(delay time.Duration) *SimulatedProvider {
	return &SimulatedProvider{delay: delay}
}

func (p *SimulatedProvider) Current(_ context.Context, location string) (*models.WeatherSnapshot, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	reading, ok := simulatedReadings[strings.ToLower(location)]
	if !ok {
		reading = defaultReading
	}

	return &models.WeatherSnapshot{
		Location:  location,
		Temp:      reading.temp,
		Condition: reading.condition,
		Icon:      reading.icon,
	}, nil
}

// NewProvider picks the real provider when an API key is present.
func NewProvider(cfg *config.Config) Provider {
	if cfg.UsesSimulatedWeather() {
		return NewSimulatedProvider(cfg.Weather.SimulatedDelay)
	}
	return NewOpenWeatherProvider(cfg.Weather)
}
