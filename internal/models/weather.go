package models

import "time"

type WeatherSnapshot struct {
	Location    string    `json:"location"`
	Temp        float64   `json:"temp"`
	Condition   string    `json:"condition"`
	Icon        string    `json:"icon"`
	LastUpdated time.Time `json:"lastUpdated"`
}
