package models

import (
	"time"
)

// Precipitation grades forecast precipitation
type Precipitation string

const (
	PrecipitationNone  Precipitation = "none"
	PrecipitationLight Precipitation = "light"
	PrecipitationHeavy Precipitation = "heavy"
)

// WeatherForecast is the per-venue forecast supplied by the weather feed
type WeatherForecast struct {
	Venue         string        `json:"venue"`
	TemperatureF  float64       `json:"temperature_f"`
	WindMPH       float64       `json:"wind_mph"`
	Precipitation Precipitation `json:"precipitation"`
	Indoor        bool          `json:"indoor"`
	SourceID      string        `json:"source_id"`
	ForecastAt    time.Time     `json:"forecast_at"`
}
