package weather

import (
	"time"
)

// Sample is one normalized current-weather observation for a city.
// Timestamp is epoch seconds and is the source of truth for ordering and eviction.
type Sample struct {
	City          string  `json:"city"`
	Timestamp     int64   `json:"dt"`
	Main          string  `json:"main"`
	Description   string  `json:"description"`
	Temperature   float64 `json:"temp"`
	FeelsLike     float64 `json:"feels_like"`
	TempMin       float64 `json:"temp_min"`
	TempMax       float64 `json:"temp_max"`
	Pressure      float64 `json:"pressure"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection float64 `json:"wind_direction"`
	Clouds        float64 `json:"clouds"`
	Visibility    float64 `json:"visibility"`
	Rain1h        float64 `json:"rain_1h"`
	Snow1h        float64 `json:"snow_1h"`
}

// Time returns the sample timestamp in UTC.
func (s Sample) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// Date returns the UTC calendar day the sample falls on.
func (s Sample) Date() time.Time {
	return DateOf(s.Time())
}

// ForecastSample is one 3-hour forecast step.
type ForecastSample struct {
	City          string  `json:"city"`
	Timestamp     int64   `json:"dt"`
	Main          string  `json:"main"`
	Description   string  `json:"description"`
	Temperature   float64 `json:"temp"`
	FeelsLike     float64 `json:"feels_like"`
	TempMin       float64 `json:"temp_min"`
	TempMax       float64 `json:"temp_max"`
	Pressure      float64 `json:"pressure"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection float64 `json:"wind_direction"`
	Clouds        float64 `json:"clouds"`
	Pop           float64 `json:"pop"`
	Rain3h        float64 `json:"rain_3h"`
	Snow3h        float64 `json:"snow_3h"`
}

// Time returns the forecast step timestamp in UTC.
func (f ForecastSample) Time() time.Time {
	return time.Unix(f.Timestamp, 0).UTC()
}

// Date returns the UTC calendar day of the forecast step.
func (f ForecastSample) Date() time.Time {
	return DateOf(f.Time())
}

// DailySummary aggregates one city's samples for one UTC calendar day.
type DailySummary struct {
	Date                  time.Time `json:"date"`
	City                  string    `json:"city"`
	AvgTemp               float64   `json:"avg_temp"`
	MaxTemp               float64   `json:"max_temp"`
	MinTemp               float64   `json:"min_temp"`
	DominantWeather       string    `json:"dominant_weather"`
	DetailedDescription   string    `json:"detailed_description"`
	AvgHumidity           float64   `json:"avg_humidity"`
	AvgPressure           float64   `json:"avg_pressure"`
	AvgWindSpeed          float64   `json:"avg_wind_speed"`
	MaxWindSpeed          float64   `json:"max_wind_speed"`
	DominantWindDirection string    `json:"dominant_wind_direction"`
	TotalRain             float64   `json:"total_rain"`
	TotalSnow             float64   `json:"total_snow"`
	AvgClouds             float64   `json:"avg_clouds"`
	AvgVisibility         float64   `json:"avg_visibility"`
	SampleCount           int       `json:"sample_count"`
}

// ForecastDailySummary aggregates the forecast steps that fall on one UTC day.
type ForecastDailySummary struct {
	Date                     time.Time `json:"date"`
	City                     string    `json:"city"`
	AvgTemp                  float64   `json:"avg_temp"`
	MaxTemp                  float64   `json:"max_temp"`
	MinTemp                  float64   `json:"min_temp"`
	DominantWeather          string    `json:"dominant_weather"`
	AvgHumidity              float64   `json:"avg_humidity"`
	AvgWindSpeed             float64   `json:"avg_wind_speed"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
	TotalRain                float64   `json:"total_rain"`
	TotalSnow                float64   `json:"total_snow"`
	SampleCount              int       `json:"sample_count"`
}

// AlertKind names a class of weather alert.
type AlertKind string

const (
	AlertHighTemperature AlertKind = "High Temperature"
	AlertHeavyRain       AlertKind = "Heavy Rain"
	AlertStrongWinds     AlertKind = "Strong Winds"
)

// ForecastAlert is raised when at least one forecast step crosses a rule threshold.
type ForecastAlert struct {
	Kind    AlertKind   `json:"type"`
	Dates   []time.Time `json:"dates"`
	Message string      `json:"description"`
}

// Unknown is reported for a categorical field when no value is available.
const Unknown = "Unknown"

// DateLayout is the canonical calendar-day format.
const DateLayout = "2006-01-02"

// DateOf truncates t to midnight of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
