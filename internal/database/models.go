package database

import (
	"time"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// SummaryRow is one row of daily_weather_summary.
type SummaryRow struct {
	ID              int64
	City            string
	Date            time.Time
	AvgTemp         float64
	MaxTemp         float64
	MinTemp         float64
	DominantWeather string
	Description     string
	AvgHumidity     float64
	AvgPressure     float64
	AvgWindSpeed    float64
	MaxWindSpeed    float64
	WindDirection   string
	TotalRain       float64
	TotalSnow       float64
	AvgClouds       float64
	AvgVisibility   float64
	SampleCount     int
	LastUpdated     time.Time
}

// Summary converts the row back into the engine's summary type.
func (r SummaryRow) Summary() weather.DailySummary {
	return weather.DailySummary{
		Date:                  weather.DateOf(r.Date),
		City:                  r.City,
		AvgTemp:               r.AvgTemp,
		MaxTemp:               r.MaxTemp,
		MinTemp:               r.MinTemp,
		DominantWeather:       r.DominantWeather,
		DetailedDescription:   r.Description,
		AvgHumidity:           r.AvgHumidity,
		AvgPressure:           r.AvgPressure,
		AvgWindSpeed:          r.AvgWindSpeed,
		MaxWindSpeed:          r.MaxWindSpeed,
		DominantWindDirection: r.WindDirection,
		TotalRain:             r.TotalRain,
		TotalSnow:             r.TotalSnow,
		AvgClouds:             r.AvgClouds,
		AvgVisibility:         r.AvgVisibility,
		SampleCount:           r.SampleCount,
	}
}

// rowFromSummary maps a summary onto a row keyed by city and calendar date.
func rowFromSummary(city string, s weather.DailySummary) SummaryRow {
	return SummaryRow{
		City:            city,
		Date:            weather.DateOf(s.Date),
		AvgTemp:         s.AvgTemp,
		MaxTemp:         s.MaxTemp,
		MinTemp:         s.MinTemp,
		DominantWeather: s.DominantWeather,
		Description:     s.DetailedDescription,
		AvgHumidity:     s.AvgHumidity,
		AvgPressure:     s.AvgPressure,
		AvgWindSpeed:    s.AvgWindSpeed,
		MaxWindSpeed:    s.MaxWindSpeed,
		WindDirection:   s.DominantWindDirection,
		TotalRain:       s.TotalRain,
		TotalSnow:       s.TotalSnow,
		AvgClouds:       s.AvgClouds,
		AvgVisibility:   s.AvgVisibility,
		SampleCount:     s.SampleCount,
	}
}

// AlertLog represents a logged alert event
type AlertLog struct {
	AlertID   string
	Type      string
	City      string
	Kind      string
	Value     float64
	Threshold float64
	Message   string
	Dates     string // comma separated YYYY-MM-DD
	CreatedAt time.Time
}
