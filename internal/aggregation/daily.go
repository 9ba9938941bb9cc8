package aggregation

import (
	"time"

	"github.com/smukkama/weather-monitor/internal/store"
	"github.com/smukkama/weather-monitor/internal/weather"
)

// SampleWindow is the read side of the sample store used for summaries.
type SampleWindow interface {
	Window(city string, pred store.Predicate) []weather.Sample
}

// DailyAggregator computes daily summaries from buffered samples.
type DailyAggregator struct {
	samples SampleWindow
}

// NewDailyAggregator creates a new daily aggregator
func NewDailyAggregator(samples SampleWindow) *DailyAggregator {
	return &DailyAggregator{samples: samples}
}

// Summarize builds the summary of a city's samples on the UTC day of date.
// It reports false when there are no samples for that city and day.
func (d *DailyAggregator) Summarize(city string, date time.Time) (weather.DailySummary, bool) {
	day := weather.DateOf(date)
	samples := d.samples.Window(city, store.OnDay(day))
	if len(samples) == 0 {
		return weather.DailySummary{}, false
	}
	return SummarizeSamples(city, day, samples), true
}

// SummarizeSamples aggregates samples that are already known to fall on day.
// Missing readings arrive as zeros and are averaged in like any other value.
func SummarizeSamples(city string, day time.Time, samples []weather.Sample) weather.DailySummary {
	var temp, humidity, pressure, wind, clouds, visibility series
	var rain, snow float64
	mains := make([]string, 0, len(samples))
	descriptions := make([]string, 0, len(samples))
	directions := make([]float64, 0, len(samples))

	for _, s := range samples {
		temp.add(s.Temperature)
		humidity.add(s.Humidity)
		pressure.add(s.Pressure)
		wind.add(s.WindSpeed)
		clouds.add(s.Clouds)
		visibility.add(s.Visibility)
		rain += s.Rain1h
		snow += s.Snow1h
		mains = append(mains, s.Main)
		descriptions = append(descriptions, s.Description)
		directions = append(directions, s.WindDirection)
	}

	return weather.DailySummary{
		Date:                  weather.DateOf(day),
		City:                  city,
		AvgTemp:               temp.mean(),
		MaxTemp:               temp.max,
		MinTemp:               temp.min,
		DominantWeather:       Mode(mains),
		DetailedDescription:   Mode(descriptions),
		AvgHumidity:           humidity.mean(),
		AvgPressure:           pressure.mean(),
		AvgWindSpeed:          wind.mean(),
		MaxWindSpeed:          wind.max,
		DominantWindDirection: DominantDirection(directions),
		TotalRain:             rain,
		TotalSnow:             snow,
		AvgClouds:             clouds.mean(),
		AvgVisibility:         visibility.mean(),
		SampleCount:           len(samples),
	}
}
