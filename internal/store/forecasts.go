package store

import (
	"sync"
	"time"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// Forecast is the latest processed forecast for a city.
type Forecast struct {
	City      string                         `json:"city"`
	FetchedAt time.Time                      `json:"fetched_at"`
	Days      []weather.ForecastDailySummary `json:"days"`
	Alerts    []weather.ForecastAlert        `json:"alerts"`
	Samples   []weather.ForecastSample       `json:"samples,omitempty"`
}

// ForecastStore keeps only the most recent forecast per city.
type ForecastStore struct {
	mu     sync.RWMutex
	byCity map[string]Forecast
}

func NewForecastStore() *ForecastStore {
	return &ForecastStore{byCity: make(map[string]Forecast)}
}

// Put replaces the city's forecast.
func (f *ForecastStore) Put(fc Forecast) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byCity[fc.City] = fc
}

// Get returns the city's latest forecast.
func (f *ForecastStore) Get(city string) (Forecast, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fc, ok := f.byCity[city]
	return fc, ok
}
