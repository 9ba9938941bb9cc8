package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/weather-monitor/internal/weather"
)

const currentBody = `{
  "name": "Delhi",
  "dt": 1716300000,
  "weather": [{"main": "Haze", "description": "haze"}],
  "main": {"temp": 36.5, "feels_like": 39.1, "temp_min": 35, "temp_max": 38, "pressure": 1002, "humidity": 30},
  "wind": {"speed": 4.1, "deg": 290},
  "clouds": {"all": 20},
  "visibility": 3000,
  "rain": {"1h": 0.4}
}`

const forecastBody = `{
  "city": {"name": "Delhi"},
  "list": [
    {"dt": 1716303600, "weather": [{"main": "Clear", "description": "clear sky"}],
     "main": {"temp": 36, "humidity": 25}, "wind": {"speed": 10, "deg": 180},
     "clouds": {"all": 0}, "pop": 0.2, "rain": {"3h": 1.5}},
    {"dt": 1716314400, "weather": [{"main": "Rain", "description": "light rain"}],
     "main": {"temp": 31, "humidity": 60}, "wind": {"speed": 5},
     "clouds": {"all": 75}}
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, unit weather.TempUnit, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/",
		CountryCode: "IN",
		Unit:        unit,
		HTTPClient:  srv.Client(),
	}, discardLogger())
}

func TestFetchCurrent(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	c := newTestClient(t, weather.Celsius, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, currentBody)
	})

	s, err := c.FetchCurrent(context.Background(), "Delhi")
	require.NoError(t, err)

	assert.Equal(t, "/weather", gotPath)
	assert.Equal(t, []string{"Delhi,IN"}, gotQuery["q"])
	assert.Equal(t, []string{"test-key"}, gotQuery["appid"])
	assert.Equal(t, []string{"metric"}, gotQuery["units"])

	assert.Equal(t, "Delhi", s.City)
	assert.Equal(t, int64(1716300000), s.Timestamp)
	assert.Equal(t, "Haze", s.Main)
	assert.Equal(t, "haze", s.Description)
	assert.Equal(t, 36.5, s.Temperature)
	assert.Equal(t, 39.1, s.FeelsLike)
	assert.Equal(t, 4.1, s.WindSpeed)
	assert.Equal(t, 290.0, s.WindDirection)
	assert.Equal(t, 20.0, s.Clouds)
	assert.Equal(t, 3000.0, s.Visibility)
	assert.Equal(t, 0.4, s.Rain1h)
	assert.Zero(t, s.Snow1h)
}

func TestFetchCurrent_ImperialConvertsWind(t *testing.T) {
	var units string
	c := newTestClient(t, weather.Fahrenheit, func(w http.ResponseWriter, r *http.Request) {
		units = r.URL.Query().Get("units")
		_, _ = io.WriteString(w, currentBody)
	})

	s, err := c.FetchCurrent(context.Background(), "Delhi")
	require.NoError(t, err)

	assert.Equal(t, "imperial", units)
	assert.InDelta(t, 4.1*0.44704, s.WindSpeed, 1e-9)
	assert.Equal(t, 36.5, s.Temperature)
}

func TestFetchCurrent_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no name", `{"dt": 1, "weather": [{"main": "Clear"}], "main": {"temp": 1}}`},
		{"no dt", `{"name": "Delhi", "weather": [{"main": "Clear"}], "main": {"temp": 1}}`},
		{"no weather", `{"name": "Delhi", "dt": 1, "weather": [], "main": {"temp": 1}}`},
		{"no main", `{"name": "Delhi", "dt": 1, "weather": [{"main": "Clear"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, weather.Celsius, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.FetchCurrent(context.Background(), "Delhi")
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestFetchCurrent_NotFound(t *testing.T) {
	c := newTestClient(t, weather.Celsius, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"cod":"404","message":"city not found"}`)
	})

	_, err := c.FetchCurrent(context.Background(), "Atlantis")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetchCurrent_NoAPIKey(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:0"}, discardLogger())
	_, err := c.FetchCurrent(context.Background(), "Delhi")
	assert.ErrorIs(t, err, errNoAPIKey)
}

func TestFetchCurrent_BreakerOpensWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, weather.Celsius, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 3; i++ {
		_, err := c.FetchCurrent(context.Background(), "Delhi")
		assert.ErrorIs(t, err, errServerError)
	}
	require.Equal(t, int32(3), calls.Load())

	_, err := c.FetchCurrent(context.Background(), "Delhi")
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchForecast(t *testing.T) {
	var gotPath string
	c := newTestClient(t, weather.Celsius, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, forecastBody)
	})

	samples, err := c.FetchForecast(context.Background(), "Delhi")
	require.NoError(t, err)

	assert.Equal(t, "/forecast", gotPath)
	require.Len(t, samples, 2)
	assert.Equal(t, "Delhi", samples[0].City)
	assert.Equal(t, int64(1716303600), samples[0].Timestamp)
	assert.Equal(t, 36.0, samples[0].Temperature)
	assert.Equal(t, 0.2, samples[0].Pop)
	assert.Equal(t, 1.5, samples[0].Rain3h)
	assert.Equal(t, "Rain", samples[1].Main)
	assert.Zero(t, samples[1].Pop)
	assert.Zero(t, samples[1].WindDirection)
}

func TestFetchForecast_MissingFields(t *testing.T) {
	c := newTestClient(t, weather.Celsius, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"city": {"name": "Delhi"}, "list": [{"dt": 1, "weather": [{"main": "Clear"}]}]}`)
	})

	_, err := c.FetchForecast(context.Background(), "Delhi")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestFetchCurrent_ForecastBreakerIndependent(t *testing.T) {
	c := newTestClient(t, weather.Celsius, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/forecast" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, currentBody)
	})

	for i := 0; i < 4; i++ {
		_, _ = c.FetchForecast(context.Background(), "Delhi")
	}

	_, err := c.FetchCurrent(context.Background(), "Delhi")
	assert.NoError(t, err)
}
