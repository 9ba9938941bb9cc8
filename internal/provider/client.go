package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/smukkama/weather-monitor/internal/weather"
)

var (
	errNoAPIKey    = errors.New("openweathermap api key is not configured")
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errCircuitOpen = errors.New("circuit breaker open")
)

// StatusError is returned for a non-2xx response that is the caller's fault,
// such as an unknown city.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	CountryCode string
	Unit        weather.TempUnit
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client fetches current conditions and 5-day/3-hour forecasts from the
// OpenWeatherMap 2.5 API. Each endpoint has its own circuit breaker; a failed
// call is never retried.
type Client struct {
	apiKey   string
	baseURL  string
	country  string
	unit     weather.TempUnit
	http     *http.Client
	current  *gobreaker.CircuitBreaker
	forecast *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	unit := opts.Unit
	if unit == "" {
		unit = weather.Celsius
	}

	return &Client{
		apiKey:   opts.APIKey,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		country:  opts.CountryCode,
		unit:     unit,
		http:     httpClient,
		current:  newBreaker("openweather-current", logger),
		forecast: newBreaker("openweather-forecast", logger),
		logger:   logger,
	}
}

func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// FetchCurrent returns the current conditions for city.
func (c *Client) FetchCurrent(ctx context.Context, city string) (weather.Sample, error) {
	var payload currentPayload
	if err := c.get(ctx, c.current, "weather", city, &payload); err != nil {
		return weather.Sample{}, fmt.Errorf("fetching current weather for %s: %w", city, err)
	}

	sample, err := payload.toSample(city, c.unit)
	if err != nil {
		return weather.Sample{}, fmt.Errorf("parsing current weather for %s: %w", city, err)
	}
	return sample, nil
}

// FetchForecast returns the forecast steps for city in provider order.
func (c *Client) FetchForecast(ctx context.Context, city string) ([]weather.ForecastSample, error) {
	var payload forecastPayload
	if err := c.get(ctx, c.forecast, "forecast", city, &payload); err != nil {
		return nil, fmt.Errorf("fetching forecast for %s: %w", city, err)
	}

	samples, err := payload.toSamples(city, c.unit)
	if err != nil {
		return nil, fmt.Errorf("parsing forecast for %s: %w", city, err)
	}
	return samples, nil
}

func (c *Client) query(city string) url.Values {
	q := city
	if c.country != "" {
		q = city + "," + c.country
	}
	values := url.Values{}
	values.Set("q", q)
	values.Set("appid", c.apiKey)
	values.Set("units", c.unit.ProviderUnits())
	return values
}

func (c *Client) get(ctx context.Context, cb *gobreaker.CircuitBreaker, endpoint, city string, out any) error {
	if c.apiKey == "" {
		return errNoAPIKey
	}

	u := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, c.query(city).Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := cb.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		// Only provider-side failures count against the breaker.
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}, nil
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return err
	}

	c.logger.Debug("provider request", "endpoint", endpoint, "city", city, "duration", time.Since(start))

	switch v := result.(type) {
	case *StatusError:
		return v
	case []byte:
		if err := json.Unmarshal(v, out); err != nil {
			return fmt.Errorf("decoding %s response: %w", endpoint, err)
		}
		return nil
	default:
		return fmt.Errorf("unexpected result type %T from circuit breaker", result)
	}
}
