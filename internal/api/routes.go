package api

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smukkama/weather-monitor/internal/aggregation"
	"github.com/smukkama/weather-monitor/internal/database"
	"github.com/smukkama/weather-monitor/internal/monitor"
	"github.com/smukkama/weather-monitor/internal/store"
	"github.com/smukkama/weather-monitor/internal/weather"
)

var validate = validator.New()

const defaultRangeDays = 7

// SummaryReader serves persisted daily summaries.
type SummaryReader interface {
	GetDailySummaries(ctx context.Context, from, to time.Time) ([]weather.DailySummary, error)
	GetCitySummaries(ctx context.Context, city string, from, to time.Time) ([]weather.DailySummary, error)
	GetLatestSummary(ctx context.Context, city string) (weather.DailySummary, error)
}

// SweepStatus reports the outcome of the latest sweep.
type SweepStatus interface {
	LastSweep() monitor.SweepReport
}

// Handlers holds the read-only views the API serves. Summaries may be nil when
// persistence is disabled; those routes then answer 503.
type Handlers struct {
	Samples   *store.SampleStore
	Forecasts *store.ForecastStore
	Daily     *aggregation.DailyAggregator
	Summaries SummaryReader
	Status    SweepStatus
	Clock     clockwork.Clock
}

// NewApp creates the Fiber app with JSON error responses.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-monitor",
		DisableStartupMessage: true,
		UnescapePath:          true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
	app.Use(recover.New())
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h *Handlers) {
	if h.Clock == nil {
		h.Clock = clockwork.NewRealClock()
	}

	app.Get("/health", h.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")
	v1.Get("/samples/recent", h.recentSamples)
	v1.Get("/summaries", h.summaries)
	v1.Get("/cities/:city/summaries", h.citySummaries)
	v1.Get("/cities/:city/summaries/latest", h.latestSummary)
	v1.Get("/cities/:city/summary/today", h.todaySummary)
	v1.Get("/cities/:city/forecast", h.forecast)
}

func (h *Handlers) health(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}
	if h.Samples != nil {
		buffered := make(map[string]int)
		for _, city := range h.Samples.Cities() {
			buffered[city] = h.Samples.Len(city)
		}
		resp["buffered"] = buffered
	}
	if h.Status != nil {
		if last := h.Status.LastSweep(); last.ID != "" {
			resp["last_sweep"] = last
		}
	}
	return c.JSON(resp)
}

// recentQuery holds query parameters for the recent samples feed.
type recentQuery struct {
	Hours int `validate:"min=1,max=168"`
}

func (h *Handlers) recentSamples(c *fiber.Ctx) error {
	q := recentQuery{Hours: c.QueryInt("hours", 24)}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	window := time.Duration(q.Hours) * time.Hour
	return c.JSON(fiber.Map{
		"hours":   q.Hours,
		"samples": h.Samples.Recent(window),
	})
}

// rangeQuery holds an inclusive date range. Both ends are optional and default
// to the last seven days.
type rangeQuery struct {
	From string `validate:"omitempty,datetime=2006-01-02"`
	To   string `validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handlers) parseRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	q := rangeQuery{From: c.Query("from"), To: c.Query("to")}
	if err := validate.Struct(q); err != nil {
		return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	to := weather.DateOf(h.Clock.Now())
	if q.To != "" {
		to, _ = time.Parse(weather.DateLayout, q.To)
	}
	from := to.AddDate(0, 0, -(defaultRangeDays - 1))
	if q.From != "" {
		from, _ = time.Parse(weather.DateLayout, q.From)
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "to must not be before from")
	}
	return from, to, nil
}

func (h *Handlers) summaryReader() (SummaryReader, error) {
	if h.Summaries == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "summary persistence is disabled")
	}
	return h.Summaries, nil
}

func (h *Handlers) summaries(c *fiber.Ctx) error {
	reader, err := h.summaryReader()
	if err != nil {
		return err
	}
	from, to, err := h.parseRange(c)
	if err != nil {
		return err
	}

	summaries, err := reader.GetDailySummaries(c.UserContext(), from, to)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch summaries")
	}
	return c.JSON(fiber.Map{
		"from":      from.Format(weather.DateLayout),
		"to":        to.Format(weather.DateLayout),
		"summaries": summaries,
	})
}

func (h *Handlers) citySummaries(c *fiber.Ctx) error {
	reader, err := h.summaryReader()
	if err != nil {
		return err
	}
	from, to, err := h.parseRange(c)
	if err != nil {
		return err
	}

	city := c.Params("city")
	summaries, err := reader.GetCitySummaries(c.UserContext(), city, from, to)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch summaries")
	}
	return c.JSON(fiber.Map{
		"city":      city,
		"from":      from.Format(weather.DateLayout),
		"to":        to.Format(weather.DateLayout),
		"summaries": summaries,
	})
}

func (h *Handlers) latestSummary(c *fiber.Ctx) error {
	reader, err := h.summaryReader()
	if err != nil {
		return err
	}

	summary, err := reader.GetLatestSummary(c.UserContext(), c.Params("city"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no summary for requested city")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch summary")
	}
	return c.JSON(summary)
}

func (h *Handlers) todaySummary(c *fiber.Ctx) error {
	summary, ok := h.Daily.Summarize(c.Params("city"), h.Clock.Now())
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no samples for requested city today")
	}
	return c.JSON(summary)
}

func (h *Handlers) forecast(c *fiber.Ctx) error {
	fc, ok := h.Forecasts.Get(c.Params("city"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no forecast for requested city")
	}
	return c.JSON(fc)
}
