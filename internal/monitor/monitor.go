package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"

	"github.com/smukkama/weather-monitor/internal/aggregation"
	"github.com/smukkama/weather-monitor/internal/alarming"
	"github.com/smukkama/weather-monitor/internal/observability"
	"github.com/smukkama/weather-monitor/internal/protocol"
	"github.com/smukkama/weather-monitor/internal/store"
	"github.com/smukkama/weather-monitor/internal/timer"
	"github.com/smukkama/weather-monitor/internal/weather"
)

const sweepTaskID = "sweep"

// Source supplies normalized samples for a city.
type Source interface {
	FetchCurrent(ctx context.Context, city string) (weather.Sample, error)
	FetchForecast(ctx context.Context, city string) ([]weather.ForecastSample, error)
}

// SummarySink persists daily summaries keyed by (city, date).
type SummarySink interface {
	UpsertDailySummary(ctx context.Context, city string, summary weather.DailySummary) error
}

// AlertPublisher forwards fired alerts to downstream consumers.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *protocol.AlertNotification) error
}

// StateCheckpointer saves and restores debouncer counters.
type StateCheckpointer interface {
	SaveStates(ctx context.Context, states []alarming.State) error
	LoadStates(ctx context.Context) ([]alarming.State, error)
}

// Config holds the loop settings.
type Config struct {
	Cities           []string
	Interval         time.Duration
	Retention        time.Duration
	ForecastSchedule cron.Schedule
	Unit             weather.TempUnit
}

// Deps are the collaborators of a Monitor. Sink, Publisher and Checkpointer
// are optional; a nil one skips its stage.
type Deps struct {
	Source       Source
	Samples      *store.SampleStore
	Forecasts    *store.ForecastStore
	Debouncer    *alarming.Debouncer
	Forecaster   *aggregation.ForecastAggregator
	Sink         SummarySink
	Publisher    AlertPublisher
	Checkpointer StateCheckpointer
	Metrics      *observability.Metrics
	Logger       *slog.Logger
	Clock        clockwork.Clock
}

// SweepReport describes one pass over all cities.
type SweepReport struct {
	ID               string        `json:"id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Cities           int           `json:"cities"`
	Ingested         int           `json:"ingested"`
	Failed           []string      `json:"failed,omitempty"`
	Alerts           int           `json:"alerts"`
	ForecastsFetched int           `json:"forecasts_fetched"`
	Evicted          int           `json:"evicted"`
	Interrupted      bool          `json:"interrupted,omitempty"`
}

// Monitor polls every configured city once per sweep. Cities are processed one
// after another and a failure in one city never stops the others.
type Monitor struct {
	deps Deps
	opt  Config

	daily *aggregation.DailyAggregator

	mu           sync.Mutex
	nextForecast time.Time
	last         SweepReport
}

// New creates a monitor. A nil clock uses the real clock.
func New(opt Config, deps Deps) *Monitor {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Forecasts == nil {
		deps.Forecasts = store.NewForecastStore()
	}
	return &Monitor{
		deps:  deps,
		opt:   opt,
		daily: aggregation.NewDailyAggregator(deps.Samples),
	}
}

// Daily returns the aggregator reading from the monitor's sample store.
func (m *Monitor) Daily() *aggregation.DailyAggregator {
	return m.daily
}

// LastSweep returns the report of the most recent completed sweep.
func (m *Monitor) LastSweep() SweepReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Restore loads checkpointed debouncer counters. Without a checkpointer it does nothing.
func (m *Monitor) Restore(ctx context.Context) error {
	if m.deps.Checkpointer == nil {
		return nil
	}
	states, err := m.deps.Checkpointer.LoadStates(ctx)
	if err != nil {
		return fmt.Errorf("loading alert states: %w", err)
	}
	m.deps.Debouncer.Restore(states)
	m.deps.Logger.Info("restored alert states", "count", len(states))
	return nil
}

// Run sweeps immediately and then once per interval, measured from the end of
// the previous sweep, until ctx is cancelled. Sweeps run on tm, which executes
// callbacks one at a time, so two sweeps never overlap.
func (m *Monitor) Run(ctx context.Context, tm *timer.TimerManager) error {
	var sweep func()
	sweep = func() {
		m.Sweep(ctx)
		if ctx.Err() != nil {
			return
		}
		if err := tm.Schedule(sweepTaskID, m.deps.Clock.Now().Add(m.opt.Interval), sweep); err != nil {
			m.deps.Logger.Error("failed to schedule next sweep", "error", err)
		}
	}

	if err := tm.Schedule(sweepTaskID, m.deps.Clock.Now(), sweep); err != nil {
		return err
	}
	tm.Start()

	<-ctx.Done()
	tm.Stop()
	return nil
}

// Sweep processes every city once: current conditions, daily summary, alerting,
// and the forecast when the forecast schedule is due. It then evicts samples
// past retention and checkpoints the alert counters.
func (m *Monitor) Sweep(ctx context.Context) SweepReport {
	start := m.deps.Clock.Now()
	id := ulid.MustNew(ulid.Timestamp(start), ulid.DefaultEntropy()).String()
	logger := m.deps.Logger.With("sweep_id", id)

	report := SweepReport{ID: id, StartedAt: start.UTC()}
	forecastDue := m.forecastDue(start)

	// Cancellation is honored between cities; a city already started runs to completion.
	cityCtx := context.WithoutCancel(ctx)

	for _, city := range m.opt.Cities {
		if ctx.Err() != nil {
			report.Interrupted = true
			logger.Info("sweep interrupted", "remaining_from", city)
			break
		}
		report.Cities++

		alerts, err := m.processCity(cityCtx, logger.With("city", city), city)
		report.Alerts += alerts
		if err != nil {
			report.Failed = append(report.Failed, city)
		} else {
			report.Ingested++
		}

		if forecastDue {
			alerts, err := m.processForecast(cityCtx, logger.With("city", city), city)
			report.Alerts += alerts
			if err == nil {
				report.ForecastsFetched++
			}
		}
	}

	report.Evicted = m.deps.Samples.EvictOlderThan(m.opt.Retention)
	m.deps.Metrics.SamplesEvicted.Add(float64(report.Evicted))
	m.deps.Metrics.SamplesBuffered.Set(float64(m.deps.Samples.Total()))

	m.checkpoint(cityCtx, logger)

	report.Duration = m.deps.Clock.Since(start)
	m.deps.Metrics.SweepDuration.Observe(report.Duration.Seconds())

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()

	logger.Info("sweep complete",
		"cities", report.Cities,
		"ingested", report.Ingested,
		"failed", len(report.Failed),
		"alerts", report.Alerts,
		"evicted", report.Evicted,
		"duration", report.Duration,
	)
	return report
}

// forecastDue reports whether forecasts should be fetched in the sweep starting
// at now and advances the schedule when they are. The first sweep is always due.
func (m *Monitor) forecastDue(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.nextForecast.IsZero() && now.Before(m.nextForecast) {
		return false
	}
	if m.opt.ForecastSchedule != nil {
		m.nextForecast = m.opt.ForecastSchedule.Next(now)
	} else {
		m.nextForecast = now.Add(time.Hour)
	}
	return true
}

// processCity runs fetch, store, summarize, persist and alert for one city.
// It returns the number of alerts fired and an error only when no sample could
// be ingested. Persistence and publish failures are logged and do not stop
// later stages.
func (m *Monitor) processCity(ctx context.Context, logger *slog.Logger, city string) (int, error) {
	sample, err := m.deps.Source.FetchCurrent(ctx, city)
	if err != nil {
		m.deps.Metrics.FetchErrors.WithLabelValues("current").Inc()
		logger.Error("failed to fetch current weather", "error", err)
		return 0, err
	}

	if err := m.deps.Samples.Append(sample); err != nil {
		if errors.Is(err, store.ErrMissingIdentity) {
			m.deps.Metrics.SamplesDropped.Inc()
		}
		logger.Error("dropping sample", "error", err)
		return 0, err
	}
	m.deps.Metrics.SamplesIngested.Inc()

	symbol := m.opt.Unit.Symbol()
	logger.Info("current conditions",
		"temperature", fmt.Sprintf("%.1f%s", sample.Temperature, symbol),
		"feels_like", fmt.Sprintf("%.1f%s", sample.FeelsLike, symbol),
		"description", sample.Description,
		"humidity", sample.Humidity,
		"wind_speed_mps", sample.WindSpeed,
	)

	m.summarize(ctx, logger, city)

	return m.alert(ctx, logger, city, sample), nil
}

func (m *Monitor) summarize(ctx context.Context, logger *slog.Logger, city string) {
	today := weather.DateOf(m.deps.Clock.Now())
	summary, ok := m.daily.Summarize(city, today)
	if !ok {
		logger.Debug("no samples for today", "date", today.Format(weather.DateLayout))
		return
	}

	if m.deps.Sink == nil {
		return
	}
	if err := m.deps.Sink.UpsertDailySummary(ctx, city, summary); err != nil {
		m.deps.Metrics.PersistErrors.Inc()
		logger.Error("failed to save daily summary", "date", today.Format(weather.DateLayout), "error", err)
		return
	}
	m.deps.Metrics.SummariesPersisted.Inc()
}

func (m *Monitor) alert(ctx context.Context, logger *slog.Logger, city string, sample weather.Sample) int {
	if !m.deps.Debouncer.Observe(city, sample.Temperature) {
		return 0
	}

	message := m.deps.Debouncer.FormatAlert(city, sample.Temperature)
	logger.Warn(message)
	m.deps.Metrics.AlertsFired.WithLabelValues(string(weather.AlertHighTemperature)).Inc()

	rule, _ := m.deps.Debouncer.Rule(weather.AlertHighTemperature)
	m.publish(ctx, logger, protocol.NewTemperatureAlert(city, sample.Temperature, rule.Threshold, m.opt.Unit, message, m.deps.Clock.Now()))
	return 1
}

func (m *Monitor) processForecast(ctx context.Context, logger *slog.Logger, city string) (int, error) {
	samples, err := m.deps.Source.FetchForecast(ctx, city)
	if err != nil {
		m.deps.Metrics.FetchErrors.WithLabelValues("forecast").Inc()
		logger.Error("failed to fetch forecast", "error", err)
		return 0, err
	}

	now := m.deps.Clock.Now()
	days := m.deps.Forecaster.GroupByDay(city, samples)
	alerts := m.deps.Forecaster.DetectAlerts(samples)

	m.deps.Forecasts.Put(store.Forecast{
		City:      city,
		FetchedAt: now.UTC(),
		Days:      days,
		Alerts:    alerts,
		Samples:   samples,
	})
	logger.Info("forecast updated", "days", len(days), "alerts", len(alerts))

	rules := m.deps.Forecaster.Rules()
	for _, a := range alerts {
		logger.Warn("forecast alert", "kind", a.Kind, "message", a.Message)
		m.deps.Metrics.AlertsFired.WithLabelValues(string(a.Kind)).Inc()
		m.publish(ctx, logger, protocol.NewForecastAlert(city, a, rules.Threshold(a.Kind), now))
	}
	return len(alerts), nil
}

func (m *Monitor) publish(ctx context.Context, logger *slog.Logger, alert *protocol.AlertNotification) {
	if m.deps.Publisher == nil {
		return
	}
	if err := m.deps.Publisher.PublishAlert(ctx, alert); err != nil {
		logger.Error("failed to publish alert", "alert_id", alert.ID, "error", err)
	}
}

// checkpoint saves every city's counters, zeros included so cleared runs are
// removed from the checkpoint store.
func (m *Monitor) checkpoint(ctx context.Context, logger *slog.Logger) {
	if m.deps.Checkpointer == nil {
		return
	}
	var states []alarming.State
	for _, city := range m.opt.Cities {
		states = append(states, m.deps.Debouncer.CityStates(city)...)
	}
	if err := m.deps.Checkpointer.SaveStates(ctx, states); err != nil {
		logger.Error("failed to checkpoint alert states", "error", err)
	}
}
