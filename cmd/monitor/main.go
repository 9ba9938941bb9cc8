package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/smukkama/weather-monitor/internal/aggregation"
	"github.com/smukkama/weather-monitor/internal/alarming"
	"github.com/smukkama/weather-monitor/internal/api"
	"github.com/smukkama/weather-monitor/internal/database"
	"github.com/smukkama/weather-monitor/internal/monitor"
	"github.com/smukkama/weather-monitor/internal/observability"
	"github.com/smukkama/weather-monitor/internal/provider"
	"github.com/smukkama/weather-monitor/internal/queue"
	"github.com/smukkama/weather-monitor/internal/store"
	"github.com/smukkama/weather-monitor/internal/timer"
	"github.com/smukkama/weather-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	for _, w := range cfg.Monitor.Warnings() {
		logger.Warn("suspicious configuration", "detail", w)
	}
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mc := cfg.Monitor
	schedule, err := cron.ParseStandard(mc.ForecastSchedule)
	if err != nil {
		logger.Error("invalid forecast schedule", "error", err)
		os.Exit(1)
	}

	source := provider.NewClient(provider.Options{
		APIKey:      cfg.OpenWeather.APIKey,
		BaseURL:     cfg.OpenWeather.BaseURL,
		CountryCode: mc.CountryCode,
		Unit:        mc.TempUnit,
		Timeout:     cfg.OpenWeather.Timeout,
	}, logger)

	samples := store.NewSampleStore(clock)
	forecasts := store.NewForecastStore()
	debouncer := alarming.NewDebouncer(mc.TempThreshold, mc.ConsecutiveThreshold, mc.TempUnit)
	forecaster := aggregation.NewForecastAggregator(aggregation.AlertRules{
		TempThreshold:    mc.TempThreshold,
		RainThresholdMM:  mc.RainThresholdMM,
		WindThresholdMPS: mc.WindThresholdMPS,
		Unit:             mc.TempUnit,
	})

	deps := monitor.Deps{
		Source:     source,
		Samples:    samples,
		Forecasts:  forecasts,
		Debouncer:  debouncer,
		Forecaster: forecaster,
		Metrics:    metrics,
		Logger:     logger,
		Clock:      clock,
	}

	// Persistence (feature-flagged via DB_ENABLED).
	var summaries api.SummaryReader
	if cfg.Database.Enabled {
		db, err := database.Connect(ctx, cfg.Database.ConnectionString())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		ran, err := db.RunMigrations(ctx, getMigrationsDir())
		if err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database", "migrations", ran)
		deps.Sink = db
		summaries = db
	} else {
		logger.Info("database persistence disabled")
	}

	// Alert counter checkpoints (enabled when REDIS_ADDR is set).
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, alert counters start from zero", "error", err)
		} else {
			deps.Checkpointer = alarming.NewStateManager(redisClient, cfg.Redis.StateTTL, clock)
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	// Alert stream (enabled when KAFKA_BROKERS is set).
	if len(cfg.Kafka.Brokers) > 0 {
		if err := queue.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, 3, 1); err != nil {
			logger.Warn("could not ensure alert topic", "topic", cfg.Kafka.TopicAlerts, "error", err)
		}
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()
		deps.Publisher = producer
		logger.Info("alert publishing enabled", "topic", cfg.Kafka.TopicAlerts)
	}

	m := monitor.New(monitor.Config{
		Cities:           mc.Cities,
		Interval:         mc.Interval(),
		Retention:        mc.Retention(),
		ForecastSchedule: schedule,
		Unit:             mc.TempUnit,
	}, deps)

	if err := m.Restore(ctx); err != nil {
		logger.Warn("could not restore alert counters", "error", err)
	}

	app := api.NewApp()
	api.RegisterRoutes(app, &api.Handlers{
		Samples:   samples,
		Forecasts: forecasts,
		Daily:     m.Daily(),
		Summaries: summaries,
		Status:    m,
		Clock:     clock,
	})

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := app.Listen(cfg.HTTP.Addr); err != nil {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("monitor started",
		"cities", mc.Cities,
		"interval", mc.Interval(),
		"unit", mc.TempUnit,
		"temp_threshold", mc.TempThreshold,
		"consecutive", mc.ConsecutiveThreshold,
		"forecast_schedule", mc.ForecastSchedule,
	)

	if err := m.Run(ctx, timer.NewTimerManager(clock)); err != nil {
		logger.Error("monitor stopped with error", "error", err)
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func getMigrationsDir() string {
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		return dir
	}
	return "migrations"
}
