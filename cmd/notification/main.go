package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/weather-monitor/internal/notification"
	"github.com/smukkama/weather-monitor/internal/observability"
	"github.com/smukkama/weather-monitor/internal/protocol"
	"github.com/smukkama/weather-monitor/internal/queue"
	"github.com/smukkama/weather-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	if len(cfg.Kafka.Brokers) == 0 {
		logger.Error("KAFKA_BROKERS is required for the notification service")
		os.Exit(1)
	}

	notifier := notification.NewEmailNotifier(&cfg.SMTP, logger)
	if err := notifier.TestConnection(); err != nil {
		logger.Warn("notifications will be logged only", "error", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "notification-group")
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("notification service running", "topic", cfg.Kafka.TopicAlerts)

	for {
		msg, err := consumer.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			logger.Error("failed to consume message", "error", err)
			time.Sleep(time.Second)
			continue
		}

		alert, err := protocol.DecodeAlertNotification(msg.Value)
		if err != nil {
			logger.Warn("failed to decode notification", "offset", msg.Offset, "error", err)
			if err := consumer.Commit(ctx, msg); err != nil {
				logger.Error("failed to commit offset", "error", err)
			}
			continue
		}

		if err := notifier.SendAlertNotification(alert); err != nil {
			// left uncommitted so the group redelivers it after a restart
			logger.Error("failed to send notification", "alert_id", alert.ID, "error", err)
			continue
		}

		if err := consumer.Commit(ctx, msg); err != nil {
			logger.Error("failed to commit offset", "error", err)
		}
	}

	logger.Info("notification service stopped")
}
