package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/weather-monitor/internal/database"
	"github.com/smukkama/weather-monitor/internal/protocol"
)

// MessageReader is the consuming side of a Kafka topic.
type MessageReader interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// AlertLogStore persists alert events.
type AlertLogStore interface {
	InsertAlertLogs(ctx context.Context, logs []database.AlertLog) error
}

// BatchWriter consumes alert notifications and batch-writes them to alerts_log.
type BatchWriter struct {
	reader        MessageReader
	store         AlertLogStore
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	wg            sync.WaitGroup
	cancel        context.CancelFunc
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(reader MessageReader, store AlertLogStore, batchSize int, flushInterval time.Duration, logger *slog.Logger) *BatchWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchWriter{
		reader:        reader,
		store:         store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// Start begins consuming and writing to the database
func (bw *BatchWriter) Start(ctx context.Context) {
	ctx, bw.cancel = context.WithCancel(ctx)
	msgCh := make(chan kafka.Message, bw.batchSize)

	bw.wg.Add(2)
	go bw.consume(ctx, msgCh)
	go bw.run(ctx, msgCh)
}

// Stop flushes what is buffered and waits for the writer to exit.
func (bw *BatchWriter) Stop() {
	if bw.cancel != nil {
		bw.cancel()
	}
	bw.wg.Wait()
}

func (bw *BatchWriter) consume(ctx context.Context, out chan<- kafka.Message) {
	defer bw.wg.Done()
	defer close(out)

	for {
		msg, err := bw.reader.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			bw.logger.Error("consumer error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (bw *BatchWriter) run(ctx context.Context, in <-chan kafka.Message) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-in:
			if !ok {
				// consumer stopped; flush with a fresh context since ctx is done
				flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				bw.flush(flushCtx, batch)
				cancel()
				return
			}
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.flush(ctx, batch)
				batch = nil
			}

		case <-ticker.C:
			if len(batch) > 0 {
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

// flush decodes and stores a batch, then commits it. Undecodable messages are
// logged and committed so they do not block the partition. A failed insert
// leaves the batch uncommitted for redelivery.
func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) int {
	if len(batch) == 0 {
		return 0
	}

	logs := make([]database.AlertLog, 0, len(batch))
	for _, msg := range batch {
		alert, err := protocol.DecodeAlertNotification(msg.Value)
		if err != nil {
			bw.logger.Warn("skipping undecodable alert", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		logs = append(logs, AlertLogFromNotification(alert))
	}

	if err := bw.store.InsertAlertLogs(ctx, logs); err != nil {
		bw.logger.Error("failed to write alert batch", "size", len(logs), "error", err)
		return 0
	}

	if err := bw.reader.Commit(ctx, batch...); err != nil && !errors.Is(err, context.Canceled) {
		bw.logger.Error("failed to commit offsets", "error", err)
	}

	bw.logger.Info("flushed alert batch", "written", len(logs), "consumed", len(batch))
	return len(logs)
}

// AlertLogFromNotification maps a notification onto an alerts_log row.
func AlertLogFromNotification(a *protocol.AlertNotification) database.AlertLog {
	return database.AlertLog{
		AlertID:   a.ID,
		Type:      a.Type,
		City:      a.City,
		Kind:      string(a.Kind),
		Value:     a.Value,
		Threshold: a.Threshold,
		Message:   a.Message,
		Dates:     strings.Join(a.Dates, ","),
		CreatedAt: a.CreatedAt,
	}
}
