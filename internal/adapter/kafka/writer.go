package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/agmet-derive/internal/config"
	"github.com/couchcryptid/agmet-derive/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used for publication.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces updated daily summaries to a Kafka topic.
// It implements pipeline.SummaryPublisher.
type Writer struct {
	writer  messageWriter
	topic   string
	logger  *slog.Logger
	timeout time.Duration
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, topic: cfg.KafkaSinkTopic, logger: logger, timeout: cfg.PublishTimeout}
}

// PublishDaily serializes and publishes the summaries in a single
// WriteMessages call, retrying with exponential backoff until the publish
// timeout. Summaries for the same day hash to the same partition.
func (w *Writer) PublishDaily(ctx context.Context, summaries []domain.DailySummary) error {
	if len(summaries) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(summaries))
	for i := range summaries {
		msg, err := serializeToMessage(summaries[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	bo := backoff.NewExponentialBackOff()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
		bo.MaxElapsedTime = w.timeout
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := w.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		w.logger.Warn("kafka write failed, retrying", "topic", w.topic, "attempt", attempt, "error", err)
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), w.topic, err)
	}
	w.logger.Debug("published daily summaries", "topic", w.topic, "count", len(msgs), "attempts", attempt)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a DailySummary into a Kafka message keyed by day.
func serializeToMessage(summary domain.DailySummary) (kafkago.Message, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize daily summary %s: %w", summary.Key(), err)
	}
	return kafkago.Message{
		Key:   []byte(summary.Key().String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "year", Value: []byte(summary.Year)},
			{Key: "doy", Value: []byte(summary.DOY)},
			{Key: "processed_at", Value: []byte(summary.ProcessedAt.Format(time.RFC3339))},
			{Key: "run_id", Value: []byte(summary.RunID)},
		},
	}, nil
}
