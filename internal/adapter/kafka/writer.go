// Package kafka publishes manifest refresh events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-radar/internal/config"
	"github.com/couchcryptid/storm-radar/internal/domain"
)

// Writer produces manifest events to the configured topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the manifest topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes events in a single WriteMessages call. Messages are
// keyed by provider id so each provider's history stays on one partition.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.ManifestEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write manifest events: %w", err)
	}
	w.logger.Debug("manifest events published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(event domain.ManifestEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize manifest event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ProviderID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "provider_id", Value: []byte(event.ProviderID)},
			{Key: "fetched_at", Value: []byte(event.FetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
