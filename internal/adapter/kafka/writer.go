package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/dam-data-etl/internal/config"
	"github.com/couchcryptid/dam-data-etl/internal/domain"
)

// Writer publishes realtime snapshots to a Kafka topic, one message per dam.
// It implements realtime.Sink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs.
func (w *Writer) Name() string { return "kafka" }

// Write serializes every snapshot entry and publishes them in a single
// WriteMessages call. Messages are keyed by dam id so a dam's readings always
// land on the same partition.
func (w *Writer) Write(ctx context.Context, runID string, snap domain.Snapshot) error {
	if len(snap.IDs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(snap.IDs))
	for _, id := range snap.IDs {
		msg, err := serializeToMessage(runID, snap.GeneratedAt, id, snap.Entries[id])
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	w.logger.Debug("snapshot published", "topic", w.writer.Topic, "messages", len(msgs), "run_id", runID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// Reading is the message value published for one dam.
type Reading struct {
	DamID string `json:"dam_id"`
	domain.SnapshotEntry
}

// serializeToMessage marshals one snapshot entry into a Kafka message.
func serializeToMessage(runID string, generatedAt time.Time, damID string, entry domain.SnapshotEntry) (kafkago.Message, error) {
	data, err := json.Marshal(Reading{DamID: damID, SnapshotEntry: entry})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading %s: %w", damID, err)
	}
	return kafkago.Message{
		Key:   []byte(damID),
		Value: data,
		Time:  generatedAt,
		Headers: []kafkago.Header{
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
