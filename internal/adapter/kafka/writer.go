package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/transit-incident-etl/internal/config"
	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces vehicle pings to the ping topic.
// It implements jobs.PingPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured ping topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaPingTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and sends pings in a single WriteMessages call. Messages
// are keyed by vehicle id so each vehicle's pings stay ordered on one
// partition.
func (w *Writer) Publish(ctx context.Context, pings []domain.VehiclePing) error {
	if len(pings) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(pings))
	for i := range pings {
		msg, err := serializeToMessage(pings[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish pings: %w", err)
	}
	w.logger.Debug("pings published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a VehiclePing into a Kafka message.
func serializeToMessage(ping domain.VehiclePing) (kafkago.Message, error) {
	data, err := json.Marshal(ping)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize vehicle ping: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ping.VehicleID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "vehicle_id", Value: []byte(ping.VehicleID)},
			{Key: "timestamp", Value: []byte(ping.Timestamp)},
		},
	}, nil
}
