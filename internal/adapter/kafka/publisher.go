package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/railsafe/milepost-linkage/internal/config"
	"github.com/railsafe/milepost-linkage/internal/domain"
)

// Publisher produces enriched incidents to a Kafka topic for downstream
// consumers (dashboards, warehouse loaders).
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured enriched topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishBatch serializes and publishes enriched incidents in a single
// WriteMessages call. Keying by incident id keeps reruns compacting to
// the latest enrichment of each incident.
func (p *Publisher) PublishBatch(ctx context.Context, records []domain.EnrichedIncident) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish enriched incidents: %w", err)
	}
	p.logger.Info("enriched incidents published", "count", len(records))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an enriched incident into a Kafka message.
func serializeToMessage(rec domain.EnrichedIncident) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize enriched incident %s: %w", rec.Incident.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Incident.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "match_method", Value: []byte(rec.Match.Method)},
			{Key: "processed_at", Value: []byte(rec.Match.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
