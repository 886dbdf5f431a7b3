package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/river-conditions-service/internal/config"
	"github.com/couchcryptid/river-conditions-service/internal/domain"
)

// Writer publishes ranked condition batches to a Kafka topic.
// It implements feed.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured conditions topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishBatch writes one message per record in rank order, in a single
// WriteMessages call. Records of the same river always land on the same
// partition because the key is the river id.
func (w *Writer) PublishBatch(ctx context.Context, batch domain.ConditionBatch) error {
	if len(batch.Records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(batch.Records))
	for i := range batch.Records {
		msg, err := serializeToMessage(batch.ID, i+1, batch.Records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish batch %s: %w", batch.ID, err)
	}
	w.logger.Debug("batch published", "batch_id", batch.ID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ConditionRecord into a Kafka message.
func serializeToMessage(batchID string, rank int, record domain.ConditionRecord) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize condition record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(record.ID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "batch_id", Value: []byte(batchID)},
			{Key: "rank", Value: []byte(strconv.Itoa(rank))},
			{Key: "updated_at", Value: []byte(record.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
