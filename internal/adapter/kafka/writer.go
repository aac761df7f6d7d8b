package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mlcrowe/geocode-reconciler/internal/config"
	"github.com/mlcrowe/geocode-reconciler/internal/pipeline"
)

// Writer publishes geocode results to the results topic.
// It implements pipeline.ResultSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured results topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishResult serializes and publishes one result, keyed by the request
// key so all results for the same address land on one partition.
func (w *Writer) PublishResult(ctx context.Context, result pipeline.Result) error {
	msg, err := serializeResult(result)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeResult marshals a Result into a Kafka message.
func serializeResult(result pipeline.Result) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.Request.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "entity_type", Value: []byte(result.Request.EntityType)},
			{Key: "processed_at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}, nil
}
