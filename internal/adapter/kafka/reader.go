// Package kafka adapts the deferred geocoding mode onto Kafka: the
// surrounding application publishes geocode jobs to one topic and
// consumes ranked results from another, so no request handler ever blocks
// on provider latency.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mlcrowe/geocode-reconciler/internal/config"
	"github.com/mlcrowe/geocode-reconciler/internal/domain"
	"github.com/mlcrowe/geocode-reconciler/internal/pipeline"
)

// jobMessage is the wire shape of one geocode job.
type jobMessage struct {
	Components domain.Components `json:"components"`
}

// messageConsumer is the slice of kafkago.Reader the job reader uses,
// separated out so decode handling is testable without a broker.
type messageConsumer interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes geocode jobs from the jobs topic.
// It implements pipeline.JobSource.
type Reader struct {
	consumer messageConsumer
	logger   *slog.Logger
}

// NewReader creates a Kafka consumer for the configured jobs topic.
// Offsets are committed explicitly after a job's result is published.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaJobsTopic,
		GroupID: cfg.KafkaGroupID,
	})
	return &Reader{consumer: r, logger: logger}
}

// FetchJob blocks until a decodable job message arrives. Malformed
// messages are committed and skipped in place: redelivery would fail the
// same way forever, and surfacing them as source failures would cost the
// caller a backoff cycle per poison message.
func (r *Reader) FetchJob(ctx context.Context) (pipeline.Job, error) {
	for {
		msg, err := r.consumer.FetchMessage(ctx)
		if err != nil {
			return pipeline.Job{}, fmt.Errorf("fetch job: %w", err)
		}

		var jm jobMessage
		if err := json.Unmarshal(msg.Value, &jm); err != nil {
			r.logger.Warn("skipping malformed job",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			if commitErr := r.consumer.CommitMessages(ctx, msg); commitErr != nil {
				r.logger.Warn("commit malformed job failed", "error", commitErr)
			}
			continue
		}

		return pipeline.Job{
			Components: jm.Components,
			Commit: func(ctx context.Context) error {
				return r.consumer.CommitMessages(ctx, msg)
			},
		}, nil
	}
}

func (r *Reader) Close() error {
	return r.consumer.Close()
}
