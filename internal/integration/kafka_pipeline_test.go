//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/mlcrowe/geocode-reconciler/internal/adapter/kafka"
	"github.com/mlcrowe/geocode-reconciler/internal/broker"
	"github.com/mlcrowe/geocode-reconciler/internal/config"
	"github.com/mlcrowe/geocode-reconciler/internal/domain"
	"github.com/mlcrowe/geocode-reconciler/internal/geography"
	"github.com/mlcrowe/geocode-reconciler/internal/observability"
	"github.com/mlcrowe/geocode-reconciler/internal/pipeline"
	"github.com/mlcrowe/geocode-reconciler/internal/store"
)

const (
	testJobsTopic    = "test-geocode-jobs"
	testResultsTopic = "test-geocode-results"
)

// gilbertCityPayload is a Google city-level answer for "Gilbert, Maricopa, AZ".
const gilbertCityPayload = `{
  "status": "OK",
  "results": [
    {
      "address_components": [
        {"long_name": "Gilbert", "short_name": "Gilbert", "types": ["locality", "political"]},
        {"long_name": "Maricopa County", "short_name": "Maricopa County", "types": ["administrative_area_level_2", "political"]},
        {"long_name": "Arizona", "short_name": "AZ", "types": ["administrative_area_level_1", "political"]},
        {"long_name": "United States", "short_name": "US", "types": ["country", "political"]}
      ],
      "formatted_address": "Gilbert, AZ, USA",
      "geometry": {"location": {"lat": 33.352, "lng": -111.789}},
      "types": ["locality", "political"]
    }
  ]
}`

// cannedClient answers every fetch with a fixed payload, standing in for
// the live Google API.
type cannedClient struct {
	engine  string
	payload []byte
}

func (c cannedClient) Engine() string { return c.engine }

func (c cannedClient) Fetch(context.Context, string, domain.EntityType) ([]byte, error) {
	return c.payload, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func newDeferredPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()

	logger := discardLogger()
	geo := geography.NewResolver([]domain.County{
		{Name: "Maricopa County", State: "AZ"},
	}, logger)
	memStore, err := store.NewMemory(0)
	require.NoError(t, err)

	return pipeline.New(pipeline.Config{
		Clients:  []pipeline.ProviderClient{cannedClient{engine: broker.EngineGoogle, payload: []byte(gilbertCityPayload)}},
		Registry: broker.NewRegistry(broker.NewGoogle(geo, logger)),
		Scorer:   domain.NewScorer(geo, nil, logger),
		Reducer:  domain.NewReducer(0, broker.EngineGoogle),
		Policy:   domain.NewRefreshPolicy(0),
		Store:    memStore,
		Logger:   logger,
		Metrics:  observability.NewMetricsForTesting(),
	})
}

// TestDeferredGeocodeRoundTrip publishes a job to the jobs topic, runs the
// deferred pipeline against real Kafka, and verifies the ranked result
// lands on the results topic with the expected key and headers.
func TestDeferredGeocodeRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	brokerAddr := startKafka(ctx, t)
	createTopic(t, brokerAddr, testJobsTopic)
	createTopic(t, brokerAddr, testResultsTopic)

	cfg := &config.Config{
		KafkaBrokers:      []string{brokerAddr},
		KafkaJobsTopic:    testJobsTopic,
		KafkaResultsTopic: testResultsTopic,
		KafkaGroupID:      fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
	}

	job, err := json.Marshal(map[string]any{
		"components": domain.Components{City: "Gilbert", County: "Maricopa", State: "AZ"},
	})
	require.NoError(t, err)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(brokerAddr),
		Topic: testJobsTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("job-1"),
		Value: job,
	}))

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := newDeferredPipeline(t)

	runCtx, stopRun := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(runCtx, reader, writer) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{brokerAddr},
		Topic:       testResultsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 60*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read result from results topic")

	assert.Equal(t, "Gilbert, Maricopa, AZ|city", string(msg.Key))

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "city", headers["entity_type"])
	_, err = time.Parse(time.RFC3339, headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(msg.Value, &result))
	assert.Empty(t, result.Error)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "Gilbert", result.Candidates[0].Place.City)
	assert.Equal(t, "Google", result.Candidates[0].Place.Engine)
	assert.Equal(t, 1.0, result.Candidates[0].Score)

	stopRun()
	require.NoError(t, <-errCh)
}

// TestDeferredMalformedJobSkipped publishes a poison-pill job followed by a
// valid one and verifies only the valid job produces a result.
func TestDeferredMalformedJobSkipped(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	brokerAddr := startKafka(ctx, t)
	createTopic(t, brokerAddr, testJobsTopic)
	createTopic(t, brokerAddr, testResultsTopic)

	cfg := &config.Config{
		KafkaBrokers:      []string{brokerAddr},
		KafkaJobsTopic:    testJobsTopic,
		KafkaResultsTopic: testResultsTopic,
		KafkaGroupID:      fmt.Sprintf("test-poison-%d", time.Now().UnixNano()),
	}

	validJob, err := json.Marshal(map[string]any{
		"components": domain.Components{City: "Gilbert", County: "Maricopa", State: "AZ"},
	})
	require.NoError(t, err)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(brokerAddr),
		Topic: testJobsTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("good"), Value: validJob},
	))

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := newDeferredPipeline(t)

	runCtx, stopRun := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(runCtx, reader, writer) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{brokerAddr},
		Topic:       testResultsTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 60*time.Second)
	msg, err := consumer.ReadMessage(readCtx)
	readCancel()
	require.NoError(t, err)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(msg.Value, &result))
	assert.Equal(t, "Gilbert, Maricopa, AZ", result.Request.RawAddress)

	// The poison pill must not surface as a second result.
	readCtx, readCancel = context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no result for the malformed job")

	stopRun()
	require.NoError(t, <-errCh)
}
