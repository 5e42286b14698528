//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/storm-radar/internal/adapter/iem"
	"github.com/couchcryptid/storm-radar/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar/internal/config"
	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/observability"
	"github.com/couchcryptid/storm-radar/internal/pipeline"
	"github.com/couchcryptid/storm-radar/internal/radar"
)

const testTopic = "test-radar-manifests"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("storm-radar-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
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

// TestManifestPublishing runs the warm/publish loop against a real broker and
// reads the published manifest event back.
func TestManifestPublishing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetricsForTesting()
	src := iem.NewStaticSource("https://mesonet.agron.iastate.edu", clock)
	cache := radar.NewCache(src, radar.CacheOptions{TTL: time.Minute, Clock: clock}, metrics, discardLogger())
	provider := radar.NewProvider(src, cache)

	p := pipeline.New([]pipeline.Refresher{provider}, writer, time.Hour, clock, discardLogger(), metrics)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- p.Run(runCtx) }()
	t.Cleanup(func() {
		stop()
		<-done
	})

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 60*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read manifest event")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, iem.StaticID, string(msg.Key))
	assert.Equal(t, iem.StaticID, headers["provider_id"])
	_, err = time.Parse(time.RFC3339, headers["fetched_at"])
	assert.NoError(t, err, "fetched_at should be valid RFC3339")

	var event domain.ManifestEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, 7, event.FrameCount)
	assert.Equal(t, provider.Current().ID, event.ManifestID)
	assert.Contains(t, event.Latest, "/cache/tile.py/1.0.0/nexrad-n0q-900913/{z}/{x}/{y}.png")
	require.NoError(t, p.CheckReadiness(ctx))
}
