//go:build integration

package mykafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(ctx context.Context, t *testing.T) []string {
	t.Helper()

	container, err := kafkatc.Run(ctx,
		"confluentinc/confluent-local:7.8.0",
		kafkatc.WithClusterID("test-cluster"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("failed to get kafka brokers: %v", err)
	}
	return brokers
}

func TestProducer_PublishEvent(t *testing.T) {
	ctx := context.Background()
	brokers := setupKafka(ctx, t)

	p := NewProducer(brokers, "storefront_events")
	t.Cleanup(func() { _ = p.Close() })

	// the first write may race topic auto-creation
	require.Eventually(t, func() bool {
		return p.PublishEvent(ctx, "100", map[string]any{"type": "order_submitted", "orderID": 100}) == nil
	}, 30*time.Second, 500*time.Millisecond)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     "storefront_events",
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	t.Cleanup(func() { _ = r.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	msg, err := r.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, "100", string(msg.Key))
	var event map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "order_submitted", event["type"])
}
