//go:build integration
// +build integration

package eventsink_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisContainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/protocolqc/protocolqc/internal/eventsink"
	"github.com/protocolqc/protocolqc/pkg/events"
)

func setupRedisContainer(t *testing.T) string {
	ctx := context.Background()

	container, err := redisContainer.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisSink_AppendOnce_RealRedis(t *testing.T) {
	addr := setupRedisContainer(t)
	ctx := context.Background()

	sink, err := eventsink.Dial(ctx, addr, "protocolqc:test", eventsink.WithDedupTTL(time.Minute))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	env := events.Envelope{
		ID:             "key-1",
		Type:           "ProtocolEvaluated",
		IdempotencyKey: "key-1",
		SubjectID:      "subject",
		RunKey:         "run-1",
		Timestamp:      time.Now(),
		Payload:        []byte(`{"template":"study.json","score":1}`),
	}
	require.NoError(t, sink.Append(ctx, env))
	require.NoError(t, sink.Append(ctx, env), "duplicate append is a no-op")

	env.ID, env.IdempotencyKey = "key-2", "key-2"
	require.NoError(t, sink.Append(ctx, env))

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	entries, err := client.XRange(ctx, "protocolqc:test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "key-1", entries[0].Values["id"])
	assert.Equal(t, "ProtocolEvaluated", entries[0].Values["type"])
	assert.Contains(t, entries[0].Values["envelope"], `"run_key":"run-1"`)

	ttl, err := client.TTL(ctx, "protocolqc:event:key-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
