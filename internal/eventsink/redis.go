package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/protocolqc/protocolqc/pkg/events"
)

// Redis stream defaults.
const (
	DefaultDedupTTL    = 7 * 24 * time.Hour
	DefaultMaxLen      = 10000
	defaultPingTimeout = 5 * time.Second
	dedupKeyPrefix     = "protocolqc:event:"
)

// appendOnce records the idempotency key and appends to the stream in one
// step, so a retried emission never adds a second entry.
//
// KEYS[1] = dedup key, KEYS[2] = stream
// ARGV[1] = dedup TTL seconds, ARGV[2] = max stream length,
// ARGV[3..] = field/value pairs
// Returns the entry ID, or false for a duplicate.
const appendOnce = `
	if not redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[1]) then
		return false
	end
	local fields = {}
	for i = 3, #ARGV do
		fields[#fields + 1] = ARGV[i]
	end
	return redis.call('XADD', KEYS[2], 'MAXLEN', '~', ARGV[2], '*', unpack(fields))
`

// RedisSink appends events to a Redis stream.
type RedisSink struct {
	client   *redis.Client
	stream   string
	dedupTTL time.Duration
	maxLen   int64
}

// RedisOption configures a RedisSink.
type RedisOption func(*RedisSink)

// WithDedupTTL sets how long idempotency keys are remembered.
func WithDedupTTL(ttl time.Duration) RedisOption {
	return func(s *RedisSink) { s.dedupTTL = ttl }
}

// WithMaxLen caps the approximate stream length.
func WithMaxLen(n int64) RedisOption {
	return func(s *RedisSink) { s.maxLen = n }
}

// NewRedisSink wraps client. The client is used as is; Dial connects first.
func NewRedisSink(client *redis.Client, stream string, opts ...RedisOption) *RedisSink {
	s := &RedisSink{client: client, stream: stream, dedupTTL: DefaultDedupTTL, maxLen: DefaultMaxLen}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and verifies the server responds.
func Dial(ctx context.Context, addr, stream string, opts ...RedisOption) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return NewRedisSink(client, stream, opts...), nil
}

// Append implements events.EventSink.
func (s *RedisSink) Append(ctx context.Context, e events.Envelope) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	args := []any{
		max(int64(s.dedupTTL.Seconds()), 1),
		s.maxLen,
		"id", e.ID,
		"type", e.Type,
		"subject_id", e.SubjectID,
		"envelope", string(body),
	}
	err = s.client.Eval(ctx, appendOnce, []string{dedupKeyPrefix + e.IdempotencyKey, s.stream}, args...).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("append event to stream %s: %w", s.stream, err)
	}
	return nil
}

// Close releases the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
