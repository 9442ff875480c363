package eventsink

import (
	"context"
	"slices"
	"sync"

	"github.com/protocolqc/protocolqc/pkg/events"
)

// MemorySink keeps events in memory, dropping repeated idempotency keys.
type MemorySink struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	events []events.Envelope
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]struct{})}
}

// Append implements events.EventSink.
func (s *MemorySink) Append(_ context.Context, e events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[e.IdempotencyKey]; dup {
		return nil
	}
	s.seen[e.IdempotencyKey] = struct{}{}
	s.events = append(s.events, e)
	return nil
}

// Events returns the appended events in order.
func (s *MemorySink) Events() []events.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}
