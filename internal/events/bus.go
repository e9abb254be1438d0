// Package events provides a small publish/subscribe bus. The registry
// publishes module lifecycle and merge events on it; metrics and the CLI
// subscribe.
package events

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Event names published by era components.
const (
	ModuleRegistered = "module.registered"
	ModuleApplied    = "module.applied"
	MergeOverwrite   = "merge.overwrite"
	MergeMismatch    = "merge.mismatch"
	GlobalSkipped    = "global.skipped"
	IngestIssue      = "ingest.issue"
)

// Event is a published notification.
type Event struct {
	// Name is the event name, e.g. "module.registered".
	Name string
	// Module is the module the event concerns, if any.
	Module string
	// Data carries event-specific fields.
	Data map[string]any
}

// Handler processes an event. Errors are logged, not propagated.
type Handler func(ctx context.Context, event Event) error

// Bus dispatches events to subscribers synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers handler for pattern. Patterns are an exact name,
// "prefix.*" for every event under prefix, or "*" for all events.
func (b *Bus) Subscribe(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[pattern] = append(b.handlers[pattern], handler)
}

// Publish delivers event to every matching handler. A nil bus is a no-op.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	matched := b.match(event.Name)
	b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.Name).
		Str("module", event.Module).
		Int("handlers", len(matched)).
		Msg("event published")

	for _, h := range matched {
		if err := h(ctx, event); err != nil {
			b.logger.Error().Err(err).Str("event", event.Name).Msg("event handler failed")
		}
	}
}

// match collects handlers for name: exact first, then prefix wildcards from
// the most specific, then "*".
func (b *Bus) match(name string) []Handler {
	var out []Handler
	out = append(out, b.handlers[name]...)

	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i > 0; i-- {
		out = append(out, b.handlers[strings.Join(parts[:i], ".")+".*"]...)
	}
	if name != "*" {
		out = append(out, b.handlers["*"]...)
	}
	return out
}
