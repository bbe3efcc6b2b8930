package intent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Handler consumes intents delivered by the bus.
type Handler interface {
	Handle(ctx context.Context, in Intent) error
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, in Intent) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, in Intent) error {
	return f(ctx, in)
}

// Bus funnels every user intent to the subscribed handlers.
//
// Publish delivers synchronously on the caller's goroutine and holds the
// delivery lock for the whole fan-out, so intents reach handlers strictly in
// publish order. Handlers must not publish from inside Handle.
type Bus struct {
	Logger zerolog.Logger

	deliverMu sync.Mutex
	mu        sync.RWMutex
	handlers  []Handler
}

// NewBus constructs an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{Logger: logger}
}

// Subscribe registers h for all intents.
func (b *Bus) Subscribe(h Handler) {
	if b == nil || h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish validates the intent shape and dispatches it to every handler.
// Handler errors are joined and returned to the caller; delivery to the
// remaining handlers continues regardless.
func (b *Bus) Publish(ctx context.Context, in Intent) error {
	if b == nil {
		return errors.New("intent: bus not configured")
	}
	if in == nil {
		return &UnsupportedIntentError{}
	}
	if !Supported(in) {
		b.Logger.Error().Str("kind", string(in.Kind())).Msg("intent_unsupported")
		return &UnsupportedIntentError{Kind: in.Kind()}
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	var joined error
	for _, h := range handlers {
		if err := h.Handle(ctx, in); err != nil {
			joined = errors.Join(joined, fmt.Errorf("intent %s: %w", in.Kind(), err))
		}
	}
	return joined
}
