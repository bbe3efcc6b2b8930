package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures a Breaker. Zero values fall back to defaults.
type BreakerSettings struct {
	// Target labels metrics and logs, e.g. "order_gateway".
	Target string
	// MinRequests is the number of outcomes required before the failure
	// ratio is evaluated.
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Breaker is a failure-ratio circuit breaker over a sliding window of the
// most recent outcomes. A single probe is admitted while half-open.
type Breaker struct {
	settings BreakerSettings

	mu       sync.Mutex
	state    State
	window   []bool
	next     int
	filled   int
	openedAt time.Time
	probing  bool
}

// NewBreaker constructs a closed breaker.
func NewBreaker(settings BreakerSettings) *Breaker {
	if settings.MinRequests <= 0 {
		settings.MinRequests = 1
	}
	if settings.FailureRatio <= 0 {
		settings.FailureRatio = 0.5
	}
	if settings.FailureRatio > 1 {
		settings.FailureRatio = 1
	}
	if settings.OpenFor <= 0 {
		settings.OpenFor = 30 * time.Second
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	settings.Target = strings.TrimSpace(settings.Target)
	if settings.Target == "" {
		settings.Target = "default"
	}
	size := settings.MinRequests * 2
	if size < 10 {
		size = 10
	}
	b := &Breaker{settings: settings, window: make([]bool, size)}
	recordState(b.settings.Target, Closed)
	return b
}

// Target returns the dependency label.
func (b *Breaker) Target() string { return b.settings.Target }

// State returns the current state without advancing it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow returns ErrOpenCircuit while the breaker is open. After OpenFor has
// elapsed the breaker moves to half-open and lets exactly one probe through.
func (b *Breaker) Allow(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.settings.Now().Sub(b.openedAt) < b.settings.OpenFor {
			return ErrOpenCircuit
		}
		b.moveLocked(ctx, HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		if b.probing {
			return ErrOpenCircuit
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Report records the outcome of a call admitted by Allow.
func (b *Breaker) Report(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil
	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if failed {
			b.moveLocked(ctx, Open)
		} else {
			b.moveLocked(ctx, Closed)
		}
		return
	}

	b.window[b.next] = failed
	b.next = (b.next + 1) % len(b.window)
	if b.filled < len(b.window) {
		b.filled++
	}
	if b.filled < b.settings.MinRequests {
		return
	}
	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.window[i] {
			failures++
		}
	}
	if float64(failures)/float64(b.filled) >= b.settings.FailureRatio {
		b.moveLocked(ctx, Open)
	}
}

func (b *Breaker) moveLocked(ctx context.Context, to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	switch to {
	case Open:
		b.openedAt = b.settings.Now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.next, b.filled = 0, 0
	for i := range b.window {
		b.window[i] = false
	}
	recordState(b.settings.Target, to)
	recordTransition(b.settings.Target, from, to)

	logger := b.settings.Logger
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	evt := logger.Info().
		Str("target", b.settings.Target).
		Str("from_state", from.String()).
		Str("to_state", to.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}
