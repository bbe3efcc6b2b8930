package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/intent"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

const defaultTimeout = 10 * time.Second

// OrderResult is the gateway's answer to an order submission.
type OrderResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message"`
}

// OrderGateway turns a cart snapshot into a placed order.
type OrderGateway interface {
	SubmitOrder(ctx context.Context, snap cart.Snapshot) (OrderResult, error)
}

// Outcome is delivered to result listeners when an asynchronous checkout ends.
type Outcome struct {
	Result OrderResult
	Err    error
}

// Config groups Orchestrator dependencies.
type Config struct {
	Store   *cart.Store
	Gateway OrderGateway
	// Timeout bounds the gateway call. Zero means ten seconds.
	Timeout time.Duration
	Logger  zerolog.Logger
	Tracer  trace.Tracer
}

// Orchestrator runs checkouts against a single cart store. The store is
// locked for the whole gateway round trip so the cleared cart is always the
// one that was submitted.
type Orchestrator struct {
	store   *cart.Store
	gateway OrderGateway
	timeout time.Duration
	logger  zerolog.Logger
	tracer  trace.Tracer

	mu        sync.Mutex
	listeners []func(Outcome)
	inflight  sync.WaitGroup
}

// NewOrchestrator constructs an orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = obs.Tracer("checkout")
	}
	return &Orchestrator{
		store:   cfg.Store,
		gateway: cfg.Gateway,
		timeout: timeout,
		logger:  cfg.Logger,
		tracer:  tracer,
	}
}

// Checkout submits the current cart and waits for the gateway.
func (o *Orchestrator) Checkout(ctx context.Context) (OrderResult, error) {
	snap, err := o.begin()
	if err != nil {
		return OrderResult{}, err
	}
	return o.finish(ctx, snap)
}

// Handle implements intent.Handler. The cart is locked before Handle returns;
// the gateway call completes in the background and its outcome is delivered
// to OnResult listeners.
func (o *Orchestrator) Handle(ctx context.Context, in intent.Intent) error {
	if in == nil || in.Kind() != intent.KindCheckout {
		return nil
	}
	snap, err := o.begin()
	if err != nil {
		o.publish(Outcome{Err: err})
		return err
	}
	bg := context.WithoutCancel(ctx)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		res, err := o.finish(bg, snap)
		o.publish(Outcome{Result: res, Err: err})
	}()
	return nil
}

// OnResult registers fn for outcomes of bus-initiated checkouts.
func (o *Orchestrator) OnResult(fn func(Outcome)) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Wait blocks until background checkouts started by Handle have finished.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

func (o *Orchestrator) begin() (cart.Snapshot, error) {
	snap, err := o.store.Lock()
	if err != nil {
		if errors.Is(err, cart.ErrLocked) {
			obs.ObserveCheckout("in_progress", -1)
			return cart.Snapshot{}, ErrCheckoutInProgress
		}
		return cart.Snapshot{}, err
	}
	if snap.Empty() {
		o.store.Unlock()
		obs.ObserveCheckout("empty", -1)
		return cart.Snapshot{}, EmptyCartError{}
	}
	return snap, nil
}

type reply struct {
	result OrderResult
	err    error
}

// finish calls the gateway for a snapshot taken by begin and releases the lock.
func (o *Orchestrator) finish(ctx context.Context, snap cart.Snapshot) (OrderResult, error) {
	defer o.store.Unlock()

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Checkout", trace.WithAttributes(
		attribute.Int("cart.lines", len(snap.Lines)),
		attribute.Int64("cart.total_minor", snap.Total),
		attribute.Int64("cart.version", int64(snap.Version)),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	started := time.Now()
	done := make(chan reply, 1)
	go func() {
		res, err := o.gateway.SubmitOrder(callCtx, snap)
		done <- reply{result: res, err: err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-callCtx.Done():
		r = reply{err: callCtx.Err()}
	}
	latency := obs.DurationMillis(time.Since(started))

	if r.err == nil && r.result.Success {
		o.store.Clear()
		span.SetAttributes(attribute.String("order.id", r.result.OrderID))
		obs.ObserveCheckout("success", latency)
		o.logger.Info().
			Str("order_id", r.result.OrderID).
			Int("lines", len(snap.Lines)).
			Int64("total", snap.Total).
			Float64("latency_ms", latency).
			Msg("checkout_completed")
		return r.result, nil
	}

	err := o.classify(ctx, r)
	result := "failed"
	var timeoutErr *CheckoutTimeoutError
	if errors.As(err, &timeoutErr) {
		result = "timeout"
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, result)
	obs.ObserveCheckout(result, latency)
	o.logger.Warn().
		Err(err).
		Int("lines", len(snap.Lines)).
		Float64("latency_ms", latency).
		Msg("checkout_failed")
	return r.result, err
}

func (o *Orchestrator) classify(ctx context.Context, r reply) error {
	if r.err == nil {
		msg := r.result.Message
		if msg == "" {
			msg = DefaultFailureMessage
		}
		return &CheckoutFailedError{Message: msg}
	}
	if ctx.Err() != nil {
		return &CheckoutFailedError{Message: DefaultFailureMessage, Err: ctx.Err()}
	}
	if errors.Is(r.err, context.DeadlineExceeded) {
		return &CheckoutTimeoutError{After: o.timeout}
	}
	var rejected *RejectedError
	if errors.As(r.err, &rejected) && rejected.Message != "" {
		return &CheckoutFailedError{Message: rejected.Message, Err: r.err}
	}
	return &CheckoutFailedError{Message: DefaultFailureMessage, Err: r.err}
}

func (o *Orchestrator) publish(out Outcome) {
	o.mu.Lock()
	listeners := make([]func(Outcome), len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()
	for _, fn := range listeners {
		fn(out)
	}
}
