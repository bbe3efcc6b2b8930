package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/intent"
)

// SSE event names.
const (
	EventCart     = "cart"
	EventCheckout = "checkout"
)

// Session owns one cart and everything wired to it: the intent bus feeding
// the store and the orchestrator, and the broadcaster that relays cart
// changes and checkout outcomes to event-stream clients.
type Session struct {
	Bus      *intent.Bus
	Store    *cart.Store
	Checkout *checkout.Orchestrator
	Catalog  catalog.Catalog
	Events   *Broadcaster

	logger      zerolog.Logger
	unsubscribe func()
}

// Options configures NewSession.
type Options struct {
	Catalog  catalog.Catalog
	Gateway  checkout.OrderGateway
	Checkout checkout.Config
	Logger   zerolog.Logger
}

// NewSession builds a session around a fresh, empty cart.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	store := cart.NewStore(cart.StoreConfig{Logger: logger.With().Str("component", "cart").Logger()})

	events := NewBroadcaster(16)
	s := &Session{
		Store:   store,
		Catalog: opts.Catalog,
		Events:  events,
		logger:  logger,
	}

	cfg := opts.Checkout
	cfg.Store = store
	if opts.Gateway != nil {
		cfg.Gateway = opts.Gateway
	}
	if cfg.Gateway != nil {
		cfg.Gateway = lockNotifier{next: cfg.Gateway, locked: s.SyncCart}
	}
	cfg.Logger = logger.With().Str("component", "checkout").Logger()
	s.Checkout = checkout.NewOrchestrator(cfg)

	s.Bus = intent.NewBus(logger.With().Str("component", "intent_bus").Logger())
	s.Bus.Subscribe(store)
	s.Bus.Subscribe(s.Checkout)

	s.unsubscribe = store.OnChange(func(snap cart.Snapshot) {
		events.Publish(Event{Name: EventCart, Data: newCartView(snap)})
	})
	s.Checkout.OnResult(func(out checkout.Outcome) {
		s.SyncCart()
		events.Publish(Event{Name: EventCheckout, Data: newCheckoutView(out)})
	})
	return s
}

// SyncCart pushes the current cart to stream clients. Taking or releasing the
// checkout lock is not a cart transition, so checkout paths call it directly.
func (s *Session) SyncCart() {
	s.Events.Publish(Event{Name: EventCart, Data: newCartView(s.Store.Snapshot())})
}

// lockNotifier runs while the orchestrator holds the cart lock, so it is the
// point where stream clients learn the cart is frozen.
type lockNotifier struct {
	next   checkout.OrderGateway
	locked func()
}

func (g lockNotifier) SubmitOrder(ctx context.Context, snap cart.Snapshot) (checkout.OrderResult, error) {
	g.locked()
	return g.next.SubmitOrder(ctx, snap)
}

// Publish sends in through the bus.
func (s *Session) Publish(ctx context.Context, in intent.Intent) error {
	return s.Bus.Publish(ctx, in)
}

// ResolveAddItem fills name and price for an AddItem from the catalog. Prices
// supplied by clients are never trusted.
func (s *Session) ResolveAddItem(ctx context.Context, productID string, quantity int) (intent.AddItem, error) {
	if quantity == 0 {
		quantity = 1
	}
	if strings.TrimSpace(productID) == "" {
		// left for the store to reject with a field error
		return intent.AddItem{ProductID: productID, Quantity: quantity}, nil
	}
	if s.Catalog == nil {
		return intent.AddItem{}, fmt.Errorf("storefront: catalog not configured")
	}
	p, err := catalog.Lookup(ctx, s.Catalog, productID)
	if err != nil {
		return intent.AddItem{}, err
	}
	return intent.AddItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
	}, nil
}

// Close waits for background checkouts and detaches event streams.
func (s *Session) Close() {
	s.Checkout.Wait()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Events.Close()
}
