package cart

import (
	"context"
	"math"
	"slices"
	"sync"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/intent"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Line is one product's aggregated quantity within the cart.
type Line struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Quantity  int           `json:"quantity"`
}

// Subtotal returns unit price times quantity.
func (l Line) Subtotal() pricing.Money {
	return pricing.LineTotal(l.Quantity, l.UnitPrice)
}

// Snapshot is an immutable point-in-time copy of the cart. Version increases
// whenever the lines change. Locked is true while a checkout holds the cart.
type Snapshot struct {
	Lines   []Line        `json:"lines"`
	Total   pricing.Money `json:"total"`
	Version uint64        `json:"version"`
	Locked  bool          `json:"locked"`
}

// Empty reports whether the snapshot holds no lines.
func (s Snapshot) Empty() bool { return len(s.Lines) == 0 }

// Line returns the line for productID if present.
func (s Snapshot) Line(productID string) (Line, bool) {
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// PricingItems converts the lines into pricing input.
func (s Snapshot) PricingItems() []pricing.Item {
	items := make([]pricing.Item, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, pricing.Item{Qty: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return items
}

// ChangeListener receives the new snapshot after every accepted transition.
type ChangeListener func(Snapshot)

// StoreConfig groups Store dependencies.
type StoreConfig struct {
	Logger    zerolog.Logger
	Validator *validator.Validate
}

// Store owns the authoritative cart lines. Transitions are serialised by a
// mutex; listeners run while it is held and must not call back into the Store.
type Store struct {
	logger    zerolog.Logger
	validator *validator.Validate

	mu        sync.Mutex
	lines     []Line
	version   uint64
	locked    bool
	listeners []listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn ChangeListener
}

// NewStore constructs an empty cart store.
func NewStore(cfg StoreConfig) *Store {
	v := cfg.Validator
	if v == nil {
		v = NewValidator()
	}
	return &Store{
		logger:    cfg.Logger,
		validator: v,
		lines:     []Line{},
	}
}

// Apply runs a mutating intent against the cart and returns the resulting
// snapshot. Rejected intents leave the cart untouched and emit nothing.
func (s *Store) Apply(in intent.Intent) (Snapshot, error) {
	if in == nil || !intent.Supported(in) || !in.Kind().Mutating() {
		var kind intent.Kind
		if in != nil {
			kind = in.Kind()
		}
		return Snapshot{}, &intent.UnsupportedIntentError{Kind: kind}
	}
	if err := s.validateIntent(in); err != nil {
		s.reject(in.Kind(), "invalid", err)
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(in)
}

// Step adjusts an existing line by delta in a single critical section, so a
// concurrent removal cannot be undone by a stale read. Unknown products are
// left alone and a result of zero or less removes the line.
func (s *Store) Step(productID string, delta int) (Snapshot, error) {
	kind := intent.KindSetQuantity
	if delta > 0 {
		kind = intent.KindAddItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		err := &CartLockedError{Kind: kind}
		s.reject(kind, "locked", err)
		return Snapshot{}, err
	}
	i := indexOf(s.lines, productID)
	if i < 0 || delta == 0 {
		return s.snapshotLocked(), nil
	}
	line := s.lines[i]
	var in intent.Intent
	if delta > 0 {
		in = intent.AddItem{ProductID: line.ProductID, Name: line.Name, UnitPrice: line.UnitPrice, Quantity: delta}
	} else {
		qty := 0
		if delta > -line.Quantity {
			qty = line.Quantity + delta
		}
		in = intent.SetQuantity{ProductID: line.ProductID, Quantity: qty}
	}
	if err := s.validateIntent(in); err != nil {
		s.reject(kind, "invalid", err)
		return Snapshot{}, err
	}
	return s.applyLocked(in)
}

func (s *Store) applyLocked(in intent.Intent) (Snapshot, error) {
	if s.locked {
		err := &CartLockedError{Kind: in.Kind()}
		s.reject(in.Kind(), "locked", err)
		return Snapshot{}, err
	}
	next, changed, err := transition(s.lines, in)
	if err != nil {
		s.reject(in.Kind(), "invalid", err)
		return Snapshot{}, err
	}
	if changed {
		s.lines = next
		s.version++
	}
	snap := s.snapshotLocked()
	obs.ObserveIntent(string(in.Kind()), "applied")
	s.logger.Debug().
		Str("kind", string(in.Kind())).
		Bool("changed", changed).
		Int("lines", len(snap.Lines)).
		Int64("total", snap.Total).
		Msg("cart_intent_applied")
	s.notifyLocked(snap)
	return snap, nil
}

// Handle implements intent.Handler. Checkout intents belong to the
// orchestrator and are ignored here.
func (s *Store) Handle(_ context.Context, in intent.Intent) error {
	if in != nil && in.Kind() == intent.KindCheckout {
		return nil
	}
	_, err := s.Apply(in)
	return err
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Clear empties the cart. It is permitted while locked so a successful
// checkout can clear the cart it froze.
func (s *Store) Clear() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) > 0 {
		s.lines = []Line{}
		s.version++
	}
	snap := s.snapshotLocked()
	s.logger.Debug().Uint64("version", snap.Version).Msg("cart_cleared")
	s.notifyLocked(snap)
	return snap
}

// Lock freezes the cart against mutating intents and returns the snapshot
// taken at the moment of locking.
func (s *Store) Lock() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return Snapshot{}, &CartLockedError{Kind: intent.KindCheckout}
	}
	s.locked = true
	return s.snapshotLocked(), nil
}

// Unlock releases a lock taken with Lock.
func (s *Store) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
}

// Locked reports whether a checkout currently holds the cart.
func (s *Store) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// OnChange registers fn for cart-changed notifications and returns a
// function that removes it.
func (s *Store) OnChange(fn ChangeListener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(e listenerEntry) bool { return e.id == id })
	}
}

func (s *Store) snapshotLocked() Snapshot {
	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	summary := pricing.Compute(Snapshot{Lines: lines}.PricingItems())
	return Snapshot{Lines: lines, Total: summary.Total, Version: s.version, Locked: s.locked}
}

func (s *Store) notifyLocked(snap Snapshot) {
	obs.SetCartLines(len(snap.Lines))
	for _, l := range s.listeners {
		// independent copy per listener
		own := snap
		own.Lines = slices.Clone(snap.Lines)
		l.fn(own)
	}
}

func (s *Store) reject(kind intent.Kind, result string, err error) {
	obs.ObserveIntent(string(kind), result)
	s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("cart_intent_rejected")
}

// transition computes the next line sequence for in without touching lines.
// It reports false when the intent leaves the cart unchanged, and fails when
// a quantity or the priced total would leave the int range.
func transition(lines []Line, in intent.Intent) ([]Line, bool, error) {
	switch v := in.(type) {
	case intent.AddItem:
		var next []Line
		if i := indexOf(lines, v.ProductID); i >= 0 {
			if lines[i].Quantity > math.MaxInt-v.Quantity {
				return lines, false, tooLarge(in.Kind())
			}
			// first-seen name and price win on merge
			next = slices.Clone(lines)
			next[i].Quantity += v.Quantity
		} else {
			next = make([]Line, 0, len(lines)+1)
			next = append(next, lines...)
			next = append(next, Line{
				ProductID: v.ProductID,
				Name:      v.Name,
				UnitPrice: v.UnitPrice,
				Quantity:  v.Quantity,
			})
		}
		if !priceable(next) {
			return lines, false, tooLarge(in.Kind())
		}
		return next, true, nil
	case intent.SetQuantity:
		i := indexOf(lines, v.ProductID)
		if i < 0 {
			return lines, false, nil
		}
		if v.Quantity <= 0 {
			return slices.Delete(slices.Clone(lines), i, i+1), true, nil
		}
		if lines[i].Quantity == v.Quantity {
			return lines, false, nil
		}
		next := slices.Clone(lines)
		next[i].Quantity = v.Quantity
		if !priceable(next) {
			return lines, false, tooLarge(in.Kind())
		}
		return next, true, nil
	case intent.RemoveItem:
		i := indexOf(lines, v.ProductID)
		if i < 0 {
			return lines, false, nil
		}
		return slices.Delete(slices.Clone(lines), i, i+1), true, nil
	default:
		return lines, false, nil
	}
}

func priceable(lines []Line) bool {
	_, err := pricing.CheckedCompute(Snapshot{Lines: lines}.PricingItems())
	return err == nil
}

func tooLarge(kind intent.Kind) error {
	return &ValidationError{Kind: kind, Field: "quantity", Reason: "is too large"}
}

func indexOf(lines []Line, productID string) int {
	return slices.IndexFunc(lines, func(l Line) bool { return l.ProductID == productID })
}
