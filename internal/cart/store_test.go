package cart_test

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/intent"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

func newStore() *cart.Store {
	return cart.NewStore(cart.StoreConfig{Logger: zerolog.Nop()})
}

func mustApply(t *testing.T, s *cart.Store, in intent.Intent) cart.Snapshot {
	t.Helper()
	snap, err := s.Apply(in)
	require.NoError(t, err)
	return snap
}

func TestAddItemMergesByProduct(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", Name: "Mug", UnitPrice: 1000, Quantity: 1})
	mustApply(t, s, intent.AddItem{ProductID: "A", Name: "Renamed", UnitPrice: 5000, Quantity: 2})
	snap := mustApply(t, s, intent.AddItem{ProductID: "A", Quantity: 4})

	require.Len(t, snap.Lines, 1)
	line := snap.Lines[0]
	require.Equal(t, 7, line.Quantity)
	require.Equal(t, "Mug", line.Name, "first-seen name is kept")
	require.Equal(t, pricing.Money(1000), line.UnitPrice, "first-seen price is kept")
	require.Equal(t, pricing.Money(7000), snap.Total)
}

func TestAddItemAppendsInInsertionOrder(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "B", UnitPrice: 100, Quantity: 1})
	mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 100, Quantity: 1})
	snap := mustApply(t, s, intent.AddItem{ProductID: "C", UnitPrice: 100, Quantity: 1})

	ids := make([]string, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		ids = append(ids, l.ProductID)
	}
	require.Equal(t, []string{"B", "A", "C"}, ids)
}

func TestSetQuantityIsAbsolute(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 250, Quantity: 5})
	mustApply(t, s, intent.SetQuantity{ProductID: "A", Quantity: 2})

	line, ok := s.Snapshot().Line("A")
	require.True(t, ok)
	require.Equal(t, 2, line.Quantity)
	require.Equal(t, pricing.Money(500), s.Snapshot().Total)
}

func TestSetQuantityMissingLineIsNoop(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 250, Quantity: 1})
	before := s.Snapshot()
	after := mustApply(t, s, intent.SetQuantity{ProductID: "Z", Quantity: 9})
	require.Equal(t, before, after)
}

func TestSetQuantityZeroOrNegativeRemoves(t *testing.T) {
	for _, q := range []int{0, -3} {
		s := newStore()
		mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 250, Quantity: 2})
		mustApply(t, s, intent.AddItem{ProductID: "B", UnitPrice: 100, Quantity: 1})
		snap := mustApply(t, s, intent.SetQuantity{ProductID: "A", Quantity: q})
		_, ok := snap.Line("A")
		require.False(t, ok)
		require.Len(t, snap.Lines, 1)

		again := mustApply(t, s, intent.RemoveItem{ProductID: "A"})
		require.Equal(t, snap, again, "removal after zero-quantity is a no-op")
	}
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 100, Quantity: 1})
	mustApply(t, s, intent.AddItem{ProductID: "B", UnitPrice: 100, Quantity: 1})
	first := mustApply(t, s, intent.RemoveItem{ProductID: "A"})
	second := mustApply(t, s, intent.RemoveItem{ProductID: "A"})
	require.Equal(t, first, second)
}

func TestOrderingAddAddRemove(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", Name: "A", UnitPrice: 100, Quantity: 1})
	mustApply(t, s, intent.AddItem{ProductID: "B", Name: "B", UnitPrice: 200, Quantity: 1})
	mustApply(t, s, intent.RemoveItem{ProductID: "A"})

	require.Equal(t, []cart.Line{{ProductID: "B", Name: "B", UnitPrice: 200, Quantity: 1}}, s.Snapshot().Lines)
}

func TestValidationRejectsMalformedIntents(t *testing.T) {
	cases := []struct {
		name  string
		in    intent.Intent
		field string
	}{
		{"empty product", intent.AddItem{ProductID: "", UnitPrice: 100, Quantity: 1}, "productId"},
		{"blank product", intent.AddItem{ProductID: "   ", UnitPrice: 100, Quantity: 1}, "productId"},
		{"negative price", intent.AddItem{ProductID: "A", UnitPrice: -1, Quantity: 1}, "unitPrice"},
		{"zero add quantity", intent.AddItem{ProductID: "A", UnitPrice: 1, Quantity: 0}, "quantity"},
		{"set without product", intent.SetQuantity{Quantity: 2}, "productId"},
		{"remove without product", intent.RemoveItem{}, "productId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore()
			mustApply(t, s, intent.AddItem{ProductID: "keep", UnitPrice: 10, Quantity: 1})
			before := s.Snapshot()

			var notified int
			s.OnChange(func(cart.Snapshot) { notified++ })

			_, err := s.Apply(tc.in)
			var verr *cart.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
			require.Equal(t, before, s.Snapshot())
			require.Zero(t, notified)
		})
	}
}

func TestApplyRejectsCheckoutAndUnknown(t *testing.T) {
	s := newStore()
	var unsupported *intent.UnsupportedIntentError
	_, err := s.Apply(intent.Checkout{})
	require.ErrorAs(t, err, &unsupported)
	_, err = s.Apply(nil)
	require.ErrorAs(t, err, &unsupported)

	require.NoError(t, s.Handle(context.Background(), intent.Checkout{}))
}

func TestSnapshotsAreIndependentCopies(t *testing.T) {
	s := newStore()
	snap := mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 100, Quantity: 1})
	snap.Lines[0].Quantity = 99

	require.Equal(t, 1, s.Snapshot().Lines[0].Quantity)

	held := s.Snapshot()
	mustApply(t, s, intent.SetQuantity{ProductID: "A", Quantity: 3})
	require.Equal(t, 1, held.Lines[0].Quantity, "earlier snapshot is never mutated")
}

func TestOnChangeNotifiesAndUnsubscribes(t *testing.T) {
	s := newStore()
	var got []cart.Snapshot
	unsubscribe := s.OnChange(func(snap cart.Snapshot) { got = append(got, snap) })

	mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 100, Quantity: 1})
	s.Clear()
	require.Len(t, got, 2)
	require.Len(t, got[0].Lines, 1)
	require.Empty(t, got[1].Lines)

	unsubscribe()
	mustApply(t, s, intent.AddItem{ProductID: "B", UnitPrice: 100, Quantity: 1})
	require.Len(t, got, 2)
}

func TestLockRejectsMutationsUntilUnlock(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 100, Quantity: 1})

	locked, err := s.Lock()
	require.NoError(t, err)
	require.Len(t, locked.Lines, 1)
	require.True(t, s.Locked())

	_, err = s.Apply(intent.AddItem{ProductID: "B", UnitPrice: 100, Quantity: 1})
	var lockedErr *cart.CartLockedError
	require.ErrorAs(t, err, &lockedErr)
	require.ErrorIs(t, err, cart.ErrLocked)
	require.Equal(t, intent.KindAddItem, lockedErr.Kind)

	_, err = s.Lock()
	require.ErrorIs(t, err, cart.ErrLocked)

	cleared := s.Clear()
	require.Empty(t, cleared.Lines, "clear is permitted while locked")

	s.Unlock()
	require.False(t, s.Locked())
	mustApply(t, s, intent.AddItem{ProductID: "B", UnitPrice: 100, Quantity: 1})
}

func TestVersionAdvancesOnlyOnChange(t *testing.T) {
	s := newStore()
	v0 := s.Snapshot().Version
	v1 := mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 100, Quantity: 1}).Version
	v2 := mustApply(t, s, intent.RemoveItem{ProductID: "missing"}).Version
	require.Greater(t, v1, v0)
	require.Equal(t, v1, v2)
}

// TestRandomSequencesMatchModel replays random intent sequences against a
// map-based model and checks merge, uniqueness, quantity and total.
func TestRandomSequencesMatchModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"A", "B", "C", "D"}
	prices := map[string]pricing.Money{"A": 199, "B": 1000, "C": 0, "D": 4550}

	for round := 0; round < 50; round++ {
		s := newStore()
		model := map[string]int{}

		for step := 0; step < 60; step++ {
			id := ids[rng.Intn(len(ids))]
			switch rng.Intn(3) {
			case 0:
				q := rng.Intn(5) + 1
				mustApply(t, s, intent.AddItem{ProductID: id, UnitPrice: prices[id], Quantity: q})
				model[id] += q
			case 1:
				q := rng.Intn(7) - 2
				mustApply(t, s, intent.SetQuantity{ProductID: id, Quantity: q})
				if _, ok := model[id]; ok {
					if q <= 0 {
						delete(model, id)
					} else {
						model[id] = q
					}
				}
			case 2:
				mustApply(t, s, intent.RemoveItem{ProductID: id})
				delete(model, id)
			}

			snap := s.Snapshot()
			seen := map[string]bool{}
			var total pricing.Money
			for _, l := range snap.Lines {
				require.False(t, seen[l.ProductID], "duplicate line for %s", l.ProductID)
				seen[l.ProductID] = true
				require.GreaterOrEqual(t, l.Quantity, 1)
				require.Equal(t, model[l.ProductID], l.Quantity)
				total += prices[l.ProductID] * pricing.Money(l.Quantity)
			}
			require.Len(t, snap.Lines, len(model))
			require.Equal(t, total, snap.Total)
		}
	}
}

func TestMergeSumsAllAdds(t *testing.T) {
	s := newStore()
	sum := 0
	for _, q := range []int{1, 3, 2, 8, 1} {
		mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 10, Quantity: q})
		sum += q
	}
	snap := s.Snapshot()
	require.Len(t, snap.Lines, 1)
	require.Equal(t, sum, snap.Lines[0].Quantity)
}

func TestOversizedQuantitiesAreRejected(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", Name: "Mug", UnitPrice: 1000, Quantity: 1})
	before := s.Snapshot()

	cases := []intent.Intent{
		intent.AddItem{ProductID: "A", Name: "Mug", UnitPrice: 1000, Quantity: math.MaxInt},
		intent.AddItem{ProductID: "B", Name: "Tee", UnitPrice: 1000, Quantity: math.MaxInt / 100},
		intent.SetQuantity{ProductID: "A", Quantity: math.MaxInt / 100},
	}
	for _, in := range cases {
		_, err := s.Apply(in)
		var verr *cart.ValidationError
		require.ErrorAs(t, err, &verr, "%#v", in)
		require.Equal(t, "quantity", verr.Field)
		require.Equal(t, before, s.Snapshot())
	}
}

func TestMergeAtLimitOfPriceableRange(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 0, Quantity: math.MaxInt - 1})
	snap := mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 0, Quantity: 1})
	require.Equal(t, math.MaxInt, snap.Lines[0].Quantity)
	require.Zero(t, snap.Total)

	_, err := s.Apply(intent.AddItem{ProductID: "A", Quantity: 1})
	require.Error(t, err)
	require.Equal(t, math.MaxInt, s.Snapshot().Lines[0].Quantity)
}

func TestStepAdjustsExistingLinesOnly(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", Name: "Mug", UnitPrice: 1000, Quantity: 2})

	snap, err := s.Step("A", 1)
	require.NoError(t, err)
	require.Equal(t, 3, snap.Lines[0].Quantity)
	require.Equal(t, "Mug", snap.Lines[0].Name)

	snap, err = s.Step("Z", 1)
	require.NoError(t, err)
	_, ok := snap.Line("Z")
	require.False(t, ok)

	for i := 0; i < 3; i++ {
		snap, err = s.Step("A", -1)
		require.NoError(t, err)
	}
	require.True(t, snap.Empty())

	snap, err = s.Step("A", 1)
	require.NoError(t, err)
	require.True(t, snap.Empty(), "a removed line is not re-created")
}

func TestStepRespectsLock(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 100, Quantity: 1})
	_, err := s.Lock()
	require.NoError(t, err)

	_, err = s.Step("A", 1)
	require.ErrorIs(t, err, cart.ErrLocked)
	_, err = s.Step("A", -1)
	require.ErrorIs(t, err, cart.ErrLocked)

	s.Unlock()
	line, ok := s.Snapshot().Line("A")
	require.True(t, ok)
	require.Equal(t, 1, line.Quantity)
}

func TestConcurrentStepNeverResurrectsRemovedLine(t *testing.T) {
	s := newStore()
	mustApply(t, s, intent.AddItem{ProductID: "A", UnitPrice: 100, Quantity: 1})

	errs := make(chan error, 51)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Step("A", 1)
			errs <- err
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Apply(intent.RemoveItem{ProductID: "A"})
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	_, ok := s.Snapshot().Line("A")
	require.False(t, ok)
}
