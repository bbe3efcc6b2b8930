package storefront

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/checkout"
)

func TestBroadcasterDropsOldestWhenFull(t *testing.T) {
	b := NewBroadcaster(2)
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 1; i <= 3; i++ {
		b.Publish(Event{Name: EventCart, Data: i})
	}

	require.Equal(t, 2, (<-ch).Data)
	require.Equal(t, 3, (<-ch).Data)
}

func TestBroadcasterCancelAndClose(t *testing.T) {
	b := NewBroadcaster(1)
	first, cancelFirst := b.Subscribe()
	second, cancelSecond := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	cancelFirst()
	cancelFirst()
	_, ok := <-first
	require.False(t, ok)
	require.Equal(t, 1, b.Subscribers())

	b.Close()
	_, ok = <-second
	require.False(t, ok)
	require.Equal(t, 0, b.Subscribers())
	cancelSecond()

	late, cancelLate := b.Subscribe()
	defer cancelLate()
	_, ok = <-late
	require.False(t, ok)
}

func TestCheckoutViewFromOutcome(t *testing.T) {
	v := newCheckoutView(checkout.Outcome{Err: &checkout.CheckoutFailedError{Message: checkout.DefaultFailureMessage}})
	require.False(t, v.Success)
	require.Equal(t, "CHECKOUT_FAILED", v.Code)
	require.Equal(t, "Please try again.", v.Message)
}

func TestCheckoutViewFromSuccess(t *testing.T) {
	v := newCheckoutView(checkout.Outcome{Result: checkout.OrderResult{Success: true, OrderID: "ord-9", Message: "done"}})
	require.True(t, v.Success)
	require.Equal(t, "ord-9", v.OrderID)
	require.Empty(t, v.Code)
}
