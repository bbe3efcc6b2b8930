package intent_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/intent"
)

type captureHandler struct {
	seen []intent.Intent
	err  error
}

func (c *captureHandler) Handle(_ context.Context, in intent.Intent) error {
	c.seen = append(c.seen, in)
	return c.err
}

type bogusIntent struct{}

func (bogusIntent) Kind() intent.Kind { return "wishlist" }

func TestPublishDeliversInOrder(t *testing.T) {
	bus := intent.NewBus(zerolog.Nop())
	first := &captureHandler{}
	second := &captureHandler{}
	bus.Subscribe(first)
	bus.Subscribe(second)

	ctx := context.Background()
	published := []intent.Intent{
		intent.AddItem{ProductID: "A", Quantity: 1},
		intent.AddItem{ProductID: "B", Quantity: 1},
		intent.RemoveItem{ProductID: "A"},
	}
	for _, in := range published {
		require.NoError(t, bus.Publish(ctx, in))
	}
	require.Equal(t, published, first.seen)
	require.Equal(t, published, second.seen)
}

func TestPublishRejectsUnknownIntent(t *testing.T) {
	bus := intent.NewBus(zerolog.Nop())
	handler := &captureHandler{}
	bus.Subscribe(handler)

	err := bus.Publish(context.Background(), bogusIntent{})
	var unsupported *intent.UnsupportedIntentError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, intent.Kind("wishlist"), unsupported.Kind)
	require.Empty(t, handler.seen)

	require.ErrorAs(t, bus.Publish(context.Background(), nil), &unsupported)
}

func TestPublishJoinsHandlerErrors(t *testing.T) {
	bus := intent.NewBus(zerolog.Nop())
	boom := errors.New("boom")
	failing := &captureHandler{err: boom}
	after := &captureHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(after)

	err := bus.Publish(context.Background(), intent.Checkout{})
	require.ErrorIs(t, err, boom)
	require.Len(t, after.seen, 1, "later handlers still receive the intent")
}

func TestHandlerFunc(t *testing.T) {
	bus := intent.NewBus(zerolog.Nop())
	var kinds []intent.Kind
	bus.Subscribe(intent.HandlerFunc(func(_ context.Context, in intent.Intent) error {
		kinds = append(kinds, in.Kind())
		return nil
	}))
	require.NoError(t, bus.Publish(context.Background(), intent.SetQuantity{ProductID: "A", Quantity: 3}))
	require.Equal(t, []intent.Kind{intent.KindSetQuantity}, kinds)
}

func TestDecodeEnvelope(t *testing.T) {
	in, err := intent.Decode(intent.Envelope{
		Kind:    intent.KindAddItem,
		Payload: json.RawMessage(`{"productId":"p1","name":"Mug","unitPrice":1250,"quantity":2}`),
	})
	require.NoError(t, err)
	require.Equal(t, intent.AddItem{ProductID: "p1", Name: "Mug", UnitPrice: 1250, Quantity: 2}, in)

	in, err = intent.Decode(intent.Envelope{Kind: intent.KindCheckout})
	require.NoError(t, err)
	require.Equal(t, intent.Checkout{}, in)

	_, err = intent.Decode(intent.Envelope{Kind: "teleport"})
	var unsupported *intent.UnsupportedIntentError
	require.ErrorAs(t, err, &unsupported)

	_, err = intent.Decode(intent.Envelope{Kind: intent.KindRemoveItem, Payload: json.RawMessage(`{`)})
	require.Error(t, err)
}

func TestKnownKindsMutating(t *testing.T) {
	mutating := 0
	for _, k := range intent.KnownKinds() {
		if k.Mutating() {
			mutating++
		}
	}
	require.Equal(t, 3, mutating)
	require.False(t, intent.KindCheckout.Mutating())
}
