package intent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Intent is an immutable description of a user-requested cart change.
type Intent interface {
	Kind() Kind
}

// AddItem adds quantity units of a product, merging into an existing line.
type AddItem struct {
	ProductID string        `json:"productId" validate:"required"`
	Name      string        `json:"name"`
	UnitPrice pricing.Money `json:"unitPrice" validate:"gte=0"`
	Quantity  int           `json:"quantity" validate:"gte=1"`
}

// SetQuantity sets a line's quantity to an absolute value. Zero or less
// removes the line.
type SetQuantity struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// RemoveItem drops a line if present.
type RemoveItem struct {
	ProductID string `json:"productId" validate:"required"`
}

// Checkout asks for the current cart to be submitted as an order.
type Checkout struct{}

func (AddItem) Kind() Kind     { return KindAddItem }
func (SetQuantity) Kind() Kind { return KindSetQuantity }
func (RemoveItem) Kind() Kind  { return KindRemoveItem }
func (Checkout) Kind() Kind    { return KindCheckout }

// UnsupportedIntentError is returned for intents whose kind or concrete type
// the bus does not know.
type UnsupportedIntentError struct {
	Kind Kind
}

func (e *UnsupportedIntentError) Error() string {
	if e == nil || e.Kind == "" {
		return "intent: unsupported intent"
	}
	return fmt.Sprintf("intent: unsupported intent kind %q", string(e.Kind))
}

// Supported reports whether in is one of the four intent shapes.
func Supported(in Intent) bool {
	switch in.(type) {
	case AddItem, SetQuantity, RemoveItem, Checkout:
		return true
	default:
		return false
	}
}

// Envelope is the wire form of an intent: a kind tag plus its payload.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode turns an envelope into a typed intent.
func Decode(env Envelope) (Intent, error) {
	kind := Kind(strings.TrimSpace(string(env.Kind)))
	var (
		in  Intent
		err error
	)
	switch kind {
	case KindAddItem:
		var v AddItem
		err = decodePayload(env.Payload, &v)
		in = v
	case KindSetQuantity:
		var v SetQuantity
		err = decodePayload(env.Payload, &v)
		in = v
	case KindRemoveItem:
		var v RemoveItem
		err = decodePayload(env.Payload, &v)
		in = v
	case KindCheckout:
		in = Checkout{}
	default:
		return nil, &UnsupportedIntentError{Kind: kind}
	}
	if err != nil {
		return nil, fmt.Errorf("intent: decode %s payload: %w", kind, err)
	}
	return in, nil
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
