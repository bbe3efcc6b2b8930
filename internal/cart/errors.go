package cart

import (
	"errors"
	"fmt"

	"github.com/noah-isme/toko-storefront/internal/intent"
)

// ErrLocked indicates the cart is frozen while a checkout is in flight.
var ErrLocked = errors.New("cart locked during checkout")

// ValidationError reports a malformed intent payload. Field uses the JSON
// name of the offending field.
type ValidationError struct {
	Kind   intent.Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	reason := e.Reason
	if reason == "" {
		reason = "invalid value"
	}
	return fmt.Sprintf("cart: %s: %s %s", e.Kind, e.Field, reason)
}

// CartLockedError is returned for mutating intents received during checkout.
type CartLockedError struct {
	Kind intent.Kind
}

func (e *CartLockedError) Error() string {
	if e == nil || e.Kind == "" {
		return "cart: " + ErrLocked.Error()
	}
	return fmt.Sprintf("cart: %s rejected: %s", e.Kind, ErrLocked.Error())
}

// Is lets errors.Is match ErrLocked.
func (e *CartLockedError) Is(target error) bool {
	return target == ErrLocked
}
