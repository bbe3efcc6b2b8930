package checkout

import (
	"errors"
	"fmt"
	"time"
)

// DefaultFailureMessage is surfaced when the gateway gives no reason.
const DefaultFailureMessage = "Please try again."

// ErrCheckoutInProgress is returned when a checkout is already holding the cart.
var ErrCheckoutInProgress = errors.New("checkout: already in progress")

// EmptyCartError is returned before any gateway call when the cart has no lines.
type EmptyCartError struct{}

func (EmptyCartError) Error() string { return "checkout: cart is empty" }

// CheckoutFailedError reports a gateway failure. The cart is left untouched.
type CheckoutFailedError struct {
	Message string
	Err     error
}

func (e *CheckoutFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout failed: %s: %v", e.Message, e.Err)
	}
	return "checkout failed: " + e.Message
}

func (e *CheckoutFailedError) Unwrap() error { return e.Err }

// CheckoutTimeoutError reports that the gateway did not answer within After.
type CheckoutTimeoutError struct {
	After time.Duration
}

func (e *CheckoutTimeoutError) Error() string {
	return fmt.Sprintf("checkout: gateway did not respond within %s", e.After)
}

// RejectedError is returned by gateways when the order was refused with a
// message meant for the shopper.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return "order rejected: " + e.Message }
