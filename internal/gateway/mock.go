package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/checkout"
)

// MockGateway simulates an order service in-process: it waits Latency and
// then accepts any non-empty cart.
type MockGateway struct {
	Latency time.Duration
	Now     func() time.Time
}

// SubmitOrder implements checkout.OrderGateway.
func (m MockGateway) SubmitOrder(ctx context.Context, snap cart.Snapshot) (checkout.OrderResult, error) {
	if m.Latency > 0 {
		timer := time.NewTimer(m.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return checkout.OrderResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	if snap.Empty() {
		return checkout.OrderResult{}, &checkout.RejectedError{Message: "Cannot submit an empty cart."}
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return checkout.OrderResult{
		Success: true,
		OrderID: fmt.Sprintf("mockOrder_%d", now().UnixMilli()),
		Message: "Order placed successfully!",
	}, nil
}
