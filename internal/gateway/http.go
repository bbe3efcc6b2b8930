package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/resilience"
)

const maxResponseBytes = 1 << 20

type orderItem struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
}

type orderRequest struct {
	Items []orderItem `json:"items"`
	Total json.Number `json:"total"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// HTTPGateway posts orders as JSON to {BaseURL}/orders.
type HTTPGateway struct {
	baseURL string
	client  resilience.HTTPClient
	logger  zerolog.Logger
}

// NewHTTPGateway constructs a gateway for baseURL. The client should carry an
// instrumented transport and a breaker for the order service.
func NewHTTPGateway(baseURL string, client resilience.HTTPClient, logger zerolog.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
		logger:  logger,
	}
}

// SubmitOrder implements checkout.OrderGateway. Each submission carries a fresh
// Idempotency-Key reused across retries.
func (g *HTTPGateway) SubmitOrder(ctx context.Context, snap cart.Snapshot) (checkout.OrderResult, error) {
	if g.baseURL == "" {
		return checkout.OrderResult{}, errors.New("gateway: base url not configured")
	}
	payload := orderRequest{
		Items: make([]orderItem, 0, len(snap.Lines)),
		Total: major(snap.Total),
	}
	for _, l := range snap.Lines {
		payload.Items = append(payload.Items, orderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     major(l.UnitPrice),
			Quantity:  l.Quantity,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return checkout.OrderResult{}, fmt.Errorf("gateway: encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return checkout.OrderResult{}, err
	}
	key := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", key)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return checkout.OrderResult{}, fmt.Errorf("gateway: submit order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return checkout.OrderResult{}, fmt.Errorf("gateway: read response: %w", err)
	}

	g.logger.Debug().
		Str("idempotency_key", key).
		Int("status", resp.StatusCode).
		Int("lines", len(snap.Lines)).
		Msg("order_submitted")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var result checkout.OrderResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return checkout.OrderResult{}, fmt.Errorf("gateway: decode response: %w", err)
		}
		return result, nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return checkout.OrderResult{}, &checkout.RejectedError{Message: rejectionMessage(raw)}
	}
	return checkout.OrderResult{}, fmt.Errorf("gateway: unexpected status %s", resp.Status)
}

func rejectionMessage(raw []byte) string {
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != nil && body.Error.Message != "" {
			return body.Error.Message
		}
	}
	return checkout.DefaultFailureMessage
}

func major(m pricing.Money) json.Number {
	return json.Number(pricing.ToDecimal(m).StringFixed(2))
}
