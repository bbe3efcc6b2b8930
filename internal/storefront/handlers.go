package storefront

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/intent"
)

const defaultMaxBody = 64 << 10

// Handler exposes the storefront HTTP API for a session.
type Handler struct {
	session *Session
	logger  zerolog.Logger
	maxBody int64
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Session *Session
	Logger  zerolog.Logger
	// MaxBodyBytes caps JSON request bodies. Zero means 64 KiB.
	MaxBodyBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Handler{session: cfg.Session, logger: cfg.Logger, maxBody: maxBody}
}

// Mount registers the storefront routes on r. checkoutMW wraps only the
// checkout endpoints.
func (h *Handler) Mount(r chi.Router, checkoutMW ...func(http.Handler) http.Handler) {
	r.Get("/products", h.Products)
	r.Route("/cart", func(c chi.Router) {
		c.Get("/", h.Cart)
		c.Get("/events", h.Stream)
		c.Post("/items", h.AddItem)
		c.Put("/items/{productId}", h.SetQuantity)
		c.Post("/items/{productId}/increment", h.Increment)
		c.Post("/items/{productId}/decrement", h.Decrement)
		c.Delete("/items/{productId}", h.RemoveItem)
	})
	r.Post("/intents", h.Intents)
	r.With(checkoutMW...).Post("/checkout", h.Checkout)
}

// Products handles GET /api/v1/products. A failed fetch still answers with an
// empty list alongside the error so views can render a message.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.session.Catalog.Products(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("catalog_fetch_failed")
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"data": products,
			"error": common.ErrorBody{
				Code:    "CATALOG_UNAVAILABLE",
				Message: "Could not load products. Please try again later.",
			},
		})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

// Cart handles GET /api/v1/cart.
func (h *Handler) Cart(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": newCartView(h.session.Store.Snapshot())})
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddItem handles POST /api/v1/cart/items. Name and price come from the catalog.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := h.session.ResolveAddItem(r.Context(), strings.TrimSpace(req.ProductID), req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.apply(w, r, in, http.StatusCreated)
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// SetQuantity handles PUT /api/v1/cart/items/{productId}.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		h.writeError(w, r, common.NewAppError(common.CodeValidationFailed, "quantity is required", http.StatusBadRequest, nil).
			WithDetail("field", "quantity").
			WithDetail("reason", "is required"))
		return
	}
	h.apply(w, r, intent.SetQuantity{ProductID: chi.URLParam(r, "productId"), Quantity: *req.Quantity}, http.StatusOK)
}

// Increment handles POST /api/v1/cart/items/{productId}/increment. It merges
// one more unit into an existing line and is a no-op for unknown products.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, 1)
}

// Decrement handles POST /api/v1/cart/items/{productId}/decrement. Reaching
// zero removes the line.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, -1)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, delta int) {
	snap, err := h.session.Store.Step(chi.URLParam(r, "productId"), delta)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": newCartView(snap)})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, intent.RemoveItem{ProductID: chi.URLParam(r, "productId")}, http.StatusOK)
}

// Intents handles POST /api/v1/intents, accepting {kind, payload} envelopes.
// Checkout intents are accepted and complete in the background; the outcome
// is delivered on the event stream.
func (h *Handler) Intents(w http.ResponseWriter, r *http.Request) {
	var env intent.Envelope
	if err := h.decode(w, r, &env); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := intent.Decode(env)
	if err != nil {
		var unsupported *intent.UnsupportedIntentError
		if !errors.As(err, &unsupported) {
			err = fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
		h.writeError(w, r, err)
		return
	}
	switch v := in.(type) {
	case intent.AddItem:
		resolved, err := h.session.ResolveAddItem(r.Context(), strings.TrimSpace(v.ProductID), v.Quantity)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		in = resolved
	case intent.Checkout:
		if err := h.session.Publish(r.Context(), in); err != nil {
			h.writeError(w, r, err)
			return
		}
		common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"status": "pending"}})
		return
	}
	h.apply(w, r, in, http.StatusOK)
}

// Checkout handles POST /api/v1/checkout and waits for the order gateway.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.Checkout.Checkout(r.Context())
	h.session.SyncCart()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": res})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, in intent.Intent, status int) {
	if err := h.session.Publish(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, status, map[string]any{"data": newCartView(h.session.Store.Snapshot())})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.NewAppError(common.CodePayloadTooLarge, "request body too large", http.StatusRequestEntityTooLarge, err)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errInvalidJSON)
		}
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return nil
}
