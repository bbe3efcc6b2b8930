package storefront

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/intent"
)

var errInvalidJSON = errors.New("storefront: invalid json body")

func toAppError(err error) *common.AppError {
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}
	var (
		validation  *cart.ValidationError
		unsupported *intent.UnsupportedIntentError
		failed      *checkout.CheckoutFailedError
		timeout     *checkout.CheckoutTimeoutError
		empty       checkout.EmptyCartError
	)
	switch {
	case errors.Is(err, errInvalidJSON):
		return common.NewAppError(common.CodeInvalidJSON, "request body must be valid JSON", http.StatusBadRequest, err)
	case errors.As(err, &validation):
		return common.NewAppError(common.CodeValidationFailed, validation.Error(), http.StatusBadRequest, err).
			WithDetail("field", validation.Field).
			WithDetail("reason", validation.Reason)
	case errors.As(err, &unsupported):
		return common.NewAppError(common.CodeUnsupportedIntent, unsupported.Error(), http.StatusBadRequest, err)
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		return common.NewAppError(common.CodeCheckoutInProgress, "a checkout is already in progress", http.StatusConflict, err)
	case errors.Is(err, cart.ErrLocked):
		return common.NewAppError(common.CodeCartLocked, "cart is locked while checkout is in progress", http.StatusConflict, err)
	case errors.As(err, &empty):
		return common.NewAppError(common.CodeCartEmpty, "cart is empty", http.StatusUnprocessableEntity, err)
	case errors.As(err, &timeout):
		return common.NewAppError(common.CodeCheckoutTimeout, "the order service did not respond in time, your cart was kept", http.StatusGatewayTimeout, err)
	case errors.As(err, &failed):
		return common.NewAppError(common.CodeCheckoutFailed, failed.Message, http.StatusBadGateway, err)
	case errors.Is(err, catalog.ErrProductNotFound):
		return common.NewAppError(common.CodeProductNotFound, "product not found", http.StatusNotFound, err)
	default:
		return common.NewAppError(common.CodeInternal, "internal server error", http.StatusInternalServerError, err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	evt := h.logger.Warn()
	if appErr.Status() >= http.StatusInternalServerError {
		evt = h.logger.Error()
	}
	evt.Err(err).Str("code", appErr.Code).Str("path", r.URL.Path).Msg("storefront_request_failed")
	common.WriteError(w, appErr)
}
