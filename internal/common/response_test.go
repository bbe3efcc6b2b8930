package common_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/common"
)

type errorEnvelope struct {
	Error common.ErrorBody `json:"error"`
}

func TestWriteErrorUsesAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	appErr := common.NewAppError("CART_LOCKED", "cart is locked during checkout", http.StatusConflict, errors.New("locked"))
	common.WriteError(rr, appErr.WithDetail("kind", "add-to-cart"))

	require.Equal(t, http.StatusConflict, rr.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "CART_LOCKED", body.Error.Code)
	require.Equal(t, "cart is locked during checkout", body.Error.Message)
	require.Equal(t, map[string]string{"kind": "add-to-cart"}, body.Error.Details)

	wrapped := fmt.Errorf("handler: %w", appErr)
	found, ok := common.AsAppError(wrapped)
	require.True(t, ok)
	require.Same(t, appErr, found)
	require.ErrorContains(t, appErr, "CART_LOCKED: locked")
}

func TestWriteErrorFallsBackToInternal(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), `"`+common.CodeInternal+`"`)
	require.NotContains(t, rr.Body.String(), "boom")
}

func TestAppErrorDefaultsToServerError(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, &common.AppError{Code: common.CodeInternal, Message: "unset status"})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "details")
}
