package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the "code" field of API error bodies.
const (
	CodeInvalidJSON        = "INVALID_JSON"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedIntent  = "UNSUPPORTED_INTENT"
	CodeProductNotFound    = "PRODUCT_NOT_FOUND"
	CodeCartLocked         = "CART_LOCKED"
	CodeCartEmpty          = "CART_EMPTY"
	CodeCheckoutInProgress = "CHECKOUT_IN_PROGRESS"
	CodeCheckoutTimeout    = "CHECKOUT_TIMEOUT"
	CodeCheckoutFailed     = "CHECKOUT_FAILED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeIdempotentReplay   = "IDEMPOTENT_REPLAY"
	CodeInternal           = "INTERNAL"
)

// AppError is an error rendered to API clients. Message and Details are
// client-facing; Err stays server-side for logs.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]string
	Err        error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Status returns HTTPStatus, defaulting to 500.
func (e *AppError) Status() int {
	if e == nil || e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// WithDetail records a client-facing detail such as the offending field.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string, 2)
	}
	e.Details[key] = value
	return e
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) && target != nil {
		return target, true
	}
	return nil, false
}
