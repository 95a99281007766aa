package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Configuration (CFG) ----

// ErrConfiguration is fatal to the call and needs operator action.
func ErrConfiguration(message string) *AppError {
	return New("CFG_001", message, http.StatusInternalServerError)
}

// ---- Payment Business Logic (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrUnsupportedCurrency(currency string) *AppError {
	return New("PAY_008", fmt.Sprintf("Unsupported currency %q", currency), http.StatusBadRequest)
}

func ErrPaymentNotBound() *AppError {
	return New("PAY_009", "Order has no payment binding", http.StatusConflict)
}

func ErrOrderAlreadyConfirmed() *AppError {
	return New("PAY_010", "Order payment already confirmed", http.StatusConflict)
}

func ErrAddressPoolExhausted(currency string) *AppError {
	return New("PAY_011", fmt.Sprintf("No free %s receiving address, retry later", currency), http.StatusServiceUnavailable)
}

// ---- External Sources (EXT) ----

// ErrExternalSource marks an unreachable rate feed or explorer. Recovered locally, never shown to shoppers.
func ErrExternalSource(err error) *AppError {
	return Wrap("EXT_001", "External source unavailable", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// ErrConflict reports a lost compare-and-set on an order.
func ErrConflict(err error) *AppError {
	return Wrap("SYS_009", "Concurrent order update", http.StatusConflict, err)
}

func ErrPayloadTooLarge() *AppError {
	return New("SYS_013", "Request body too large", http.StatusRequestEntityTooLarge)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
