package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError for callers that branch on the failure category
// rather than on the concrete code.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindUnavailable   Kind = "unavailable"
	KindInconsistency Kind = "inconsistency"
	KindUnauthorized  Kind = "unauthorized"
	KindForbidden     Kind = "forbidden"
	KindRateLimited   Kind = "rate_limited"
	KindInternal      Kind = "internal"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Kind       Kind   `json:"-"`
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

// Retryable reports whether the same request may succeed later without changes.
func (e *AppError) Retryable() bool {
	return e.Kind == KindUnavailable || e.Kind == KindRateLimited
}

// New creates a new AppError.
func New(code string, kind Kind, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, kind Kind, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// IsKind reports whether err is (or wraps) an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// CodeOf returns the AppError code carried by err, or "" if err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Validation (VAL) ----

// Validation returns a generic VAL_001 error with a caller-facing message.
func Validation(message string) *AppError {
	return New("VAL_001", KindValidation, message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_001", KindValidation, "Amount must be a positive value with at most 2 decimal places", http.StatusBadRequest)
}

func ErrAmountOutOfPlanRange(amount, min, max string) *AppError {
	return New("VAL_002", KindValidation,
		fmt.Sprintf("Investment amount $%s is outside the plan's range of $%s - $%s", amount, min, max),
		http.StatusBadRequest)
}

func ErrBelowMinimumCrypto(amount, min, currency string) *AppError {
	return New("VAL_003", KindValidation,
		fmt.Sprintf("Converted amount %s %s is below the minimum of %s %s", amount, currency, min, currency),
		http.StatusBadRequest)
}

func ErrInvalidPin() *AppError {
	return New("VAL_004", KindValidation, "Incorrect payout PIN", http.StatusBadRequest)
}

func ErrPinNotSet() *AppError {
	return New("VAL_005", KindValidation, "Payout PIN is not set", http.StatusBadRequest)
}

func ErrInsufficientBalance(available string) *AppError {
	return New("VAL_006", KindValidation,
		fmt.Sprintf("Insufficient eligible balance. You can withdraw up to $%s", available),
		http.StatusBadRequest)
}

func ErrPayoutAddressMismatch() *AppError {
	return New("VAL_007", KindValidation, "Payout address does not match the address on file", http.StatusBadRequest)
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New("VAL_008", KindValidation,
		fmt.Sprintf("Request body exceeds %d bytes", limit),
		http.StatusRequestEntityTooLarge)
}

// ---- State machine (CON) ----

func ErrInvalidTransition(entity, current string) *AppError {
	return New("CON_001", KindConflict,
		fmt.Sprintf("%s is not in the required state (current status: %s)", entity, current),
		http.StatusConflict)
}

// ErrConcurrentUpdate is returned when a conditional update lost a race.
func ErrConcurrentUpdate(entity string) *AppError {
	return New("CON_002", KindConflict,
		fmt.Sprintf("%s was modified by another operation", entity),
		http.StatusConflict)
}

func ErrAccountNotEligible(reason string) *AppError {
	return New("CON_003", KindConflict, reason, http.StatusConflict)
}

// ---- Not found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", KindNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Collaborators (SVC) ----

func ErrRateUnavailable(currency string, err error) *AppError {
	return Wrap("SVC_001", KindUnavailable,
		fmt.Sprintf("Exchange rate for %s is temporarily unavailable", currency),
		http.StatusServiceUnavailable, err)
}

// ---- Ledger integrity (INC) ----

func ErrInconsistency(err error) *AppError {
	return Wrap("INC_001", KindInconsistency, "Internal ledger inconsistency", http.StatusInternalServerError, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", KindUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", KindForbidden, "Insufficient privileges", http.StatusForbidden)
}

func ErrInvalidSignature() *AppError {
	return New("AUTH_003", KindUnauthorized, "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("AUTH_004", KindForbidden, "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("AUTH_005", KindForbidden, "Nonce has already been used", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", KindRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", KindInternal, "Internal server error", http.StatusInternalServerError, err)
}
