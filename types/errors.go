package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types
type X402Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

func (e X402Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e X402Error) Unwrap() error {
	return e.Err
}

// Title is the stable, user-visible name of the error kind.
func (e X402Error) Title() string {
	if k, ok := kinds[e.Code]; ok {
		return k.title
	}
	return "Internal Error"
}

// Status is the HTTP status an error of this kind is reported with.
func (e X402Error) Status() int {
	if k, ok := kinds[e.Code]; ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// Common error codes
const (
	ErrPaymentRequired    = "PAYMENT_REQUIRED"
	ErrInvalidPayment     = "INVALID_PAYMENT"
	ErrPaymentFailed      = "PAYMENT_FAILED"
	ErrInsufficientAmount = "INSUFFICIENT_AMOUNT"
	ErrMalformedAccount   = "MALFORMED_ACCOUNT"
	ErrNetworkError       = "NETWORK_ERROR"
	ErrServiceExecution   = "SERVICE_EXECUTION_FAILED"
	ErrConfigError        = "CONFIG_ERROR"
)

type kind struct {
	title  string
	status int
}

var kinds = map[string]kind{
	ErrPaymentRequired:    {"Payment Required", http.StatusPaymentRequired},
	ErrInvalidPayment:     {"Invalid Payment", http.StatusBadRequest},
	ErrPaymentFailed:      {"Payment Failed", http.StatusBadRequest},
	ErrInsufficientAmount: {"Insufficient Payment", http.StatusBadRequest},
	ErrMalformedAccount:   {"Malformed Account", http.StatusInternalServerError},
	ErrNetworkError:       {"Network Error", http.StatusBadGateway},
	ErrServiceExecution:   {"Service execution failed", http.StatusInternalServerError},
	ErrConfigError:        {"Configuration Error", http.StatusInternalServerError},
}

// IsCode reports whether err carries an X402Error with the given code.
func IsCode(err error, code string) bool {
	var xe *X402Error
	return errors.As(err, &xe) && xe.Code == code
}

// AsX402 returns the X402Error in err's chain, if any.
func AsX402(err error) (*X402Error, bool) {
	var xe *X402Error
	if errors.As(err, &xe) {
		return xe, true
	}
	return nil, false
}

func NewNoProofError() *X402Error {
	return &X402Error{
		Code:    ErrPaymentRequired,
		Message: "This service requires x402 payment",
	}
}

func NewInvalidPaymentError(reason string) *X402Error {
	return &X402Error{
		Code:    ErrInvalidPayment,
		Message: reason,
	}
}

func NewPaymentFailedError(txErr any) *X402Error {
	return &X402Error{
		Code:    ErrPaymentFailed,
		Message: "Transaction failed on blockchain",
		Data:    txErr,
	}
}

func NewInsufficientPaymentError(required uint64, received int64) *X402Error {
	return &X402Error{
		Code:    ErrInsufficientAmount,
		Message: fmt.Sprintf("Required: %d lamports, Received: %d lamports", required, received),
		Data: map[string]any{
			"required": required,
			"received": received,
		},
	}
}

func NewMalformedAccountError(field string, need, have int) *X402Error {
	return &X402Error{
		Code:    ErrMalformedAccount,
		Message: fmt.Sprintf("account data too short reading %s: need %d bytes, have %d", field, need, have),
	}
}

func NewNetworkError(op string, err error) *X402Error {
	return &X402Error{
		Code:    ErrNetworkError,
		Message: fmt.Sprintf("ledger %s failed", op),
		Err:     err,
	}
}

func NewServiceExecutionError(err error) *X402Error {
	return &X402Error{
		Code:    ErrServiceExecution,
		Message: err.Error(),
		Err:     err,
	}
}

func NewConfigError(format string, args ...any) *X402Error {
	return &X402Error{
		Code:    ErrConfigError,
		Message: fmt.Sprintf(format, args...),
	}
}
