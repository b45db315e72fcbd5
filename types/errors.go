package types

import (
	"errors"
	"fmt"
)

// PaymentError is returned by every engine operation that is rejected.
type PaymentError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Cause   error       `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrInvalidPayment          = "INVALID_PAYMENT"
	ErrInvalidAction           = "INVALID_ACTION"
	ErrPaymentAlreadyInProcess = "PAYMENT_ALREADY_IN_PROCESS"
	ErrPaymentAlreadyReleased  = "PAYMENT_ALREADY_RELEASED"
	ErrReleaseFailed           = "RELEASE_FAILED"
	ErrTransferFailed          = "TRANSFER_FAILED"
	ErrHoldFailed              = "HOLD_FAILED"
	ErrMathError               = "MATH_ERROR"
	ErrBalanceOverflow         = "BALANCE_OVERFLOW"
	ErrRefundQueueFull         = "REFUND_QUEUE_FULL"
	ErrIDOverflow              = "ID_OVERFLOW"
	ErrInvalidAmount           = "INVALID_AMOUNT"
	ErrRemarkTooLong           = "REMARK_TOO_LONG"
	ErrMaxFeesExceeded         = "MAX_FEES_EXCEEDED"
	ErrStorage                 = "STORAGE_ERROR"
)

// NewError builds a PaymentError with a formatted message.
func NewError(code string, format string, args ...any) *PaymentError {
	return &PaymentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a PaymentError carrying cause.
func WrapError(code string, cause error, format string, args ...any) *PaymentError {
	return &PaymentError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsCode reports whether err, or any error it wraps, is a PaymentError with code.
func IsCode(err error, code string) bool {
	var pe *PaymentError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.Code == code {
		return true
	}
	return IsCode(pe.Cause, code)
}

// CodeOf returns the code of the outermost PaymentError in err, or "" if none.
func CodeOf(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
