package technostore

import (
	"errors"
	"fmt"

	"github.com/technostore/technostore/go/evm"
)

// StoreError is the error returned by every failing store call.
// Two StoreErrors match under errors.Is when their codes are equal.
type StoreError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	cause error
}

func (e *StoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is a StoreError with the same code.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Unwrap returns the asset error that caused the failure, if any.
func (e *StoreError) Unwrap() error {
	return e.cause
}

// Error codes
const (
	ErrCodeInvalidInputs        = "InvalidInputs"
	ErrCodeIndexOutOfRange      = "IndexOutOfRange"
	ErrCodeInsufficientAmount   = "InsufficientAmount"
	ErrCodeProductAlreadyBought = "ProductAlreadyBought"
	ErrCodeProductNotBought     = "ProductNotBought"
	ErrCodeRefundExpired        = "RefundExpired"
	ErrCodePermitExpired        = "PermitExpired"
	ErrCodePermitInvalid        = "PermitInvalid"
	ErrCodeNotOwner             = "NotOwner"
	ErrCodeProductNotFound      = "ProductNotFound"
	ErrCodeTransferFailed       = "TransferFailed"
	ErrCodeHookAborted          = "HookAborted"
)

// Sentinels for errors.Is.
var (
	ErrInvalidInputs        = &StoreError{Code: ErrCodeInvalidInputs, Message: "invalid inputs"}
	ErrIndexOutOfRange      = &StoreError{Code: ErrCodeIndexOutOfRange, Message: "index out of range"}
	ErrInsufficientAmount   = &StoreError{Code: ErrCodeInsufficientAmount, Message: "product out of stock"}
	ErrProductAlreadyBought = &StoreError{Code: ErrCodeProductAlreadyBought, Message: "product already bought"}
	ErrProductNotBought     = &StoreError{Code: ErrCodeProductNotBought, Message: "product not bought"}
	ErrRefundExpired        = &StoreError{Code: ErrCodeRefundExpired, Message: "refund window elapsed"}
	ErrPermitExpired        = &StoreError{Code: ErrCodePermitExpired, Message: "permit deadline passed"}
	ErrPermitInvalid        = &StoreError{Code: ErrCodePermitInvalid, Message: "permit signature invalid"}
	ErrNotOwner             = &StoreError{Code: ErrCodeNotOwner, Message: "caller is not the owner"}
	ErrProductNotFound      = &StoreError{Code: ErrCodeProductNotFound, Message: "product not found"}
	ErrTransferFailed       = &StoreError{Code: ErrCodeTransferFailed, Message: "asset transfer failed"}
	ErrHookAborted          = &StoreError{Code: ErrCodeHookAborted, Message: "aborted by hook"}
)

// NewStoreError creates a new store error
func NewStoreError(code, message string, details map[string]interface{}) *StoreError {
	return &StoreError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func wrapStoreError(code, message string, cause error, details map[string]interface{}) *StoreError {
	return &StoreError{
		Code:    code,
		Message: message,
		Details: details,
		cause:   cause,
	}
}

// permitError classifies a failure returned by Asset.Permit.
func permitError(err error) *StoreError {
	if errors.Is(err, evm.ErrExpiredSignature) {
		return wrapStoreError(ErrCodePermitExpired, "permit deadline passed", err, nil)
	}
	return wrapStoreError(ErrCodePermitInvalid, "permit rejected by asset", err, nil)
}

// ErrorCode returns the StoreError code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
