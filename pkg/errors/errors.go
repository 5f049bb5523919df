package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a session error for clients and operators.
type ErrorCode string

const (
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimit              ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
	ErrCodeConnectionCreateFailed ErrorCode = "CONNECTION_CREATE_FAILED"
	ErrCodeNoActiveConnection     ErrorCode = "NO_ACTIVE_CONNECTION"
	ErrCodeNoMatchingSender       ErrorCode = "NO_MATCHING_SENDER"
	ErrCodeAlreadySharing         ErrorCode = "ALREADY_SHARING"
	ErrCodeNotSharing             ErrorCode = "NOT_SHARING"
	ErrCodeCaptureDenied          ErrorCode = "CAPTURE_DENIED"
	ErrCodeNetwork                ErrorCode = "NETWORK_ERROR"
	ErrCodeTokenExpired           ErrorCode = "TOKEN_EXPIRED"
	ErrCodePermissionDenied       ErrorCode = "PERMISSION_DENIED"
	ErrCodeServer                 ErrorCode = "SERVER_ERROR"
	ErrCodeRecoveryExhausted      ErrorCode = "RECOVERY_EXHAUSTED"
)

// AppError carries an error code and HTTP mapping alongside the cause.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Cause: err}
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// GetAppError unwraps err to an AppError, or nil when it is not one.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func NewRecoveryExhaustedError(cause error) *AppError {
	return WrapError(cause, ErrCodeRecoveryExhausted, "reconnection attempts exhausted", http.StatusConflict)
}
