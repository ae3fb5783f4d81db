package apperrors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Authentication errors
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	ErrCodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"

	// Call orchestration errors
	ErrCodeInvalidRecipient   ErrorCode = "INVALID_RECIPIENT"
	ErrCodeSubchannelNotFound ErrorCode = "SUBCHANNEL_NOT_FOUND"
	ErrCodeChannelNotFound    ErrorCode = "CHANNEL_NOT_FOUND"
	ErrCodeDispatchFailed     ErrorCode = "DISPATCH_FAILED"
	ErrCodeTokenUnavailable   ErrorCode = "TOKEN_UNAVAILABLE"
	ErrCodeSDKConnect         ErrorCode = "SDK_CONNECT_ERROR"

	// Not found errors
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeNotificationNotFound ErrorCode = "NOTIFICATION_NOT_FOUND"

	// Internal errors
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase       ErrorCode = "DATABASE_ERROR"
	ErrCodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError represents a structured application error with code, message, and HTTP status
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Err        error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code, message and HTTP status
func New(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, statusCode int, err error) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode, Err: err}
}

// Validation errors

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest)
}

func InvalidInputError(message string) *AppError {
	return New(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

// Authentication errors

func UnauthorizedError(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NotAuthenticatedError() *AppError {
	return New(ErrCodeNotAuthenticated, "No local user identity", http.StatusUnauthorized)
}

// Call orchestration errors

func InvalidRecipientError() *AppError {
	return New(ErrCodeInvalidRecipient, "Recipient id is empty", http.StatusBadRequest)
}

func SubchannelNotFoundError() *AppError {
	return New(ErrCodeSubchannelNotFound, "Subchannel not found", http.StatusNotFound)
}

func ChannelNotFoundError() *AppError {
	return New(ErrCodeChannelNotFound, "Channel not found", http.StatusNotFound)
}

func DispatchFailedError(err error) *AppError {
	return Wrap(ErrCodeDispatchFailed, "Call could not be set up", http.StatusBadGateway, err)
}

func TokenUnavailableError(err error) *AppError {
	return Wrap(ErrCodeTokenUnavailable, "Call credentials unavailable", http.StatusBadGateway, err)
}

func SDKConnectError(err error) *AppError {
	return Wrap(ErrCodeSDKConnect, "Could not connect to call room", http.StatusBadGateway, err)
}

// Not found errors

func NotFoundError(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NotificationNotFoundError() *AppError {
	return New(ErrCodeNotificationNotFound, "Notification not found", http.StatusNotFound)
}

// Internal errors

func InternalError(message string) *AppError {
	return New(ErrCodeInternal, message, http.StatusInternalServerError)
}

func DatabaseError(err error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", http.StatusInternalServerError, err)
}

// GetAppError extracts an AppError from an error, wrapping anything else as InternalError
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return InternalError(err.Error())
}
