package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// StatusCode returns the HTTP status code
func (e *AppError) StatusCode() int {
	return e.Code
}

// NewAppError creates a new application error
func NewAppError(code int, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Predefined application errors
var (
	// Validation errors (§7 Validation)
	ErrValidationFailed    = NewAppError(http.StatusBadRequest, "Validation failed", "")
	ErrInvalidInput        = NewAppError(http.StatusBadRequest, "Invalid input", "")
	ErrInvalidQuantity     = NewAppError(http.StatusBadRequest, "Quantity must be between 1 and 10", "")
	ErrTierLimit           = NewAppError(http.StatusBadRequest, "Purchase would exceed the per-user tier limit", "")
	ErrEventNotPurchasable = NewAppError(http.StatusBadRequest, "Event is not published or has been removed", "")

	// Not found errors (§7 NotFound)
	ErrNotFound            = NewAppError(http.StatusNotFound, "Resource not found", "")
	ErrTransactionNotFound = NewAppError(http.StatusNotFound, "Transaction not found", "")
	ErrOrderNotFound       = NewAppError(http.StatusNotFound, "Order not found", "")
	ErrEventNotFound       = NewAppError(http.StatusNotFound, "Event not found", "")
	ErrTierNotFound        = NewAppError(http.StatusNotFound, "Ticket tier not found", "")
	ErrTicketNotFound      = NewAppError(http.StatusNotFound, "Ticket not found", "")

	// Conflict errors (§7 Conflict)
	ErrConflict            = NewAppError(http.StatusConflict, "Resource conflict", "")
	ErrInvalidTransition   = NewAppError(http.StatusConflict, "Invalid transaction state transition", "")
	ErrOversold            = NewAppError(http.StatusConflict, "Tier oversold at completion", "")
	ErrNotRefundable       = NewAppError(http.StatusBadRequest, "Transaction is not in a refundable state", "")
	ErrRefundExceedsNet    = NewAppError(http.StatusBadRequest, "Refund amount exceeds the net refundable balance", "")
	ErrNotRetryable        = NewAppError(http.StatusBadRequest, "Transaction is not retryable", "")
	ErrRetryExhausted      = NewAppError(http.StatusBadRequest, "Transaction has exhausted its retry attempts", "")

	// Rate limiting errors
	ErrRateLimitExceeded = NewAppError(http.StatusTooManyRequests, "Rate limit exceeded", "")
	ErrTooManyRequests   = NewAppError(http.StatusTooManyRequests, "Too many requests", "")

	// Gateway failure errors (§7 GatewayFailure)
	ErrExternalService = NewAppError(http.StatusBadGateway, "External service error", "")
	ErrGatewayInit     = NewAppError(http.StatusBadGateway, "Payment gateway initialization failed", "")
	ErrGatewayVerify   = NewAppError(http.StatusBadGateway, "Payment gateway verification failed", "")
	ErrGatewayRefund   = NewAppError(http.StatusBadGateway, "Payment gateway refund failed", "")
	ErrGatewayTimeout  = NewAppError(http.StatusGatewayTimeout, "Payment gateway timed out", "")

	// Integrity errors (§7 Integrity — DB uniqueness surprises)
	ErrDatabase         = NewAppError(http.StatusInternalServerError, "Database error", "")
	ErrConnectionFailed = NewAppError(http.StatusInternalServerError, "Database connection failed", "")
	ErrQRCodeCollision  = NewAppError(http.StatusInternalServerError, "Ticket token collided after maximum retries", "")

	// Fatal errors (§7 Fatal — programmer error / invalid transition attempted by the engine)
	ErrInternalServer     = NewAppError(http.StatusInternalServerError, "Internal server error", "")
	ErrServiceUnavailable = NewAppError(http.StatusServiceUnavailable, "Service unavailable", "")
	ErrTimeout            = NewAppError(http.StatusRequestTimeout, "Request timeout", "")
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) *AppError {
	if IsAppError(err) {
		appErr := GetAppError(err)
		return NewAppError(appErr.Code, message, appErr.Error())
	}
	return NewAppError(http.StatusInternalServerError, message, err.Error())
}

// NewValidationError creates a validation error with field details
func NewValidationError(field, message string) *AppError {
	return NewAppError(http.StatusBadRequest, "Validation failed", fmt.Sprintf("%s: %s", field, message))
}

// NewNotFoundError creates a not found error for a specific resource
func NewNotFoundError(resource string) *AppError {
	return NewAppError(http.StatusNotFound, fmt.Sprintf("%s not found", resource), "")
}

// NewConflictError creates a conflict error with a specific message
func NewConflictError(message string) *AppError {
	return NewAppError(http.StatusConflict, message, "")
}

// NewUnauthorizedError creates an unauthorized error with a specific message
func NewUnauthorizedError(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, message, "")
}

// NewForbiddenError creates a forbidden error with a specific message
func NewForbiddenError(message string) *AppError {
	return NewAppError(http.StatusForbidden, message, "")
}

// NewInternalError creates an internal server error with a specific message
func NewInternalError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, message, "")
}

// NewExternalServiceError creates an external service error with a specific message
func NewExternalServiceError(service, message string) *AppError {
	return NewAppError(http.StatusBadGateway, fmt.Sprintf("%s service error", service), message)
}

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication  ErrorType = "authentication"
	ErrorTypeAuthorization   ErrorType = "authorization"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeConflict        ErrorType = "conflict"
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeBusinessLogic   ErrorType = "business_logic"
	ErrorTypeFileUpload      ErrorType = "file_upload"
	ErrorTypePayment         ErrorType = "payment"
	ErrorTypeExternalService ErrorType = "external_service"
	ErrorTypeDatabase        ErrorType = "database"
	ErrorTypeInternal        ErrorType = "internal"
)

// GetErrorType returns the type of error
func GetErrorType(err error) ErrorType {
	if !IsAppError(err) {
		return ErrorTypeInternal
	}

	appErr := GetAppError(err)
	switch appErr.Code {
	case http.StatusBadRequest:
		return ErrorTypeValidation
	case http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case http.StatusForbidden:
		return ErrorTypeAuthorization
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case http.StatusUnprocessableEntity:
		return ErrorTypeBusinessLogic
	case http.StatusPaymentRequired:
		return ErrorTypePayment
	case http.StatusBadGateway:
		return ErrorTypeExternalService
	case http.StatusInternalServerError:
		return ErrorTypeInternal
	case http.StatusServiceUnavailable:
		return ErrorTypeExternalService
	case http.StatusRequestTimeout:
		return ErrorTypeInternal
	default:
		return ErrorTypeInternal
	}
}