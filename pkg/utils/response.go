package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/concertforge/ticket-engine/pkg/errors"
)

// Response is the envelope every ticket-engine HTTP handler responds with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo carries the failure detail of a non-success Response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Success sends a success response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

// Error renders err as a Response, using its AppError status code and message when
// err is one (the engine's sentinel errors are mapped to *errors.AppError at the
// handler boundary), and falling back to 500 otherwise.
func Error(c *gin.Context, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		c.JSON(appErr.StatusCode(), Response{
			Success: false,
			Error: &ErrorInfo{
				Code:    http.StatusText(appErr.StatusCode()),
				Message: appErr.Message,
				Details: appErr.Details,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    http.StatusText(http.StatusInternalServerError),
			Message: "Internal server error",
			Details: err.Error(),
		},
	})
}

// ErrorWithStatus sends an error response with a caller-chosen status code.
func ErrorWithStatus(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    http.StatusText(statusCode),
			Message: message,
		},
	})
}

// ValidationError sends a 400 response for a request-body validation failure.
func ValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    http.StatusText(http.StatusBadRequest),
			Message: "Validation failed",
			Details: message,
		},
	})
}

// Unauthorized sends a 401 response.
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    http.StatusText(http.StatusUnauthorized),
			Message: message,
		},
	})
}

// Forbidden sends a 403 response, used when an Actor's role or event assignment
// doesn't permit the requested operation (§4.3 NOT_ASSIGNED).
func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    http.StatusText(http.StatusForbidden),
			Message: message,
		},
	})
}

// NotFound sends a 404 response.
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    http.StatusText(http.StatusNotFound),
			Message: message,
		},
	})
}

// Conflict sends a 409 response, used for idempotency-key and transition conflicts.
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    http.StatusText(http.StatusConflict),
			Message: message,
		},
	})
}

// RateLimitExceeded sends a 429 response.
func RateLimitExceeded(c *gin.Context, message string) {
	c.JSON(http.StatusTooManyRequests, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    http.StatusText(http.StatusTooManyRequests),
			Message: message,
		},
	})
}
