// Package response writes the JSON envelope every auth endpoint answers with.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// Envelope is the standard API response format.
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
}

// FieldError describes one rejected input.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

// Meta represents response metadata.
type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func meta(c *gin.Context) *Meta {
	return &Meta{
		RequestID: c.GetString(RequestIDKey),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// OK writes a 200 success envelope.
func OK(c *gin.Context, message string, data any) {
	JSON(c, http.StatusOK, message, data)
}

// JSON writes a success envelope with status.
func JSON(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta(c),
	})
}

// Fail writes an error envelope. message must be safe to show to clients.
func Fail(c *gin.Context, status int, message string, errs ...FieldError) {
	c.JSON(status, Envelope{
		Success: false,
		Message: message,
		Errors:  errs,
		Meta:    meta(c),
	})
}

// Abort is Fail for middleware: it also stops the handler chain.
func Abort(c *gin.Context, status int, message string) {
	Fail(c, status, message)
	c.Abort()
}
