// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"net/http"

	"tireshop_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// Envelope is the uniform JSON response shape for every endpoint: success
// with data, or failure with an error message and optional details.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// JSON sends a success envelope with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, Envelope{Success: true, Data: payload})
}

// OK sends a 200 OK success envelope with the given payload.
func OK(c *gin.Context, payload interface{}) {
	JSON(c, http.StatusOK, payload)
}

// Error sends a failure envelope with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, Envelope{Success: false, Error: message, Details: details})
}

// HandleError maps domain errors to HTTP responses.
// Typed *apperr.Error values map through their Kind; internal errors are
// masked with a generic message (detail stays in the server log, written by
// the request logger). Returns true if an error was handled.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	if domainErr, ok := err.(*apperr.Error); ok {
		message := domainErr.Message
		if domainErr.Kind == apperr.KindInternal {
			message = "Server error"
		}
		c.JSON(domainErr.HTTPStatus(), Envelope{Success: false, Error: message, Details: domainErr.Details})
		c.Error(err) //nolint:errcheck // recorded for the request logger
		return true
	}

	// Non-typed errors are unexpected; never leak their detail.
	c.JSON(http.StatusInternalServerError, Envelope{Success: false, Error: "Server error"})
	c.Error(err) //nolint:errcheck
	return true
}
