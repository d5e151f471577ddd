// Package handler exposes the appointments module over HTTP.
package handler

import (
	"net/http"

	"tireshop_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindError maps JSON binding failures to a 400 envelope.
func bindError(c *gin.Context, err error) {
	httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
	c.Error(err) //nolint:errcheck
}

// validationError maps validator failures to a 400 envelope with per-field
// details.
func validationError(c *gin.Context, err error) {
	details := map[string]string{}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			details[fe.Field()] = validationMessage(fe)
		}
	}
	httpkit.Error(c, http.StatusBadRequest, "validation failed", details)
	c.Error(err) //nolint:errcheck
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "booking_date":
		return "must be a date in YYYY-MM-DD format"
	case "slot_time":
		return "must be a half-hour time like 09:00 or 09:30"
	case "vin":
		return "must be a 17-character VIN"
	case "min":
		return "too short or too small"
	case "max":
		return "too long or too large"
	default:
		return "invalid value"
	}
}
