// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// slotTimeRegex matches half-hour wall clock marks like "07:00" or "18:30".
var slotTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):(00|30)$`)

// vinRegex matches a 17-character VIN (no I, O, Q per ISO 3779).
var vinRegex = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the domain rules registered.
func New() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("slot_time", func(fl validator.FieldLevel) bool {
		return slotTimeRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("booking_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("vin", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true // optional field; presence is enforced separately
		}
		return vinRegex.MatchString(value)
	})

	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
