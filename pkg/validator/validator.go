package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// Init lazily constructs the shared validator instance.
func Init() {
	validate = validator.New()
}

// Validate validates a request struct against its `validate` tags (required, min,
// max, oneof, ...) and joins every violation into a single readable error.
func Validate(s interface{}) error {
	if validate == nil {
		Init()
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors := err.(validator.ValidationErrors)
	var errorMessages []string
	for _, e := range validationErrors {
		errorMessages = append(errorMessages, getErrorMessage(e))
	}

	return fmt.Errorf(strings.Join(errorMessages, "; "))
}

// getErrorMessage converts a validation error to a human-readable message.
func getErrorMessage(e validator.FieldError) string {
	fieldName := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldName)
	case "min":
		return fmt.Sprintf("%s must be at least %s", fieldName, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fieldName, e.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", fieldName, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fieldName, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", fieldName)
	}
}
