package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "path-backend/pkg/errors"
)

var validate = validator.New()

// ValidateStruct validates a struct based on its validation tags. Missing
// required fields are reported as NULL_INPUT, everything else as a plain
// validation error.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return pkgerrors.NewValidationError(err.Error())
	}

	var missing, messages []string
	for _, e := range validationErrors {
		if e.Tag() == "required" {
			missing = append(missing, fieldName(e))
			continue
		}
		messages = append(messages, formatFieldError(e))
	}
	if len(missing) > 0 {
		return pkgerrors.NullInput(missing...)
	}
	return pkgerrors.NewValidationError(strings.Join(messages, "; "))
}

func fieldName(e validator.FieldError) string {
	name := e.Field()
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := fieldName(e)

	switch e.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a UUID", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
