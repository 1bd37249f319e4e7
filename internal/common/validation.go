package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
)

// Validate is a shared validator instance
var Validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationDetails renders validator failures as field -> message.
func ValidationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		details[e.Field()] = formatValidationError(e)
	}
	return details
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_without":
		return "This field is required"
	case "min":
		return "Must be at least " + e.Param()
	case "max":
		return "Must be at most " + e.Param()
	case "uuid":
		return "Must be a valid UUID"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	default:
		return "Invalid value"
	}
}

// ValidateStruct runs the struct tags and wraps failures as ErrValidation.
func ValidateStruct(v any) error {
	if err := Validate.Struct(v); err != nil {
		return NewAppError(CodeValidation, "Validation failed", fmt.Errorf("%w: %w", ErrValidation, err))
	}
	return nil
}

// DecodeAndValidate decodes one JSON document from r into v and validates it.
func DecodeAndValidate(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return InvalidInputf("malformed JSON body: %v", err)
	}
	return ValidateStruct(v)
}
