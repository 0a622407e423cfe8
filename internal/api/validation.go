package api

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates a struct using go-playground/validator tags.
// Returns nil on success or a map of field-name → error-message.
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errs := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		field := toSnakeCase(fe.Field())
		errs[field] = validationMessage(fe)
	}
	return errs
}

// validationMessage returns a human-readable message for a validation error.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "latitude":
		return "must be a valid latitude"
	case "longitude":
		return "must be a valid longitude"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// toSnakeCase converts a CamelCase field name to snake_case. Acronym
// runs stay together: UUIDs -> uuids, OCRText -> ocr_text.
func toSnakeCase(s string) string {
	isUpper := func(r rune) bool { return r >= 'A' && r <= 'Z' }
	runes := []rune(s)

	var result strings.Builder
	for i, r := range runes {
		if !isUpper(r) {
			result.WriteRune(r)
			continue
		}
		if i > 0 {
			if !isUpper(runes[i-1]) {
				// New word after a lowercase rune: CorrectedLat.
				result.WriteByte('_')
			} else if i+1 < len(runes) && !isUpper(runes[i+1]) {
				// Last capital of a run followed by a word: the T in
				// OCRText. A lone trailing 's' is a plural suffix on
				// the acronym (UUIDs), not a word.
				if !(i+2 == len(runes) && runes[i+1] == 's') {
					result.WriteByte('_')
				}
			}
		}
		result.WriteRune(r + 32) // lowercase
	}
	return result.String()
}
