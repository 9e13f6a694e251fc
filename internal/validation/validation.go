package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ValidationError represents a structured validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple field errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		msgs[i] = e.Field + " " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// MissingFields returns, in the given order, the fields of a decoded JSON
// object that are absent or hold an empty value: null, false, zero or a
// blank string.
func MissingFields(body map[string]any, fields ...string) []string {
	var missing []string
	for _, f := range fields {
		if isEmpty(body[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case bool:
		return !x
	case float64:
		return x == 0 || math.IsNaN(x)
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	}
	return false
}

// MissingError formats the single message reported for missing fields.
func MissingError(missing []string) string {
	return "Missing required fields: " + strings.Join(missing, ", ")
}

// ValidateEnum checks a field is one of allowed values.
func ValidateEnum(ve *ValidationErrors, field, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidatePositiveInt checks a field is > 0.
func ValidatePositiveInt(ve *ValidationErrors, field string, value int) {
	if value <= 0 {
		ve.Add(field, "must be a positive integer")
	}
}

// ValidatePositiveFloat checks a field is > 0.
func ValidatePositiveFloat(ve *ValidationErrors, field string, value float64) {
	if value <= 0 {
		ve.Add(field, "must be a positive number")
	}
}

// MaxStringLength bounds free-text fields such as remarks.
const MaxStringLength = 10000

// ValidateMaxLength checks string doesn't exceed max length.
func ValidateMaxLength(ve *ValidationErrors, field, value string, max int) {
	if len(value) > max {
		ve.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}
