// Package validation holds the input validation error shared by domain
// services. Validation failures are surfaced to the caller immediately and
// are never retried.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// FieldError reports a missing or malformed input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Field pairs a field name with its raw value for Required.
type Field struct {
	Name  string
	Value string
}

// Required returns a FieldError for the first field whose value is blank.
func Required(fields ...Field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			return &FieldError{Field: f.Name, Reason: "is required"}
		}
	}
	return nil
}

// Invalid returns a FieldError with the given reason.
func Invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// IsValidation reports whether err carries a FieldError.
func IsValidation(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}
