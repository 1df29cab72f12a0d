package predicate

import (
	"fmt"

	"github.com/theplant/datahub/criteria"
)

// FieldError reports a criterion or sort key naming a field the record
// shape does not have.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// CoercionError reports a literal that could not be converted to the field type.
type CoercionError struct {
	Field string
	Value string
	Kind  Kind
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s for field %q: %v", e.Value, e.Kind, e.Field, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// UnsupportedError reports an operator that does not apply to a field.
type UnsupportedError struct {
	Field    string
	Operator criteria.FilterOperator
	Kind     Kind
	Reason   string
}

func (e *UnsupportedError) Error() string {
	msg := fmt.Sprintf("operator %s is not supported on %s field %q", e.Operator, e.Kind, e.Field)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
