package criteria

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ColumnDefinition describes one field of a record type as a grid or
// builder sees it. Accessor reads the field value from a record.
type ColumnDefinition[T any] struct {
	FieldName   string
	DisplayName string
	DataType    reflect.Type
	Sortable    bool
	Filterable  bool
	Visible     bool
	Accessor    func(record T) any
}

// Label returns DisplayName, falling back to FieldName.
func (c ColumnDefinition[T]) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.FieldName
}

// ValidateAgainstColumns checks that every filter references a filterable
// column and every sort a sortable one. Field names match case-insensitively.
func ValidateAgainstColumns[T any](sc *SavedCriteria, columns []ColumnDefinition[T]) error {
	if sc == nil {
		return nil
	}
	byName := lo.SliceToMap(columns, func(c ColumnDefinition[T]) (string, ColumnDefinition[T]) {
		return strings.ToLower(c.FieldName), c
	})
	for _, f := range sc.Filters {
		col, ok := byName[strings.ToLower(f.FieldName)]
		if !ok {
			return errors.Errorf("unknown filter field %q", f.FieldName)
		}
		if !col.Filterable {
			return errors.Errorf("field %q is not filterable", f.FieldName)
		}
	}
	for _, s := range sc.Sorts {
		col, ok := byName[strings.ToLower(s.FieldName)]
		if !ok {
			return errors.Errorf("unknown sort field %q", s.FieldName)
		}
		if !col.Sortable {
			return errors.Errorf("field %q is not sortable", s.FieldName)
		}
	}
	return nil
}
