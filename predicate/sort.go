package predicate

import (
	"github.com/pkg/errors"

	"github.com/theplant/datahub/criteria"
)

// SortKey is a sort criterion resolved against a shape.
type SortKey struct {
	Field *Field
	Desc  bool
}

// ResolveSorts resolves every sort criterion against shape. Unknown fields
// and fields without an ordering are errors.
func ResolveSorts[T any](shape *Shape[T], sorts []criteria.SortCriterion) ([]SortKey, error) {
	keys := make([]SortKey, 0, len(sorts))
	for _, s := range sorts {
		f, ok := shape.Lookup(s.FieldName)
		if !ok {
			return nil, errors.Wrap(&FieldError{Field: s.FieldName}, "resolve sort")
		}
		if f.Kind == KindOther {
			return nil, errors.Errorf("field %q of type %s is not sortable", f.Name, f.Type)
		}
		keys = append(keys, SortKey{Field: f, Desc: s.Desc()})
	}
	return keys, nil
}

// Comparator returns a multi-key comparison function for sorts. Earlier
// criteria are primary keys. Null sorts before any value when ascending.
func Comparator[T any](shape *Shape[T], sorts []criteria.SortCriterion) (func(a, b T) int, error) {
	keys, err := ResolveSorts(shape, sorts)
	if err != nil {
		return nil, err
	}
	return func(a, b T) int {
		for _, k := range keys {
			av, aok := k.Field.Value(a)
			bv, bok := k.Field.Value(b)
			c := compareNullable(av, aok, bv, bok)
			if k.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}, nil
}
