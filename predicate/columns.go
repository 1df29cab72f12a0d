package predicate

import (
	"reflect"

	"github.com/sunfmin/reflectutils"

	"github.com/theplant/datahub/criteria"
)

// Columns derives column definitions from the fields of struct type T.
// Every field is visible and filterable; fields of kind other are not sortable.
func Columns[T any]() ([]criteria.ColumnDefinition[T], error) {
	shape, err := ShapeOf[T]()
	if err != nil {
		return nil, err
	}

	var zero T
	model := any(zero)
	if reflect.TypeFor[T]().Kind() == reflect.Pointer {
		model = reflect.New(reflect.TypeFor[T]().Elem()).Interface()
	}

	columns := make([]criteria.ColumnDefinition[T], 0, len(shape.Fields()))
	for _, f := range shape.Fields() {
		name := f.Name
		dataType := reflectutils.GetType(model, name)
		if dataType == nil {
			dataType = f.declared
		}
		columns = append(columns, criteria.ColumnDefinition[T]{
			FieldName:  name,
			DataType:   dataType,
			Sortable:   f.Kind != KindOther,
			Filterable: true,
			Visible:    true,
			Accessor: func(rec T) any {
				v, err := reflectutils.Get(rec, name)
				if err != nil {
					return nil
				}
				return v
			},
		})
	}
	return columns, nil
}
