package main

import (
	"os"
	"reflect"
	"slices"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/theplant/datahub/criteria"
)

type record = map[string]any

var (
	boolColumn   = reflect.TypeFor[*bool]()
	numberColumn = reflect.TypeFor[*float64]()
	timeColumn   = reflect.TypeFor[*time.Time]()
	stringColumn = reflect.TypeFor[*string]()
)

func loadRecords(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read records")
	}
	var recs []record
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &recs); err != nil {
		return nil, errors.Wrapf(err, "decode records in %s", path)
	}
	return recs, nil
}

// inferColumns defines one nullable column per key found in recs, sorted by
// key. Keys holding objects or arrays are left out.
func inferColumns(recs []record) []criteria.ColumnDefinition[record] {
	keys := lo.Uniq(lo.FlatMap(recs, func(rec record, _ int) []string { return lo.Keys(rec) }))
	slices.Sort(keys)

	var columns []criteria.ColumnDefinition[record]
	for _, key := range keys {
		dataType := inferType(lo.Map(recs, func(rec record, _ int) any { return rec[key] }))
		if dataType == nil {
			continue
		}
		columns = append(columns, criteria.ColumnDefinition[record]{
			FieldName:  key,
			DataType:   dataType,
			Sortable:   true,
			Filterable: true,
			Visible:    true,
			Accessor: func(rec record) any {
				return rec[key]
			},
		})
	}
	return columns
}

// inferType picks bool, number or time when every non-null value agrees and
// falls back to string.
func inferType(values []any) reflect.Type {
	var typ reflect.Type
	for _, v := range values {
		var t reflect.Type
		switch x := v.(type) {
		case nil:
			continue
		case bool:
			t = boolColumn
		case float64:
			t = numberColumn
		case string:
			t = stringColumn
			if _, err := time.Parse(time.RFC3339, x); err == nil {
				t = timeColumn
			}
		default:
			return nil
		}
		switch {
		case typ == nil:
			typ = t
		case typ != t:
			typ = stringColumn
		}
	}
	if typ == nil {
		return stringColumn
	}
	return typ
}
