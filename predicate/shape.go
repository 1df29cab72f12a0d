// Package predicate compiles filter criteria into predicates and sort
// comparators over records whose fields are resolved by name at runtime.
//
// A compiled predicate is a small expression tree (Expr). It can be
// evaluated in process with Match, or translated by a record source into its
// native query form.
package predicate

import (
	"database/sql"
	"encoding"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/theplant/datahub/criteria"
)

// Kind is the comparison class of a field. Values of a field are read and
// literals are coerced into the canonical Go type of its kind.
type Kind int

const (
	KindOther  Kind = iota // only null checks are supported
	KindString             // string
	KindBool               // bool
	KindInt                // int64
	KindUint               // uint64
	KindFloat              // float64
	KindTime               // time.Time
	KindUUID               // uuid.UUID
	KindEnum               // underlying string, int64, uint64 or float64
)

var kindNames = map[Kind]string{
	KindOther:  "other",
	KindString: "string",
	KindBool:   "bool",
	KindInt:    "int",
	KindUint:   "uint",
	KindFloat:  "float",
	KindTime:   "time",
	KindUUID:   "uuid",
	KindEnum:   "enum",
}

func (k Kind) String() string {
	return kindNames[k]
}

var (
	timeType            = reflect.TypeFor[time.Time]()
	uuidType            = reflect.TypeFor[uuid.UUID]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// valuerKinds are nullable wrappers read through driver.Valuer.
var valuerKinds = map[reflect.Type]Kind{
	reflect.TypeFor[sql.NullString]():  KindString,
	reflect.TypeFor[sql.NullBool]():    KindBool,
	reflect.TypeFor[sql.NullInt64]():   KindInt,
	reflect.TypeFor[sql.NullInt32]():   KindInt,
	reflect.TypeFor[sql.NullInt16]():   KindInt,
	reflect.TypeFor[sql.NullByte]():    KindInt,
	reflect.TypeFor[sql.NullFloat64](): KindFloat,
	reflect.TypeFor[sql.NullTime]():    KindTime,
}

// Field is one named, typed member of a record shape.
type Field struct {
	Name     string
	Type     reflect.Type // declared type with pointers removed
	Kind     Kind
	Nullable bool

	declared reflect.Type
	get      func(rec any) reflect.Value
}

// Value reads the field from rec and returns it in the canonical type of the
// field kind. ok is false when the value is null.
func (f *Field) Value(rec any) (v any, ok bool) {
	return canonical(f.get(rec), f.Kind)
}

// Shape is the precomputed field table of a record type.
type Shape[T any] struct {
	fields []*Field
	byName map[string]*Field
	byFold map[string]*Field
}

func newShape[T any](fields []*Field) *Shape[T] {
	s := &Shape[T]{
		fields: fields,
		byName: make(map[string]*Field, len(fields)),
		byFold: make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		s.byName[f.Name] = f
		if _, ok := s.byFold[strings.ToLower(f.Name)]; !ok {
			s.byFold[strings.ToLower(f.Name)] = f
		}
	}
	return s
}

// Fields returns the fields in declaration order.
func (s *Shape[T]) Fields() []*Field {
	return s.fields
}

// Lookup resolves a field by exact name, then case-insensitively.
func (s *Shape[T]) Lookup(name string) (*Field, bool) {
	name = strings.TrimSpace(name)
	if f, ok := s.byName[name]; ok {
		return f, true
	}
	f, ok := s.byFold[strings.ToLower(name)]
	return f, ok
}

var shapes sync.Map // reflect.Type -> *Shape[T]

// ShapeOf returns the shape of the exported fields of struct type T, or of
// the struct T points to. Promoted fields of embedded structs are included.
func ShapeOf[T any]() (*Shape[T], error) {
	typ := reflect.TypeFor[T]()
	if v, ok := shapes.Load(typ); ok {
		return v.(*Shape[T]), nil
	}

	st := typ
	for st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, errors.Errorf("record type %s is not a struct", typ)
	}

	var fields []*Field
	for _, sf := range reflect.VisibleFields(st) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		f := newField(sf.Name, sf.Type)
		f.get = structGetter(sf.Index)
		fields = append(fields, f)
	}

	v, _ := shapes.LoadOrStore(typ, newShape[T](fields))
	return v.(*Shape[T]), nil
}

// MustShapeOf is like ShapeOf but panics if T is not a struct.
func MustShapeOf[T any]() *Shape[T] {
	s, err := ShapeOf[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// ShapeFromColumns builds a shape whose fields are read through the column
// accessors. Columns without an accessor or a data type are skipped.
func ShapeFromColumns[T any](columns []criteria.ColumnDefinition[T]) *Shape[T] {
	var fields []*Field
	for _, col := range columns {
		if col.Accessor == nil || col.DataType == nil {
			continue
		}
		accessor := col.Accessor
		f := newField(col.FieldName, col.DataType)
		f.get = func(rec any) reflect.Value {
			r, _ := rec.(T)
			return reflect.ValueOf(accessor(r))
		}
		fields = append(fields, f)
	}
	return newShape[T](fields)
}

func newField(name string, typ reflect.Type) *Field {
	f := &Field{Name: name, Type: typ, declared: typ}
	for f.Type.Kind() == reflect.Pointer {
		f.Type = f.Type.Elem()
		f.Nullable = true
	}
	f.Kind = classify(f.Type)

	switch f.Type.Kind() {
	case reflect.Interface, reflect.Map, reflect.Slice:
		f.Nullable = true
	}
	if _, ok := valuerKinds[f.Type]; ok {
		f.Nullable = true
	}
	return f
}

func classify(t reflect.Type) Kind {
	if k, ok := valuerKinds[t]; ok {
		return k
	}
	switch t {
	case timeType:
		return KindTime
	case uuidType:
		return KindUUID
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		switch t.Kind() {
		case reflect.String,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return KindEnum
		}
		return KindOther
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUint
	case reflect.Float32, reflect.Float64:
		return KindFloat
	}
	return KindOther
}

func structGetter(index []int) func(rec any) reflect.Value {
	return func(rec any) reflect.Value {
		rv := reflect.ValueOf(rec)
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Value{}
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return reflect.Value{}
		}
		fv, err := rv.FieldByIndexErr(index)
		if err != nil {
			return reflect.Value{}
		}
		return fv
	}
}
