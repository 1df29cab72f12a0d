package predicate

import (
	"bytes"
	"cmp"
	"database/sql/driver"
	"encoding"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// timeLayouts are tried in order before the general fallback parse.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"01/02/2006 15:04:05",
	"01/02/2006",
	time.RFC3339Nano,
}

// Coerce converts a raw literal into the canonical type of the field kind.
// Surrounding single quotes are removed. An empty literal is false for bool fields,
// "" for string fields and null (nil, nil) for every other kind.
func (f *Field) Coerce(raw string) (any, error) {
	raw = unquote(raw)
	if f.Kind != KindString {
		raw = strings.TrimSpace(raw)
	}
	if raw == "" {
		switch f.Kind {
		case KindString:
			return "", nil
		case KindBool:
			return false, nil
		}
		return nil, nil
	}

	v, err := f.coerce(raw)
	if err != nil {
		return nil, &CoercionError{Field: f.Name, Value: raw, Kind: f.Kind, Err: err}
	}
	return v, nil
}

func (f *Field) coerce(raw string) (any, error) {
	switch f.Kind {
	case KindString:
		return raw, nil
	case KindBool:
		return parseBool(raw)
	case KindInt:
		return strconv.ParseInt(raw, 10, bitSize(f.Type))
	case KindUint:
		return strconv.ParseUint(raw, 10, bitSize(f.Type))
	case KindFloat:
		return strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), bitSize(f.Type))
	case KindTime:
		return parseTime(raw)
	case KindUUID:
		return uuid.Parse(raw)
	case KindEnum:
		ev, err := parseEnum(f.Type, raw)
		if err != nil {
			return nil, err
		}
		v, _ := canonical(ev, KindEnum)
		return v, nil
	}
	return nil, errors.Errorf("%s values cannot be compared", f.Type)
}

func unquote(raw string) string {
	if len(raw) > 1 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func bitSize(t reflect.Type) int {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return t.Bits()
	}
	return 64
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no", "":
		return false, nil
	}
	return false, errors.Errorf("invalid boolean %q", raw)
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid time %q", raw)
	}
	return t, nil
}

// parseEnum resolves raw through the type's UnmarshalText, trying the literal
// as given, upper-cased and lower-cased, then as a plain number.
func parseEnum(t reflect.Type, raw string) (reflect.Value, error) {
	var firstErr error
	for _, candidate := range lo.Uniq([]string{raw, strings.ToUpper(raw), strings.ToLower(raw)}) {
		pv := reflect.New(t)
		err := pv.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(candidate))
		if err == nil {
			return pv.Elem(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	ev := reflect.New(t).Elem()
	switch {
	case ev.CanInt():
		if n, err := strconv.ParseInt(raw, 10, t.Bits()); err == nil {
			ev.SetInt(n)
			return ev, nil
		}
	case ev.CanUint():
		if n, err := strconv.ParseUint(raw, 10, t.Bits()); err == nil {
			ev.SetUint(n)
			return ev, nil
		}
	}
	return reflect.Value{}, errors.Wrapf(firstErr, "invalid %s", t)
}

// canonical converts a field value to the canonical type of kind.
func canonical(v reflect.Value, kind Kind) (any, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, false
	}

	if _, ok := valuerKinds[v.Type()]; ok {
		dv, err := v.Interface().(driver.Valuer).Value()
		if err != nil || dv == nil {
			return nil, false
		}
		v = reflect.ValueOf(dv)
	}

	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil, false
		}
	}

	switch kind {
	case KindString:
		if v.Kind() == reflect.String {
			return v.String(), true
		}
		s, err := cast.ToStringE(v.Interface())
		return s, err == nil
	case KindBool:
		if v.Kind() == reflect.Bool {
			return v.Bool(), true
		}
		b, err := cast.ToBoolE(v.Interface())
		return b, err == nil
	case KindInt:
		switch {
		case v.CanInt():
			return v.Int(), true
		case v.CanUint():
			return int64(v.Uint()), true
		}
		n, err := cast.ToInt64E(v.Interface())
		return n, err == nil
	case KindUint:
		switch {
		case v.CanUint():
			return v.Uint(), true
		case v.CanInt() && v.Int() >= 0:
			return uint64(v.Int()), true
		}
		n, err := cast.ToUint64E(v.Interface())
		return n, err == nil
	case KindFloat:
		switch {
		case v.CanFloat():
			return v.Float(), true
		case v.CanInt():
			return float64(v.Int()), true
		case v.CanUint():
			return float64(v.Uint()), true
		}
		n, err := cast.ToFloat64E(v.Interface())
		return n, err == nil
	case KindTime:
		if v.Type().ConvertibleTo(timeType) {
			return v.Convert(timeType).Interface(), true
		}
		t, err := cast.ToTimeE(v.Interface())
		return t, err == nil
	case KindUUID:
		if v.Type().ConvertibleTo(uuidType) {
			return v.Convert(uuidType).Interface(), true
		}
		if v.Kind() == reflect.String {
			id, err := uuid.Parse(v.String())
			return id, err == nil
		}
		return nil, false
	case KindEnum:
		switch {
		case v.Kind() == reflect.String:
			return v.String(), true
		case v.CanInt():
			return v.Int(), true
		case v.CanUint():
			return v.Uint(), true
		case v.CanFloat():
			return v.Float(), true
		}
		return nil, false
	}
	return v.Interface(), true
}

// compareValues orders two canonical values of the same kind. Strings are
// compared ordinally. ok is false when the values cannot be ordered.
func compareValues(a, b any) (c int, ok bool) {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y), true
		}
	case uint64:
		if y, ok := b.(uint64); ok {
			return cmp.Compare(x, y), true
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case uuid.UUID:
		if y, ok := b.(uuid.UUID); ok {
			return bytes.Compare(x[:], y[:]), true
		}
	}
	return 0, false
}

// compareNullable orders null before every value.
func compareNullable(a any, aok bool, b any, bok bool) int {
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	c, _ := compareValues(a, b)
	return c
}
