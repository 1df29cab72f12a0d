package predicate

import (
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/theplant/datahub/criteria"
)

// Predicate is a compiled filter list. A nil Expr matches every record.
// Dropped holds the criteria that did not contribute, as *FieldError,
// *CoercionError or *UnsupportedError values.
type Predicate[T any] struct {
	Expr    Expr
	Dropped []error
}

// Match reports whether rec satisfies the predicate.
func (p *Predicate[T]) Match(rec T) bool {
	if p == nil || p.Expr == nil {
		return true
	}
	return Eval(p.Expr, rec)
}

// Filter returns the records of recs that satisfy the predicate, in order.
func (p *Predicate[T]) Filter(recs []T) []T {
	return lo.Filter(recs, func(rec T, _ int) bool {
		return p.Match(rec)
	})
}

type options struct {
	logger *slog.Logger
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Compile folds filters left to right into a single expression. Each
// criterion is combined with the result so far by OR when its connective is
// OR and by AND otherwise; the first contributing criterion seeds the result.
// Criteria that cannot be compiled are dropped and logged, never fatal.
func Compile[T any](shape *Shape[T], filters []criteria.FilterCriterion, opts ...Option) *Predicate[T] {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	p := &Predicate[T]{}
	for _, c := range filters {
		if strings.TrimSpace(c.FieldName) == "" {
			continue
		}
		e, err := compileCriterion(shape, c)
		if err != nil {
			o.logger.Warn("drop filter criterion",
				"field", c.FieldName,
				"operator", c.Operator.String(),
				"error", err,
			)
			p.Dropped = append(p.Dropped, err)
			continue
		}
		if e == nil {
			continue
		}
		switch {
		case p.Expr == nil:
			p.Expr = e
		case c.LogicalOperator.IsOr():
			p.Expr = Or{Left: p.Expr, Right: e}
		default:
			p.Expr = And{Left: p.Expr, Right: e}
		}
	}
	return p
}

func compileCriterion[T any](shape *Shape[T], c criteria.FilterCriterion) (Expr, error) {
	f, ok := shape.Lookup(c.FieldName)
	if !ok {
		return nil, &FieldError{Field: c.FieldName}
	}
	unsupported := func(reason string) error {
		return &UnsupportedError{Field: f.Name, Operator: c.Operator, Kind: f.Kind, Reason: reason}
	}
	if c.Value == nil && !acceptsNoValue(f, c.Operator) {
		return nil, unsupported("requires a value")
	}

	switch c.Operator {
	case criteria.OpIsNull, criteria.OpIsNotNull:
		return IsNull{Field: f, Negate: c.Operator == criteria.OpIsNotNull}, nil

	case criteria.OpIsTrue, criteria.OpIsFalse:
		if f.Kind != KindBool {
			return nil, unsupported("")
		}
		return Compare{Field: f, Op: OpEq, Value: c.Operator == criteria.OpIsTrue}, nil

	case criteria.OpIn, criteria.OpNotIn:
		if len(c.Values) == 0 {
			return nil, nil
		}
		if f.Kind == KindOther {
			return nil, unsupported("")
		}
		values := make([]any, 0, len(c.Values))
		for _, raw := range c.Values {
			v, err := f.Coerce(raw)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		var e Expr = In{Field: f, Values: values}
		if c.Operator == criteria.OpNotIn {
			e = Not{Expr: e}
		}
		return e, nil

	case criteria.OpEquals, criteria.OpNotEquals:
		return compileCompare(f, c, unsupported)

	case criteria.OpGreaterThan, criteria.OpGreaterThanOrEqual, criteria.OpLessThan, criteria.OpLessThanOrEqual:
		switch f.Kind {
		case KindBool, KindUUID, KindOther:
			return nil, unsupported("values are not ordered")
		}
		e, err := compileCompare(f, c, unsupported)
		if err != nil {
			return nil, err
		}
		if e.(Compare).Value == nil {
			return nil, unsupported("requires a non-null value")
		}
		return e, nil

	case criteria.OpContains:
		if f.Kind != KindString {
			return compileCompare(f, criteria.FilterCriterion{
				FieldName: c.FieldName,
				Operator:  criteria.OpEquals,
				Value:     c.Value,
			}, unsupported)
		}
		return compileText(f, c, TextContains, false, unsupported)

	case criteria.OpNotContains:
		return compileText(f, c, TextContains, true, unsupported)

	case criteria.OpStartsWith:
		return compileText(f, c, TextStartsWith, false, unsupported)

	case criteria.OpEndsWith:
		return compileText(f, c, TextEndsWith, false, unsupported)
	}
	return nil, unsupported("unknown operator")
}

// acceptsNoValue reports whether op compiles without a Value. A missing
// value on a text search of a string field searches for "".
func acceptsNoValue(f *Field, op criteria.FilterOperator) bool {
	switch op {
	case criteria.OpIn, criteria.OpNotIn:
		return true
	case criteria.OpContains, criteria.OpNotContains:
		return f.Kind == KindString
	}
	return op.Unary()
}

func compileCompare(f *Field, c criteria.FilterCriterion, unsupported func(string) error) (Expr, error) {
	if f.Kind == KindOther {
		return nil, unsupported("")
	}
	v, err := f.Coerce(c.RawValue())
	if err != nil {
		return nil, err
	}

	var op CompareOp
	switch c.Operator {
	case criteria.OpEquals:
		op = OpEq
	case criteria.OpNotEquals:
		op = OpNeq
	case criteria.OpGreaterThan:
		op = OpGt
	case criteria.OpGreaterThanOrEqual:
		op = OpGte
	case criteria.OpLessThan:
		op = OpLt
	case criteria.OpLessThanOrEqual:
		op = OpLte
	}

	e := Compare{Field: f, Op: op, Value: v}
	if f.Kind == KindString && (op == OpEq || op == OpNeq) {
		e.Fold = true
		e.Value = strings.ToLower(v.(string))
	}
	return e, nil
}

func compileText(f *Field, c criteria.FilterCriterion, op TextOp, negate bool, unsupported func(string) error) (Expr, error) {
	if f.Kind != KindString {
		return nil, unsupported("text operators require a string field")
	}
	v, err := f.Coerce(c.RawValue())
	if err != nil {
		return nil, err
	}
	return Text{Field: f, Op: op, Value: strings.ToLower(v.(string)), Negate: negate}, nil
}

// Eval evaluates e against rec in process. Comparisons involving a null
// field are false, except OpNeq which is true against any non-null literal
// and Not, which negates whatever its operand returned.
func Eval(e Expr, rec any) bool {
	switch n := e.(type) {
	case nil:
		return true
	case And:
		return Eval(n.Left, rec) && Eval(n.Right, rec)
	case Or:
		return Eval(n.Left, rec) || Eval(n.Right, rec)
	case Not:
		return !Eval(n.Expr, rec)
	case IsNull:
		_, ok := n.Field.Value(rec)
		return ok == n.Negate
	case Compare:
		return evalCompare(n, rec)
	case In:
		v, ok := n.Field.Value(rec)
		return lo.ContainsBy(n.Values, func(want any) bool {
			if want == nil || !ok {
				return want == nil && !ok
			}
			c, comparable := compareValues(v, want)
			return comparable && c == 0
		})
	case Text:
		v, ok := n.Field.Value(rec)
		if !ok {
			return false
		}
		s := strings.ToLower(v.(string))
		var m bool
		switch n.Op {
		case TextContains:
			m = strings.Contains(s, n.Value)
		case TextStartsWith:
			m = strings.HasPrefix(s, n.Value)
		case TextEndsWith:
			m = strings.HasSuffix(s, n.Value)
		}
		return m != n.Negate
	}
	return false
}

func evalCompare(n Compare, rec any) bool {
	v, ok := n.Field.Value(rec)
	if n.Value == nil {
		switch n.Op {
		case OpEq:
			return !ok
		case OpNeq:
			return ok
		}
		return false
	}
	if !ok {
		return n.Op == OpNeq
	}
	if n.Fold {
		v = strings.ToLower(v.(string))
	}
	c, comparable := compareValues(v, n.Value)
	if !comparable {
		return n.Op == OpNeq
	}
	switch n.Op {
	case OpEq:
		return c == 0
	case OpNeq:
		return c != 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}
