package predicate

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Expr is a node of a compiled predicate. Record sources that cannot run Go
// closures, such as SQL databases, translate the tree with a type switch.
type Expr interface {
	fmt.Stringer
	expr()
}

type And struct {
	Left, Right Expr
}

type Or struct {
	Left, Right Expr
}

type Not struct {
	Expr Expr
}

type CompareOp int

const (
	OpEq CompareOp = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
)

var compareOpSymbols = map[CompareOp]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

func (op CompareOp) String() string {
	return compareOpSymbols[op]
}

// Compare tests the field against a canonical value. A nil Value is the
// null literal and only appears with OpEq and OpNeq. With Fold set the field
// is lower-cased before comparison and Value is already lower-case.
type Compare struct {
	Field *Field
	Op    CompareOp
	Value any
	Fold  bool
}

type IsNull struct {
	Field  *Field
	Negate bool
}

// In tests equality against any of Values. Text is compared case-sensitively.
// A nil element matches a null field.
type In struct {
	Field  *Field
	Values []any
}

type TextOp int

const (
	TextContains TextOp = iota
	TextStartsWith
	TextEndsWith
)

var textOpNames = map[TextOp]string{
	TextContains:   "CONTAINS",
	TextStartsWith: "STARTSWITH",
	TextEndsWith:   "ENDSWITH",
}

func (op TextOp) String() string {
	return textOpNames[op]
}

// Text is a case-insensitive substring test on a string field. Value is
// lower-case. A null field never matches, negated or not.
type Text struct {
	Field  *Field
	Op     TextOp
	Value  string
	Negate bool
}

func (And) expr()     {}
func (Or) expr()      {}
func (Not) expr()     {}
func (Compare) expr() {}
func (IsNull) expr()  {}
func (In) expr()      {}
func (Text) expr()    {}

func (e And) String() string {
	return fmt.Sprintf("(%s AND %s)", e.Left, e.Right)
}

func (e Or) String() string {
	return fmt.Sprintf("(%s OR %s)", e.Left, e.Right)
}

func (e Not) String() string {
	return fmt.Sprintf("NOT %s", e.Expr)
}

func (e Compare) String() string {
	if e.Value == nil {
		if e.Op == OpNeq {
			return e.Field.Name + " IS NOT NULL"
		}
		return e.Field.Name + " IS NULL"
	}
	return fmt.Sprintf("%s %s %s", foldName(e.Field, e.Fold), e.Op, literal(e.Value))
}

func (e IsNull) String() string {
	if e.Negate {
		return e.Field.Name + " IS NOT NULL"
	}
	return e.Field.Name + " IS NULL"
}

func (e In) String() string {
	return fmt.Sprintf("%s IN (%s)", e.Field.Name, strings.Join(lo.Map(e.Values, func(v any, _ int) string {
		return literal(v)
	}), ", "))
}

func (e Text) String() string {
	op := e.Op.String()
	if e.Negate {
		op = "NOT " + op
	}
	return fmt.Sprintf("%s %s %s", foldName(e.Field, true), op, literal(e.Value))
}

func foldName(f *Field, fold bool) string {
	if fold {
		return "lower(" + f.Name + ")"
	}
	return f.Name
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + x + "'"
	case fmt.Stringer:
		return "'" + x.String() + "'"
	}
	return fmt.Sprint(v)
}
