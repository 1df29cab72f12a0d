package gormsource

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/theplant/datahub/predicate"
)

// Scope narrows a query to the records p matches. The schema is parsed from
// the query model, or from its destination when no model is set. Errors are
// added to the query and surface when it executes.
func Scope[T any](p *predicate.Predicate[T]) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if db == nil {
			return nil
		}
		if p == nil || p.Expr == nil {
			return db
		}
		stmt, err := parseStatement(db)
		if err != nil {
			db.AddError(err)
			return db
		}
		expr, err := (&translator{stmt: stmt}).build(p.Expr)
		if err != nil {
			db.AddError(err)
			return db
		}
		return db.Where(expr)
	}
}

func parseStatement(db *gorm.DB) (*gorm.Statement, error) {
	model := cmp.Or(db.Statement.Model, db.Statement.Dest)
	if model == nil {
		return nil, errors.New("model is nil")
	}
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, errors.Wrap(err, "parse schema with db")
	}
	return stmt, nil
}

// lookupField finds a schema field by Go name, then by column name, then by
// either name ignoring case. Fields without a column never match.
func lookupField(s *schema.Schema, name string) (*schema.Field, bool) {
	if f, ok := s.FieldsByName[name]; ok && f.DBName != "" {
		return f, true
	}
	if f := s.LookUpField(name); f != nil && f.DBName != "" {
		return f, true
	}
	return lo.Find(s.Fields, func(f *schema.Field) bool {
		return f.DBName != "" && (strings.EqualFold(f.Name, name) || strings.EqualFold(f.DBName, name))
	})
}

type translator struct {
	stmt *gorm.Statement
}

func (t *translator) column(f *predicate.Field) (clause.Column, error) {
	field, ok := lookupField(t.stmt.Schema, f.Name)
	if !ok {
		return clause.Column{}, errors.Errorf("missing field %q in schema", f.Name)
	}
	return clause.Column{Table: t.stmt.Table, Name: field.DBName}, nil
}

func (t *translator) lower(column clause.Column) clause.Expr {
	return clause.Expr{SQL: fmt.Sprintf(`LOWER(%s)`, t.stmt.Quote(column))}
}

func (t *translator) build(e predicate.Expr) (clause.Expression, error) {
	switch n := e.(type) {
	case predicate.And:
		l, r, err := t.pair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return clause.And(l, r), nil

	case predicate.Or:
		l, r, err := t.pair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return clause.Or(l, r), nil

	case predicate.Not:
		if in, ok := n.Expr.(predicate.In); ok {
			return t.notIn(in)
		}
		inner, err := t.build(n.Expr)
		if err != nil {
			return nil, err
		}
		return not(inner), nil

	case predicate.IsNull:
		column, err := t.column(n.Field)
		if err != nil {
			return nil, err
		}
		if n.Negate {
			return clause.Neq{Column: column, Value: nil}, nil
		}
		return clause.Eq{Column: column, Value: nil}, nil

	case predicate.Compare:
		return t.compare(n)

	case predicate.In:
		return t.in(n)

	case predicate.Text:
		return t.text(n)
	}
	return nil, errors.Errorf("unsupported expression %T", e)
}

func (t *translator) pair(left, right predicate.Expr) (clause.Expression, clause.Expression, error) {
	l, err := t.build(left)
	if err != nil {
		return nil, nil, err
	}
	r, err := t.build(right)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// compare keeps in-memory null semantics: a null column never equals or
// orders against a value, but is unequal to every value.
func (t *translator) compare(n predicate.Compare) (clause.Expression, error) {
	col, err := t.column(n.Field)
	if err != nil {
		return nil, err
	}
	if n.Value == nil {
		if n.Op == predicate.OpNeq {
			return clause.Neq{Column: col, Value: nil}, nil
		}
		return clause.Eq{Column: col, Value: nil}, nil
	}

	var column any = col
	if n.Fold {
		column = t.lower(col)
	}

	switch n.Op {
	case predicate.OpEq:
		return clause.Eq{Column: column, Value: n.Value}, nil
	case predicate.OpNeq:
		var expr clause.Expression = clause.Neq{Column: column, Value: n.Value}
		if n.Field.Nullable {
			expr = clause.Or(expr, clause.Eq{Column: col, Value: nil})
		}
		return expr, nil
	case predicate.OpGt:
		return clause.Gt{Column: column, Value: n.Value}, nil
	case predicate.OpGte:
		return clause.Gte{Column: column, Value: n.Value}, nil
	case predicate.OpLt:
		return clause.Lt{Column: column, Value: n.Value}, nil
	case predicate.OpLte:
		return clause.Lte{Column: column, Value: n.Value}, nil
	}
	return nil, errors.Errorf("unknown comparison %d on field %q", n.Op, n.Field.Name)
}

func splitNull(values []any) ([]any, bool) {
	nonNull := lo.Filter(values, func(v any, _ int) bool { return v != nil })
	return nonNull, len(nonNull) < len(values)
}

func (t *translator) in(n predicate.In) (clause.Expression, error) {
	col, err := t.column(n.Field)
	if err != nil {
		return nil, err
	}
	values, hasNull := splitNull(n.Values)
	isNull := clause.Eq{Column: col, Value: nil}
	switch {
	case !hasNull:
		return clause.IN{Column: col, Values: values}, nil
	case len(values) == 0:
		return isNull, nil
	}
	return clause.Or(clause.IN{Column: col, Values: values}, isNull), nil
}

func (t *translator) notIn(n predicate.In) (clause.Expression, error) {
	col, err := t.column(n.Field)
	if err != nil {
		return nil, err
	}
	values, hasNull := splitNull(n.Values)
	notNull := clause.Neq{Column: col, Value: nil}
	switch {
	case hasNull && len(values) == 0:
		return notNull, nil
	case hasNull:
		return clause.And(not(clause.IN{Column: col, Values: values}), notNull), nil
	case n.Field.Nullable:
		return clause.Or(not(clause.IN{Column: col, Values: values}), clause.Eq{Column: col, Value: nil}), nil
	}
	return not(clause.IN{Column: col, Values: values}), nil
}

func (t *translator) text(n predicate.Text) (clause.Expression, error) {
	col, err := t.column(n.Field)
	if err != nil {
		return nil, err
	}
	var pattern string
	switch n.Op {
	case predicate.TextContains:
		pattern = likePattern("%", n.Value, "%")
	case predicate.TextStartsWith:
		pattern = likePattern("", n.Value, "%")
	case predicate.TextEndsWith:
		pattern = likePattern("%", n.Value, "")
	}
	var expr clause.Expression = clause.Like{Column: t.lower(col), Value: pattern}
	if n.Negate {
		expr = not(expr)
	}
	return expr, nil
}
