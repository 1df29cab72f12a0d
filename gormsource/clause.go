package gormsource

import (
	"strings"

	"gorm.io/gorm/clause"
)

// negation negates a single expression. Expressions that know their own
// negated form (IN, LIKE, =, ...) build it; anything else is wrapped in
// NOT (...).
type negation struct {
	expr clause.Expression
}

func not(expr clause.Expression) clause.Expression {
	if expr == nil {
		return nil
	}
	return negation{expr: expr}
}

func (n negation) Build(builder clause.Builder) {
	if nb, ok := n.expr.(clause.NegationExpressionBuilder); ok {
		nb.NegationBuild(builder)
		return
	}
	_, _ = builder.WriteString("NOT ")
	wrap := true
	switch e := n.expr.(type) {
	case clause.AndConditions:
		wrap = len(e.Exprs) <= 1
	case clause.OrConditions:
		wrap = len(e.Exprs) <= 1
	}
	if wrap {
		_ = builder.WriteByte('(')
	}
	n.expr.Build(builder)
	if wrap {
		_ = builder.WriteByte(')')
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern escapes LIKE wildcards in s so it matches literally.
func likePattern(prefix, s, suffix string) string {
	return prefix + likeEscaper.Replace(s) + suffix
}
