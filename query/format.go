package query

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/theplant/datahub/criteria"
)

// Format renders sc back into the textual language. Parsing the result of a
// paren-free query yields the same filters and sorts. Criteria without a
// grammar token, such as NotContains, cannot be rendered, and neither can
// values the grammar would split or rewrite.
func Format(sc *criteria.SavedCriteria) (string, error) {
	if sc == nil {
		return "", nil
	}

	var b strings.Builder
	for i, c := range sc.Filters {
		if !c.Operator.HasToken() {
			return "", errors.Errorf("operator %s has no query token", c.Operator)
		}
		if i > 0 {
			if c.LogicalOperator.IsOr() {
				b.WriteString(orToken)
			} else {
				b.WriteString(andToken)
			}
		}
		b.WriteString(c.FieldName)
		b.WriteByte(' ')
		b.WriteString(c.Operator.ShortCode())

		switch {
		case c.Operator == criteria.OpIn || c.Operator == criteria.OpNotIn:
			if len(c.Values) == 0 {
				return "", errors.Errorf("criterion on %q has no values", c.FieldName)
			}
			for _, v := range c.Values {
				if err := checkValue(v); err != nil {
					return "", errors.Wrapf(err, "criterion on %q", c.FieldName)
				}
				if v != strings.TrimSpace(v) || strings.ContainsAny(v, ",()") {
					return "", errors.Errorf("criterion on %q: list value %q cannot be written in a query", c.FieldName, v)
				}
			}
			b.WriteString(" (")
			b.WriteString(strings.Join(c.Values, ","))
			b.WriteByte(')')
		case c.Value != nil:
			if err := checkValue(*c.Value); err != nil {
				return "", errors.Wrapf(err, "criterion on %q", c.FieldName)
			}
			b.WriteByte(' ')
			b.WriteString(quote(*c.Value))
		case !c.Operator.Unary():
			return "", errors.Errorf("criterion on %q has no value", c.FieldName)
		}
	}

	if len(sc.Sorts) > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(orderByKeyword)
		for i, s := range sc.Sorts {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte(' ')
			b.WriteString(s.FieldName)
			b.WriteByte(' ')
			b.WriteString(string(criteria.NormalizeDirection(s.Direction)))
		}
	}
	return b.String(), nil
}

func quote(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\n'()") {
		return "'" + v + "'"
	}
	return v
}

// checkValue rejects values that Parse would split or rewrite.
func checkValue(v string) error {
	upper := strings.ToUpper(v)
	switch {
	case strings.Contains(upper, orToken), strings.Contains(upper, andToken), strings.Contains(upper, orderByKeyword):
		return errors.Errorf("value %q contains a query keyword", v)
	case whitespaceRegex.ReplaceAllString(v, " ") != v:
		return errors.Errorf("value %q contains whitespace that does not survive parsing", v)
	}
	depth := 0
	for _, r := range v {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			break
		}
	}
	if depth != 0 {
		return errors.Errorf("value %q has unbalanced parentheses", v)
	}
	return nil
}
