// Package query parses the textual filter language into criteria.
//
//	Age GT 30 AND (Name CONTAINS 'jo' OR Status IN (1,2)) ORDERBY Name DESC, Id
//
// Connectives are split the way saved queries have always been split: a
// top-level OR wins and is split at its leftmost occurrence, otherwise a
// top-level AND is split at its rightmost occurrence. The result is a
// flattened list whose LogicalOperator fields are folded left to right by
// the predicate compiler.
package query

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/theplant/datahub/criteria"
)

const (
	orderByKeyword = "ORDERBY"
	orToken        = " OR "
	andToken       = " AND "
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	sortItemRegex   = regexp.MustCompile(`(?i)^([\p{L}\p{N}_]+)(?:\s+(ASC|DESC))?$`)
	criterionRegex  = regexp.MustCompile(`^([\p{L}\p{N}_]+)\s+([\p{L}\p{N}_]+)(?:\s+(.*))?$`)
)

type Parser struct {
	logger *slog.Logger
}

type Option func(*Parser)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses raw with a parser that logs to slog.Default().
func Parse(raw string) (*criteria.SavedCriteria, error) {
	return NewParser().Parse(raw)
}

func (p *Parser) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

// Parse splits raw into filters and sorts. RawQuery and Name are left empty.
// A malformed criterion fails the whole parse with a *GrammarError, while a
// malformed sort fragment is dropped with a warning.
func (p *Parser) Parse(raw string) (*criteria.SavedCriteria, error) {
	q := whitespaceRegex.ReplaceAllString(strings.TrimSpace(raw), " ")

	sc := &criteria.SavedCriteria{}
	filterQuery := q
	if i := indexFold(q, orderByKeyword); i >= 0 {
		filterQuery = strings.TrimSpace(q[:i])
		sc.Sorts = p.parseSorts(strings.TrimSpace(q[i+len(orderByKeyword):]))
	}

	if filterQuery != "" {
		filters, err := p.parseLogical(filterQuery)
		if err != nil {
			p.log().Error("parse query", "query", q, "error", err)
			return nil, err
		}
		sc.Filters = filters
	}

	p.log().Debug("parsed query", "query", q, "filters", len(sc.Filters), "sorts", len(sc.Sorts))
	return sc, nil
}

func (p *Parser) parseSorts(s string) []criteria.SortCriterion {
	var sorts []criteria.SortCriterion
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		m := sortItemRegex.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			p.log().Warn("drop malformed sort fragment", "fragment", part)
			continue
		}
		sorts = append(sorts, criteria.SortCriterion{
			FieldName: m[1],
			Direction: criteria.NormalizeDirection(criteria.SortDirection(m[2])),
		})
	}
	return sorts
}

func (p *Parser) parseLogical(s string) ([]criteria.FilterCriterion, error) {
	s = strings.TrimSpace(s)
	for {
		trimmed := trimOuterParentheses(s)
		if len(trimmed) >= len(s) {
			break
		}
		s = trimmed
	}

	orAt, andAt := findConnectives(s)
	switch {
	case orAt >= 0:
		return p.join(s[:orAt], s[orAt+len(orToken):], criteria.ConnectiveOr)
	case andAt >= 0:
		return p.join(s[:andAt], s[andAt+len(andToken):], criteria.ConnectiveAnd)
	}

	if s == "" {
		return nil, nil
	}
	c, err := parseCriterion(s)
	if err != nil {
		return nil, err
	}
	return []criteria.FilterCriterion{c}, nil
}

func (p *Parser) join(left, right string, conn criteria.Connective) ([]criteria.FilterCriterion, error) {
	l, err := p.parseLogical(left)
	if err != nil {
		return nil, err
	}
	r, err := p.parseLogical(right)
	if err != nil {
		return nil, err
	}
	if len(r) > 0 {
		r[0].LogicalOperator = conn
	}
	return append(l, r...), nil
}

// findConnectives returns the first top-level " OR " and, if there is none,
// the last top-level " AND ". Parentheses are tracked but quotes are not.
func findConnectives(s string) (orAt, andAt int) {
	orAt, andAt = -1, -1
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth != 0 {
			continue
		}
		if i+len(orToken) <= len(s) && strings.EqualFold(s[i:i+len(orToken)], orToken) {
			return i, -1
		}
		if i+len(andToken) <= len(s) && strings.EqualFold(s[i:i+len(andToken)], andToken) {
			andAt = i
		}
	}
	return orAt, andAt
}

// trimOuterParentheses removes one pair of parentheses only if it wraps all of s.
func trimOuterParentheses(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			return s
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}

func parseCriterion(s string) (criteria.FilterCriterion, error) {
	var c criteria.FilterCriterion

	m := criterionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return c, &GrammarError{Fragment: s}
	}
	field, token, value := m[1], m[2], strings.TrimSpace(m[3])

	op, ok := criteria.ParseOperatorToken(token)
	if !ok {
		return c, &GrammarError{Fragment: s, Reason: fmt.Sprintf("unknown operator %q", token)}
	}

	c.FieldName = field
	c.Operator = op

	switch {
	case op == criteria.OpIn || op == criteria.OpNotIn:
		if len(value) < 2 || value[0] != '(' || value[len(value)-1] != ')' {
			return c, &GrammarError{Fragment: s, Reason: fmt.Sprintf("%s values must be wrapped in parentheses", op.ShortCode())}
		}
		c.Values = lo.Map(strings.Split(value[1:len(value)-1], ","), func(v string, _ int) string {
			return strings.TrimSpace(v)
		})
	case value == "" && op.Unary():
	case value == "":
		return c, &GrammarError{Fragment: s, Reason: "missing value"}
	default:
		c.Value = lo.ToPtr(unquote(value))
	}
	return c, nil
}

func unquote(v string) string {
	if len(v) > 1 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1]
	}
	return v
}

// indexFold returns the index of the first ASCII case-insensitive occurrence of substr.
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
