package criteria

import (
	"strings"

	"github.com/samber/lo"
)

// Connective joins a criterion to the criterion before it in the same list.
type Connective string

const (
	ConnectiveNone Connective = ""
	ConnectiveAnd  Connective = "AND"
	ConnectiveOr   Connective = "OR"
)

// IsOr reports whether c is an OR connective, case-insensitive.
// Anything else, including the empty connective, combines with AND.
func (c Connective) IsOr() bool {
	return strings.EqualFold(strings.TrimSpace(string(c)), string(ConnectiveOr))
}

// FilterCriterion is one atomic condition. Filter lists are flattened
// boolean expressions: LogicalOperator joins a criterion to the previous one
// and is always empty on the first criterion of a list.
type FilterCriterion struct {
	FieldName       string         `json:"fieldName"`
	Operator        FilterOperator `json:"operator"`
	Value           *string        `json:"value,omitempty"`
	Values          []string       `json:"values,omitempty"`
	LogicalOperator Connective     `json:"logicalOperator,omitempty"`
}

// Filter is shorthand for a criterion comparing field against a single raw value.
func Filter(field string, op FilterOperator, value string) FilterCriterion {
	return FilterCriterion{FieldName: field, Operator: op, Value: lo.ToPtr(value)}
}

// FilterIn is shorthand for an In or NotIn criterion.
func FilterIn(field string, op FilterOperator, values ...string) FilterCriterion {
	return FilterCriterion{FieldName: field, Operator: op, Values: values}
}

// FilterUnary is shorthand for operators that take no value, e.g. IsNull.
func FilterUnary(field string, op FilterOperator) FilterCriterion {
	return FilterCriterion{FieldName: field, Operator: op}
}

// And returns a copy of c joined to its predecessor with AND.
func (c FilterCriterion) And() FilterCriterion {
	c.LogicalOperator = ConnectiveAnd
	return c
}

// Or returns a copy of c joined to its predecessor with OR.
func (c FilterCriterion) Or() FilterCriterion {
	c.LogicalOperator = ConnectiveOr
	return c
}

// RawValue returns the raw value or "" when none is set.
func (c FilterCriterion) RawValue() string {
	return lo.FromPtr(c.Value)
}

func (c FilterCriterion) Clone() FilterCriterion {
	if c.Value != nil {
		c.Value = lo.ToPtr(*c.Value)
	}
	if c.Values != nil {
		c.Values = append([]string(nil), c.Values...)
	}
	return c
}

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// NormalizeDirection upper-cases a direction token and defaults to ASC.
func NormalizeDirection(d SortDirection) SortDirection {
	if strings.EqualFold(strings.TrimSpace(string(d)), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// SortCriterion orders by one field. Earlier criteria in a list are primary keys.
type SortCriterion struct {
	FieldName string        `json:"fieldName"`
	Direction SortDirection `json:"direction"`
}

func (s SortCriterion) Desc() bool {
	return NormalizeDirection(s.Direction) == SortDesc
}

// NormalizeSorts returns a copy of sorts with canonical directions.
func NormalizeSorts(sorts []SortCriterion) []SortCriterion {
	return lo.Map(sorts, func(s SortCriterion, _ int) SortCriterion {
		s.Direction = NormalizeDirection(s.Direction)
		return s
	})
}

// SavedCriteria is a named, reloadable query.
type SavedCriteria struct {
	Name     string            `json:"name"`
	Filters  []FilterCriterion `json:"filters"`
	Sorts    []SortCriterion   `json:"sorts"`
	RawQuery string            `json:"rawQuery"`
}

func (s *SavedCriteria) Clone() *SavedCriteria {
	if s == nil {
		return nil
	}
	return &SavedCriteria{
		Name: s.Name,
		Filters: lo.Map(s.Filters, func(c FilterCriterion, _ int) FilterCriterion {
			return c.Clone()
		}),
		Sorts:    append([]SortCriterion{}, s.Sorts...),
		RawQuery: s.RawQuery,
	}
}

// AppendFilters appends src to dst. The first appended criterion keeps its
// connective, so an empty one combines with the existing list using AND.
func AppendFilters(dst []FilterCriterion, src ...FilterCriterion) []FilterCriterion {
	out := make([]FilterCriterion, 0, len(dst)+len(src))
	out = append(out, dst...)
	return append(out, src...)
}
