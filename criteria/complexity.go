package criteria

import (
	"github.com/pkg/errors"
)

// ComplexityLimits defines limits for query complexity.
// A value of 0 means no limit for that metric.
type ComplexityLimits struct {
	MaxCriteria      int // Maximum number of filter criteria
	MaxOrConnectives int // Maximum number of OR connectives in the flattened list
	MaxInValues      int // Maximum values in a single In/NotIn criterion
	MaxSorts         int // Maximum number of sort keys
}

// ComplexityResult contains the calculated complexity metrics of a query.
type ComplexityResult struct {
	Criteria      int `json:"criteria"`
	OrConnectives int `json:"orConnectives"`
	InValues      int `json:"inValues"` // largest In/NotIn list
	Sorts         int `json:"sorts"`
}

// Predefined complexity limits
var (
	// DefaultLimits provides reasonable defaults for most use cases.
	DefaultLimits = &ComplexityLimits{
		MaxCriteria:      20,
		MaxOrConnectives: 10,
		MaxInValues:      100,
		MaxSorts:         5,
	}

	// StrictLimits provides tighter limits for public endpoints.
	StrictLimits = &ComplexityLimits{
		MaxCriteria:      8,
		MaxOrConnectives: 3,
		MaxInValues:      20,
		MaxSorts:         3,
	}

	// RelaxedLimits provides looser limits for trusted/internal use.
	RelaxedLimits = &ComplexityLimits{
		MaxCriteria:      50,
		MaxOrConnectives: 25,
		MaxInValues:      1000,
		MaxSorts:         10,
	}
)

// CalculateComplexity analyzes filters and sorts and returns their metrics.
func CalculateComplexity(filters []FilterCriterion, sorts []SortCriterion) *ComplexityResult {
	result := &ComplexityResult{
		Criteria: len(filters),
		Sorts:    len(sorts),
	}
	for i, f := range filters {
		if i > 0 && f.LogicalOperator.IsOr() {
			result.OrConnectives++
		}
		if (f.Operator == OpIn || f.Operator == OpNotIn) && len(f.Values) > result.InValues {
			result.InValues = len(f.Values)
		}
	}
	return result
}

// CheckComplexity validates that filters and sorts don't exceed the specified limits.
// Returns an error describing which limit was exceeded, or nil if within limits.
// If limits is nil, no validation is performed.
func CheckComplexity(filters []FilterCriterion, sorts []SortCriterion, limits *ComplexityLimits) error {
	if limits == nil {
		return nil
	}

	result := CalculateComplexity(filters, sorts)

	if limits.MaxCriteria > 0 && result.Criteria > limits.MaxCriteria {
		return errors.Errorf("filter criteria count %d exceeds limit %d", result.Criteria, limits.MaxCriteria)
	}
	if limits.MaxOrConnectives > 0 && result.OrConnectives > limits.MaxOrConnectives {
		return errors.Errorf("filter OR connective count %d exceeds limit %d", result.OrConnectives, limits.MaxOrConnectives)
	}
	if limits.MaxInValues > 0 && result.InValues > limits.MaxInValues {
		return errors.Errorf("filter IN value count %d exceeds limit %d", result.InValues, limits.MaxInValues)
	}
	if limits.MaxSorts > 0 && result.Sorts > limits.MaxSorts {
		return errors.Errorf("sort key count %d exceeds limit %d", result.Sorts, limits.MaxSorts)
	}

	return nil
}
