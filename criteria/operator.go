package criteria

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// FilterOperator is the comparison applied by a single FilterCriterion.
type FilterOperator int

const (
	OpContains FilterOperator = iota
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpEquals
	OpNotEquals
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
	OpIsTrue
	OpIsFalse
)

type operatorInfo struct {
	name        string
	code        string
	description string
	token       bool // reachable from the textual grammar
}

var operatorInfos = map[FilterOperator]operatorInfo{
	OpContains:           {"Contains", "CONTAINS", "Contains", true},
	OpNotContains:        {"NotContains", "NOTCONTAINS", "Does not contain", false},
	OpStartsWith:         {"StartsWith", "STARTSWITH", "Starts with", true},
	OpEndsWith:           {"EndsWith", "ENDSWITH", "Ends with", true},
	OpEquals:             {"Equals", "EQ", "Is equal to", true},
	OpNotEquals:          {"NotEquals", "NEQ", "Is not equal to", true},
	OpGreaterThan:        {"GreaterThan", "GT", "Is greater than", true},
	OpGreaterThanOrEqual: {"GreaterThanOrEqual", "GTE", "Is greater than or equal to", true},
	OpLessThan:           {"LessThan", "LT", "Is less than", true},
	OpLessThanOrEqual:    {"LessThanOrEqual", "LTE", "Is less than or equal to", true},
	OpIn:                 {"In", "IN", "Is in list", true},
	OpNotIn:              {"NotIn", "NOTIN", "Is not in list", true},
	OpIsNull:             {"IsNull", "ISNULL", "Is null", true},
	OpIsNotNull:          {"IsNotNull", "ISNOTNULL", "Is not null", true},
	OpIsTrue:             {"IsTrue", "ISTRUE", "Is true", true},
	OpIsFalse:            {"IsFalse", "ISFALSE", "Is false", true},
}

var (
	operatorsByToken = lo.Associate(
		lo.Filter(Operators(), func(op FilterOperator, _ int) bool { return operatorInfos[op].token }),
		func(op FilterOperator) (string, FilterOperator) { return operatorInfos[op].code, op },
	)
	operatorsByCode = lo.Associate(Operators(), func(op FilterOperator) (string, FilterOperator) {
		return operatorInfos[op].code, op
	})
	operatorsByName = lo.Associate(Operators(), func(op FilterOperator) (string, FilterOperator) {
		return strings.ToUpper(operatorInfos[op].name), op
	})
)

// Operators returns every operator in declaration order.
func Operators() []FilterOperator {
	ops := make([]FilterOperator, 0, len(operatorInfos))
	for op := OpContains; op <= OpIsFalse; op++ {
		ops = append(ops, op)
	}
	return ops
}

// Valid reports whether op is one of the declared operators.
func (op FilterOperator) Valid() bool {
	_, ok := operatorInfos[op]
	return ok
}

func (op FilterOperator) String() string {
	if info, ok := operatorInfos[op]; ok {
		return info.name
	}
	return "FilterOperator(" + strconv.Itoa(int(op)) + ")"
}

// ShortCode returns the canonical upper-case code, e.g. "GTE".
// NotContains has a code but no grammar token.
func (op FilterOperator) ShortCode() string {
	if info, ok := operatorInfos[op]; ok {
		return info.code
	}
	return strings.ToUpper(op.String())
}

// Description returns a human readable label for builders and grids.
func (op FilterOperator) Description() string {
	if info, ok := operatorInfos[op]; ok {
		return info.description
	}
	return op.String()
}

// HasToken reports whether the operator can be written in a textual query.
func (op FilterOperator) HasToken() bool {
	return operatorInfos[op].token
}

// Unary reports whether the operator ignores Value and Values.
func (op FilterOperator) Unary() bool {
	switch op {
	case OpIsNull, OpIsNotNull, OpIsTrue, OpIsFalse:
		return true
	}
	return false
}

// ParseOperatorToken resolves a grammar token (case-insensitive).
func ParseOperatorToken(token string) (FilterOperator, bool) {
	op, ok := operatorsByToken[strings.ToUpper(strings.TrimSpace(token))]
	return op, ok
}

// ParseOperator resolves a short code or an operator name, case-insensitive.
// Unlike ParseOperatorToken it also accepts NOTCONTAINS.
func ParseOperator(s string) (FilterOperator, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if op, ok := operatorsByCode[key]; ok {
		return op, nil
	}
	if op, ok := operatorsByName[key]; ok {
		return op, nil
	}
	return 0, errors.Errorf("unknown filter operator %q", s)
}

func (op FilterOperator) MarshalText() ([]byte, error) {
	if !op.Valid() {
		return nil, errors.Errorf("invalid filter operator %d", int(op))
	}
	return []byte(op.ShortCode()), nil
}

func (op *FilterOperator) UnmarshalText(text []byte) error {
	v, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*op = v
	return nil
}
