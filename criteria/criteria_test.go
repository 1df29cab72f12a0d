package criteria

import (
	"reflect"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortCodeRoundTrip(t *testing.T) {
	for _, op := range Operators() {
		t.Run(op.String(), func(t *testing.T) {
			got, ok := ParseOperatorToken(op.ShortCode())
			if op == OpNotContains {
				require.False(t, ok, "NotContains must not be a grammar token")
				return
			}
			require.True(t, ok)
			require.Equal(t, op, got)
		})
	}
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		input   string
		want    FilterOperator
		wantErr string
	}{
		{input: "gte", want: OpGreaterThanOrEqual},
		{input: " NotContains ", want: OpNotContains},
		{input: "NOTCONTAINS", want: OpNotContains},
		{input: "isnotnull", want: OpIsNotNull},
		{input: "LIKE", wantErr: `unknown filter operator "LIKE"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOperator(tt.input)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperatorProperties(t *testing.T) {
	assert.Len(t, Operators(), 16)
	assert.True(t, OpIsTrue.Unary())
	assert.False(t, OpIn.Unary())
	assert.False(t, OpNotContains.HasToken())
	assert.Equal(t, "Is in list", OpIn.Description())
	assert.Equal(t, "FilterOperator(99)", FilterOperator(99).String())
	assert.False(t, FilterOperator(99).Valid())
}

func TestSavedCriteriaJSON(t *testing.T) {
	sc := &SavedCriteria{
		Name: "adults",
		Filters: []FilterCriterion{
			Filter("Age", OpGreaterThan, "30"),
			FilterIn("Status", OpNotIn, "1", "2").Or(),
			FilterUnary("DeletedAt", OpIsNull).And(),
			Filter("Name", OpNotContains, "bot"),
		},
		Sorts:    []SortCriterion{{FieldName: "Name", Direction: SortDesc}},
		RawQuery: "Age GT 30 OR Status NOTIN (1,2)",
	}

	data, err := Marshal(sc)
	require.NoError(t, err)
	require.Contains(t, string(data), `"operator":"NOTIN"`)
	require.Contains(t, string(data), `"operator":"NOTCONTAINS"`)
	require.Contains(t, string(data), `"logicalOperator":"OR"`)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, sc, got)

	_, err = Unmarshal([]byte(`{"filters":[{"fieldName":"A","operator":"BETWEEN"}]}`))
	require.ErrorContains(t, err, "unknown filter operator")
}

func TestFiltersKey(t *testing.T) {
	a, err := FiltersKey([]FilterCriterion{Filter("A", OpEquals, "1")})
	require.NoError(t, err)
	b, err := FiltersKey([]FilterCriterion{Filter("A", OpEquals, "1")})
	require.NoError(t, err)
	c, err := FiltersKey([]FilterCriterion{Filter("A", OpEquals, "1").Or()})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestClone(t *testing.T) {
	sc := &SavedCriteria{
		Filters: []FilterCriterion{Filter("A", OpEquals, "1"), FilterIn("B", OpIn, "x")},
		Sorts:   []SortCriterion{{FieldName: "A"}},
	}
	cp := sc.Clone()
	*cp.Filters[0].Value = "2"
	cp.Filters[1].Values[0] = "y"
	cp.Sorts[0].FieldName = "Z"

	assert.Equal(t, "1", sc.Filters[0].RawValue())
	assert.Equal(t, "x", sc.Filters[1].Values[0])
	assert.Equal(t, "A", sc.Sorts[0].FieldName)
	assert.Nil(t, (*SavedCriteria)(nil).Clone())
}

func TestNormalizeSorts(t *testing.T) {
	got := NormalizeSorts([]SortCriterion{
		{FieldName: "A"},
		{FieldName: "B", Direction: "desc"},
		{FieldName: "C", Direction: " Asc "},
	})
	assert.Equal(t, []SortCriterion{
		{FieldName: "A", Direction: SortAsc},
		{FieldName: "B", Direction: SortDesc},
		{FieldName: "C", Direction: SortAsc},
	}, got)
	assert.True(t, got[1].Desc())
	assert.True(t, Connective("or").IsOr())
	assert.False(t, ConnectiveNone.IsOr())
}

func TestCalculateComplexity(t *testing.T) {
	tests := []struct {
		name     string
		filters  []FilterCriterion
		sorts    []SortCriterion
		expected *ComplexityResult
	}{
		{
			name:     "empty",
			expected: &ComplexityResult{},
		},
		{
			name: "or chain with in list",
			filters: []FilterCriterion{
				Filter("A", OpEquals, "1"),
				Filter("B", OpEquals, "2").Or(),
				FilterIn("C", OpIn, "1", "2", "3").And(),
				Filter("D", OpEquals, "2").Or(),
			},
			sorts:    []SortCriterion{{FieldName: "A"}},
			expected: &ComplexityResult{Criteria: 4, OrConnectives: 2, InValues: 3, Sorts: 1},
		},
		{
			name: "or on first criterion is ignored",
			filters: []FilterCriterion{
				Filter("A", OpEquals, "1").Or(),
			},
			expected: &ComplexityResult{Criteria: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CalculateComplexity(tt.filters, tt.sorts))
		})
	}
}

func TestCheckComplexity(t *testing.T) {
	filters := []FilterCriterion{
		Filter("A", OpEquals, "1"),
		Filter("B", OpEquals, "2").Or(),
		FilterIn("C", OpIn, "1", "2", "3"),
	}
	sorts := []SortCriterion{{FieldName: "A"}, {FieldName: "B"}}

	require.NoError(t, CheckComplexity(filters, sorts, nil))
	require.NoError(t, CheckComplexity(filters, sorts, DefaultLimits))
	require.ErrorContains(t, CheckComplexity(filters, sorts, &ComplexityLimits{MaxCriteria: 2}), "filter criteria count 3 exceeds limit 2")
	require.ErrorContains(t, CheckComplexity(filters, sorts, &ComplexityLimits{MaxOrConnectives: 0, MaxInValues: 2}), "filter IN value count 3 exceeds limit 2")
	require.ErrorContains(t, CheckComplexity(filters, sorts, &ComplexityLimits{MaxSorts: 1}), "sort key count 2 exceeds limit 1")
	require.ErrorContains(t, CheckComplexity(append(filters, Filter("D", OpEquals, "1").Or()), nil, &ComplexityLimits{MaxOrConnectives: 1}), "filter OR connective count 2 exceeds limit 1")
}

type row struct {
	Name string
	Age  int
}

func TestValidateAgainstColumns(t *testing.T) {
	columns := []ColumnDefinition[row]{
		{FieldName: "Name", DataType: reflect.TypeOf(""), Filterable: true, Sortable: true},
		{FieldName: "Age", DisplayName: "Age (years)", DataType: reflect.TypeOf(0), Filterable: false, Sortable: true},
	}
	assert.Equal(t, "Age (years)", columns[1].Label())
	assert.Equal(t, "Name", columns[0].Label())

	require.NoError(t, ValidateAgainstColumns(&SavedCriteria{
		Filters: []FilterCriterion{Filter("name", OpContains, "a")},
		Sorts:   []SortCriterion{{FieldName: "AGE"}},
	}, columns))
	require.NoError(t, ValidateAgainstColumns[row](nil, columns))

	err := ValidateAgainstColumns(&SavedCriteria{
		Filters: []FilterCriterion{Filter("Age", OpGreaterThan, "1")},
	}, columns)
	require.ErrorContains(t, err, `field "Age" is not filterable`)

	err = ValidateAgainstColumns(&SavedCriteria{
		Sorts: []SortCriterion{{FieldName: "Missing"}},
	}, columns)
	require.ErrorContains(t, err, `unknown sort field "Missing"`)

	err = ValidateAgainstColumns(&SavedCriteria{
		Filters: lo.Map([]string{"Nope"}, func(f string, _ int) FilterCriterion { return FilterUnary(f, OpIsNull) }),
	}, columns)
	require.ErrorContains(t, err, `unknown filter field "Nope"`)
}
