package predicate

import (
	"bytes"
	"database/sql"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theplant/datahub/criteria"
	"github.com/theplant/datahub/query"
)

type Level int

const (
	LevelLow Level = iota + 1
	LevelHigh
)

func (l *Level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "LOW":
		*l = LevelLow
	case "HIGH":
		*l = LevelHigh
	default:
		return errors.Errorf("unknown level %q", text)
	}
	return nil
}

type Base struct {
	ID int
}

type Person struct {
	Base
	Name     string
	Nickname *string
	Age      int
	Score    float64
	Active   bool
	Level    Level
	Born     time.Time
	Ref      uuid.UUID
	Manager  sql.NullString
	Tags     []string
	private  string
}

var (
	ref1 = uuid.MustParse("6f1c2b3a-0000-4000-8000-000000000001")
	ref2 = uuid.MustParse("6f1c2b3a-0000-4000-8000-000000000002")
)

func people() []Person {
	return []Person{
		{Base: Base{ID: 1}, Name: "John", Nickname: lo.ToPtr("Johnny"), Age: 35, Score: 1.5, Active: true, Level: LevelHigh, Born: date(1989, 5, 1), Ref: ref1, Manager: sql.NullString{String: "Ann", Valid: true}},
		{Base: Base{ID: 2}, Name: "joanna", Age: 28, Score: 2.5, Level: LevelLow, Born: date(1996, 1, 2), Ref: ref2},
		{Base: Base{ID: 3}, Name: "Mike", Nickname: lo.ToPtr("mo"), Age: 41, Score: 1000.25, Active: true, Level: LevelLow, Born: date(1983, 12, 31)},
		{Base: Base{ID: 4}, Name: "Jojo", Age: 30, Score: 0, Level: LevelHigh, Born: date(1994, 7, 7), Tags: []string{"x"}},
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ids(recs []Person) []int {
	return lo.Map(recs, func(p Person, _ int) int { return p.ID })
}

func filterBy(t *testing.T, raw string) ([]int, *Predicate[Person]) {
	t.Helper()
	sc, err := query.Parse(raw)
	require.NoError(t, err)
	p := Compile(MustShapeOf[Person](), sc.Filters)
	return ids(p.Filter(people())), p
}

func TestShapeOf(t *testing.T) {
	shape, err := ShapeOf[Person]()
	require.NoError(t, err)

	names := lo.Map(shape.Fields(), func(f *Field, _ int) string { return f.Name })
	assert.Equal(t, []string{"ID", "Name", "Nickname", "Age", "Score", "Active", "Level", "Born", "Ref", "Manager", "Tags"}, names)

	kinds := map[string]Kind{
		"ID": KindInt, "name": KindString, "NICKNAME": KindString, "Score": KindFloat,
		"Active": KindBool, "Level": KindEnum, "Born": KindTime, "Ref": KindUUID,
		"Manager": KindString, "Tags": KindOther,
	}
	for name, kind := range kinds {
		f, ok := shape.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, kind, f.Kind, name)
	}

	nick, _ := shape.Lookup("Nickname")
	assert.True(t, nick.Nullable)
	manager, _ := shape.Lookup("Manager")
	assert.True(t, manager.Nullable)

	_, ok := shape.Lookup("private")
	assert.False(t, ok)

	again, err := ShapeOf[Person]()
	require.NoError(t, err)
	assert.Same(t, shape, again)

	ptrShape, err := ShapeOf[*Person]()
	require.NoError(t, err)
	f, _ := ptrShape.Lookup("Name")
	v, ok := f.Value((*Person)(nil))
	assert.False(t, ok)
	assert.Nil(t, v)
	v, ok = f.Value(&Person{Name: "x"})
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, err = ShapeOf[string]()
	require.ErrorContains(t, err, "record type string is not a struct")
}

func TestCompileExamples(t *testing.T) {
	tests := []struct {
		raw  string
		want []int
	}{
		{raw: "Age GT 30 AND Name CONTAINS 'jo'", want: []int{1}},
		{raw: "Name EQ 'JOHN'", want: []int{1}},
		{raw: "Name NEQ john", want: []int{2, 3, 4}},
		{raw: "Name STARTSWITH JO", want: []int{1, 2, 4}},
		{raw: "Name ENDSWITH 'NA'", want: []int{2}},
		{raw: "Nickname CONTAINS o", want: []int{1, 3}},
		{raw: "Nickname ISNULL", want: []int{2, 4}},
		{raw: "Nickname ISNOTNULL", want: []int{1, 3}},
		{raw: "Nickname EQ ''", want: []int{}},
		{raw: "Manager EQ ann", want: []int{1}},
		{raw: "Manager ISNULL", want: []int{2, 3, 4}},
		{raw: "Tags ISNULL", want: []int{1, 2, 3}},
		{raw: "Age IN (28,41)", want: []int{2, 3}},
		{raw: "Age NOTIN (28,41)", want: []int{1, 4}},
		{raw: "Age GTE 30 AND Age LTE 35", want: []int{1, 4}},
		{raw: "Score GT '1,000'", want: []int{3}},
		{raw: "Active ISTRUE", want: []int{1, 3}},
		{raw: "Active ISFALSE", want: []int{2, 4}},
		{raw: "Active EQ yes", want: []int{1, 3}},
		{raw: "Level EQ high", want: []int{1, 4}},
		{raw: "Level IN (LOW)", want: []int{2, 3}},
		{raw: "Level EQ 1", want: []int{2, 3}},
		{raw: "Born LT 1990-01-01", want: []int{1, 3}},
		{raw: "Born EQ '02.01.1996'", want: []int{2}},
		{raw: "Born GTE '07/07/1994'", want: []int{2, 4}},
		{raw: "Ref EQ 6f1c2b3a-0000-4000-8000-000000000002", want: []int{2}},
		{raw: "Age CONTAINS 41", want: []int{3}},
		{raw: "A EQ 1 OR Age EQ 28", want: []int{2}},
		{raw: "Age EQ 28 OR Age EQ 41 AND Active ISTRUE", want: []int{3}},
		{raw: "Active ISTRUE AND Age EQ 35 OR Age EQ 28", want: []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, _ := filterBy(t, tt.raw)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInNotInComplement(t *testing.T) {
	in, _ := filterBy(t, "Age IN (1,2,3,28,30)")
	notIn, _ := filterBy(t, "Age NOTIN (1,2,3,28,30)")
	all := ids(people())

	assert.Empty(t, lo.Intersect(in, notIn))
	union := append(slices.Clone(in), notIn...)
	slices.Sort(union)
	assert.Equal(t, all, union)
}

func TestCompileDropsCriteria(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	filters := []criteria.FilterCriterion{
		criteria.Filter("Missing", criteria.OpEquals, "1"),
		criteria.Filter("Age", criteria.OpGreaterThan, "abc").And(),
		criteria.FilterUnary("Name", criteria.OpIsTrue).And(),
		criteria.Filter("Age", criteria.OpStartsWith, "3").And(),
		criteria.Filter("Age", criteria.OpLessThan, "").And(),
		criteria.Filter("Active", criteria.OpGreaterThan, "true").And(),
		criteria.FilterIn("Age", criteria.OpIn).And(),
		criteria.Filter("", criteria.OpEquals, "1").And(),
		criteria.Filter("Name", criteria.OpContains, "jo").And(),
	}
	p := Compile(MustShapeOf[Person](), filters, WithLogger(logger))

	assert.Equal(t, []int{1, 2, 4}, ids(p.Filter(people())))
	require.Len(t, p.Dropped, 6)

	var fieldErr *FieldError
	require.True(t, errors.As(p.Dropped[0], &fieldErr))
	assert.Equal(t, "Missing", fieldErr.Field)

	var coercionErr *CoercionError
	require.True(t, errors.As(p.Dropped[1], &coercionErr))
	assert.Equal(t, KindInt, coercionErr.Kind)
	assert.Contains(t, coercionErr.Error(), `cannot convert "abc" to int for field "Age"`)

	for _, err := range p.Dropped[2:] {
		var unsupported *UnsupportedError
		require.True(t, errors.As(err, &unsupported), err.Error())
	}
	assert.Contains(t, p.Dropped[4].Error(), "requires a non-null value")
	assert.Equal(t, 6, strings.Count(buf.String(), "drop filter criterion"))
}

func TestCompileWithoutValue(t *testing.T) {
	tests := []struct {
		name    string
		filter  criteria.FilterCriterion
		wantIDs []int
		dropped bool
	}{
		{name: "greater than", filter: criteria.FilterUnary("Age", criteria.OpGreaterThan), dropped: true},
		{name: "equals number", filter: criteria.FilterUnary("Age", criteria.OpEquals), dropped: true},
		{name: "equals bool", filter: criteria.FilterUnary("Active", criteria.OpEquals), dropped: true},
		{name: "not equals nullable", filter: criteria.FilterUnary("Nickname", criteria.OpNotEquals), dropped: true},
		{name: "starts with", filter: criteria.FilterUnary("Name", criteria.OpStartsWith), dropped: true},
		{name: "contains on number", filter: criteria.FilterUnary("Age", criteria.OpContains), dropped: true},
		{name: "contains on string", filter: criteria.FilterUnary("Nickname", criteria.OpContains), wantIDs: []int{1, 3}},
		{name: "unary", filter: criteria.FilterUnary("Nickname", criteria.OpIsNull), wantIDs: []int{2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Compile(MustShapeOf[Person](), []criteria.FilterCriterion{tt.filter},
				WithLogger(slog.New(slog.DiscardHandler)))
			if !tt.dropped {
				require.Empty(t, p.Dropped)
				assert.Equal(t, tt.wantIDs, ids(p.Filter(people())))
				return
			}
			assert.Nil(t, p.Expr)
			require.Len(t, p.Dropped, 1)
			var unsupported *UnsupportedError
			require.True(t, errors.As(p.Dropped[0], &unsupported))
			assert.Contains(t, unsupported.Error(), "requires a value")
			assert.Len(t, p.Filter(people()), 4)
		})
	}
}

func TestCompileFirstSurvivorSeeds(t *testing.T) {
	p := Compile(MustShapeOf[Person](), []criteria.FilterCriterion{
		criteria.Filter("Missing", criteria.OpEquals, "1"),
		criteria.Filter("Age", criteria.OpEquals, "28").Or(),
		criteria.Filter("Name", criteria.OpEquals, "joanna").And(),
	}, WithLogger(slog.New(slog.DiscardHandler)))
	assert.Equal(t, "(Age = 28 AND lower(Name) = 'joanna')", p.Expr.String())
	assert.Equal(t, []int{2}, ids(p.Filter(people())))
}

func TestCompileEmpty(t *testing.T) {
	p := Compile[Person](MustShapeOf[Person](), nil)
	assert.Nil(t, p.Expr)
	assert.Len(t, p.Filter(people()), 4)
	assert.True(t, (*Predicate[Person])(nil).Match(Person{}))
}

func TestExprString(t *testing.T) {
	sc, err := query.Parse("Age IN (1,2) AND Nickname CONTAINS Mo OR Name NEQ '' AND Manager ISNULL")
	require.NoError(t, err)
	p := Compile(MustShapeOf[Person](), sc.Filters)
	assert.Equal(t,
		"(((Age IN (1, 2) AND lower(Nickname) CONTAINS 'mo') OR lower(Name) <> '') AND Manager IS NULL)",
		p.Expr.String(),
	)

	sc.Filters = append(sc.Filters, criteria.Filter("Name", criteria.OpNotContains, "x").And())
	p = Compile(MustShapeOf[Person](), sc.Filters)
	assert.True(t, strings.HasSuffix(p.Expr.String(), "AND lower(Name) NOT CONTAINS 'x')"))
}

func TestNotContains(t *testing.T) {
	p := Compile(MustShapeOf[Person](), []criteria.FilterCriterion{
		criteria.Filter("Nickname", criteria.OpNotContains, "JOHN"),
	})
	assert.Equal(t, []int{3}, ids(p.Filter(people())))
}

func TestCoerce(t *testing.T) {
	shape := MustShapeOf[Person]()
	field := func(name string) *Field {
		f, ok := shape.Lookup(name)
		require.True(t, ok)
		return f
	}

	tests := []struct {
		field   string
		raw     string
		want    any
		wantErr string
	}{
		{field: "Name", raw: "'a b'", want: "a b"},
		{field: "Name", raw: "", want: ""},
		{field: "Name", raw: `"x"`, want: `"x"`},
		{field: "Active", raw: "", want: false},
		{field: "Active", raw: "NO", want: false},
		{field: "Active", raw: "1", want: true},
		{field: "Active", raw: "maybe", wantErr: `invalid boolean "maybe"`},
		{field: "Age", raw: "", want: nil},
		{field: "Age", raw: " 42 ", want: int64(42)},
		{field: "Age", raw: "010", want: int64(10)},
		{field: "Age", raw: "4.2", wantErr: "invalid syntax"},
		{field: "Score", raw: "1,234.5", want: 1234.5},
		{field: "Born", raw: "2024-02-03 04:05:06", want: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)},
		{field: "Born", raw: "03.02.2024", want: date(2024, 2, 3)},
		{field: "Born", raw: "not a date", wantErr: "invalid time"},
		{field: "Ref", raw: ref1.String(), want: ref1},
		{field: "Ref", raw: "nope", wantErr: "invalid UUID"},
		{field: "Level", raw: "High", want: int64(LevelHigh)},
		{field: "Level", raw: "2", want: int64(LevelHigh)},
		{field: "Level", raw: "medium", wantErr: `unknown level "medium"`},
		{field: "Tags", raw: "x", wantErr: "cannot be compared"},
	}
	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.raw, func(t *testing.T) {
			got, err := field(tt.field).Coerce(tt.raw)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				assert.True(t, want.Equal(got.(time.Time)), got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComparator(t *testing.T) {
	shape := MustShapeOf[Person]()

	tests := []struct {
		name  string
		sorts []criteria.SortCriterion
		want  []int
	}{
		{name: "single asc", sorts: []criteria.SortCriterion{{FieldName: "Age"}}, want: []int{2, 4, 1, 3}},
		{name: "single desc", sorts: []criteria.SortCriterion{{FieldName: "age", Direction: "desc"}}, want: []int{3, 1, 4, 2}},
		{name: "nulls first", sorts: []criteria.SortCriterion{{FieldName: "Nickname"}, {FieldName: "ID", Direction: criteria.SortDesc}}, want: []int{4, 2, 1, 3}},
		{name: "tie break", sorts: []criteria.SortCriterion{{FieldName: "Level"}, {FieldName: "Born", Direction: criteria.SortDesc}}, want: []int{2, 3, 4, 1}},
		{name: "ordinal strings", sorts: []criteria.SortCriterion{{FieldName: "Name"}}, want: []int{1, 4, 3, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp, err := Comparator(shape, tt.sorts)
			require.NoError(t, err)
			recs := people()
			slices.SortStableFunc(recs, cmp)
			assert.Equal(t, tt.want, ids(recs))
		})
	}

	_, err := Comparator(shape, []criteria.SortCriterion{{FieldName: "Nope"}})
	require.ErrorContains(t, err, `resolve sort: unknown field "Nope"`)
	_, err = Comparator(shape, []criteria.SortCriterion{{FieldName: "Tags"}})
	require.ErrorContains(t, err, `field "Tags" of type []string is not sortable`)
}

func TestCache(t *testing.T) {
	cache, err := NewCache(MustShapeOf[Person](), 2)
	require.NoError(t, err)
	assert.NotNil(t, cache.Shape())

	f1 := []criteria.FilterCriterion{criteria.Filter("Age", criteria.OpGreaterThan, "30")}
	a, err := cache.Compile(f1)
	require.NoError(t, err)
	b, err := cache.Compile([]criteria.FilterCriterion{criteria.Filter("Age", criteria.OpGreaterThan, "30")})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, cache.Len())

	c, err := cache.Compile([]criteria.FilterCriterion{criteria.Filter("Age", criteria.OpGreaterThan, "30").Or()})
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, cache.Len())

	_, err = cache.Compile([]criteria.FilterCriterion{{FieldName: "Age", Operator: criteria.FilterOperator(99)}})
	require.ErrorContains(t, err, "invalid filter operator 99")

	_, err = NewCache(MustShapeOf[Person](), 0)
	require.Error(t, err)
}

type row struct {
	Name  string
	Count *int
}

func TestShapeFromColumns(t *testing.T) {
	columns, err := Columns[*row]()
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "Name", columns[0].FieldName)
	assert.True(t, columns[0].Sortable)
	assert.True(t, columns[1].Filterable)

	shape := ShapeFromColumns(columns)
	count, ok := shape.Lookup("count")
	require.True(t, ok)
	assert.Equal(t, KindInt, count.Kind)
	assert.True(t, count.Nullable)

	recs := []*row{{Name: "a", Count: lo.ToPtr(3)}, {Name: "b"}, {Name: "c", Count: lo.ToPtr(7)}}
	p := Compile(shape, []criteria.FilterCriterion{criteria.Filter("Count", criteria.OpGreaterThan, "5")})
	got := p.Filter(recs)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Name)

	maps := []map[string]any{{"n": "x", "v": 1.5}, {"n": "y"}}
	mapShape := ShapeFromColumns([]criteria.ColumnDefinition[map[string]any]{
		{FieldName: "v", DataType: lo.Must(Columns[Person]())[4].DataType, Accessor: func(m map[string]any) any { return m["v"] }},
	})
	mp := Compile(mapShape, []criteria.FilterCriterion{criteria.FilterUnary("v", criteria.OpIsNull)})
	assert.Equal(t, []map[string]any{{"n": "y"}}, mp.Filter(maps))
}
