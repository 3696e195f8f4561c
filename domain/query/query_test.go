package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name    string
	Age     int
	Address struct {
		City string
	}
}

type summary struct {
	Name string
}

func TestSortDirection_String(t *testing.T) {
	assert.Equal(t, "asc", SortAsc.String())
	assert.Equal(t, "desc", SortDesc.String())
}

func TestQuery_Defaults(t *testing.T) {
	d := New[person]().Descriptor()

	assert.Nil(t, d.Filter())
	assert.Empty(t, d.Ordering())
	assert.Nil(t, d.Projection())
	assert.Equal(t, 0, d.Skip())
	_, hasTake := d.Take()
	assert.False(t, hasTake)
	assert.False(t, d.IncludeDeletedItems())
	assert.False(t, d.IncludeTotalCount())
	assert.Empty(t, d.Parameters())
	assert.NoError(t, d.Err())
}

func TestQuery_Chaining(t *testing.T) {
	q := New[person]().
		Where(Eq(Field("Name"), Value("bob"))).
		OrderByDescending(Field("Age")).
		ThenBy(Field("Name")).
		Skip(20).
		Take(10).
		IncludeDeletedItems(true).
		IncludeTotalCount(true).
		WithParameter("tenant", "a")

	require.NoError(t, q.Err())
	d := q.Descriptor()

	require.Len(t, d.Ordering(), 2)
	assert.Equal(t, "Age", d.Ordering()[0].Member().Path())
	assert.Equal(t, SortDesc, d.Ordering()[0].Direction())
	assert.Equal(t, "Name", d.Ordering()[1].Member().Path())
	assert.Equal(t, SortAsc, d.Ordering()[1].Direction())
	assert.Equal(t, 20, d.Skip())
	take, ok := d.Take()
	assert.True(t, ok)
	assert.Equal(t, 10, take)
	assert.True(t, d.IncludeDeletedItems())
	assert.True(t, d.IncludeTotalCount())
	assert.Equal(t, []Parameter{{Key: "tenant", Value: "a"}}, d.Parameters())
}

func TestQuery_BuilderDoesNotMutateReceiver(t *testing.T) {
	base := New[person]().OrderBy(Field("Name")).WithParameter("a", "1")

	left := base.ThenBy(Field("Age")).WithParameter("a", "2")
	right := base.ThenByDescending(Field("City")).WithParameter("b", "3")

	assert.Len(t, base.Descriptor().Ordering(), 1)
	assert.Equal(t, []Parameter{{Key: "a", Value: "1"}}, base.Descriptor().Parameters())

	require.Len(t, left.Descriptor().Ordering(), 2)
	assert.Equal(t, "Age", left.Descriptor().Ordering()[1].Member().Path())
	require.Len(t, right.Descriptor().Ordering(), 2)
	assert.Equal(t, "City", right.Descriptor().Ordering()[1].Member().Path())

	assert.Equal(t, []Parameter{{Key: "a", Value: "2"}}, left.Descriptor().Parameters())
	assert.Equal(t, []Parameter{{Key: "a", Value: "1"}, {Key: "b", Value: "3"}}, right.Descriptor().Parameters())
}

func TestQuery_WhereComposesWithAnd(t *testing.T) {
	a := Eq(Field("Name"), Value("bob"))
	b := Gt(Field("Age"), Value(5))

	chained := New[person]().Where(a).Where(b).Descriptor().Filter()
	single := New[person]().Where(And(a, b)).Descriptor().Filter()

	assert.Equal(t, single, chained)

	root, ok := chained.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpAnd, root.Op)
	assert.Same(t, a, root.Left)
	assert.Same(t, b, root.Right)
}

func TestQuery_OrderByReplaces(t *testing.T) {
	q := New[person]().OrderBy(Field("Name")).ThenBy(Field("Age")).OrderByDescending(Field("City"))

	ordering := q.Descriptor().Ordering()
	require.Len(t, ordering, 1)
	assert.Equal(t, "City", ordering[0].Member().Path())
	assert.Equal(t, SortDesc, ordering[0].Direction())
}

func TestQuery_ThenByWithoutOrderBy(t *testing.T) {
	for name, q := range map[string]Query[person]{
		"ThenBy":           New[person]().ThenBy(Field("Name")),
		"ThenByDescending": New[person]().ThenByDescending(Field("Name")),
	} {
		t.Run(name, func(t *testing.T) {
			var argErr *InvalidArgumentError
			require.ErrorAs(t, q.Err(), &argErr)
			assert.Equal(t, name, argErr.Operation())
		})
	}
}

func TestQuery_NegativeBounds(t *testing.T) {
	var argErr *InvalidArgumentError

	require.ErrorAs(t, New[person]().Skip(-1).Err(), &argErr)
	assert.Equal(t, "Skip", argErr.Operation())
	assert.Equal(t, "count", argErr.Argument())

	require.ErrorAs(t, New[person]().Take(-1).Err(), &argErr)
	assert.Equal(t, "Take", argErr.Operation())
}

func TestQuery_LastBoundWins(t *testing.T) {
	d := New[person]().Skip(5).Skip(2).Take(10).Take(50).Descriptor()

	assert.Equal(t, 2, d.Skip())
	take, _ := d.Take()
	assert.Equal(t, 50, take)
}

func TestQuery_TakeZeroIsBounded(t *testing.T) {
	take, ok := New[person]().Take(0).Descriptor().Take()
	assert.True(t, ok)
	assert.Equal(t, 0, take)
}

func TestQuery_ReservedParameters(t *testing.T) {
	keys := []string{"filter", "$filter", "orderby", "skip", "$top", "select", "$count", "__includedeleted", "$custom", "__system", ""}
	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			var argErr *InvalidArgumentError
			require.ErrorAs(t, New[person]().WithParameter(key, "x").Err(), &argErr)
			assert.Equal(t, "key", argErr.Argument())
		})
	}
}

func TestQuery_ReservedParametersAreCaseSensitive(t *testing.T) {
	assert.NoError(t, New[person]().WithParameter("Filter", "x").Err())
	assert.NoError(t, New[person]().WithParameter("TOP", "x").Err())
}

func TestQuery_WithParametersKeepsFirstInsertionPosition(t *testing.T) {
	q := New[person]().
		WithParameter("z", "1").
		WithParameters(map[string]string{"b": "2", "a": "3"}).
		WithParameter("z", "4")

	assert.Equal(t, []Parameter{
		{Key: "z", Value: "4"},
		{Key: "a", Value: "3"},
		{Key: "b", Value: "2"},
	}, q.Descriptor().Parameters())
}

func TestQuery_WithParametersIsAllOrNothing(t *testing.T) {
	q := New[person]().WithParameters(map[string]string{"ok": "1", "top": "2"})

	require.Error(t, q.Err())
	assert.Empty(t, q.Descriptor().Parameters())
}

func TestQuery_ErrorIsSticky(t *testing.T) {
	q := New[person]().Skip(-1).Take(-5).WithParameter("skip", "1").Skip(3)

	var argErr *InvalidArgumentError
	require.ErrorAs(t, q.Err(), &argErr)
	assert.Equal(t, "Skip", argErr.Operation())
	assert.Equal(t, 0, q.Descriptor().Skip())
}

func TestQuery_UnsupportedFilter(t *testing.T) {
	tests := []struct {
		name      string
		predicate Expression
	}{
		{"arithmetic", Gt(&Binary{Op: OpAdd, Left: Field("Age"), Right: Value(1)}, Value(5))},
		{"unknown method", &Call{Name: "substringof", Args: []Expression{Field("Name"), Value("x")}}},
		{"wrong arity", &Call{Name: FuncToLower, Args: []Expression{Field("Name"), Value("x")}}},
		{"nil", nil},
		{"empty member", Eq(Field(), Value(1))},
		{"nil constant", Eq(Field("Age"), (*Constant)(nil))},
		{"nil capture", Eq(Field("Age"), (*Capture)(nil))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exprErr *UnsupportedExpressionError
			require.ErrorAs(t, New[person]().Where(tt.predicate).Err(), &exprErr)
			assert.NotEmpty(t, exprErr.Construct())
		})
	}
}

func TestQuery_WhereCopiesPredicate(t *testing.T) {
	cmp := Eq(Field("Age"), Value(5))
	call := Contains(Field("Name"), Value("a"))
	q := New[person]().Where(And(cmp, call))

	cmp.Op = OpOr
	call.Args[1] = Value("b")

	filter, ok := q.Descriptor().Filter().(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpAnd, filter.Op)
	assert.Equal(t, OpEqual, filter.Left.(*Binary).Op)
	assert.Equal(t, "a", filter.Right.(*Call).Args[1].(*Constant).Raw())
}

func TestQuery_OrderingKeyMustBeMember(t *testing.T) {
	q := New[person]().OrderBy(ToLower(Field("Name")))

	var exprErr *UnsupportedExpressionError
	require.ErrorAs(t, q.Err(), &exprErr)
	assert.Equal(t, "tolower(Name)", exprErr.Construct())
}

func TestSelect_Members(t *testing.T) {
	base := New[person]().Where(Gt(Field("Age"), Value(18))).Skip(1)
	s := Select[person, summary](base, Field("Name"), Field("Address.City"), Field("Name"))

	require.NoError(t, s.Err())
	projection := s.Descriptor().Projection()
	require.Len(t, projection, 2)
	assert.Equal(t, "Name", projection[0].Path())
	assert.Equal(t, "Address.City", projection[1].Path())
	assert.NotNil(t, s.Descriptor().Filter())
	assert.Equal(t, 1, s.Descriptor().Skip())
	assert.Nil(t, base.Descriptor().Projection())
}

func TestSelect_RejectsComputation(t *testing.T) {
	s := Select[person, summary](New[person](), Field("Name"), ToUpper(Field("Name")))

	var exprErr *UnsupportedExpressionError
	require.ErrorAs(t, s.Err(), &exprErr)
	assert.Equal(t, "toupper(Name)", exprErr.Construct())
}

func TestSelect_RequiresMembers(t *testing.T) {
	s := Select[person, summary](New[person]())

	var exprErr *UnsupportedExpressionError
	assert.ErrorAs(t, s.Err(), &exprErr)
}

func TestSelect_CarriesEarlierError(t *testing.T) {
	s := Select[person, summary](New[person]().Take(-1), Field("Name"))

	var argErr *InvalidArgumentError
	assert.True(t, errors.As(s.Err(), &argErr))
}

func TestSelection_Builders(t *testing.T) {
	base := Select[person, summary](New[person](), Field("Name"))
	s := base.Skip(3).Take(4).IncludeTotalCount(true).IncludeDeletedItems(true).WithParameter("k", "v")

	require.NoError(t, s.Err())
	d := s.Descriptor()
	assert.Equal(t, 3, d.Skip())
	take, _ := d.Take()
	assert.Equal(t, 4, take)
	assert.True(t, d.IncludeTotalCount())
	assert.True(t, d.IncludeDeletedItems())
	assert.Equal(t, []Parameter{{Key: "k", Value: "v"}}, d.Parameters())

	assert.Equal(t, 0, base.Descriptor().Skip())
	assert.Error(t, base.WithParameter("$top", "1").Err())
}
