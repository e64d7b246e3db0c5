package forward

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/funcs"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/types"
)

const customNS = "/functions_custom"

var (
	R = types.Required
	N = types.Nullable

	customScalarFn    = optree.NewFunction("CUSTOM_SCALAR", optree.Explicit(optree.NewType(optree.TypeVarChar, false)))
	customAggregateFn = optree.NewAggFunction("CUSTOM_AGGREGATE", optree.Explicit(optree.NewType(optree.TypeBigInt, false)))
)

func catalog(t *testing.T) *extension.Collection {
	t.Helper()
	custom, err := extension.NewCollection(
		extension.Declaration{
			Namespace: customNS, Name: "custom_scalar", Class: extension.ClassScalar,
			Params: []extension.Param{{Kind: extension.ParamExact, Type: R.Str()}}, Return: extension.Fixed(R.Str()),
		},
		extension.Declaration{
			Namespace: customNS, Name: "custom_aggregate", Class: extension.ClassAggregate,
			Params: []extension.Param{{Kind: extension.ParamExact, Type: R.I64()}}, Return: extension.Fixed(R.I64()),
		},
	)
	require.NoError(t, err)
	all, err := extension.Builtin().Merge(custom)
	require.NoError(t, err)
	return all
}

func newConverter(t *testing.T, opts ...Option) *Converter {
	decls := catalog(t)
	set := funcs.NewSet(decls, []funcs.Sig{funcs.S(customScalarFn)}, []funcs.Sig{funcs.S(customAggregateFn)}, nil)
	return NewConverter(decls, append([]Option{WithFunctions(set)}, opts...)...)
}

func TestConvert_CustomScalarProject(t *testing.T) {
	b := plan.NewBuilder()
	rel := b.Project(func(input plan.Rel) []plan.Expression {
		return []plan.Expression{b.ScalarFn(customNS, "custom_scalar:str", R.Str(), b.FieldRef(input, 0))}
	}, b.Remap(1), b.NamedScan([]string{"example"}, []string{"a"}, []types.Type{R.Str()}))

	node, err := newConverter(t).Convert(rel)
	require.NoError(t, err)

	want := `LogicalProject($f0=[CUSTOM_SCALAR($0)])
  LogicalTableScan(table=[[example]])
`
	assert.Equal(t, want, optree.Explain(node))

	proj := node.(*optree.Project)
	call := proj.Exprs[0].(*optree.Call)
	assert.Same(t, customScalarFn, call.Op)
	assert.Equal(t, optree.NewType(optree.TypeVarChar, false), call.Type)
}

func TestConvert_CustomAggregate(t *testing.T) {
	b := plan.NewBuilder()
	rel := b.Aggregate(
		func(input plan.Rel) plan.Grouping { return b.Grouping(input, 0) },
		func(input plan.Rel) []plan.AggregateCall {
			return []plan.AggregateCall{b.AggregateFn(customNS, "custom_aggregate:i64", R.I64(), b.FieldRef(input, 0))}
		},
		b.NamedScan([]string{"example"}, []string{"a"}, []types.Type{R.I64()}))

	node, err := newConverter(t).Convert(rel)
	require.NoError(t, err)

	want := `LogicalAggregate(group=[{0}], $f1=[CUSTOM_AGGREGATE($0)])
  LogicalTableScan(table=[[example]])
`
	assert.Equal(t, want, optree.Explain(node))
	agg := node.(*optree.Aggregate)
	assert.Equal(t, [][]int{{0}}, agg.GroupSets)
	assert.Equal(t, []string{"a", "$f1"}, agg.Row().Names())
}

func TestConvert_GlobalAggregateHasOneEmptySet(t *testing.T) {
	b := plan.NewBuilder()
	rel := b.Aggregate(nil, func(input plan.Rel) []plan.AggregateCall {
		return []plan.AggregateCall{b.AggregateFn(extension.BuiltinNamespace, "count", R.I64())}
	}, b.NamedScan([]string{"t"}, []string{"a"}, []types.Type{R.I64()}))

	node, err := newConverter(t).Convert(rel)
	require.NoError(t, err)
	agg := node.(*optree.Aggregate)
	assert.Empty(t, agg.GroupKeys)
	assert.Equal(t, [][]int{{}}, agg.GroupSets)
	assert.Same(t, optree.Count, agg.Calls[0].Op)
}

func TestConvert_FetchFlattensIntoSort(t *testing.T) {
	b := plan.NewBuilder()
	scan := b.NamedScan([]string{"example"}, []string{"a"}, []types.Type{R.I64()})
	rel := b.Fetch(1, 10, b.Sort(func(input plan.Rel) []plan.SortField {
		return []plan.SortField{b.SortField(input, 0, plan.DescNullsLast)}
	}, scan))

	node, err := newConverter(t).Convert(rel)
	require.NoError(t, err)

	want := `LogicalSort(sort0=[$0], dir0=[DESC-nulls-last], offset=[1], fetch=[10])
  LogicalTableScan(table=[[example]])
`
	assert.Equal(t, want, optree.Explain(node))

	// A bare limit is a sort without collation.
	node, err = newConverter(t).Convert(b.Limit(5, scan))
	require.NoError(t, err)
	s := node.(*optree.Sort)
	assert.Empty(t, s.Collation)
	assert.Nil(t, s.Offset)
	require.NotNil(t, s.Fetch)
	assert.Equal(t, int64(5), *s.Fetch)
}

func TestConvert_SortByExpressionIsPreProjected(t *testing.T) {
	b := plan.NewBuilder()
	scan := b.NamedScan([]string{"example"}, []string{"a"}, []types.Type{R.I64()})
	rel := b.Sort(func(input plan.Rel) []plan.SortField {
		plus := b.ScalarFn(extension.BuiltinNamespace, "add:i64_i64", R.I64(), b.FieldRef(input, 0), b.I64(1))
		return []plan.SortField{{Expr: plus, Direction: plan.AscNullsLast}}
	}, scan)

	node, err := newConverter(t).Convert(rel)
	require.NoError(t, err)

	want := `LogicalProject(a=[$0])
  LogicalSort(sort0=[$1], dir0=[ASC-nulls-last])
    LogicalProject(a=[$0], $f1=[+($0, 1)])
      LogicalTableScan(table=[[example]])
`
	assert.Equal(t, want, optree.Explain(node))
}

func TestConvert_RemapOnFilterBecomesProject(t *testing.T) {
	b := plan.NewBuilder()
	scan := b.NamedScan([]string{"example"}, []string{"a", "b"}, []types.Type{R.I64(), N.Str()})
	f := b.Filter(func(input plan.Rel) plan.Expression {
		return b.ScalarFn(extension.BuiltinNamespace, "is_not_null:any", R.Bool(), b.FieldRef(input, 1))
	}, scan)
	f.Remap = []int{1}

	node, err := newConverter(t).Convert(f)
	require.NoError(t, err)

	want := `LogicalProject(b=[$1])
  LogicalFilter(condition=[IS NOT NULL($1)])
    LogicalTableScan(table=[[example]])
`
	assert.Equal(t, want, optree.Explain(node))
}

func TestConvert_JoinWithPostJoinFilter(t *testing.T) {
	b := plan.NewBuilder()
	left := b.NamedScan([]string{"l"}, []string{"a"}, []types.Type{R.I64()})
	right := b.NamedScan([]string{"r"}, []string{"b"}, []types.Type{R.I64()})
	j := b.Join(func(l, r plan.Rel) plan.Expression {
		return b.ScalarFn(extension.BuiltinNamespace, "equal:any_any", R.Bool(), b.JoinFieldRef(l, r, 0), b.JoinFieldRef(l, r, 1))
	}, plan.JoinLeft, left, right)
	j.PostJoinFilter = b.ScalarFn(extension.BuiltinNamespace, "is_null:any", R.Bool(), &plan.FieldRef{Index: 1, Type: N.I64()})

	node, err := newConverter(t).Convert(j)
	require.NoError(t, err)

	want := `LogicalFilter(condition=[IS NULL($1)])
  LogicalJoin(condition=[=($0, $1)], joinType=[left])
    LogicalTableScan(table=[[l]])
    LogicalTableScan(table=[[r]])
`
	assert.Equal(t, want, optree.Explain(node))
	assert.True(t, node.Row().Fields[1].Type.Nullable, "right side of a left join is nullable")
}

func TestConvert_CastAndIfThen(t *testing.T) {
	b := plan.NewBuilder()
	scan := b.NamedScan([]string{"example"}, []string{"a"}, []types.Type{N.I32()})
	rel := b.Project(func(input plan.Rel) []plan.Expression {
		isNull := b.ScalarFn(extension.BuiltinNamespace, "is_null:any", R.Bool(), b.FieldRef(input, 0))
		return []plan.Expression{
			b.Cast(b.FieldRef(input, 0), N.I64()),
			b.IfThen([]plan.IfClause{{If: isNull, Then: b.Str("none")}}, b.Str("some")),
		}
	}, b.Remap(1, 2), scan)

	node, err := newConverter(t).Convert(rel)
	require.NoError(t, err)

	want := `LogicalProject($f0=[CAST($0):BIGINT], $f1=[CASE(IS NULL($0), 'none', 'some')])
  LogicalTableScan(table=[[example]])
`
	assert.Equal(t, want, optree.Explain(node))
}

func TestConvert_WindowFunctions(t *testing.T) {
	b := plan.NewBuilder()
	scan := b.NamedScan([]string{"example"}, []string{"a", "b"}, []types.Type{R.I64(), R.I64()})
	rel := b.Project(func(input plan.Rel) []plan.Expression {
		partitions := []plan.Expression{b.FieldRef(input, 0)}
		sorts := []plan.SortField{b.SortField(input, 1, plan.AscNullsLast)}
		return []plan.Expression{
			b.WindowFn(extension.BuiltinNamespace, "row_number", N.I64(), partitions, sorts,
				plan.Bound{Kind: plan.BoundUnbounded}, plan.Bound{Kind: plan.BoundCurrentRow}),
			b.WindowFn(extension.BuiltinNamespace, "sum:i64", N.I64(), partitions, nil,
				plan.Bound{}, plan.Bound{}, b.FieldRef(input, 1)),
		}
	}, b.Remap(2, 3), scan)

	node, err := newConverter(t).Convert(rel)
	require.NoError(t, err)

	proj := node.(*optree.Project)
	rowNumber := proj.Exprs[0].(*optree.Over)
	assert.Same(t, optree.RowNumber, rowNumber.Op)
	assert.Equal(t, optree.BoundUnboundedPreceding, rowNumber.Window.Lower.Kind)
	assert.Equal(t, "ROW_NUMBER() OVER (PARTITION BY $0 ORDER BY $1 ASC-nulls-last RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)",
		optree.FormatRex(rowNumber))

	sum := proj.Exprs[1].(*optree.Over)
	assert.Same(t, optree.Sum, sum.Op, "aggregates resolve through the window converter")
}

func TestConvert_Errors(t *testing.T) {
	b := plan.NewBuilder()
	uuidScan := b.NamedScan([]string{"t"}, []string{"id"}, []types.Type{R.UUID()})
	i64Scan := b.NamedScan([]string{"t"}, []string{"a"}, []types.Type{R.I64()})

	tests := []struct {
		name  string
		rel   plan.Rel
		check func(error) bool
	}{
		{"uuid column", uuidScan, converr.IsTypeMismatch},
		{
			"unknown function",
			b.Project(func(input plan.Rel) []plan.Expression {
				return []plan.Expression{b.ScalarFn(customNS, "nope:i64", R.I64(), b.FieldRef(input, 0))}
			}, b.Remap(1), i64Scan),
			converr.IsUnresolved,
		},
		{
			"field out of range",
			b.Filter(func(plan.Rel) plan.Expression { return &plan.FieldRef{Index: 3, Type: R.Bool()} }, i64Scan),
			converr.IsTypeMismatch,
		},
		{
			"remap out of range",
			b.Project(func(plan.Rel) []plan.Expression { return nil }, b.Remap(4), i64Scan),
			converr.IsTypeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newConverter(t).Convert(tt.rel)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestConvert_DoesNotMutateInput(t *testing.T) {
	b := plan.NewBuilder()
	build := func() plan.Rel {
		return b.Fetch(0, 3, b.Sort(func(input plan.Rel) []plan.SortField {
			return []plan.SortField{b.SortField(input, 0, plan.AscNullsFirst)}
		}, b.NamedScan([]string{"t"}, []string{"a"}, []types.Type{R.I64()})))
	}
	rel := build()
	_, err := newConverter(t).Convert(rel)
	require.NoError(t, err)
	assert.Empty(t, plan.Diff(build(), rel))
}

func TestConvertRoot_LogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := plan.NewBuilder()
	root := b.Root(b.NamedScan([]string{"t"}, []string{"a"}, []types.Type{R.I64()}), "a")
	out, err := newConverter(t, WithLogger(logger)).ConvertRoot(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.Names)
	assert.Contains(t, buf.String(), "forward conversion done")
}
