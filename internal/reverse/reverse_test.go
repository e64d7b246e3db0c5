package reverse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/forward"
	"github.com/roach88/relbridge/internal/funcs"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/reverse"
	"github.com/roach88/relbridge/internal/types"
)

const customNS = "/functions_custom"

var (
	R = types.Required
	N = types.Nullable

	customScalarFn    = optree.NewFunction("CUSTOM_SCALAR", optree.Explicit(optree.NewType(optree.TypeVarChar, false)))
	customAggregateFn = optree.NewAggFunction("CUSTOM_AGGREGATE", optree.Explicit(optree.NewType(optree.TypeBigInt, false)))
)

type converters struct {
	fwd *forward.Converter
	rev *reverse.Converter
}

func newConverters(t *testing.T) converters {
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
	decls, err := extension.Builtin().Merge(custom)
	require.NoError(t, err)

	scalar := funcs.NewScalarConverter(decls, []funcs.Sig{funcs.S(customScalarFn)})
	agg := funcs.NewAggregateConverter(decls, []funcs.Sig{funcs.S(customAggregateFn)})
	window := funcs.NewWindowConverter(decls, nil, agg)

	return converters{
		fwd: forward.NewConverter(decls,
			forward.WithScalarConverter(scalar),
			forward.WithAggregateConverter(agg),
			forward.WithWindowConverter(window)),
		rev: reverse.NewConverter(decls,
			reverse.WithScalarConverter(scalar),
			reverse.WithAggregateConverter(agg),
			reverse.WithWindowConverter(window)),
	}
}

// assertRoundTrip converts rel forward and back and expects rel again.
func assertRoundTrip(t *testing.T, c converters, rel plan.Rel) {
	t.Helper()
	node, err := c.fwd.Convert(rel)
	require.NoError(t, err)
	back, err := c.rev.Convert(node)
	require.NoError(t, err)
	assert.Empty(t, plan.Diff(rel, back), "round trip changed the plan:\n%s", optree.Explain(node))
}

func TestRoundTrip_CustomScalar(t *testing.T) {
	b := plan.NewBuilder()
	rel := b.Project(func(input plan.Rel) []plan.Expression {
		return []plan.Expression{b.ScalarFn(customNS, "custom_scalar:str", R.Str(), b.FieldRef(input, 0))}
	}, b.Remap(1), b.NamedScan([]string{"example"}, []string{"a"}, []types.Type{R.Str()}))

	assertRoundTrip(t, newConverters(t), rel)
}

func TestRoundTrip_CustomAggregate(t *testing.T) {
	b := plan.NewBuilder()
	rel := b.Aggregate(
		func(input plan.Rel) plan.Grouping { return b.Grouping(input, 0) },
		func(input plan.Rel) []plan.AggregateCall {
			return []plan.AggregateCall{b.AggregateFn(customNS, "custom_aggregate:i64", R.I64(), b.FieldRef(input, 0))}
		},
		b.NamedScan([]string{"example"}, []string{"a"}, []types.Type{R.I64()}))

	assertRoundTrip(t, newConverters(t), rel)
}

func TestRoundTrip_Relations(t *testing.T) {
	b := plan.NewBuilder()
	scan := func() *plan.NamedScan {
		return b.NamedScan([]string{"example"}, []string{"a", "b"}, []types.Type{R.I64(), N.Str()})
	}
	other := b.NamedScan([]string{"other"}, []string{"c"}, []types.Type{R.I64()})

	tests := []struct {
		name string
		rel  plan.Rel
	}{
		{"scan", scan()},
		{
			"filter over join",
			b.Filter(func(input plan.Rel) plan.Expression {
				return b.ScalarFn(extension.BuiltinNamespace, "gt:any_any", R.Bool(), b.FieldRef(input, 0), b.I64(10))
			}, b.Join(func(l, r plan.Rel) plan.Expression {
				return b.ScalarFn(extension.BuiltinNamespace, "equal:any_any", R.Bool(), b.JoinFieldRef(l, r, 0), b.JoinFieldRef(l, r, 2))
			}, plan.JoinInner, scan(), other)),
		},
		{
			"anti join",
			b.Join(func(l, r plan.Rel) plan.Expression {
				return b.ScalarFn(extension.BuiltinNamespace, "equal:any_any", R.Bool(), b.JoinFieldRef(l, r, 0), b.JoinFieldRef(l, r, 2))
			}, plan.JoinLeftAnti, scan(), other),
		},
		{
			"sort and fetch",
			b.Fetch(1, 10, b.Sort(func(input plan.Rel) []plan.SortField {
				return []plan.SortField{b.SortField(input, 1, plan.DescNullsLast), b.SortField(input, 0, plan.AscNullsFirst)}
			}, scan())),
		},
		{"limit", b.Limit(5, scan())},
		{"offset only", b.Fetch(3, plan.CountAll, scan())},
		{
			"sort",
			b.Sort(func(input plan.Rel) []plan.SortField {
				return []plan.SortField{b.SortField(input, 0, plan.Clustered)}
			}, scan()),
		},
		{
			"grouping sets",
			b.AggregateSets(
				func(input plan.Rel) []plan.Grouping {
					return []plan.Grouping{b.Grouping(input, 0, 1), b.Grouping(input, 1), {}}
				},
				func(input plan.Rel) []plan.AggregateCall {
					return []plan.AggregateCall{b.AggregateFn(extension.BuiltinNamespace, "count", R.I64())}
				}, scan()),
		},
		{
			"global aggregate",
			b.Aggregate(nil, func(input plan.Rel) []plan.AggregateCall {
				call := b.AggregateFn(extension.BuiltinNamespace, "sum:i64", N.I64(), b.FieldRef(input, 0))
				call.Distinct = true
				return []plan.AggregateCall{call}
			}, scan()),
		},
		{
			"cast and if-then",
			b.Project(func(input plan.Rel) []plan.Expression {
				isNull := b.ScalarFn(extension.BuiltinNamespace, "is_null:any", R.Bool(), b.FieldRef(input, 1))
				return []plan.Expression{
					b.Cast(b.FieldRef(input, 0), N.FP64()),
					b.IfThen([]plan.IfClause{{If: isNull, Then: b.Str("none")}}, b.Str("some")),
					b.Null(types.Required.Decimal(10, 2)),
				}
			}, b.Remap(2, 3, 4), scan()),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRoundTrip(t, newConverters(t), tt.rel)
		})
	}
}

func TestReverse_NoOpSortIsDropped(t *testing.T) {
	b := plan.NewBuilder()
	scan := b.NamedScan([]string{"example"}, []string{"a"}, []types.Type{R.I64()})
	sorted := b.Sort(func(input plan.Rel) []plan.SortField {
		return []plan.SortField{b.SortField(input, 0, plan.AscNullsLast)}
	}, scan)

	tests := []struct {
		name string
		rel  plan.Rel
		want plan.Rel
	}{
		{"unbounded fetch", b.Fetch(0, plan.CountAll, scan), scan},
		{"sort without fields", b.Sort(func(plan.Rel) []plan.SortField { return nil }, scan), scan},
		{"unbounded fetch over sort", b.Fetch(0, plan.CountAll, sorted), sorted},
	}
	c := newConverters(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := c.fwd.Convert(tt.rel)
			require.NoError(t, err)
			require.IsType(t, &optree.Sort{}, node)

			back, err := c.rev.Convert(node)
			require.NoError(t, err)
			assert.Empty(t, plan.Diff(tt.want, back))
		})
	}
}

func TestRoundTrip_WindowFunctions(t *testing.T) {
	b := plan.NewBuilder()
	scan := b.NamedScan([]string{"example"}, []string{"a", "b"}, []types.Type{R.I64(), R.I64()})
	rel := b.Project(func(input plan.Rel) []plan.Expression {
		partitions := []plan.Expression{b.FieldRef(input, 0)}
		sorts := []plan.SortField{b.SortField(input, 1, plan.AscNullsLast)}

		rowNumber := b.WindowFn(extension.BuiltinNamespace, "row_number", N.I64(), partitions, sorts,
			plan.Bound{Kind: plan.BoundUnbounded}, plan.Bound{Kind: plan.BoundCurrentRow})
		rowNumber.Rows = true

		lag := b.WindowFn(extension.BuiltinNamespace, "lag:any", N.I64(), partitions, sorts,
			plan.Bound{Kind: plan.BoundPreceding, Offset: 2}, plan.Bound{Kind: plan.BoundFollowing, Offset: 1},
			b.FieldRef(input, 1))

		sum := b.WindowFn(extension.BuiltinNamespace, "sum:i64", N.I64(), partitions, nil,
			plan.Bound{Kind: plan.BoundUnbounded}, plan.Bound{Kind: plan.BoundUnbounded}, b.FieldRef(input, 1))

		return []plan.Expression{rowNumber, lag, sum}
	}, b.Remap(2, 3, 4), scan)

	assertRoundTrip(t, newConverters(t), rel)
}

func TestRoundTrip_TreeFirst(t *testing.T) {
	// A canonical plan is a fixed point; so is the tree it converts to.
	c := newConverters(t)
	scan := &optree.TableScan{
		Table:   []string{"example"},
		RowType: optree.NewRowType([]string{"a"}, []optree.DataType{optree.NewType(optree.TypeBigInt, false)}),
	}
	ref := &optree.InputRef{Index: 0, Type: optree.NewType(optree.TypeBigInt, false)}
	one := &optree.Literal{Value: int64(1), Type: optree.NewType(optree.TypeBigInt, false)}
	tree := &optree.Project{
		Input:   scan,
		Exprs:   []optree.RexNode{ref, &optree.Call{Op: optree.Plus, Operands: []optree.RexNode{ref, one}, Type: optree.NewType(optree.TypeBigInt, false)}},
		RowType: optree.NewRowType([]string{"a", "$f1"}, []optree.DataType{optree.NewType(optree.TypeBigInt, false), optree.NewType(optree.TypeBigInt, false)}),
	}

	rel, err := c.rev.Convert(tree)
	require.NoError(t, err)

	proj := rel.(*plan.Project)
	assert.Equal(t, []int{1, 2}, proj.Remap, "reverse emits exactly the projected expressions")
	assert.Equal(t, "add:i64_i64", proj.Expressions[1].(*plan.ScalarCall).Key.Compound())

	again, err := c.fwd.Convert(rel)
	require.NoError(t, err)
	assert.Equal(t, optree.Explain(tree), optree.Explain(again))
}

func TestReverse_AggregateKeyOrderIsRestored(t *testing.T) {
	c := newConverters(t)
	bigint := optree.NewType(optree.TypeBigInt, false)
	scan := &optree.TableScan{
		Table:   []string{"t"},
		RowType: optree.NewRowType([]string{"a", "b"}, []optree.DataType{bigint, bigint}),
	}
	tree := &optree.Aggregate{
		Input:     scan,
		GroupKeys: []int{0, 1},
		GroupSets: [][]int{{1}, {0, 1}},
		RowType:   optree.NewRowType([]string{"a", "b"}, []optree.DataType{bigint.WithNullable(true), bigint}),
	}

	rel, err := c.rev.Convert(tree)
	require.NoError(t, err)
	agg := rel.(*plan.Aggregate)
	assert.Equal(t, []int{1, 0}, agg.Remap)
	assert.Equal(t, []types.Type{N.I64(), R.I64()}, agg.RecordType())
}

func TestReverse_Errors(t *testing.T) {
	c := newConverters(t)
	varchar := optree.NewType(optree.TypeVarChar, false)
	scan := &optree.TableScan{Table: []string{"t"}, RowType: optree.NewRowType([]string{"a"}, []optree.DataType{varchar})}
	ref := &optree.InputRef{Index: 0, Type: varchar}

	unknown := optree.NewFunction("MYSTERY", nil)
	_, err := c.rev.Convert(&optree.Project{
		Input:   scan,
		Exprs:   []optree.RexNode{&optree.Call{Op: unknown, Operands: []optree.RexNode{ref}, Type: varchar}},
		RowType: optree.NewRowType(nil, []optree.DataType{varchar}),
	})
	require.Error(t, err)
	assert.True(t, converr.IsUnmapped(err), err.Error())

	_, err = c.rev.Convert(&optree.TableScan{
		Table:   []string{"t"},
		RowType: optree.NewRowType([]string{"x"}, []optree.DataType{optree.NewType(optree.TypeAny, false)}),
	})
	require.Error(t, err)
	assert.True(t, converr.IsTypeMismatch(err))

	_, err = c.rev.Convert(&optree.Filter{Input: scan, Condition: &optree.InputRef{Index: 5, Type: varchar}})
	require.Error(t, err)
	assert.True(t, converr.IsTypeMismatch(err))
}

func TestReverse_AmbiguousOperatorMapping(t *testing.T) {
	decls := extension.Builtin()
	scalar := funcs.NewScalarConverter(decls, []funcs.Sig{funcs.NewSig(optree.Upper, "upper")})
	rev := reverse.NewConverter(decls, reverse.WithScalarConverter(scalar))

	varchar := optree.NewType(optree.TypeVarChar, false)
	scan := &optree.TableScan{Table: []string{"t"}, RowType: optree.NewRowType([]string{"a"}, []optree.DataType{varchar})}
	ref := &optree.InputRef{Index: 0, Type: varchar}
	_, err := rev.Convert(&optree.Filter{Input: scan, Condition: &optree.Call{Op: optree.Upper, Operands: []optree.RexNode{ref}, Type: varchar}})
	require.Error(t, err)
	assert.True(t, converr.IsAmbiguous(err))
}
