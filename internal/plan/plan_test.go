package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/types"
)

const ns = "/functions_custom"

var (
	R = types.Required
	N = types.Nullable
)

func scan(b *Builder) *NamedScan {
	return b.NamedScan([]string{"example"}, []string{"a", "b"}, []types.Type{R.I64(), N.Str()})
}

func TestProject_RecordTypeAppliesRemap(t *testing.T) {
	b := NewBuilder()
	in := scan(b)

	p := b.Project(func(input Rel) []Expression {
		return []Expression{b.ScalarFn(ns, "custom_scalar:str", R.Str(), b.FieldRef(input, 1))}
	}, b.Remap(2), in)

	assert.Equal(t, []types.Type{R.Str()}, p.RecordType())
	assert.Equal(t, []types.Type{R.I64(), N.Str(), R.Str()}, DirectRecordType(p))
	assert.Equal(t, []int{2}, RemapOf(p))

	unmapped := b.Project(func(input Rel) []Expression { return nil }, nil, in)
	assert.Equal(t, []types.Type{R.I64(), N.Str()}, unmapped.RecordType())
}

func TestAggregate_RecordType(t *testing.T) {
	b := NewBuilder()
	in := scan(b)

	agg := b.Aggregate(
		func(input Rel) Grouping { return b.Grouping(input, 0) },
		func(input Rel) []AggregateCall {
			return []AggregateCall{b.AggregateFn(ns, "custom_aggregate:i64", R.I64(), b.FieldRef(input, 0))}
		},
		in)

	assert.Equal(t, []types.Type{R.I64(), R.I64()}, agg.RecordType())
	require.Len(t, agg.Groupings, 1)
	require.Len(t, agg.Measures, 1)
	assert.Equal(t, extension.Key{Namespace: ns, Name: "custom_aggregate", Signature: "i64"}, agg.Measures[0].Function.Key)
}

func TestAggregate_GroupingSets(t *testing.T) {
	b := NewBuilder()
	in := scan(b)

	agg := b.AggregateSets(
		func(input Rel) []Grouping {
			return []Grouping{b.Grouping(input, 0, 1), b.Grouping(input, 1), {}}
		},
		nil, in)

	keys, sets := agg.GroupingKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, [][]int{{0, 1}, {1}, {}}, sets)

	// Keys missing from some grouping set become nullable.
	assert.Equal(t, []types.Type{N.I64(), N.Str()}, agg.RecordType())
}

func TestAggregate_NoGroupingIsGlobal(t *testing.T) {
	b := NewBuilder()
	agg := b.Aggregate(
		func(input Rel) Grouping { return b.Grouping(input) },
		func(input Rel) []AggregateCall {
			return []AggregateCall{b.AggregateFn(extension.BuiltinNamespace, "count", R.I64())}
		},
		scan(b))

	assert.Nil(t, agg.Groupings)
	assert.Equal(t, []types.Type{R.I64()}, agg.RecordType())
}

func TestJoin_RecordType(t *testing.T) {
	b := NewBuilder()
	left := scan(b)
	right := b.NamedScan([]string{"other"}, []string{"c"}, []types.Type{R.I64()})

	cond := func(l, r Rel) Expression {
		return b.ScalarFn(extension.BuiltinNamespace, "equal:any_any", R.Bool(), b.JoinFieldRef(l, r, 0), b.JoinFieldRef(l, r, 2))
	}

	tests := []struct {
		jt   JoinType
		want []types.Type
	}{
		{JoinInner, []types.Type{R.I64(), N.Str(), R.I64()}},
		{JoinLeft, []types.Type{R.I64(), N.Str(), N.I64()}},
		{JoinRight, []types.Type{N.I64(), N.Str(), R.I64()}},
		{JoinOuter, []types.Type{N.I64(), N.Str(), N.I64()}},
		{JoinLeftSemi, []types.Type{R.I64(), N.Str()}},
	}
	for _, tt := range tests {
		t.Run(tt.jt.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, b.Join(cond, tt.jt, left, right).RecordType())
		})
	}
}

func TestFetchAndSort_PassThroughTypes(t *testing.T) {
	b := NewBuilder()
	in := scan(b)
	s := b.Sort(func(input Rel) []SortField {
		return []SortField{b.SortField(input, 0, DescNullsLast)}
	}, in)
	f := b.Fetch(5, CountAll, s)

	assert.Equal(t, in.RecordType(), f.RecordType())
	assert.Equal(t, []Rel{s}, f.Inputs())
}

func TestBuilder_FieldRefOutOfRangePanics(t *testing.T) {
	b := NewBuilder()
	assert.Panics(t, func() { b.FieldRef(scan(b), 2) })
}

func TestEqual(t *testing.T) {
	b := NewBuilder()
	build := func() Rel {
		return b.Project(func(input Rel) []Expression {
			return []Expression{b.ScalarFn(ns, "custom_scalar:str", R.Str(), b.FieldRef(input, 1))}
		}, b.Remap(2), scan(b))
	}

	assert.True(t, Equal(build(), build()))
	assert.Empty(t, Diff(build(), build()))

	other := build().(*Project)
	other.Remap = []int{0}
	assert.False(t, Equal(build(), other))
	assert.NotEmpty(t, Diff(build(), other))
}

func TestEqual_NilAndEmptySlicesMatch(t *testing.T) {
	a := &Filter{Input: &NamedScan{Names: []string{"t"}}, Condition: &Literal{Value: true, Type: R.Bool()}}
	b := &Filter{Input: &NamedScan{Names: []string{"t"}, Schema: NamedStruct{Names: []string{}, Types: []types.Type{}}}, Condition: &Literal{Value: true, Type: R.Bool()}}
	assert.True(t, Equal(a, b))
}

func TestIfThen_ResultType(t *testing.T) {
	b := NewBuilder()
	it := b.IfThen([]IfClause{{If: b.Bool(true), Then: b.I64(1)}}, b.I64(2))
	assert.Equal(t, R.I64(), it.ResultType())
	assert.Equal(t, []types.Type{R.I64(), R.Str()}, ArgTypes([]Expression{b.I64(1), b.Str("x")}))
}
