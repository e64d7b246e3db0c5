package plan

import (
	"fmt"

	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/types"
)

// Builder constructs relation trees in canonical form. Expressions that
// depend on an input are supplied as functions of that input, so field
// references carry the input's field types.
//
// The zero value is ready to use. Builder methods panic on out-of-range
// field indexes; those are programming errors in the caller.
type Builder struct{}

// NewBuilder returns a Builder.
func NewBuilder() *Builder { return &Builder{} }

// NamedScan reads table with the given columns.
func (b *Builder) NamedScan(table, columns []string, columnTypes []types.Type) *NamedScan {
	return &NamedScan{
		Names:  append([]string(nil), table...),
		Schema: NamedStruct{Names: append([]string(nil), columns...), Types: append([]types.Type(nil), columnTypes...)},
	}
}

// Remap returns an emit remap selecting fields.
func (b *Builder) Remap(fields ...int) []int {
	return append([]int{}, fields...)
}

// FieldRef references field index of input's record.
func (b *Builder) FieldRef(input Rel, index int) *FieldRef {
	rt := input.RecordType()
	if index < 0 || index >= len(rt) {
		panic(fmt.Sprintf("plan: field %d out of range for %d fields", index, len(rt)))
	}
	return &FieldRef{Index: index, Type: rt[index]}
}

// FieldRefs references several fields of input's record.
func (b *Builder) FieldRefs(input Rel, indexes ...int) []Expression {
	out := make([]Expression, len(indexes))
	for i, idx := range indexes {
		out[i] = b.FieldRef(input, idx)
	}
	return out
}

// ScalarFn calls the scalar function compound ("name:sig") of namespace.
func (b *Builder) ScalarFn(namespace, compound string, outputType types.Type, args ...Expression) *ScalarCall {
	return &ScalarCall{
		Key:        extension.ParseKey(namespace, compound),
		Args:       args,
		OutputType: outputType,
	}
}

// AggregateFn calls the aggregate function compound of namespace.
func (b *Builder) AggregateFn(namespace, compound string, outputType types.Type, args ...Expression) AggregateCall {
	return AggregateCall{
		Key:        extension.ParseKey(namespace, compound),
		Args:       args,
		OutputType: outputType,
	}
}

// WindowFn calls the window function compound of namespace over the
// given partitions and sort keys, framed by lower and upper.
func (b *Builder) WindowFn(namespace, compound string, outputType types.Type, partitions []Expression, sorts []SortField, lower, upper Bound, args ...Expression) *WindowCall {
	return &WindowCall{
		Key:        extension.ParseKey(namespace, compound),
		Args:       args,
		OutputType: outputType,
		Partitions: partitions,
		Sorts:      sorts,
		LowerBound: lower,
		UpperBound: upper,
	}
}

// Project appends the expressions built from input and emits remap.
func (b *Builder) Project(exprs func(input Rel) []Expression, remap []int, input Rel) *Project {
	return &Project{Input: input, Expressions: exprs(input), Remap: remap}
}

// Filter keeps rows matching the condition built from input.
func (b *Builder) Filter(cond func(input Rel) Expression, input Rel) *Filter {
	return &Filter{Input: input, Condition: cond(input)}
}

// Grouping builds a grouping set of fields of input.
func (b *Builder) Grouping(input Rel, indexes ...int) Grouping {
	return Grouping{Expressions: b.FieldRefs(input, indexes...)}
}

// Aggregate groups input by one grouping set and computes measures.
func (b *Builder) Aggregate(grouping func(input Rel) Grouping, measures func(input Rel) []AggregateCall, input Rel) *Aggregate {
	agg := &Aggregate{Input: input}
	if grouping != nil {
		if g := grouping(input); len(g.Expressions) > 0 {
			agg.Groupings = []Grouping{g}
		}
	}
	if measures != nil {
		for _, m := range measures(input) {
			agg.Measures = append(agg.Measures, Measure{Function: m})
		}
	}
	return agg
}

// AggregateSets groups input by several grouping sets.
func (b *Builder) AggregateSets(groupings func(input Rel) []Grouping, measures func(input Rel) []AggregateCall, input Rel) *Aggregate {
	agg := b.Aggregate(nil, measures, input)
	agg.Groupings = groupings(input)
	return agg
}

// Join joins left and right on the condition built from both.
func (b *Builder) Join(cond func(left, right Rel) Expression, jt JoinType, left, right Rel) *Join {
	return &Join{Left: left, Right: right, Condition: cond(left, right), Type: jt}
}

// JoinFieldRef references field index of the concatenated join input.
func (b *Builder) JoinFieldRef(left, right Rel, index int) *FieldRef {
	rt := append(append([]types.Type(nil), left.RecordType()...), right.RecordType()...)
	if index < 0 || index >= len(rt) {
		panic(fmt.Sprintf("plan: join field %d out of range for %d fields", index, len(rt)))
	}
	return &FieldRef{Index: index, Type: rt[index]}
}

// Sort orders input by the sort keys built from it.
func (b *Builder) Sort(sorts func(input Rel) []SortField, input Rel) *Sort {
	return &Sort{Input: input, Sorts: sorts(input)}
}

// SortField orders by field index of input.
func (b *Builder) SortField(input Rel, index int, dir SortDirection) SortField {
	return SortField{Expr: b.FieldRef(input, index), Direction: dir}
}

// Fetch skips offset rows of input and returns at most count rows.
// Fetch(0, CountAll, input) is a no-op, as is a Sort without fields; neither
// is canonical and conversion back from an operator tree drops them.
func (b *Builder) Fetch(offset, count int64, input Rel) *Fetch {
	return &Fetch{Input: input, Offset: offset, Count: count}
}

// Limit returns at most count rows of input.
func (b *Builder) Limit(count int64, input Rel) *Fetch {
	return b.Fetch(0, count, input)
}

// Cast converts expr to t.
func (b *Builder) Cast(expr Expression, t types.Type) *Cast {
	return &Cast{Input: expr, Type: t}
}

// IfThen builds a conditional from (if, then) pairs and an else branch.
func (b *Builder) IfThen(clauses []IfClause, otherwise Expression) *IfThen {
	return &IfThen{Ifs: clauses, Else: otherwise}
}

// Bool builds a boolean literal.
func (b *Builder) Bool(v bool) *Literal { return &Literal{Value: v, Type: types.Required.Bool()} }

// I32 builds an i32 literal.
func (b *Builder) I32(v int32) *Literal { return &Literal{Value: v, Type: types.Required.I32()} }

// I64 builds an i64 literal.
func (b *Builder) I64(v int64) *Literal { return &Literal{Value: v, Type: types.Required.I64()} }

// FP64 builds an fp64 literal.
func (b *Builder) FP64(v float64) *Literal { return &Literal{Value: v, Type: types.Required.FP64()} }

// Str builds a string literal.
func (b *Builder) Str(v string) *Literal { return &Literal{Value: v, Type: types.Required.Str()} }

// Null builds a typed null literal.
func (b *Builder) Null(t types.Type) *Literal { return &Literal{Type: t.WithNullable(true)} }

// Root names the output fields of input.
func (b *Builder) Root(input Rel, names ...string) Root {
	return Root{Input: input, Names: names}
}

// Plan wraps roots into a plan.
func (b *Builder) Plan(roots ...Root) *Plan {
	return &Plan{Relations: roots}
}
