package funcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/types"
)

const customNS = "/functions_custom"

var (
	R = types.Required
	N = types.Nullable
)

func exact(t types.Type) extension.Param {
	return extension.Param{Kind: extension.ParamExact, Type: t}
}

func customCollection(t *testing.T) *extension.Collection {
	t.Helper()
	custom, err := extension.NewCollection(
		extension.Declaration{
			Namespace: customNS, Name: "custom_scalar", Class: extension.ClassScalar,
			Params: []extension.Param{exact(R.Str())}, Return: extension.Fixed(R.Str()),
		},
		extension.Declaration{
			Namespace: customNS, Name: "custom_aggregate", Class: extension.ClassAggregate,
			Params: []extension.Param{exact(R.I64())}, Return: extension.Fixed(R.I64()),
		},
		extension.Declaration{
			Namespace: customNS, Name: "twin", Class: extension.ClassScalar,
			Params: []extension.Param{{Kind: extension.ParamFamily, Family: extension.FamilyInteger}}, Return: extension.Fixed(R.I64()),
		},
		extension.Declaration{
			Namespace: customNS, Name: "twin", Class: extension.ClassScalar,
			Params: []extension.Param{{Kind: extension.ParamFamily, Family: extension.FamilyNumeric}}, Return: extension.Fixed(R.I64()),
		},
	)
	require.NoError(t, err)
	all, err := extension.Builtin().Merge(custom)
	require.NoError(t, err)
	return all
}

var (
	customScalarFn    = optree.NewFunction("CUSTOM_SCALAR", optree.Explicit(optree.NewType(optree.TypeVarChar, false)))
	customAggregateFn = optree.NewAggFunction("CUSTOM_AGGREGATE", optree.Explicit(optree.NewType(optree.TypeBigInt, false)))
)

func TestS_LowercasesOperatorName(t *testing.T) {
	s := S(customScalarFn)
	assert.Equal(t, "custom_scalar", s.Name)
	assert.Same(t, customScalarFn, s.Operator)
	assert.Equal(t, customNS, s.InNamespace(customNS).Namespace)
}

func TestScalarConverter_Builtins(t *testing.T) {
	c := NewScalarConverter(extension.Builtin(), nil)

	tests := []struct {
		compound string
		args     []types.Type
		op       *optree.Operator
	}{
		{"add:i64_i64", []types.Type{R.I64(), R.I64()}, optree.Plus},
		{"add:fp64_fp64", []types.Type{N.FP64(), R.FP64()}, optree.Plus},
		{"equal:any_any", []types.Type{R.Str(), R.Str()}, optree.Equals},
		{"is_null:any", []types.Type{N.I32()}, optree.IsNull},
		{"and:bool", []types.Type{R.Bool(), R.Bool(), N.Bool()}, optree.And},
		{"concat:str", []types.Type{R.Str(), R.Str()}, optree.Concat},
		{"substring:str_i32_i32", []types.Type{R.Str(), R.I32(), R.I32()}, optree.Substring},
	}
	for _, tt := range tests {
		t.Run(tt.compound, func(t *testing.T) {
			key := extension.ParseKey(extension.BuiltinNamespace, tt.compound)

			op, err := c.ToTarget(key, tt.args)
			require.NoError(t, err)
			assert.Same(t, tt.op, op)

			back, err := c.ToSource(op, tt.args)
			require.NoError(t, err)
			assert.Equal(t, key, back)
		})
	}
}

func TestScalarConverter_HostSig(t *testing.T) {
	c := NewScalarConverter(customCollection(t), []Sig{S(customScalarFn)})
	key := extension.ParseKey(customNS, "custom_scalar:str")

	op, err := c.ToTarget(key, []types.Type{R.Str()})
	require.NoError(t, err)
	assert.Same(t, customScalarFn, op)

	back, err := c.ToSource(customScalarFn, []types.Type{R.Str()})
	require.NoError(t, err)
	assert.Equal(t, key, back)
}

func TestScalarConverter_PatternMatchWithoutSignature(t *testing.T) {
	c := NewScalarConverter(extension.Builtin(), nil)

	op, err := c.ToTarget(extension.Key{Namespace: extension.BuiltinNamespace, Name: "add"}, []types.Type{R.I32(), R.I32()})
	require.NoError(t, err)
	assert.Same(t, optree.Plus, op)

	// Namespace may be omitted when the signature is unique.
	op, err = c.ToTarget(extension.Key{Name: "lt", Signature: "any_any"}, []types.Type{R.I32(), R.I32()})
	require.NoError(t, err)
	assert.Same(t, optree.LessThan, op)
}

func TestScalarConverter_ReversePicksMatchingOverload(t *testing.T) {
	c := NewScalarConverter(extension.Builtin(), nil)

	key, err := c.ToSource(optree.Plus, []types.Type{R.I32(), N.I32()})
	require.NoError(t, err)
	assert.Equal(t, "add:i32_i32", key.Compound())
}

func TestResolver_AmbiguousTie(t *testing.T) {
	twinFn := optree.NewFunction("TWIN", nil)
	c := NewScalarConverter(customCollection(t), []Sig{S(twinFn)})

	// Integer family and numeric family both score 2 for an i64 argument.
	_, err := c.ToTarget(extension.Key{Namespace: customNS, Name: "twin"}, []types.Type{R.I64()})
	require.Error(t, err)
	assert.True(t, converr.IsAmbiguous(err), err.Error())

	_, err = c.ToSource(twinFn, []types.Type{R.I64()})
	require.Error(t, err)
	assert.True(t, converr.IsAmbiguous(err))

	var ce *converr.Error
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.Candidates, 2)
	assert.Equal(t, "TWIN", ce.Symbol)

	// Only the numeric family fits a float.
	key, err := c.ToSource(twinFn, []types.Type{R.FP64()})
	require.NoError(t, err)
	assert.Equal(t, "twin:anynum", key.Compound())
}

func TestResolver_CatalogHostConflict(t *testing.T) {
	// "add" is mapped by the default table; mapping it again from the host
	// side makes the function ambiguous.
	otherPlus := optree.NewFunction("MY_PLUS", nil)
	c := NewScalarConverter(extension.Builtin(), []Sig{NewSig(otherPlus, "add")})

	_, err := c.ToTarget(extension.ParseKey(extension.BuiltinNamespace, "add:i64_i64"), []types.Type{R.I64(), R.I64()})
	require.Error(t, err)
	assert.True(t, converr.IsAmbiguous(err))

	// Reverse, the operator appears in both tables.
	c = NewScalarConverter(extension.Builtin(), []Sig{NewSig(optree.Plus, "add")})
	_, err = c.ToSource(optree.Plus, []types.Type{R.I64(), R.I64()})
	require.Error(t, err)
	assert.True(t, converr.IsAmbiguous(err))
}

func TestResolver_HostSigScopedToNamespaceDoesNotConflict(t *testing.T) {
	otherPlus := optree.NewFunction("MY_PLUS", nil)
	c := NewScalarConverter(extension.Builtin(), []Sig{NewSig(otherPlus, "add").InNamespace(customNS)})

	op, err := c.ToTarget(extension.ParseKey(extension.BuiltinNamespace, "add:i64_i64"), []types.Type{R.I64(), R.I64()})
	require.NoError(t, err)
	assert.Same(t, optree.Plus, op)
}

func TestResolver_Unresolved(t *testing.T) {
	c := NewScalarConverter(customCollection(t), nil)

	tests := []struct {
		name string
		key  extension.Key
		args []types.Type
	}{
		{"unknown key", extension.ParseKey(customNS, "nope:i64"), []types.Type{R.I64()}},
		{"wrong class", extension.ParseKey(customNS, "custom_aggregate:i64"), []types.Type{R.I64()}},
		{"no overload fits", extension.Key{Namespace: extension.BuiltinNamespace, Name: "add"}, []types.Type{R.Str(), R.Str()}},
		{"declared but unmapped", extension.ParseKey(customNS, "custom_scalar:str"), []types.Type{R.Str()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ToTarget(tt.key, tt.args)
			require.Error(t, err)
			assert.True(t, converr.IsUnresolved(err), err.Error())
		})
	}
}

func TestResolver_OverlappingOverloadsAreAmbiguousInReverse(t *testing.T) {
	decls := extension.MustCollection(
		extension.Declaration{
			Namespace: customNS, Name: "pick", Class: extension.ClassScalar,
			Params: []extension.Param{{Kind: extension.ParamAny, AnyID: "any1"}},
			Return: extension.ReturnRule{AnyID: "any1"},
		},
		extension.Declaration{
			Namespace: customNS, Name: "pick", Class: extension.ClassScalar,
			Params: []extension.Param{exact(R.I64())}, Return: extension.Fixed(R.I64()),
		},
	)
	pickFn := optree.NewFunction("PICK", nil)
	c := NewScalarConverter(decls, []Sig{S(pickFn)})
	args := []types.Type{R.I64()}

	// The signature selects an overload going forward.
	op, err := c.ToTarget(extension.ParseKey(customNS, "pick:any"), args)
	require.NoError(t, err)
	assert.Same(t, pickFn, op)

	// Going back, both overloads accept i64 and neither may be guessed.
	_, err = c.ToSource(pickFn, args)
	require.Error(t, err)
	assert.True(t, converr.IsAmbiguous(err), err.Error())
	var ce *converr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "PICK", ce.Symbol)
	assert.ElementsMatch(t, []string{customNS + "#pick:any", customNS + "#pick:i64"}, ce.Candidates)

	// Only the polymorphic overload accepts a string.
	key, err := c.ToSource(pickFn, []types.Type{R.Str()})
	require.NoError(t, err)
	assert.Equal(t, extension.ParseKey(customNS, "pick:any"), key)
}

func TestResolver_UnmappedSymbol(t *testing.T) {
	c := NewScalarConverter(extension.Builtin(), nil)
	_, err := c.ToSource(customScalarFn, []types.Type{R.Str()})
	require.Error(t, err)
	assert.True(t, converr.IsUnmapped(err))
}

func TestAggregateConverter(t *testing.T) {
	c := NewAggregateConverter(customCollection(t), []Sig{S(customAggregateFn)})

	key := extension.ParseKey(customNS, "custom_aggregate:i64")
	op, err := c.ToTarget(key, []types.Type{R.I64()})
	require.NoError(t, err)
	assert.Same(t, customAggregateFn, op)

	back, err := c.ToSource(customAggregateFn, []types.Type{R.I64()})
	require.NoError(t, err)
	assert.Equal(t, key, back)

	// count is declared nullary and unary.
	back, err = c.ToSource(optree.Count, nil)
	require.NoError(t, err)
	assert.Equal(t, "count", back.Compound())
	back, err = c.ToSource(optree.Count, []types.Type{N.Str()})
	require.NoError(t, err)
	assert.Equal(t, "count:any", back.Compound())
}

func TestWindowConverter_FallsBackToAggregates(t *testing.T) {
	decls := extension.Builtin()
	agg := NewAggregateConverter(decls, nil)
	c := NewWindowConverter(decls, nil, agg)

	op, err := c.ToTarget(extension.ParseKey(extension.BuiltinNamespace, "row_number"), nil)
	require.NoError(t, err)
	assert.Same(t, optree.RowNumber, op)

	op, err = c.ToTarget(extension.ParseKey(extension.BuiltinNamespace, "sum:i64"), []types.Type{R.I64()})
	require.NoError(t, err)
	assert.Same(t, optree.Sum, op)

	key, err := c.ToSource(optree.Sum, []types.Type{R.I64()})
	require.NoError(t, err)
	assert.Equal(t, "sum:i64", key.Compound())

	key, err = c.ToSource(optree.Lag, []types.Type{N.Str()})
	require.NoError(t, err)
	assert.Equal(t, "lag:any", key.Compound())

	_, err = NewWindowConverter(decls, nil, nil).ToTarget(extension.ParseKey(extension.BuiltinNamespace, "sum:i64"), []types.Type{R.I64()})
	assert.True(t, converr.IsUnresolved(err))
}
