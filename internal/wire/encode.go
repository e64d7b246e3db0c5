// Package wire encodes Plan IR as Substrait protobuf messages.
//
// Function keys become extension declarations: each namespace is an
// extension URI and each key a function anchor, both assigned in order of
// first use. Field reference types are not on the wire; decoding recovers
// them from the input record type.
package wire

import (
	"fmt"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	"github.com/substrait-io/substrait-protobuf/go/substraitpb/extensions"

	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/types"
)

// Producer is the producer name stamped into encoded plans.
const Producer = "relbridge"

type encoder struct {
	uriAnchors  map[string]uint32
	funcAnchors map[extension.Key]uint32
	out         *pb.Plan
}

// Encode converts a plan into its Substrait message.
func Encode(p *plan.Plan) (*pb.Plan, error) {
	e := &encoder{
		uriAnchors:  make(map[string]uint32),
		funcAnchors: make(map[extension.Key]uint32),
		out:         &pb.Plan{Version: &pb.Version{Producer: Producer}},
	}
	for i, root := range p.Relations {
		rel, err := e.rel(root.Input)
		if err != nil {
			return nil, fmt.Errorf("encode relation %d: %w", i, err)
		}
		e.out.Relations = append(e.out.Relations, &pb.PlanRel{
			RelType: &pb.PlanRel_Root{Root: &pb.RelRoot{Input: rel, Names: append([]string(nil), root.Names...)}},
		})
	}
	return e.out, nil
}

// anchor returns the function anchor for k, declaring it on first use.
func (e *encoder) anchor(k extension.Key) uint32 {
	if a, ok := e.funcAnchors[k]; ok {
		return a
	}
	uri, ok := e.uriAnchors[k.Namespace]
	if !ok {
		uri = uint32(len(e.uriAnchors) + 1)
		e.uriAnchors[k.Namespace] = uri
		e.out.ExtensionUris = append(e.out.ExtensionUris, &extensions.SimpleExtensionURI{
			ExtensionUriAnchor: uri,
			Uri:                k.Namespace,
		})
	}
	a := uint32(len(e.funcAnchors) + 1)
	e.funcAnchors[k] = a
	e.out.Extensions = append(e.out.Extensions, &extensions.SimpleExtensionDeclaration{
		MappingType: &extensions.SimpleExtensionDeclaration_ExtensionFunction_{
			ExtensionFunction: &extensions.SimpleExtensionDeclaration_ExtensionFunction{
				ExtensionUriReference: uri,
				FunctionAnchor:        a,
				Name:                  k.Compound(),
			},
		},
	})
	return a
}

func common(remap []int) *pb.RelCommon {
	if remap == nil {
		return &pb.RelCommon{EmitKind: &pb.RelCommon_Direct_{Direct: &pb.RelCommon_Direct{}}}
	}
	mapping := make([]int32, len(remap))
	for i, idx := range remap {
		mapping[i] = int32(idx)
	}
	return &pb.RelCommon{EmitKind: &pb.RelCommon_Emit_{Emit: &pb.RelCommon_Emit{OutputMapping: mapping}}}
}

func (e *encoder) rel(rel plan.Rel) (*pb.Rel, error) {
	switch r := rel.(type) {
	case *plan.NamedScan:
		ts, err := encodeTypes(r.Schema.Types)
		if err != nil {
			return nil, err
		}
		return &pb.Rel{RelType: &pb.Rel_Read{Read: &pb.ReadRel{
			Common: common(r.Remap),
			BaseSchema: &pb.NamedStruct{
				Names:  append([]string(nil), r.Schema.Names...),
				Struct: &pb.Type_Struct{Types: ts, Nullability: pb.Type_NULLABILITY_REQUIRED},
			},
			ReadType: &pb.ReadRel_NamedTable_{NamedTable: &pb.ReadRel_NamedTable{Names: append([]string(nil), r.Names...)}},
		}}}, nil

	case *plan.Project:
		input, err := e.rel(r.Input)
		if err != nil {
			return nil, err
		}
		exprs, err := e.exprs(r.Expressions)
		if err != nil {
			return nil, err
		}
		return &pb.Rel{RelType: &pb.Rel_Project{Project: &pb.ProjectRel{
			Common:      common(r.Remap),
			Input:       input,
			Expressions: exprs,
		}}}, nil

	case *plan.Filter:
		input, err := e.rel(r.Input)
		if err != nil {
			return nil, err
		}
		cond, err := e.expr(r.Condition)
		if err != nil {
			return nil, err
		}
		return &pb.Rel{RelType: &pb.Rel_Filter{Filter: &pb.FilterRel{
			Common:    common(r.Remap),
			Input:     input,
			Condition: cond,
		}}}, nil

	case *plan.Aggregate:
		return e.aggregate(r)

	case *plan.Join:
		left, err := e.rel(r.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.rel(r.Right)
		if err != nil {
			return nil, err
		}
		jr := &pb.JoinRel{Common: common(r.Remap), Left: left, Right: right, Type: joinTypes[r.Type]}
		if r.Condition != nil {
			if jr.Expression, err = e.expr(r.Condition); err != nil {
				return nil, err
			}
		}
		if r.PostJoinFilter != nil {
			if jr.PostJoinFilter, err = e.expr(r.PostJoinFilter); err != nil {
				return nil, err
			}
		}
		return &pb.Rel{RelType: &pb.Rel_Join{Join: jr}}, nil

	case *plan.Sort:
		input, err := e.rel(r.Input)
		if err != nil {
			return nil, err
		}
		sorts, err := e.sorts(r.Sorts)
		if err != nil {
			return nil, err
		}
		return &pb.Rel{RelType: &pb.Rel_Sort{Sort: &pb.SortRel{
			Common: common(r.Remap),
			Input:  input,
			Sorts:  sorts,
		}}}, nil

	case *plan.Fetch:
		input, err := e.rel(r.Input)
		if err != nil {
			return nil, err
		}
		return &pb.Rel{RelType: &pb.Rel_Fetch{Fetch: &pb.FetchRel{
			Common:     common(r.Remap),
			Input:      input,
			OffsetMode: &pb.FetchRel_Offset{Offset: r.Offset},
			CountMode:  &pb.FetchRel_Count{Count: r.Count},
		}}}, nil
	}
	return nil, fmt.Errorf("encode: unsupported relation %T", rel)
}

// aggregate writes the distinct grouping expressions once and each
// grouping set as references into them.
func (e *encoder) aggregate(r *plan.Aggregate) (*pb.Rel, error) {
	input, err := e.rel(r.Input)
	if err != nil {
		return nil, err
	}
	keys, sets := r.GroupingKeys()
	keyExprs, err := e.exprs(keys)
	if err != nil {
		return nil, err
	}
	ar := &pb.AggregateRel{Common: common(r.Remap), Input: input, GroupingExpressions: keyExprs}
	for _, set := range sets {
		refs := make([]uint32, len(set))
		for i, k := range set {
			refs[i] = uint32(k)
		}
		ar.Groupings = append(ar.Groupings, &pb.AggregateRel_Grouping{ExpressionReferences: refs})
	}
	for _, m := range r.Measures {
		args, err := e.args(m.Function.Args)
		if err != nil {
			return nil, err
		}
		out, err := encodeType(m.Function.OutputType)
		if err != nil {
			return nil, err
		}
		ar.Measures = append(ar.Measures, &pb.AggregateRel_Measure{Measure: &pb.AggregateFunction{
			FunctionReference: e.anchor(m.Function.Key),
			Arguments:         args,
			OutputType:        out,
			Phase:             pb.AggregationPhase_AGGREGATION_PHASE_INITIAL_TO_RESULT,
			Invocation:        invocation(m.Function.Distinct),
		}})
	}
	return &pb.Rel{RelType: &pb.Rel_Aggregate{Aggregate: ar}}, nil
}

func invocation(distinct bool) pb.AggregateFunction_AggregationInvocation {
	if distinct {
		return pb.AggregateFunction_AGGREGATION_INVOCATION_DISTINCT
	}
	return pb.AggregateFunction_AGGREGATION_INVOCATION_ALL
}

var joinTypes = map[plan.JoinType]pb.JoinRel_JoinType{
	plan.JoinInner:    pb.JoinRel_JOIN_TYPE_INNER,
	plan.JoinOuter:    pb.JoinRel_JOIN_TYPE_OUTER,
	plan.JoinLeft:     pb.JoinRel_JOIN_TYPE_LEFT,
	plan.JoinRight:    pb.JoinRel_JOIN_TYPE_RIGHT,
	plan.JoinLeftSemi: pb.JoinRel_JOIN_TYPE_LEFT_SEMI,
	plan.JoinLeftAnti: pb.JoinRel_JOIN_TYPE_LEFT_ANTI,
}

var sortDirections = map[plan.SortDirection]pb.SortField_SortDirection{
	plan.AscNullsFirst:  pb.SortField_SORT_DIRECTION_ASC_NULLS_FIRST,
	plan.AscNullsLast:   pb.SortField_SORT_DIRECTION_ASC_NULLS_LAST,
	plan.DescNullsFirst: pb.SortField_SORT_DIRECTION_DESC_NULLS_FIRST,
	plan.DescNullsLast:  pb.SortField_SORT_DIRECTION_DESC_NULLS_LAST,
	plan.Clustered:      pb.SortField_SORT_DIRECTION_CLUSTERED,
}

func (e *encoder) sorts(fields []plan.SortField) ([]*pb.SortField, error) {
	out := make([]*pb.SortField, len(fields))
	for i, f := range fields {
		expr, err := e.expr(f.Expr)
		if err != nil {
			return nil, err
		}
		out[i] = &pb.SortField{Expr: expr, SortKind: &pb.SortField_Direction{Direction: sortDirections[f.Direction]}}
	}
	return out, nil
}

func (e *encoder) exprs(es []plan.Expression) ([]*pb.Expression, error) {
	out := make([]*pb.Expression, len(es))
	for i, x := range es {
		pe, err := e.expr(x)
		if err != nil {
			return nil, err
		}
		out[i] = pe
	}
	return out, nil
}

func (e *encoder) args(es []plan.Expression) ([]*pb.FunctionArgument, error) {
	exprs, err := e.exprs(es)
	if err != nil {
		return nil, err
	}
	out := make([]*pb.FunctionArgument, len(exprs))
	for i, x := range exprs {
		out[i] = &pb.FunctionArgument{ArgType: &pb.FunctionArgument_Value{Value: x}}
	}
	return out, nil
}

func fieldReference(index int) *pb.Expression {
	return &pb.Expression{RexType: &pb.Expression_Selection{Selection: &pb.Expression_FieldReference{
		ReferenceType: &pb.Expression_FieldReference_DirectReference{DirectReference: &pb.Expression_ReferenceSegment{
			ReferenceType: &pb.Expression_ReferenceSegment_StructField_{StructField: &pb.Expression_ReferenceSegment_StructField{
				Field: int32(index),
			}},
		}},
		RootType: &pb.Expression_FieldReference_RootReference_{RootReference: &pb.Expression_FieldReference_RootReference{}},
	}}}
}

func (e *encoder) expr(x plan.Expression) (*pb.Expression, error) {
	switch x := x.(type) {
	case *plan.FieldRef:
		return fieldReference(x.Index), nil

	case *plan.Literal:
		lit, err := encodeLiteral(x)
		if err != nil {
			return nil, err
		}
		return &pb.Expression{RexType: &pb.Expression_Literal_{Literal: lit}}, nil

	case *plan.ScalarCall:
		args, err := e.args(x.Args)
		if err != nil {
			return nil, err
		}
		out, err := encodeType(x.OutputType)
		if err != nil {
			return nil, err
		}
		return &pb.Expression{RexType: &pb.Expression_ScalarFunction_{ScalarFunction: &pb.Expression_ScalarFunction{
			FunctionReference: e.anchor(x.Key),
			Arguments:         args,
			OutputType:        out,
		}}}, nil

	case *plan.WindowCall:
		return e.window(x)

	case *plan.Cast:
		in, err := e.expr(x.Input)
		if err != nil {
			return nil, err
		}
		t, err := encodeType(x.Type)
		if err != nil {
			return nil, err
		}
		return &pb.Expression{RexType: &pb.Expression_Cast_{Cast: &pb.Expression_Cast{
			Type:            t,
			Input:           in,
			FailureBehavior: failureBehaviors[x.FailureBehavior],
		}}}, nil

	case *plan.IfThen:
		it := &pb.Expression_IfThen{}
		for _, c := range x.Ifs {
			cond, err := e.expr(c.If)
			if err != nil {
				return nil, err
			}
			then, err := e.expr(c.Then)
			if err != nil {
				return nil, err
			}
			it.Ifs = append(it.Ifs, &pb.Expression_IfThen_IfClause{If: cond, Then: then})
		}
		if x.Else != nil {
			otherwise, err := e.expr(x.Else)
			if err != nil {
				return nil, err
			}
			it.Else = otherwise
		}
		return &pb.Expression{RexType: &pb.Expression_IfThen_{IfThen: it}}, nil
	}
	return nil, fmt.Errorf("encode: unsupported expression %T", x)
}

var failureBehaviors = map[plan.FailureBehavior]pb.Expression_Cast_FailureBehavior{
	plan.FailureUnspecified: pb.Expression_Cast_FAILURE_BEHAVIOR_UNSPECIFIED,
	plan.FailureReturnNull:  pb.Expression_Cast_FAILURE_BEHAVIOR_RETURN_NULL,
	plan.FailureThrow:       pb.Expression_Cast_FAILURE_BEHAVIOR_THROW_EXCEPTION,
}

func (e *encoder) window(x *plan.WindowCall) (*pb.Expression, error) {
	args, err := e.args(x.Args)
	if err != nil {
		return nil, err
	}
	out, err := encodeType(x.OutputType)
	if err != nil {
		return nil, err
	}
	partitions, err := e.exprs(x.Partitions)
	if err != nil {
		return nil, err
	}
	sorts, err := e.sorts(x.Sorts)
	if err != nil {
		return nil, err
	}
	boundsType := pb.Expression_WindowFunction_BOUNDS_TYPE_RANGE
	if x.Rows {
		boundsType = pb.Expression_WindowFunction_BOUNDS_TYPE_ROWS
	}
	return &pb.Expression{RexType: &pb.Expression_WindowFunction_{WindowFunction: &pb.Expression_WindowFunction{
		FunctionReference: e.anchor(x.Key),
		Arguments:         args,
		OutputType:        out,
		Phase:             pb.AggregationPhase_AGGREGATION_PHASE_INITIAL_TO_RESULT,
		Invocation:        invocation(x.Distinct),
		Partitions:        partitions,
		Sorts:             sorts,
		BoundsType:        boundsType,
		LowerBound:        encodeBound(x.LowerBound),
		UpperBound:        encodeBound(x.UpperBound),
	}}}, nil
}

func encodeBound(b plan.Bound) *pb.Expression_WindowFunction_Bound {
	switch b.Kind {
	case plan.BoundPreceding:
		return &pb.Expression_WindowFunction_Bound{Kind: &pb.Expression_WindowFunction_Bound_Preceding_{
			Preceding: &pb.Expression_WindowFunction_Bound_Preceding{Offset: b.Offset},
		}}
	case plan.BoundFollowing:
		return &pb.Expression_WindowFunction_Bound{Kind: &pb.Expression_WindowFunction_Bound_Following_{
			Following: &pb.Expression_WindowFunction_Bound_Following{Offset: b.Offset},
		}}
	case plan.BoundCurrentRow:
		return &pb.Expression_WindowFunction_Bound{Kind: &pb.Expression_WindowFunction_Bound_CurrentRow_{
			CurrentRow: &pb.Expression_WindowFunction_Bound_CurrentRow{},
		}}
	case plan.BoundUnbounded:
		return &pb.Expression_WindowFunction_Bound{Kind: &pb.Expression_WindowFunction_Bound_Unbounded_{
			Unbounded: &pb.Expression_WindowFunction_Bound_Unbounded{},
		}}
	}
	return nil
}

func encodeLiteral(l *plan.Literal) (*pb.Expression_Literal, error) {
	out := &pb.Expression_Literal{Nullable: l.Type.Nullable}
	if l.Value == nil {
		t, err := encodeType(l.Type)
		if err != nil {
			return nil, err
		}
		out.LiteralType = &pb.Expression_Literal_Null{Null: t}
		return out, nil
	}

	bad := func() error {
		return fmt.Errorf("encode literal: value %v (%T) does not fit type %s", l.Value, l.Value, l.Type)
	}
	switch l.Type.Kind {
	case types.KindBoolean:
		v, ok := l.Value.(bool)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_Boolean{Boolean: v}
	case types.KindI8:
		v, ok := l.Value.(int8)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_I8{I8: int32(v)}
	case types.KindI16:
		v, ok := l.Value.(int16)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_I16{I16: int32(v)}
	case types.KindI32:
		v, ok := l.Value.(int32)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_I32{I32: v}
	case types.KindI64:
		v, ok := l.Value.(int64)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_I64{I64: v}
	case types.KindFP32:
		v, ok := l.Value.(float32)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_Fp32{Fp32: v}
	case types.KindFP64:
		v, ok := l.Value.(float64)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_Fp64{Fp64: v}
	case types.KindString, types.KindVarChar, types.KindFixedChar:
		v, ok := l.Value.(string)
		if !ok {
			return nil, bad()
		}
		switch l.Type.Kind {
		case types.KindVarChar:
			out.LiteralType = &pb.Expression_Literal_VarChar_{VarChar: &pb.Expression_Literal_VarChar{Value: v, Length: uint32(l.Type.Length)}}
		case types.KindFixedChar:
			out.LiteralType = &pb.Expression_Literal_FixedChar{FixedChar: v}
		default:
			out.LiteralType = &pb.Expression_Literal_String_{String_: v}
		}
	case types.KindBinary, types.KindFixedBinary:
		v, ok := l.Value.([]byte)
		if !ok {
			return nil, bad()
		}
		if l.Type.Kind == types.KindFixedBinary {
			out.LiteralType = &pb.Expression_Literal_FixedBinary{FixedBinary: v}
		} else {
			out.LiteralType = &pb.Expression_Literal_Binary{Binary: v}
		}
	case types.KindDate:
		v, ok := l.Value.(int32)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_Date{Date: v}
	case types.KindTime:
		v, ok := l.Value.(int64)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_Time{Time: v}
	case types.KindTimestamp:
		v, ok := l.Value.(int64)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_Timestamp{Timestamp: v}
	case types.KindTimestampTZ:
		v, ok := l.Value.(int64)
		if !ok {
			return nil, bad()
		}
		out.LiteralType = &pb.Expression_Literal_TimestampTz{TimestampTz: v}
	default:
		return nil, fmt.Errorf("encode literal: unsupported type %s", l.Type)
	}
	return out, nil
}
