package wire

import (
	"fmt"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"

	"github.com/roach88/relbridge/internal/types"
)

func nullability(nullable bool) pb.Type_Nullability {
	if nullable {
		return pb.Type_NULLABILITY_NULLABLE
	}
	return pb.Type_NULLABILITY_REQUIRED
}

func isNullable(n pb.Type_Nullability) bool {
	return n == pb.Type_NULLABILITY_NULLABLE
}

func encodeType(t types.Type) (*pb.Type, error) {
	n := nullability(t.Nullable)
	switch t.Kind {
	case types.KindBoolean:
		return &pb.Type{Kind: &pb.Type_Bool{Bool: &pb.Type_Boolean{Nullability: n}}}, nil
	case types.KindI8:
		return &pb.Type{Kind: &pb.Type_I8_{I8: &pb.Type_I8{Nullability: n}}}, nil
	case types.KindI16:
		return &pb.Type{Kind: &pb.Type_I16_{I16: &pb.Type_I16{Nullability: n}}}, nil
	case types.KindI32:
		return &pb.Type{Kind: &pb.Type_I32_{I32: &pb.Type_I32{Nullability: n}}}, nil
	case types.KindI64:
		return &pb.Type{Kind: &pb.Type_I64_{I64: &pb.Type_I64{Nullability: n}}}, nil
	case types.KindFP32:
		return &pb.Type{Kind: &pb.Type_Fp32{Fp32: &pb.Type_FP32{Nullability: n}}}, nil
	case types.KindFP64:
		return &pb.Type{Kind: &pb.Type_Fp64{Fp64: &pb.Type_FP64{Nullability: n}}}, nil
	case types.KindString:
		return &pb.Type{Kind: &pb.Type_String_{String_: &pb.Type_String{Nullability: n}}}, nil
	case types.KindBinary:
		return &pb.Type{Kind: &pb.Type_Binary_{Binary: &pb.Type_Binary{Nullability: n}}}, nil
	case types.KindDate:
		return &pb.Type{Kind: &pb.Type_Date_{Date: &pb.Type_Date{Nullability: n}}}, nil
	case types.KindTime:
		return &pb.Type{Kind: &pb.Type_Time_{Time: &pb.Type_Time{Nullability: n}}}, nil
	case types.KindTimestamp:
		return &pb.Type{Kind: &pb.Type_Timestamp_{Timestamp: &pb.Type_Timestamp{Nullability: n}}}, nil
	case types.KindTimestampTZ:
		return &pb.Type{Kind: &pb.Type_TimestampTz{TimestampTz: &pb.Type_TimestampTZ{Nullability: n}}}, nil
	case types.KindIntervalYear:
		return &pb.Type{Kind: &pb.Type_IntervalYear_{IntervalYear: &pb.Type_IntervalYear{Nullability: n}}}, nil
	case types.KindIntervalDay:
		return &pb.Type{Kind: &pb.Type_IntervalDay_{IntervalDay: &pb.Type_IntervalDay{Nullability: n}}}, nil
	case types.KindUUID:
		return &pb.Type{Kind: &pb.Type_Uuid{Uuid: &pb.Type_UUID{Nullability: n}}}, nil
	case types.KindFixedChar:
		return &pb.Type{Kind: &pb.Type_FixedChar_{FixedChar: &pb.Type_FixedChar{Length: t.Length, Nullability: n}}}, nil
	case types.KindVarChar:
		return &pb.Type{Kind: &pb.Type_Varchar{Varchar: &pb.Type_VarChar{Length: t.Length, Nullability: n}}}, nil
	case types.KindFixedBinary:
		return &pb.Type{Kind: &pb.Type_FixedBinary_{FixedBinary: &pb.Type_FixedBinary{Length: t.Length, Nullability: n}}}, nil
	case types.KindDecimal:
		return &pb.Type{Kind: &pb.Type_Decimal_{Decimal: &pb.Type_Decimal{Precision: t.Precision, Scale: t.Scale, Nullability: n}}}, nil
	}
	return nil, fmt.Errorf("encode type %s: unsupported kind", t)
}

func encodeTypes(ts []types.Type) ([]*pb.Type, error) {
	out := make([]*pb.Type, len(ts))
	for i, t := range ts {
		pt, err := encodeType(t)
		if err != nil {
			return nil, err
		}
		out[i] = pt
	}
	return out, nil
}

func decodeType(t *pb.Type) (types.Type, error) {
	if t == nil {
		return types.Type{}, fmt.Errorf("decode type: missing type")
	}
	switch k := t.Kind.(type) {
	case *pb.Type_Bool:
		return types.Type{Kind: types.KindBoolean, Nullable: isNullable(k.Bool.GetNullability())}, nil
	case *pb.Type_I8_:
		return types.Type{Kind: types.KindI8, Nullable: isNullable(k.I8.GetNullability())}, nil
	case *pb.Type_I16_:
		return types.Type{Kind: types.KindI16, Nullable: isNullable(k.I16.GetNullability())}, nil
	case *pb.Type_I32_:
		return types.Type{Kind: types.KindI32, Nullable: isNullable(k.I32.GetNullability())}, nil
	case *pb.Type_I64_:
		return types.Type{Kind: types.KindI64, Nullable: isNullable(k.I64.GetNullability())}, nil
	case *pb.Type_Fp32:
		return types.Type{Kind: types.KindFP32, Nullable: isNullable(k.Fp32.GetNullability())}, nil
	case *pb.Type_Fp64:
		return types.Type{Kind: types.KindFP64, Nullable: isNullable(k.Fp64.GetNullability())}, nil
	case *pb.Type_String_:
		return types.Type{Kind: types.KindString, Nullable: isNullable(k.String_.GetNullability())}, nil
	case *pb.Type_Binary_:
		return types.Type{Kind: types.KindBinary, Nullable: isNullable(k.Binary.GetNullability())}, nil
	case *pb.Type_Date_:
		return types.Type{Kind: types.KindDate, Nullable: isNullable(k.Date.GetNullability())}, nil
	case *pb.Type_Time_:
		return types.Type{Kind: types.KindTime, Nullable: isNullable(k.Time.GetNullability())}, nil
	case *pb.Type_Timestamp_:
		return types.Type{Kind: types.KindTimestamp, Nullable: isNullable(k.Timestamp.GetNullability())}, nil
	case *pb.Type_TimestampTz:
		return types.Type{Kind: types.KindTimestampTZ, Nullable: isNullable(k.TimestampTz.GetNullability())}, nil
	case *pb.Type_IntervalYear_:
		return types.Type{Kind: types.KindIntervalYear, Nullable: isNullable(k.IntervalYear.GetNullability())}, nil
	case *pb.Type_IntervalDay_:
		return types.Type{Kind: types.KindIntervalDay, Nullable: isNullable(k.IntervalDay.GetNullability())}, nil
	case *pb.Type_Uuid:
		return types.Type{Kind: types.KindUUID, Nullable: isNullable(k.Uuid.GetNullability())}, nil
	case *pb.Type_FixedChar_:
		return types.Type{Kind: types.KindFixedChar, Length: k.FixedChar.GetLength(), Nullable: isNullable(k.FixedChar.GetNullability())}, nil
	case *pb.Type_Varchar:
		return types.Type{Kind: types.KindVarChar, Length: k.Varchar.GetLength(), Nullable: isNullable(k.Varchar.GetNullability())}, nil
	case *pb.Type_FixedBinary_:
		return types.Type{Kind: types.KindFixedBinary, Length: k.FixedBinary.GetLength(), Nullable: isNullable(k.FixedBinary.GetNullability())}, nil
	case *pb.Type_Decimal_:
		return types.Type{
			Kind:      types.KindDecimal,
			Precision: k.Decimal.GetPrecision(),
			Scale:     k.Decimal.GetScale(),
			Nullable:  isNullable(k.Decimal.GetNullability()),
		}, nil
	}
	return types.Type{}, fmt.Errorf("decode type: unsupported kind %T", t.Kind)
}

func decodeTypes(ts []*pb.Type) ([]types.Type, error) {
	out := make([]types.Type, len(ts))
	for i, t := range ts {
		dt, err := decodeType(t)
		if err != nil {
			return nil, err
		}
		out[i] = dt
	}
	return out, nil
}
