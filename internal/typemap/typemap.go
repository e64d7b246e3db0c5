// Package typemap maps plan types to SQL types and back.
//
// The mapping is a bijection on the types both sides can express. Types
// without a counterpart fail with a TYPE_MISMATCH conversion error.
package typemap

import (
	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/types"
)

// TimePrecision is the fractional-second precision of mapped time and
// timestamp types (microseconds).
const TimePrecision = 6

var simpleToSQL = map[types.Kind]optree.SQLTypeName{
	types.KindBoolean:      optree.TypeBoolean,
	types.KindI8:           optree.TypeTinyInt,
	types.KindI16:          optree.TypeSmallInt,
	types.KindI32:          optree.TypeInteger,
	types.KindI64:          optree.TypeBigInt,
	types.KindFP32:         optree.TypeReal,
	types.KindFP64:         optree.TypeDouble,
	types.KindDate:         optree.TypeDate,
	types.KindIntervalYear: optree.TypeIntervalYearMonth,
	types.KindIntervalDay:  optree.TypeIntervalDaySecond,
}

var simpleFromSQL = func() map[optree.SQLTypeName]types.Kind {
	m := make(map[optree.SQLTypeName]types.Kind, len(simpleToSQL))
	for k, n := range simpleToSQL {
		m[n] = k
	}
	return m
}()

// ToSQL maps a plan type to a SQL type.
func ToSQL(t types.Type) (optree.DataType, error) {
	if name, ok := simpleToSQL[t.Kind]; ok {
		return optree.NewType(name, t.Nullable), nil
	}

	switch t.Kind {
	case types.KindString:
		return optree.NewType(optree.TypeVarChar, t.Nullable), nil
	case types.KindVarChar:
		return optree.NewTypeWithPrecision(optree.TypeVarChar, t.Length, t.Nullable), nil
	case types.KindFixedChar:
		return optree.NewTypeWithPrecision(optree.TypeChar, t.Length, t.Nullable), nil
	case types.KindBinary:
		return optree.NewType(optree.TypeVarBinary, t.Nullable), nil
	case types.KindFixedBinary:
		return optree.NewTypeWithPrecision(optree.TypeBinary, t.Length, t.Nullable), nil
	case types.KindDecimal:
		return optree.NewDecimal(t.Precision, t.Scale, t.Nullable), nil
	case types.KindTime:
		return optree.NewTypeWithPrecision(optree.TypeTime, TimePrecision, t.Nullable), nil
	case types.KindTimestamp:
		return optree.NewTypeWithPrecision(optree.TypeTimestamp, TimePrecision, t.Nullable), nil
	case types.KindTimestampTZ:
		return optree.NewTypeWithPrecision(optree.TypeTimestampLTZ, TimePrecision, t.Nullable), nil
	}
	return optree.DataType{}, converr.TypeMismatch("plan type %s has no SQL counterpart", t)
}

// FromSQL maps a SQL type to a plan type.
func FromSQL(t optree.DataType) (types.Type, error) {
	if kind, ok := simpleFromSQL[t.Name]; ok {
		return types.Type{Kind: kind, Nullable: t.Nullable}, nil
	}

	out := types.Type{Nullable: t.Nullable}
	switch t.Name {
	case optree.TypeVarChar:
		if t.Precision == optree.PrecisionNotSpecified {
			out.Kind = types.KindString
		} else {
			out.Kind = types.KindVarChar
			out.Length = t.Precision
		}
		return out, nil
	case optree.TypeVarBinary:
		out.Kind = types.KindBinary
		return out, nil
	case optree.TypeChar, optree.TypeBinary:
		if t.Precision == optree.PrecisionNotSpecified {
			return types.Type{}, converr.TypeMismatch("SQL type %s needs a length", t)
		}
		out.Kind = types.KindFixedChar
		if t.Name == optree.TypeBinary {
			out.Kind = types.KindFixedBinary
		}
		out.Length = t.Precision
		return out, nil
	case optree.TypeDecimal:
		if t.Precision == optree.PrecisionNotSpecified {
			return types.Type{}, converr.TypeMismatch("SQL type %s needs a precision", t)
		}
		out.Kind = types.KindDecimal
		out.Precision = t.Precision
		out.Scale = t.Scale
		return out, nil
	case optree.TypeTime, optree.TypeTimestamp, optree.TypeTimestampLTZ:
		if t.Precision != TimePrecision && t.Precision != optree.PrecisionNotSpecified {
			return types.Type{}, converr.TypeMismatch("SQL type %s: only precision %d is supported", t, TimePrecision)
		}
		switch t.Name {
		case optree.TypeTime:
			out.Kind = types.KindTime
		case optree.TypeTimestamp:
			out.Kind = types.KindTimestamp
		default:
			out.Kind = types.KindTimestampTZ
		}
		return out, nil
	}
	return types.Type{}, converr.TypeMismatch("SQL type %s has no plan counterpart", t)
}

// ToSQLAll maps a list of plan types.
func ToSQLAll(ts []types.Type) ([]optree.DataType, error) {
	out := make([]optree.DataType, len(ts))
	for i, t := range ts {
		dt, err := ToSQL(t)
		if err != nil {
			return nil, err
		}
		out[i] = dt
	}
	return out, nil
}

// FromSQLAll maps a list of SQL types.
func FromSQLAll(ts []optree.DataType) ([]types.Type, error) {
	out := make([]types.Type, len(ts))
	for i, t := range ts {
		pt, err := FromSQL(t)
		if err != nil {
			return nil, err
		}
		out[i] = pt
	}
	return out, nil
}
