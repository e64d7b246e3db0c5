package optree

import (
	"fmt"
	"strings"
)

// SQLTypeName names a SQL type.
type SQLTypeName int

const (
	TypeUnknown SQLTypeName = iota
	TypeBoolean
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeReal
	TypeDouble
	TypeDecimal
	TypeChar
	TypeVarChar
	TypeBinary
	TypeVarBinary
	TypeDate
	TypeTime
	TypeTimestamp
	TypeTimestampLTZ
	TypeIntervalYearMonth
	TypeIntervalDaySecond
	TypeAny
	TypeSymbol
	TypeNull
)

var typeNames = map[SQLTypeName]string{
	TypeBoolean:           "BOOLEAN",
	TypeTinyInt:           "TINYINT",
	TypeSmallInt:          "SMALLINT",
	TypeInteger:           "INTEGER",
	TypeBigInt:            "BIGINT",
	TypeReal:              "REAL",
	TypeDouble:            "DOUBLE",
	TypeDecimal:           "DECIMAL",
	TypeChar:              "CHAR",
	TypeVarChar:           "VARCHAR",
	TypeBinary:            "BINARY",
	TypeVarBinary:         "VARBINARY",
	TypeDate:              "DATE",
	TypeTime:              "TIME",
	TypeTimestamp:         "TIMESTAMP",
	TypeTimestampLTZ:      "TIMESTAMP_WITH_LOCAL_TIME_ZONE",
	TypeIntervalYearMonth: "INTERVAL_YEAR_MONTH",
	TypeIntervalDaySecond: "INTERVAL_DAY_SECOND",
	TypeAny:               "ANY",
	TypeSymbol:            "SYMBOL",
	TypeNull:              "NULL",
}

// String returns the SQL spelling of the type name.
func (n SQLTypeName) String() string {
	if s, ok := typeNames[n]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseTypeName looks up a type name by its SQL spelling.
func ParseTypeName(s string) (SQLTypeName, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for n, name := range typeNames {
		if name == s {
			return n, true
		}
	}
	return TypeUnknown, false
}

// PrecisionNotSpecified marks a type without a precision or length.
const PrecisionNotSpecified = -1

// DataType is a SQL type with its parameters and nullability.
type DataType struct {
	Name      SQLTypeName
	Precision int32 // length for character and binary types
	Scale     int32
	Nullable  bool
}

// NewType creates a type without precision.
func NewType(name SQLTypeName, nullable bool) DataType {
	return DataType{Name: name, Precision: PrecisionNotSpecified, Nullable: nullable}
}

// NewTypeWithPrecision creates a type with a precision or length.
func NewTypeWithPrecision(name SQLTypeName, precision int32, nullable bool) DataType {
	return DataType{Name: name, Precision: precision, Nullable: nullable}
}

// NewDecimal creates a DECIMAL(precision, scale).
func NewDecimal(precision, scale int32, nullable bool) DataType {
	return DataType{Name: TypeDecimal, Precision: precision, Scale: scale, Nullable: nullable}
}

// WithNullable returns a copy of t with the given nullability.
func (t DataType) WithNullable(nullable bool) DataType {
	t.Nullable = nullable
	return t
}

// String renders the type, e.g. "VARCHAR(10) NOT NULL" or "DECIMAL(10, 2)".
func (t DataType) String() string {
	var b strings.Builder
	b.WriteString(t.Name.String())
	switch {
	case t.Name == TypeDecimal:
		fmt.Fprintf(&b, "(%d, %d)", t.Precision, t.Scale)
	case t.Precision != PrecisionNotSpecified:
		fmt.Fprintf(&b, "(%d)", t.Precision)
	}
	if !t.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// Field is a named column of a row type.
type Field struct {
	Name string
	Type DataType
}

// RowType is the ordered list of fields a relation produces.
type RowType struct {
	Fields []Field
}

// NewRowType builds a row type from parallel name and type lists.
func NewRowType(names []string, types []DataType) RowType {
	fields := make([]Field, len(types))
	for i, t := range types {
		name := fmt.Sprintf("$f%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		fields[i] = Field{Name: name, Type: t}
	}
	return RowType{Fields: fields}
}

// FieldCount returns the number of fields.
func (r RowType) FieldCount() int { return len(r.Fields) }

// Names returns the field names.
func (r RowType) Names() []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Name
	}
	return out
}

// Types returns the field types.
func (r RowType) Types() []DataType {
	out := make([]DataType, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Type
	}
	return out
}

// String renders the row type as "RecordType(BIGINT a, VARCHAR b)".
func (r RowType) String() string {
	parts := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		parts[i] = f.Type.String() + " " + f.Name
	}
	return "RecordType(" + strings.Join(parts, ", ") + ")"
}
