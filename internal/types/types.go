// Package types defines the type system of the portable plan format.
//
// A Type is a small comparable value: a Kind, a nullability flag and the
// parameters some kinds carry (length for fixed/variable character and
// binary kinds, precision and scale for decimals). Types compare with ==.
//
// Each kind has a short name used in function signature suffixes, e.g. the
// scalar function add over two i64 arguments is keyed "add:i64_i64".
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a plan type.
type Kind int

const (
	KindUnknown Kind = iota
	KindBoolean
	KindI8
	KindI16
	KindI32
	KindI64
	KindFP32
	KindFP64
	KindString
	KindBinary
	KindDate
	KindTime
	KindTimestamp
	KindTimestampTZ
	KindIntervalYear
	KindIntervalDay
	KindUUID
	KindFixedChar
	KindVarChar
	KindFixedBinary
	KindDecimal
)

type kindInfo struct {
	name  string // rendered name, also accepted by Parse
	short string // signature suffix token
}

var kindInfos = map[Kind]kindInfo{
	KindBoolean:      {"boolean", "bool"},
	KindI8:           {"i8", "i8"},
	KindI16:          {"i16", "i16"},
	KindI32:          {"i32", "i32"},
	KindI64:          {"i64", "i64"},
	KindFP32:         {"fp32", "fp32"},
	KindFP64:         {"fp64", "fp64"},
	KindString:       {"string", "str"},
	KindBinary:       {"binary", "vbin"},
	KindDate:         {"date", "date"},
	KindTime:         {"time", "time"},
	KindTimestamp:    {"timestamp", "ts"},
	KindTimestampTZ:  {"timestamp_tz", "tstz"},
	KindIntervalYear: {"interval_year", "iyear"},
	KindIntervalDay:  {"interval_day", "iday"},
	KindUUID:         {"uuid", "uuid"},
	KindFixedChar:    {"fixedchar", "fchar"},
	KindVarChar:      {"varchar", "vchar"},
	KindFixedBinary:  {"fixedbinary", "fbin"},
	KindDecimal:      {"decimal", "dec"},
}

// kindsByName indexes every accepted spelling, both rendered and short.
var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, 2*len(kindInfos)+2)
	for k, info := range kindInfos {
		m[info.name] = k
		m[info.short] = k
	}
	m["bool"] = KindBoolean
	m["timestamptz"] = KindTimestampTZ
	return m
}()

// String returns the rendered kind name.
func (k Kind) String() string {
	if info, ok := kindInfos[k]; ok {
		return info.name
	}
	return "unknown"
}

// ShortName returns the signature suffix token for the kind.
func (k Kind) ShortName() string {
	if info, ok := kindInfos[k]; ok {
		return info.short
	}
	return "unknown"
}

// Parameterized reports whether the kind carries a length or precision.
func (k Kind) Parameterized() bool {
	switch k {
	case KindFixedChar, KindVarChar, KindFixedBinary, KindDecimal:
		return true
	}
	return false
}

// IsInteger reports whether the kind is a signed integer.
func (k Kind) IsInteger() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64:
		return true
	}
	return false
}

// IsNumeric reports whether the kind is an integer, floating point or decimal.
func (k Kind) IsNumeric() bool {
	return k.IsInteger() || k == KindFP32 || k == KindFP64 || k == KindDecimal
}

// IsString reports whether the kind holds character data.
func (k Kind) IsString() bool {
	return k == KindString || k == KindVarChar || k == KindFixedChar
}

// IsTemporal reports whether the kind is a date, time or timestamp.
func (k Kind) IsTemporal() bool {
	switch k {
	case KindDate, KindTime, KindTimestamp, KindTimestampTZ:
		return true
	}
	return false
}

// Type is a plan type.
type Type struct {
	Kind     Kind
	Nullable bool

	// Length applies to fixedchar, varchar and fixedbinary.
	Length int32

	// Precision and Scale apply to decimal.
	Precision int32
	Scale     int32
}

// ShortName returns the signature suffix token of t.
func (t Type) ShortName() string {
	return t.Kind.ShortName()
}

// WithNullable returns a copy of t with the given nullability.
func (t Type) WithNullable(nullable bool) Type {
	t.Nullable = nullable
	return t
}

// String renders t, e.g. "i64", "string?", "varchar<10>", "decimal<10,2>".
func (t Type) String() string {
	var b strings.Builder
	b.WriteString(t.Kind.String())
	switch t.Kind {
	case KindFixedChar, KindVarChar, KindFixedBinary:
		fmt.Fprintf(&b, "<%d>", t.Length)
	case KindDecimal:
		fmt.Fprintf(&b, "<%d,%d>", t.Precision, t.Scale)
	}
	if t.Nullable {
		b.WriteByte('?')
	}
	return b.String()
}

// Parse parses a rendered type. Names are case-insensitive, a trailing "?"
// marks the type nullable, and parameters in angle brackets may be numbers
// or placeholders (e.g. "varchar<L1>"), which leave the parameter zero.
func Parse(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Type{}, fmt.Errorf("empty type")
	}

	var t Type
	if strings.HasSuffix(s, "?") {
		t.Nullable = true
		s = strings.TrimSuffix(s, "?")
	}

	name, params := s, ""
	if i := strings.IndexByte(s, '<'); i >= 0 {
		if !strings.HasSuffix(s, ">") {
			return Type{}, fmt.Errorf("unterminated parameters in type %q", s)
		}
		name, params = s[:i], s[i+1:len(s)-1]
	}
	// Nullability may also precede the parameters: "varchar?<10>".
	if strings.HasSuffix(name, "?") {
		t.Nullable = true
		name = strings.TrimSuffix(name, "?")
	}

	kind, ok := kindsByName[strings.ToLower(name)]
	if !ok {
		return Type{}, fmt.Errorf("unknown type %q", name)
	}
	t.Kind = kind

	if params == "" {
		return t, nil
	}
	if !kind.Parameterized() {
		return Type{}, fmt.Errorf("type %q takes no parameters", name)
	}

	parts := strings.Split(params, ",")
	switch kind {
	case KindDecimal:
		if len(parts) != 2 {
			return Type{}, fmt.Errorf("decimal takes precision and scale, got %q", params)
		}
		t.Precision = parseParam(parts[0])
		t.Scale = parseParam(parts[1])
	default:
		if len(parts) != 1 {
			return Type{}, fmt.Errorf("%s takes one length, got %q", name, params)
		}
		t.Length = parseParam(parts[0])
	}
	return t, nil
}

// MustParse is like Parse but panics on error. For tests and static tables.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// KindByName looks up a kind by rendered or short name.
func KindByName(name string) (Kind, bool) {
	k, ok := kindsByName[strings.ToLower(name)]
	return k, ok
}

func parseParam(s string) int32 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}

// Strings renders a list of types.
func Strings(ts []Type) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
