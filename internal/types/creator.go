package types

// Creator builds types of a fixed nullability.
type Creator struct {
	Nullable bool
}

var (
	// Required creates non-nullable types.
	Required = Creator{Nullable: false}

	// Nullable creates nullable types.
	Nullable = Creator{Nullable: true}
)

func (c Creator) of(k Kind) Type { return Type{Kind: k, Nullable: c.Nullable} }

func (c Creator) Bool() Type         { return c.of(KindBoolean) }
func (c Creator) I8() Type           { return c.of(KindI8) }
func (c Creator) I16() Type          { return c.of(KindI16) }
func (c Creator) I32() Type          { return c.of(KindI32) }
func (c Creator) I64() Type          { return c.of(KindI64) }
func (c Creator) FP32() Type         { return c.of(KindFP32) }
func (c Creator) FP64() Type         { return c.of(KindFP64) }
func (c Creator) Str() Type          { return c.of(KindString) }
func (c Creator) Binary() Type       { return c.of(KindBinary) }
func (c Creator) Date() Type         { return c.of(KindDate) }
func (c Creator) Time() Type         { return c.of(KindTime) }
func (c Creator) Timestamp() Type    { return c.of(KindTimestamp) }
func (c Creator) TimestampTZ() Type  { return c.of(KindTimestampTZ) }
func (c Creator) IntervalYear() Type { return c.of(KindIntervalYear) }
func (c Creator) IntervalDay() Type  { return c.of(KindIntervalDay) }
func (c Creator) UUID() Type         { return c.of(KindUUID) }

// FixedChar creates a fixedchar<n>.
func (c Creator) FixedChar(n int32) Type {
	t := c.of(KindFixedChar)
	t.Length = n
	return t
}

// VarChar creates a varchar<n>.
func (c Creator) VarChar(n int32) Type {
	t := c.of(KindVarChar)
	t.Length = n
	return t
}

// FixedBinary creates a fixedbinary<n>.
func (c Creator) FixedBinary(n int32) Type {
	t := c.of(KindFixedBinary)
	t.Length = n
	return t
}

// Decimal creates a decimal<precision,scale>.
func (c Creator) Decimal(precision, scale int32) Type {
	t := c.of(KindDecimal)
	t.Precision = precision
	t.Scale = scale
	return t
}
