package optree

// Syntax controls how a call to an operator is written.
type Syntax int

const (
	SyntaxFunction Syntax = iota
	SyntaxBinary
	SyntaxPrefix
	SyntaxPostfix
	SyntaxSpecial
)

// FuncKind is the invocation class of an operator.
type FuncKind int

const (
	FuncScalar FuncKind = iota
	FuncAggregate
	FuncWindow
)

// Category distinguishes built-in operators from user-defined ones.
type Category int

const (
	CategorySystem Category = iota
	CategoryUserDefined
)

// ReturnTypeInference derives a call's type from its operand types.
type ReturnTypeInference func(operands []DataType) DataType

// Explicit returns an inference that always yields t, made nullable when
// any operand is nullable.
func Explicit(t DataType) ReturnTypeInference {
	return func(operands []DataType) DataType {
		nullable := t.Nullable
		for _, o := range operands {
			nullable = nullable || o.Nullable
		}
		return t.WithNullable(nullable)
	}
}

// Operator is a symbol in the expression tree. Operators are compared by
// pointer: two operators with the same name are different symbols.
type Operator struct {
	Name       string
	Kind       string // e.g. "PLUS", "OTHER_FUNCTION"
	Syntax     Syntax
	Func       FuncKind
	Category   Category
	ReturnType ReturnTypeInference
}

// String returns the operator name.
func (o *Operator) String() string {
	if o == nil {
		return "<nil>"
	}
	return o.Name
}

// IsAggregate reports whether calls to o aggregate rows.
func (o *Operator) IsAggregate() bool {
	return o.Func == FuncAggregate || o.Func == FuncWindow
}

// NewFunction creates a user-defined scalar function operator.
func NewFunction(name string, ret ReturnTypeInference) *Operator {
	return &Operator{
		Name:       name,
		Kind:       "OTHER_FUNCTION",
		Syntax:     SyntaxFunction,
		Func:       FuncScalar,
		Category:   CategoryUserDefined,
		ReturnType: ret,
	}
}

// NewAggFunction creates a user-defined aggregate function operator.
func NewAggFunction(name string, ret ReturnTypeInference) *Operator {
	op := NewFunction(name, ret)
	op.Func = FuncAggregate
	return op
}

// NewWindowFunction creates a user-defined window function operator.
func NewWindowFunction(name string, ret ReturnTypeInference) *Operator {
	op := NewFunction(name, ret)
	op.Func = FuncWindow
	return op
}

func std(name, kind string, syntax Syntax, fn FuncKind) *Operator {
	return &Operator{Name: name, Kind: kind, Syntax: syntax, Func: fn, Category: CategorySystem}
}

// Standard operators.
var (
	Plus               = std("+", "PLUS", SyntaxBinary, FuncScalar)
	Minus              = std("-", "MINUS", SyntaxBinary, FuncScalar)
	Multiply           = std("*", "TIMES", SyntaxBinary, FuncScalar)
	Divide             = std("/", "DIVIDE", SyntaxBinary, FuncScalar)
	Mod                = std("MOD", "MOD", SyntaxFunction, FuncScalar)
	UnaryMinus         = std("-", "MINUS_PREFIX", SyntaxPrefix, FuncScalar)
	Abs                = std("ABS", "OTHER_FUNCTION", SyntaxFunction, FuncScalar)
	Equals             = std("=", "EQUALS", SyntaxBinary, FuncScalar)
	NotEquals          = std("<>", "NOT_EQUALS", SyntaxBinary, FuncScalar)
	LessThan           = std("<", "LESS_THAN", SyntaxBinary, FuncScalar)
	GreaterThan        = std(">", "GREATER_THAN", SyntaxBinary, FuncScalar)
	LessThanOrEqual    = std("<=", "LESS_THAN_OR_EQUAL", SyntaxBinary, FuncScalar)
	GreaterThanOrEqual = std(">=", "GREATER_THAN_OR_EQUAL", SyntaxBinary, FuncScalar)
	And                = std("AND", "AND", SyntaxBinary, FuncScalar)
	Or                 = std("OR", "OR", SyntaxBinary, FuncScalar)
	Not                = std("NOT", "NOT", SyntaxPrefix, FuncScalar)
	IsNull             = std("IS NULL", "IS_NULL", SyntaxPostfix, FuncScalar)
	IsNotNull          = std("IS NOT NULL", "IS_NOT_NULL", SyntaxPostfix, FuncScalar)
	Like               = std("LIKE", "LIKE", SyntaxSpecial, FuncScalar)
	Upper              = std("UPPER", "OTHER_FUNCTION", SyntaxFunction, FuncScalar)
	Lower              = std("LOWER", "OTHER_FUNCTION", SyntaxFunction, FuncScalar)
	Concat             = std("||", "OTHER", SyntaxBinary, FuncScalar)
	CharLength         = std("CHAR_LENGTH", "OTHER_FUNCTION", SyntaxFunction, FuncScalar)
	Substring          = std("SUBSTRING", "OTHER_FUNCTION", SyntaxFunction, FuncScalar)
	Cast               = std("CAST", "CAST", SyntaxSpecial, FuncScalar)
	Case               = std("CASE", "CASE", SyntaxSpecial, FuncScalar)

	Sum   = std("SUM", "SUM", SyntaxFunction, FuncAggregate)
	Count = std("COUNT", "COUNT", SyntaxFunction, FuncAggregate)
	Min   = std("MIN", "MIN", SyntaxFunction, FuncAggregate)
	Max   = std("MAX", "MAX", SyntaxFunction, FuncAggregate)
	Avg   = std("AVG", "AVG", SyntaxFunction, FuncAggregate)

	RowNumber = std("ROW_NUMBER", "ROW_NUMBER", SyntaxFunction, FuncWindow)
	Rank      = std("RANK", "RANK", SyntaxFunction, FuncWindow)
	DenseRank = std("DENSE_RANK", "DENSE_RANK", SyntaxFunction, FuncWindow)
	Lag       = std("LAG", "LAG", SyntaxFunction, FuncWindow)
	Lead      = std("LEAD", "LEAD", SyntaxFunction, FuncWindow)
)

// StdOperators returns the standard operator table.
func StdOperators() []*Operator {
	return []*Operator{
		Plus, Minus, Multiply, Divide, Mod, UnaryMinus, Abs,
		Equals, NotEquals, LessThan, GreaterThan, LessThanOrEqual, GreaterThanOrEqual,
		And, Or, Not, IsNull, IsNotNull, Like,
		Upper, Lower, Concat, CharLength, Substring, Cast, Case,
		Sum, Count, Min, Max, Avg,
		RowNumber, Rank, DenseRank, Lag, Lead,
	}
}
