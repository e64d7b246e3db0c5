package optree

// RexNode is a row expression.
//
// This is a sealed interface; only types in this package implement it.
// Calls identify their function by *Operator, never by catalog key.
type RexNode interface {
	rexNode()
	DataType() DataType
}

// InputRef references field Index of the input row.
type InputRef struct {
	Index int
	Type  DataType
}

// Literal is a constant. A nil Value is SQL NULL.
type Literal struct {
	Value any
	Type  DataType
}

// Call applies an operator to operands.
//
// CAST is a Call to Cast with one operand; the target is the call type.
// CASE is a Call to Case with operands (cond1, val1, ..., condN, valN, else).
type Call struct {
	Op       *Operator
	Operands []RexNode
	Type     DataType
}

// Over is a windowed aggregate call.
type Over struct {
	Op       *Operator
	Operands []RexNode
	Type     DataType
	Window   Window
	Distinct bool
}

// Window is the window specification of an Over.
type Window struct {
	PartitionKeys []RexNode
	OrderKeys     []RexFieldCollation
	Lower         WindowBound
	Upper         WindowBound
	Rows          bool // ROWS framing; RANGE otherwise
}

// RexFieldCollation orders window rows by an expression.
type RexFieldCollation struct {
	Expr          RexNode
	Direction     Direction
	NullDirection NullDirection
}

// BoundKind is the kind of a window frame bound.
type BoundKind int

const (
	BoundUnspecified BoundKind = iota
	BoundUnboundedPreceding
	BoundPreceding
	BoundCurrentRow
	BoundFollowing
	BoundUnboundedFollowing
)

// WindowBound is one end of a window frame.
type WindowBound struct {
	Kind   BoundKind
	Offset int64 // for BoundPreceding and BoundFollowing
}

func (*InputRef) rexNode() {}
func (*Literal) rexNode()  {}
func (*Call) rexNode()     {}
func (*Over) rexNode()     {}

func (r *InputRef) DataType() DataType { return r.Type }
func (l *Literal) DataType() DataType  { return l.Type }
func (c *Call) DataType() DataType     { return c.Type }
func (o *Over) DataType() DataType     { return o.Type }

// NewCall builds a call whose type is inferred by the operator. It returns
// false when the operator has no return type inference.
func NewCall(op *Operator, operands ...RexNode) (*Call, bool) {
	if op.ReturnType == nil {
		return nil, false
	}
	types := make([]DataType, len(operands))
	for i, o := range operands {
		types[i] = o.DataType()
	}
	return &Call{Op: op, Operands: operands, Type: op.ReturnType(types)}, true
}

// OperandTypes returns the types of a list of expressions.
func OperandTypes(operands []RexNode) []DataType {
	out := make([]DataType, len(operands))
	for i, o := range operands {
		out[i] = o.DataType()
	}
	return out
}
