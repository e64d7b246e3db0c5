// Package optree is the in-memory relational tree consumed by the query
// optimizer: logical relational operators over row expressions whose
// functions are operator symbols.
//
// Nodes are plain structs; a conversion builds a fresh tree and never
// shares nodes with its input.
package optree

// RelNode is a relational operator.
//
// This is a sealed interface; only types in this package implement it.
// Consumers use exhaustive type switches over the node types.
type RelNode interface {
	relNode()

	// Row returns the row type the node produces.
	Row() RowType

	// Inputs returns the child nodes, left to right.
	Inputs() []RelNode
}

// TableScan reads a named table.
type TableScan struct {
	Table   []string
	RowType RowType
}

// Project computes one output field per expression.
type Project struct {
	Input   RelNode
	Exprs   []RexNode
	RowType RowType
}

// Filter keeps rows for which Condition is true.
type Filter struct {
	Input     RelNode
	Condition RexNode
}

// Aggregate groups rows by GroupKeys and computes Calls per group.
//
// The output is the group key fields in GroupKeys order, followed by one
// field per call. GroupSets lists the grouping sets as subsets of
// GroupKeys; a single empty set is a global aggregate.
type Aggregate struct {
	Input     RelNode
	GroupKeys []int
	GroupSets [][]int
	Calls     []AggregateCall
	RowType   RowType
}

// AggregateCall is an aggregate function over input fields.
type AggregateCall struct {
	Op       *Operator
	Args     []int
	Distinct bool
	Type     DataType
	Name     string
}

// JoinType is the kind of a join.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinSemi
	JoinAnti
)

// String returns the lower-case join type name.
func (j JoinType) String() string {
	switch j {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	case JoinFull:
		return "full"
	case JoinSemi:
		return "semi"
	case JoinAnti:
		return "anti"
	}
	return "unknown"
}

// Join combines two inputs. Condition references the concatenation of the
// left and right rows.
type Join struct {
	Left      RelNode
	Right     RelNode
	Condition RexNode
	Type      JoinType
	RowType   RowType
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
	Clustered
)

// NullDirection places nulls in a sort.
type NullDirection int

const (
	NullsUnspecified NullDirection = iota
	NullsFirst
	NullsLast
)

// FieldCollation orders rows by an input field.
type FieldCollation struct {
	Field         int
	Direction     Direction
	NullDirection NullDirection
}

// Sort orders its input and optionally skips and limits rows. A Sort with
// an empty collation only applies Offset and Fetch.
type Sort struct {
	Input     RelNode
	Collation []FieldCollation
	Offset    *int64
	Fetch     *int64
}

func (*TableScan) relNode() {}
func (*Project) relNode()   {}
func (*Filter) relNode()    {}
func (*Aggregate) relNode() {}
func (*Join) relNode()      {}
func (*Sort) relNode()      {}

func (s *TableScan) Row() RowType { return s.RowType }
func (p *Project) Row() RowType   { return p.RowType }
func (f *Filter) Row() RowType    { return f.Input.Row() }
func (a *Aggregate) Row() RowType { return a.RowType }
func (j *Join) Row() RowType      { return j.RowType }
func (s *Sort) Row() RowType      { return s.Input.Row() }

func (*TableScan) Inputs() []RelNode   { return nil }
func (p *Project) Inputs() []RelNode   { return []RelNode{p.Input} }
func (f *Filter) Inputs() []RelNode    { return []RelNode{f.Input} }
func (a *Aggregate) Inputs() []RelNode { return []RelNode{a.Input} }
func (j *Join) Inputs() []RelNode      { return []RelNode{j.Left, j.Right} }
func (s *Sort) Inputs() []RelNode      { return []RelNode{s.Input} }

// JoinRowType derives the row type of a join of left and right.
func JoinRowType(left, right RowType, jt JoinType) RowType {
	if jt == JoinSemi || jt == JoinAnti {
		return RowType{Fields: append([]Field(nil), left.Fields...)}
	}
	fields := make([]Field, 0, len(left.Fields)+len(right.Fields))
	for _, f := range left.Fields {
		if jt == JoinRight || jt == JoinFull {
			f.Type = f.Type.WithNullable(true)
		}
		fields = append(fields, f)
	}
	for _, f := range right.Fields {
		if jt == JoinLeft || jt == JoinFull {
			f.Type = f.Type.WithNullable(true)
		}
		fields = append(fields, f)
	}
	return RowType{Fields: fields}
}

// Root is a converted query: a tree plus the names of its output fields.
type Root struct {
	Rel   RelNode
	Names []string
}
