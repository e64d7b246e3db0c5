// Package plan is the portable, serializable relational plan: relational
// operators over expressions whose functions are identified by catalog
// keys rather than symbols.
//
// Every relation may carry an emit remap. When Remap is non-nil, the
// relation outputs the fields of its direct output listed in Remap, in that
// order; a nil Remap emits the direct output unchanged.
package plan

import (
	"github.com/roach88/relbridge/internal/types"
)

// Rel is a relational operator.
//
// This is a sealed interface; only types in this package implement it.
// Consumers use exhaustive type switches over the relation types.
type Rel interface {
	rel()

	// RecordType returns the types of the emitted fields.
	RecordType() []types.Type

	// Inputs returns the child relations, left to right.
	Inputs() []Rel
}

// NamedStruct is a table schema: field names and their types.
type NamedStruct struct {
	Names []string
	Types []types.Type
}

// NamedScan reads the table Names (a qualified name) with schema Schema.
type NamedScan struct {
	Names  []string
	Schema NamedStruct
	Remap  []int
}

// Project appends one field per expression to its input's fields.
type Project struct {
	Input       Rel
	Expressions []Expression
	Remap       []int
}

// Filter keeps rows for which Condition is true.
type Filter struct {
	Input     Rel
	Condition Expression
	Remap     []int
}

// Grouping is one grouping set.
type Grouping struct {
	Expressions []Expression
}

// Measure is one aggregate output.
type Measure struct {
	Function AggregateCall
}

// Aggregate groups rows and computes measures per group.
//
// The direct output is the distinct grouping expressions, in order of first
// appearance across Groupings, followed by one field per measure. No
// groupings means a single global group.
type Aggregate struct {
	Input     Rel
	Groupings []Grouping
	Measures  []Measure
	Remap     []int
}

// JoinType is the kind of a join.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinOuter
	JoinLeft
	JoinRight
	JoinLeftSemi
	JoinLeftAnti
)

// String returns the join type name.
func (j JoinType) String() string {
	switch j {
	case JoinInner:
		return "inner"
	case JoinOuter:
		return "outer"
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	case JoinLeftSemi:
		return "left_semi"
	case JoinLeftAnti:
		return "left_anti"
	}
	return "unknown"
}

// Join combines two inputs. Condition and PostJoinFilter reference the
// concatenation of left and right fields.
type Join struct {
	Left           Rel
	Right          Rel
	Condition      Expression
	PostJoinFilter Expression
	Type           JoinType
	Remap          []int
}

// SortDirection orders one sort key.
type SortDirection int

const (
	AscNullsFirst SortDirection = iota
	AscNullsLast
	DescNullsFirst
	DescNullsLast
	Clustered
)

// SortField is one sort key.
type SortField struct {
	Expr      Expression
	Direction SortDirection
}

// Sort orders its input.
type Sort struct {
	Input Rel
	Sorts []SortField
	Remap []int
}

// CountAll is the Fetch count meaning "no limit".
const CountAll int64 = -1

// Fetch skips Offset rows and returns at most Count rows.
type Fetch struct {
	Input  Rel
	Offset int64
	Count  int64
	Remap  []int
}

func (*NamedScan) rel() {}
func (*Project) rel()   {}
func (*Filter) rel()    {}
func (*Aggregate) rel() {}
func (*Join) rel()      {}
func (*Sort) rel()      {}
func (*Fetch) rel()     {}

func (*NamedScan) Inputs() []Rel   { return nil }
func (p *Project) Inputs() []Rel   { return []Rel{p.Input} }
func (f *Filter) Inputs() []Rel    { return []Rel{f.Input} }
func (a *Aggregate) Inputs() []Rel { return []Rel{a.Input} }
func (j *Join) Inputs() []Rel      { return []Rel{j.Left, j.Right} }
func (s *Sort) Inputs() []Rel      { return []Rel{s.Input} }
func (f *Fetch) Inputs() []Rel     { return []Rel{f.Input} }

func (s *NamedScan) RecordType() []types.Type {
	return remap(append([]types.Type(nil), s.Schema.Types...), s.Remap)
}

func (p *Project) RecordType() []types.Type {
	out := append([]types.Type(nil), p.Input.RecordType()...)
	for _, e := range p.Expressions {
		out = append(out, e.ResultType())
	}
	return remap(out, p.Remap)
}

func (f *Filter) RecordType() []types.Type {
	return remap(f.Input.RecordType(), f.Remap)
}

func (a *Aggregate) RecordType() []types.Type {
	keys, _ := a.GroupingKeys()
	var out []types.Type
	for i, k := range keys {
		t := k.ResultType()
		if len(a.Groupings) > 1 && !a.inEverySet(i) {
			t = t.WithNullable(true)
		}
		out = append(out, t)
	}
	for _, m := range a.Measures {
		out = append(out, m.Function.OutputType)
	}
	return remap(out, a.Remap)
}

func (j *Join) RecordType() []types.Type {
	return remap(JoinRecordType(j.Left.RecordType(), j.Right.RecordType(), j.Type), j.Remap)
}

func (s *Sort) RecordType() []types.Type {
	return remap(s.Input.RecordType(), s.Remap)
}

func (f *Fetch) RecordType() []types.Type {
	return remap(f.Input.RecordType(), f.Remap)
}

// GroupingKeys returns the distinct grouping expressions in order of first
// appearance, and for each grouping set the positions of its expressions
// in that list.
func (a *Aggregate) GroupingKeys() ([]Expression, [][]int) {
	var keys []Expression
	sets := make([][]int, len(a.Groupings))
	for gi, g := range a.Groupings {
		set := make([]int, 0, len(g.Expressions))
		for _, e := range g.Expressions {
			pos := -1
			for ki, k := range keys {
				if ExprEqual(k, e) {
					pos = ki
					break
				}
			}
			if pos < 0 {
				pos = len(keys)
				keys = append(keys, e)
			}
			set = append(set, pos)
		}
		sets[gi] = set
	}
	return keys, sets
}

func (a *Aggregate) inEverySet(key int) bool {
	_, sets := a.GroupingKeys()
	for _, set := range sets {
		found := false
		for _, k := range set {
			if k == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// JoinRecordType derives the direct output types of a join.
func JoinRecordType(left, right []types.Type, jt JoinType) []types.Type {
	if jt == JoinLeftSemi || jt == JoinLeftAnti {
		return append([]types.Type(nil), left...)
	}
	out := make([]types.Type, 0, len(left)+len(right))
	for _, t := range left {
		if jt == JoinRight || jt == JoinOuter {
			t = t.WithNullable(true)
		}
		out = append(out, t)
	}
	for _, t := range right {
		if jt == JoinLeft || jt == JoinOuter {
			t = t.WithNullable(true)
		}
		out = append(out, t)
	}
	return out
}

// RemapOf returns the emit remap of a relation.
func RemapOf(r Rel) []int {
	switch r := r.(type) {
	case *NamedScan:
		return r.Remap
	case *Project:
		return r.Remap
	case *Filter:
		return r.Remap
	case *Aggregate:
		return r.Remap
	case *Join:
		return r.Remap
	case *Sort:
		return r.Remap
	case *Fetch:
		return r.Remap
	}
	return nil
}

// DirectRecordType returns the types of a relation's output before its
// emit remap is applied.
func DirectRecordType(r Rel) []types.Type {
	switch r := r.(type) {
	case *NamedScan:
		c := *r
		c.Remap = nil
		return c.RecordType()
	case *Project:
		c := *r
		c.Remap = nil
		return c.RecordType()
	case *Filter:
		return r.Input.RecordType()
	case *Aggregate:
		c := *r
		c.Remap = nil
		return c.RecordType()
	case *Join:
		return JoinRecordType(r.Left.RecordType(), r.Right.RecordType(), r.Type)
	case *Sort:
		return r.Input.RecordType()
	case *Fetch:
		return r.Input.RecordType()
	}
	return nil
}

// remap selects fields by index. Out-of-range indexes yield the zero type;
// converters reject such remaps before relying on the result.
func remap(ts []types.Type, indexes []int) []types.Type {
	if indexes == nil {
		return ts
	}
	out := make([]types.Type, len(indexes))
	for i, idx := range indexes {
		if idx >= 0 && idx < len(ts) {
			out[i] = ts[idx]
		}
	}
	return out
}

// Root is a top-level relation with the names of its output fields.
type Root struct {
	Input Rel
	Names []string
}

// Plan is a list of root relations.
type Plan struct {
	Relations []Root
}
