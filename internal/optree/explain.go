package optree

import (
	"fmt"
	"strconv"
	"strings"
)

// Explain renders a tree one node per line, children indented by two
// spaces, in the style of a logical plan dump.
func Explain(rel RelNode) string {
	var b strings.Builder
	explain(&b, rel, 0)
	return b.String()
}

// ExplainRoots renders each root as a header line naming its output
// fields followed by its tree. Roots are separated by a blank line.
func ExplainRoots(roots []Root) string {
	var b strings.Builder
	for i, r := range roots {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Root(index=[%d], names=[%s])\n", i, strings.Join(r.Names, ", "))
		explain(&b, r.Rel, 1)
	}
	return b.String()
}

func explain(b *strings.Builder, rel RelNode, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(describe(rel))
	b.WriteByte('\n')
	for _, in := range rel.Inputs() {
		explain(b, in, depth+1)
	}
}

func describe(rel RelNode) string {
	switch r := rel.(type) {
	case *TableScan:
		return fmt.Sprintf("LogicalTableScan(table=[[%s]])", strings.Join(r.Table, ", "))
	case *Project:
		names := r.RowType.Names()
		parts := make([]string, len(r.Exprs))
		for i, e := range r.Exprs {
			name := fmt.Sprintf("$f%d", i)
			if i < len(names) {
				name = names[i]
			}
			parts[i] = name + "=[" + FormatRex(e) + "]"
		}
		return "LogicalProject(" + strings.Join(parts, ", ") + ")"
	case *Filter:
		return "LogicalFilter(condition=[" + FormatRex(r.Condition) + "])"
	case *Aggregate:
		parts := []string{"group=[" + formatSet(r.GroupKeys) + "]"}
		if len(r.GroupSets) > 1 {
			sets := make([]string, len(r.GroupSets))
			for i, s := range r.GroupSets {
				sets[i] = formatSet(s)
			}
			parts = append(parts, "groups=[["+strings.Join(sets, ", ")+"]]")
		}
		for _, c := range r.Calls {
			parts = append(parts, c.Name+"=["+formatAggCall(c)+"]")
		}
		return "LogicalAggregate(" + strings.Join(parts, ", ") + ")"
	case *Join:
		return fmt.Sprintf("LogicalJoin(condition=[%s], joinType=[%s])", FormatRex(r.Condition), r.Type)
	case *Sort:
		var parts []string
		for i, c := range r.Collation {
			parts = append(parts,
				fmt.Sprintf("sort%d=[$%d]", i, c.Field),
				fmt.Sprintf("dir%d=[%s]", i, formatDirection(c.Direction, c.NullDirection)))
		}
		if r.Offset != nil {
			parts = append(parts, fmt.Sprintf("offset=[%d]", *r.Offset))
		}
		if r.Fetch != nil {
			parts = append(parts, fmt.Sprintf("fetch=[%d]", *r.Fetch))
		}
		return "LogicalSort(" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprintf("Unknown(%T)", rel)
}

// FormatRex renders an expression, e.g. "+($0, 1)" or "CAST($1):BIGINT NOT NULL".
func FormatRex(rex RexNode) string {
	switch r := rex.(type) {
	case nil:
		return "true"
	case *InputRef:
		return "$" + strconv.Itoa(r.Index)
	case *Literal:
		return formatLiteral(r)
	case *Call:
		if r.Op == Cast && len(r.Operands) == 1 {
			return "CAST(" + FormatRex(r.Operands[0]) + "):" + r.Type.String()
		}
		return r.Op.Name + "(" + formatOperands(r.Operands) + ")"
	case *Over:
		args := formatOperands(r.Operands)
		if r.Distinct {
			args = "DISTINCT " + args
		}
		return r.Op.Name + "(" + args + ") OVER (" + formatWindow(r.Window) + ")"
	}
	return fmt.Sprintf("?%T", rex)
}

func formatOperands(ops []RexNode) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = FormatRex(o)
	}
	return strings.Join(parts, ", ")
}

func formatLiteral(l *Literal) string {
	switch v := l.Value.(type) {
	case nil:
		return "null:" + l.Type.Name.String()
	case string:
		return "'" + v + "'"
	case []byte:
		return fmt.Sprintf("X'%x'", v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatAggCall(c AggregateCall) string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = "$" + strconv.Itoa(a)
	}
	s := strings.Join(args, ", ")
	if c.Distinct {
		s = "DISTINCT " + s
	}
	return c.Op.Name + "(" + s + ")"
}

func formatSet(keys []int) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Itoa(k)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatDirection(d Direction, n NullDirection) string {
	var s string
	switch d {
	case Descending:
		s = "DESC"
	case Clustered:
		s = "CLUSTERED"
	default:
		s = "ASC"
	}
	switch n {
	case NullsFirst:
		s += "-nulls-first"
	case NullsLast:
		s += "-nulls-last"
	}
	return s
}

func formatWindow(w Window) string {
	var parts []string
	if len(w.PartitionKeys) > 0 {
		parts = append(parts, "PARTITION BY "+formatOperands(w.PartitionKeys))
	}
	if len(w.OrderKeys) > 0 {
		keys := make([]string, len(w.OrderKeys))
		for i, k := range w.OrderKeys {
			keys[i] = FormatRex(k.Expr) + " " + formatDirection(k.Direction, k.NullDirection)
		}
		parts = append(parts, "ORDER BY "+strings.Join(keys, ", "))
	}
	if w.Lower.Kind != BoundUnspecified || w.Upper.Kind != BoundUnspecified {
		frame := "RANGE"
		if w.Rows {
			frame = "ROWS"
		}
		parts = append(parts, frame+" BETWEEN "+formatBound(w.Lower)+" AND "+formatBound(w.Upper))
	}
	return strings.Join(parts, " ")
}

func formatBound(b WindowBound) string {
	switch b.Kind {
	case BoundUnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case BoundPreceding:
		return fmt.Sprintf("%d PRECEDING", b.Offset)
	case BoundCurrentRow:
		return "CURRENT ROW"
	case BoundFollowing:
		return fmt.Sprintf("%d FOLLOWING", b.Offset)
	case BoundUnboundedFollowing:
		return "UNBOUNDED FOLLOWING"
	}
	return "UNSPECIFIED"
}
