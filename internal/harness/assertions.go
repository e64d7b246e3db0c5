package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/relbridge/internal/optree"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Explain  string // explained trees for context, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	if e.Explain != "" {
		fmt.Fprintf(&buf, "\n\nTrees:\n%s", e.Explain)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertRoundTrip:
		return assertRoundTrip(result)
	case AssertExplainContains:
		return assertExplainContains(result, a)
	case AssertOperatorCount:
		return assertOperatorCount(result, a)
	case AssertError:
		return assertError(result, a)
	case AssertFingerprint:
		return assertFingerprint(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertRoundTrip(result *Result) error {
	if result.ConvertError != "" {
		return &AssertionError{
			Type:     AssertRoundTrip,
			Expected: "plan converts forward and back",
			Actual:   result.ConvertError,
		}
	}
	if result.Diff != "" {
		return &AssertionError{
			Type:     AssertRoundTrip,
			Expected: "unchanged plan",
			Actual:   "plan changed (-want +got):\n" + result.Diff,
			Explain:  result.Explain,
		}
	}
	return nil
}

func assertExplainContains(result *Result, a Assertion) error {
	if strings.Contains(result.Explain, a.Text) {
		return nil
	}
	actual := "not found"
	if result.ConvertError != "" {
		actual = "conversion failed: " + result.ConvertError
	}
	return &AssertionError{
		Type:     AssertExplainContains,
		Expected: fmt.Sprintf("trees containing %q", a.Text),
		Actual:   actual,
		Explain:  result.Explain,
	}
}

func assertOperatorCount(result *Result, a Assertion) error {
	got := 0
	for _, root := range result.trees {
		got += CountOperator(root.Rel, a.Operator)
	}
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertOperatorCount,
		Expected: fmt.Sprintf("%s called %d times", a.Operator, a.Count),
		Actual:   fmt.Sprintf("%d calls", got),
		Explain:  result.Explain,
	}
}

func assertError(result *Result, a Assertion) error {
	if result.ErrorCode == a.Code {
		return nil
	}
	actual := "conversion succeeded"
	if result.ConvertError != "" {
		actual = result.ConvertError
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: "conversion error " + a.Code,
		Actual:   actual,
		Explain:  result.Explain,
	}
}

func assertFingerprint(result *Result, a Assertion) error {
	if result.Fingerprint == a.Value {
		return nil
	}
	return &AssertionError{
		Type:     AssertFingerprint,
		Expected: a.Value,
		Actual:   result.Fingerprint,
	}
}

// CountOperator counts the calls to the operator named name in a tree,
// aggregate calls and windowed calls included.
func CountOperator(rel optree.RelNode, name string) int {
	n := 0
	switch r := rel.(type) {
	case *optree.Project:
		for _, e := range r.Exprs {
			n += countRex(e, name)
		}
	case *optree.Filter:
		n += countRex(r.Condition, name)
	case *optree.Join:
		n += countRex(r.Condition, name)
	case *optree.Aggregate:
		for _, c := range r.Calls {
			if c.Op.Name == name {
				n++
			}
		}
	}
	for _, in := range rel.Inputs() {
		n += CountOperator(in, name)
	}
	return n
}

func countRex(rex optree.RexNode, name string) int {
	switch r := rex.(type) {
	case *optree.Call:
		n := 0
		if r.Op.Name == name {
			n++
		}
		for _, o := range r.Operands {
			n += countRex(o, name)
		}
		return n
	case *optree.Over:
		n := 0
		if r.Op.Name == name {
			n++
		}
		for _, o := range r.Operands {
			n += countRex(o, name)
		}
		for _, p := range r.Window.PartitionKeys {
			n += countRex(p, name)
		}
		for _, k := range r.Window.OrderKeys {
			n += countRex(k.Expr, name)
		}
		return n
	}
	return 0
}
