package plan

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// cmpOptions treat nil and empty slices alike, so a relation built with
// an empty list equals one decoded with none.
var cmpOptions = []cmp.Option{cmpopts.EquateEmpty()}

// Equal reports whether two relation trees are structurally equal.
func Equal(a, b Rel) bool {
	return cmp.Equal(a, b, cmpOptions...)
}

// Diff returns a human-readable difference between two relation trees, or
// "" when they are equal.
func Diff(a, b Rel) string {
	return cmp.Diff(a, b, cmpOptions...)
}

// PlanEqual reports whether two plans are structurally equal.
func PlanEqual(a, b *Plan) bool {
	return cmp.Equal(a, b, cmpOptions...)
}

// PlanDiff returns a human-readable difference between two plans.
func PlanDiff(a, b *Plan) string {
	return cmp.Diff(a, b, cmpOptions...)
}

// ExprEqual reports whether two expressions are structurally equal.
func ExprEqual(a, b Expression) bool {
	return cmp.Equal(a, b, cmpOptions...)
}
