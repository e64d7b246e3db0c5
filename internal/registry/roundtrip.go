package registry

import (
	"fmt"

	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/wire"
)

// RoundTrip is the outcome of converting a plan to trees and back.
type RoundTrip struct {
	Trees       []optree.Root
	Plan        *plan.Plan
	Fingerprint string
	// Diff is empty when the plan came back unchanged.
	Diff string
}

// OK reports whether the plan survived the round trip unchanged.
func (rt *RoundTrip) OK() bool { return rt.Diff == "" }

// Explain renders the intermediate trees.
func (rt *RoundTrip) Explain() string { return optree.ExplainRoots(rt.Trees) }

// Convert converts every root of p into a tree.
func (r *Registry) Convert(p *plan.Plan) ([]optree.Root, error) {
	trees, err := r.Forward().ConvertPlan(p)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	return trees, nil
}

// RoundTrip converts p forward, then back, and compares the result with p.
// Conversion failures are returned as errors; a plan that comes back
// different is reported through Diff.
func (r *Registry) RoundTrip(p *plan.Plan) (*RoundTrip, error) {
	fp, err := wire.Fingerprint(p)
	if err != nil {
		return nil, err
	}
	trees, err := r.Convert(p)
	if err != nil {
		return nil, err
	}
	back, err := r.Reverse().ConvertPlan(trees)
	if err != nil {
		return nil, fmt.Errorf("reverse: %w", err)
	}
	rt := &RoundTrip{Trees: trees, Plan: back, Fingerprint: fp, Diff: plan.PlanDiff(p, back)}
	r.logger.Debug("round trip done", "fingerprint", fp, "ok", rt.OK())
	return rt, nil
}
