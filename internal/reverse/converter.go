// Package reverse converts optimizer trees back into Plan IR.
//
// Every operator call is mapped back to a catalog key through the function
// converters. The output is canonical: projections emit exactly their
// expressions, limits sit above sorts, and grouping keys are field
// references. Converting a canonical plan forward and back yields it again.
package reverse

import (
	"io"
	"log/slog"

	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/funcs"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/plan"
)

// Converter converts optree into Plan IR. It is safe for concurrent use.
type Converter struct {
	funcs  funcs.Set
	logger *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithScalarConverter replaces the scalar function converter.
func WithScalarConverter(c funcs.FunctionConverter) Option {
	return func(conv *Converter) { conv.funcs.Scalar = c }
}

// WithAggregateConverter replaces the aggregate function converter.
func WithAggregateConverter(c funcs.FunctionConverter) Option {
	return func(conv *Converter) { conv.funcs.Aggregate = c }
}

// WithWindowConverter replaces the window function converter.
func WithWindowConverter(c funcs.FunctionConverter) Option {
	return func(conv *Converter) { conv.funcs.Window = c }
}

// WithFunctions replaces all three function converters.
func WithFunctions(set funcs.Set) Option {
	return func(conv *Converter) { conv.funcs = set }
}

// WithLogger sets the logger conversions report to.
func WithLogger(l *slog.Logger) Option {
	return func(conv *Converter) { conv.logger = l }
}

// NewConverter creates a converter over decls.
func NewConverter(decls *extension.Collection, opts ...Option) *Converter {
	c := &Converter{
		funcs:  funcs.NewSet(decls, nil, nil, nil),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert converts a tree.
func (c *Converter) Convert(node optree.RelNode) (plan.Rel, error) {
	out, err := c.convertRel(node)
	if err != nil {
		c.logger.Debug("reverse conversion failed", "error", err)
		return nil, err
	}
	c.logger.Debug("reverse conversion done", "fields", len(out.RecordType()))
	return out, nil
}

// ConvertRoot converts a named root.
func (c *Converter) ConvertRoot(root optree.Root) (plan.Root, error) {
	rel, err := c.Convert(root.Rel)
	if err != nil {
		return plan.Root{}, err
	}
	return plan.Root{Input: rel, Names: append([]string(nil), root.Names...)}, nil
}

// ConvertPlan converts roots into a plan, in order.
func (c *Converter) ConvertPlan(roots []optree.Root) (*plan.Plan, error) {
	p := &plan.Plan{}
	for _, r := range roots {
		root, err := c.ConvertRoot(r)
		if err != nil {
			return nil, err
		}
		p.Relations = append(p.Relations, root)
	}
	return p, nil
}
