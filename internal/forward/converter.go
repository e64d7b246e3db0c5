// Package forward converts Plan IR relations into optimizer trees.
//
// Conversion is a bottom-up traversal. Catalog keys are resolved to
// operators through the function converters; plan types are mapped to SQL
// types. Any failure aborts the whole conversion.
package forward

import (
	"io"
	"log/slog"

	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/funcs"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/plan"
)

// Converter converts Plan IR into optree. It holds no per-call state and is
// safe for concurrent use.
type Converter struct {
	funcs  funcs.Set
	logger *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithScalarConverter replaces the scalar function converter.
func WithScalarConverter(c funcs.FunctionConverter) Option {
	return func(conv *Converter) {
		conv.funcs.Scalar = c
	}
}

// WithAggregateConverter replaces the aggregate function converter.
func WithAggregateConverter(c funcs.FunctionConverter) Option {
	return func(conv *Converter) {
		conv.funcs.Aggregate = c
	}
}

// WithWindowConverter replaces the window function converter.
func WithWindowConverter(c funcs.FunctionConverter) Option {
	return func(conv *Converter) {
		conv.funcs.Window = c
	}
}

// WithFunctions replaces all three function converters.
func WithFunctions(set funcs.Set) Option {
	return func(conv *Converter) {
		conv.funcs = set
	}
}

// WithLogger sets the logger conversions report to.
func WithLogger(l *slog.Logger) Option {
	return func(conv *Converter) {
		conv.logger = l
	}
}

// NewConverter creates a converter over decls. Without options it resolves
// functions with the default Sig tables only.
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

// Convert converts a relation tree.
func (c *Converter) Convert(rel plan.Rel) (optree.RelNode, error) {
	out, err := c.convertRel(rel)
	if err != nil {
		c.logger.Debug("forward conversion failed", "error", err)
		return nil, err
	}
	c.logger.Debug("forward conversion done", "root", nodeName(out), "fields", out.Row().FieldCount())
	return out, nil
}

// ConvertRoot converts a named root relation.
func (c *Converter) ConvertRoot(root plan.Root) (optree.Root, error) {
	rel, err := c.Convert(root.Input)
	if err != nil {
		return optree.Root{}, err
	}
	return optree.Root{Rel: rel, Names: append([]string(nil), root.Names...)}, nil
}

// ConvertPlan converts every root of p, in order.
func (c *Converter) ConvertPlan(p *plan.Plan) ([]optree.Root, error) {
	out := make([]optree.Root, 0, len(p.Relations))
	for _, r := range p.Relations {
		root, err := c.ConvertRoot(r)
		if err != nil {
			return nil, err
		}
		out = append(out, root)
	}
	return out, nil
}

func nodeName(n optree.RelNode) string {
	switch n.(type) {
	case *optree.TableScan:
		return "TableScan"
	case *optree.Project:
		return "Project"
	case *optree.Filter:
		return "Filter"
	case *optree.Aggregate:
		return "Aggregate"
	case *optree.Join:
		return "Join"
	case *optree.Sort:
		return "Sort"
	}
	return "unknown"
}
