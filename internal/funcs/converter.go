package funcs

import (
	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/types"
)

// FunctionConverter translates between catalog keys and operators for one
// function class.
type FunctionConverter interface {
	// ToTarget returns the operator a catalog key maps to.
	ToTarget(key extension.Key, argTypes []types.Type) (*optree.Operator, error)
	// ToSource returns the catalog key an operator call maps back to.
	ToSource(op *optree.Operator, argTypes []types.Type) (extension.Key, error)
}

// Converter is a FunctionConverter over a single Resolver.
type Converter struct {
	resolver *Resolver
}

// NewConverter creates a converter for class over decls with explicit
// catalog and host Sig tables.
func NewConverter(class extension.Class, decls *extension.Collection, catalog, host []Sig) *Converter {
	return &Converter{resolver: NewResolver(class, decls, catalog, host)}
}

// NewScalarConverter creates the scalar converter with the default Sig
// table plus additional host Sigs.
func NewScalarConverter(decls *extension.Collection, additional []Sig) *Converter {
	return NewConverter(extension.ClassScalar, decls, DefaultScalarSigs(), additional)
}

// NewAggregateConverter creates the aggregate converter with the default Sig
// table plus additional host Sigs.
func NewAggregateConverter(decls *extension.Collection, additional []Sig) *Converter {
	return NewConverter(extension.ClassAggregate, decls, DefaultAggregateSigs(), additional)
}

// ToTarget implements FunctionConverter.
func (c *Converter) ToTarget(key extension.Key, argTypes []types.Type) (*optree.Operator, error) {
	res, err := c.resolver.Resolve(key, argTypes)
	if err != nil {
		return nil, err
	}
	return res.Operator, nil
}

// ToSource implements FunctionConverter.
func (c *Converter) ToSource(op *optree.Operator, argTypes []types.Type) (extension.Key, error) {
	return c.resolver.ResolveSymbol(op, argTypes)
}

// Resolver returns the underlying resolver.
func (c *Converter) Resolver() *Resolver { return c.resolver }

// WindowConverter resolves window functions. Aggregate functions used as
// window functions fall back to the aggregate converter.
type WindowConverter struct {
	window    *Converter
	aggregate FunctionConverter
}

// NewWindowConverter creates the window converter with the default Sig
// table plus additional host Sigs. agg handles aggregates applied over a
// window; nil disables the fallback.
func NewWindowConverter(decls *extension.Collection, additional []Sig, agg FunctionConverter) *WindowConverter {
	return &WindowConverter{
		window:    NewConverter(extension.ClassWindow, decls, DefaultWindowSigs(), additional),
		aggregate: agg,
	}
}

// ToTarget implements FunctionConverter.
func (c *WindowConverter) ToTarget(key extension.Key, argTypes []types.Type) (*optree.Operator, error) {
	op, err := c.window.ToTarget(key, argTypes)
	if err == nil || c.aggregate == nil || !converr.IsUnresolved(err) {
		return op, err
	}
	if aop, aerr := c.aggregate.ToTarget(key, argTypes); aerr == nil {
		return aop, nil
	} else if !converr.IsUnresolved(aerr) {
		return nil, aerr
	}
	return nil, err
}

// ToSource implements FunctionConverter.
func (c *WindowConverter) ToSource(op *optree.Operator, argTypes []types.Type) (extension.Key, error) {
	if c.window.Resolver().Handles(op) || c.aggregate == nil {
		return c.window.ToSource(op, argTypes)
	}
	return c.aggregate.ToSource(op, argTypes)
}

// Set holds one function converter per class.
type Set struct {
	Scalar    FunctionConverter
	Aggregate FunctionConverter
	Window    FunctionConverter
}

// NewSet builds the default converters over decls, extended with host Sigs
// per class. The window converter falls back to the aggregate converter.
func NewSet(decls *extension.Collection, scalar, aggregate, window []Sig) Set {
	agg := NewAggregateConverter(decls, aggregate)
	return Set{
		Scalar:    NewScalarConverter(decls, scalar),
		Aggregate: agg,
		Window:    NewWindowConverter(decls, window, agg),
	}
}
