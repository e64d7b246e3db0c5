package funcs

import (
	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/types"
)

// Resolver resolves function references of one class in both directions.
// It is immutable and safe for concurrent use.
type Resolver struct {
	class   extension.Class
	decls   *extension.Collection
	catalog []Sig
	host    []Sig
}

// NewResolver creates a resolver over decls with the catalog-declared and
// host-declared Sig tables.
func NewResolver(class extension.Class, decls *extension.Collection, catalog, host []Sig) *Resolver {
	return &Resolver{
		class:   class,
		decls:   decls,
		catalog: append([]Sig(nil), catalog...),
		host:    append([]Sig(nil), host...),
	}
}

// Resolution is the outcome of a forward resolution.
type Resolution struct {
	Declaration *extension.Declaration
	Operator    *optree.Operator
}

// Resolve finds the declaration a key refers to and the operator it maps to.
//
// A key with a signature is looked up exactly and wins outright. A key
// without one is matched against the class's declarations of that name by
// argument types; the highest score wins and a tie is ambiguous.
func (r *Resolver) Resolve(key extension.Key, argTypes []types.Type) (Resolution, error) {
	decl, err := r.declaration(key, argTypes)
	if err != nil {
		return Resolution{}, err
	}
	op, err := r.operator(decl, argTypes)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Declaration: decl, Operator: op}, nil
}

// ResolveSymbol finds the catalog key an operator call maps back to.
//
// The operator must appear in exactly one Sig table, and exactly one
// declaration named by its Sigs may accept argTypes. Without a signature
// there is nothing to break a tie between overlapping overloads, so more
// than one match is ambiguous regardless of how well each matches.
func (r *Resolver) ResolveSymbol(op *optree.Operator, argTypes []types.Type) (extension.Key, error) {
	sigs, err := r.sigsFor(op, argTypes)
	if err != nil {
		return extension.Key{}, err
	}

	rendered := types.Strings(argTypes)
	var candidates, matched []*extension.Declaration
	seen := make(map[extension.Key]bool)
	for _, s := range sigs {
		for _, d := range r.decls.Candidates(r.class, s.Namespace, s.Name) {
			if seen[d.Key()] {
				continue
			}
			seen[d.Key()] = true
			candidates = append(candidates, d)
			if _, ok := d.Match(argTypes); ok {
				matched = append(matched, d)
			}
		}
	}

	var unresolved *converr.Error
	switch {
	case len(candidates) == 0:
		unresolved = converr.Unresolved("", rendered, "no %s declaration", r.class)
	case len(matched) == 0:
		unresolved = converr.Unresolved(candidates[0].Name, rendered,
			"no overload of %s matches the argument types", candidates[0].Name)
	case len(matched) > 1:
		return extension.Key{}, converr.Ambiguous("", op.Name, rendered, keysOf(matched))
	default:
		return matched[0].Key(), nil
	}
	unresolved.Symbol = op.Name
	return extension.Key{}, unresolved
}

// Handles reports whether op appears in either Sig table.
func (r *Resolver) Handles(op *optree.Operator) bool {
	for _, s := range r.catalog {
		if s.Operator == op {
			return true
		}
	}
	for _, s := range r.host {
		if s.Operator == op {
			return true
		}
	}
	return false
}

func (r *Resolver) declaration(key extension.Key, argTypes []types.Type) (*extension.Declaration, error) {
	rendered := types.Strings(argTypes)

	if key.Signature != "" {
		if key.Namespace != "" {
			d, ok := r.decls.Lookup(key)
			if !ok || d.Class != r.class {
				return nil, converr.Unresolved(key.String(), rendered, "no %s declaration", r.class)
			}
			return d, nil
		}

		var found []*extension.Declaration
		for _, d := range r.decls.Candidates(r.class, "", key.Name) {
			if d.Signature() == key.Signature {
				found = append(found, d)
			}
		}
		switch len(found) {
		case 0:
			return nil, converr.Unresolved(key.String(), rendered, "no %s declaration", r.class)
		case 1:
			return found[0], nil
		default:
			return nil, converr.Ambiguous(key.String(), "", rendered, keysOf(found))
		}
	}

	candidates := r.decls.Candidates(r.class, key.Namespace, key.Name)
	d, err := rank(candidates, argTypes)
	if err != nil {
		if ce, ok := err.(*converr.Error); ok {
			ce.Key = key.String()
		}
		return nil, err
	}
	return d, nil
}

func (r *Resolver) operator(decl *extension.Declaration, argTypes []types.Type) (*optree.Operator, error) {
	fromCatalog := operatorsFor(r.catalog, decl)
	fromHost := operatorsFor(r.host, decl)

	switch {
	case len(fromCatalog) > 0 && len(fromHost) > 0:
		return nil, converr.Ambiguous(decl.Key().String(), "", types.Strings(argTypes),
			append(opNames("catalog", fromCatalog), opNames("host", fromHost)...))
	case len(fromCatalog) == 1:
		return fromCatalog[0], nil
	case len(fromHost) == 1:
		return fromHost[0], nil
	case len(fromCatalog) > 1:
		return nil, converr.Ambiguous(decl.Key().String(), "", types.Strings(argTypes), opNames("catalog", fromCatalog))
	case len(fromHost) > 1:
		return nil, converr.Ambiguous(decl.Key().String(), "", types.Strings(argTypes), opNames("host", fromHost))
	}
	return nil, converr.Unresolved(decl.Key().String(), types.Strings(argTypes), "no operator mapping for %s function", r.class)
}

func (r *Resolver) sigsFor(op *optree.Operator, argTypes []types.Type) ([]Sig, error) {
	var fromCatalog, fromHost []Sig
	for _, s := range r.catalog {
		if s.Operator == op {
			fromCatalog = append(fromCatalog, s)
		}
	}
	for _, s := range r.host {
		if s.Operator == op {
			fromHost = append(fromHost, s)
		}
	}

	switch {
	case len(fromCatalog) > 0 && len(fromHost) > 0:
		return nil, converr.Ambiguous("", op.Name, types.Strings(argTypes),
			append(sigNames("catalog", fromCatalog), sigNames("host", fromHost)...))
	case len(fromCatalog) > 0:
		return fromCatalog, nil
	case len(fromHost) > 0:
		return fromHost, nil
	}
	return nil, converr.Unmapped(op.Name, types.Strings(argTypes))
}

// rank picks the best-scoring declaration for argTypes.
func rank(candidates []*extension.Declaration, argTypes []types.Type) (*extension.Declaration, error) {
	rendered := types.Strings(argTypes)
	if len(candidates) == 0 {
		return nil, converr.Unresolved("", rendered, "no declaration")
	}

	var best []*extension.Declaration
	bestScore := -1
	for _, d := range candidates {
		score, ok := d.Match(argTypes)
		if !ok {
			continue
		}
		switch {
		case score > bestScore:
			best = []*extension.Declaration{d}
			bestScore = score
		case score == bestScore:
			best = append(best, d)
		}
	}

	switch len(best) {
	case 0:
		return nil, converr.Unresolved(candidates[0].Name, rendered, "no overload of %s matches the argument types", candidates[0].Name)
	case 1:
		return best[0], nil
	}
	return nil, converr.Ambiguous(best[0].Name, "", rendered, keysOf(best))
}

// operatorsFor returns the distinct operators a Sig table maps decl to.
func operatorsFor(sigs []Sig, decl *extension.Declaration) []*optree.Operator {
	var out []*optree.Operator
	for _, s := range sigs {
		if !s.matchesFunction(decl.Namespace, decl.Name) {
			continue
		}
		dup := false
		for _, op := range out {
			if op == s.Operator {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s.Operator)
		}
	}
	return out
}

func keysOf(decls []*extension.Declaration) []string {
	out := make([]string, len(decls))
	for i, d := range decls {
		out[i] = d.Key().String()
	}
	return out
}

func opNames(table string, ops []*optree.Operator) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = table + ":" + op.Name
	}
	return out
}

func sigNames(table string, sigs []Sig) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = table + ":" + s.Name
	}
	return out
}
