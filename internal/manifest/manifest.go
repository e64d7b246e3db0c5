// Package manifest loads host function manifests written in CUE.
//
// A manifest declares functions under one namespace and maps each to the
// host operator that represents it in expression trees:
//
//	namespace: "/functions_custom"
//	functions: custom_scalar: {
//		class:    "scalar"
//		operator: "CUSTOM_SCALAR"
//		impls: [{args: ["string"], return: "string"}]
//	}
//
// Manifests are checked against an embedded schema before they are read.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/funcs"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/typemap"
	"github.com/roach88/relbridge/internal/types"
)

//go:embed schema.cue
var schemaCUE []byte

// Manifest is a parsed host function manifest.
type Manifest struct {
	Namespace string
	Functions []Function
}

// Function is one manifest entry, in file order.
type Function struct {
	Name        string
	Class       extension.Class
	Operator    string
	Description string
	SQLType     string
	Impls       []Impl
	Pos         token.Pos
}

// Impl is one overload of a function.
type Impl struct {
	Args        []string `json:"args"`
	Variadic    *int     `json:"variadic,omitempty"`
	Nullability string   `json:"nullability,omitempty"`
	Return      string   `json:"return"`
}

type functionEntry struct {
	Class       string `json:"class"`
	Operator    string `json:"operator,omitempty"`
	Description string `json:"description,omitempty"`
	SQLType     string `json:"sql_type,omitempty"`
	Impls       []Impl `json:"impls"`
}

// Bundle is a manifest compiled into a catalog and host Sigs.
type Bundle struct {
	Namespace     string
	Collection    *extension.Collection
	ScalarSigs    []funcs.Sig
	AggregateSigs []funcs.Sig
	WindowSigs    []funcs.Sig
	Operators     []*optree.Operator
}

// Load reads and checks the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(path, data)
}

// Parse checks and reads manifest source. filename is used in positions.
func Parse(filename string, data []byte) (*Manifest, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("manifest schema: %w", err)
	}

	src := ctx.CompileBytes(data, cue.Filename(filename))
	if err := src.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(src)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	ns, err := v.LookupPath(cue.ParsePath("namespace")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m := &Manifest{Namespace: ns}

	iter, err := v.LookupPath(cue.ParsePath("functions")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		fv := iter.Value()
		var entry functionEntry
		if err := fv.Decode(&entry); err != nil {
			return nil, formatCUEError(err)
		}
		class, _ := extension.ParseClass(entry.Class)
		m.Functions = append(m.Functions, Function{
			Name:        iter.Label(),
			Class:       class,
			Operator:    entry.Operator,
			Description: entry.Description,
			SQLType:     entry.SQLType,
			Impls:       entry.Impls,
			Pos:         fv.Pos(),
		})
	}
	return m, nil
}

// Build declares the manifest's functions and creates one host operator
// per function. The operator is named Operator, or the upper-cased function
// name; its return type is SQLType, or the fixed return type of the first
// impl.
func (m *Manifest) Build() (*Bundle, error) {
	b := &Bundle{Namespace: m.Namespace}
	var decls []extension.Declaration
	for _, fn := range m.Functions {
		fnDecls, err := fn.declarations(m.Namespace)
		if err != nil {
			return nil, err
		}
		decls = append(decls, fnDecls...)

		op, err := fn.operator(fnDecls[0])
		if err != nil {
			return nil, err
		}
		b.Operators = append(b.Operators, op)

		sig := funcs.NewSig(op, fn.Name).InNamespace(m.Namespace)
		switch fn.Class {
		case extension.ClassScalar:
			b.ScalarSigs = append(b.ScalarSigs, sig)
		case extension.ClassAggregate:
			b.AggregateSigs = append(b.AggregateSigs, sig)
		case extension.ClassWindow:
			b.WindowSigs = append(b.WindowSigs, sig)
		}
	}

	coll, err := extension.NewCollection(decls...)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", m.Namespace, err)
	}
	b.Collection = coll
	return b, nil
}

func (fn Function) declarations(namespace string) ([]extension.Declaration, error) {
	out := make([]extension.Declaration, 0, len(fn.Impls))
	for i, impl := range fn.Impls {
		d := extension.Declaration{
			Namespace:   namespace,
			Name:        fn.Name,
			Class:       fn.Class,
			Description: fn.Description,
			Nullability: extension.NullabilityMirror,
		}
		if impl.Nullability != "" {
			d.Nullability = extension.Nullability(impl.Nullability)
		}
		for j, arg := range impl.Args {
			p, err := extension.ParseParam(arg)
			if err != nil {
				return nil, fn.errorf(fmt.Sprintf("impls[%d].args[%d]", i, j), "%v", err)
			}
			d.Params = append(d.Params, p)
		}
		if impl.Variadic != nil {
			if len(d.Params) == 0 {
				return nil, fn.errorf(fmt.Sprintf("impls[%d].variadic", i), "variadic impl needs at least one argument")
			}
			d.Variadic = &extension.Variadic{Min: *impl.Variadic}
		}
		rule, err := extension.ParseReturn(impl.Return)
		if err != nil {
			return nil, fn.errorf(fmt.Sprintf("impls[%d].return", i), "%v", err)
		}
		d.Return = rule
		out = append(out, d)
	}
	return out, nil
}

func (fn Function) operator(first extension.Declaration) (*optree.Operator, error) {
	name := fn.Operator
	if name == "" {
		name = strings.ToUpper(fn.Name)
	}

	var ret types.Type
	switch {
	case fn.SQLType != "":
		t, err := types.Parse(fn.SQLType)
		if err != nil {
			return nil, fn.errorf("sql_type", "%v", err)
		}
		ret = t
	case first.Return.Fixed != nil:
		ret = *first.Return.Fixed
	default:
		return nil, fn.errorf("sql_type", "required when the first impl has no fixed return type")
	}
	sqlType, err := typemap.ToSQL(ret)
	if err != nil {
		return nil, fn.errorf("sql_type", "%v", err)
	}

	inference := optree.Explicit(sqlType)
	switch fn.Class {
	case extension.ClassAggregate:
		return optree.NewAggFunction(name, inference), nil
	case extension.ClassWindow:
		return optree.NewWindowFunction(name, inference), nil
	default:
		return optree.NewFunction(name, inference), nil
	}
}

func (fn Function) errorf(field, format string, args ...any) error {
	return &CompileError{
		Field:   "functions." + fn.Name + "." + field,
		Message: fmt.Sprintf(format, args...),
		Pos:     fn.Pos,
	}
}

// CompileError reports an invalid manifest, with its source position when
// known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError converts the first CUE error into a CompileError.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	field := "cue"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	ce := &CompileError{Field: field, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
