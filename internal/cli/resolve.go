package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/funcs"
	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/registry"
	"github.com/roach88/relbridge/internal/types"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Manifests []string
	Class     string
	Operator  bool // resolve an operator name back to a catalog key
}

// ResolveResult is the outcome of one resolution.
type ResolveResult struct {
	Class    string   `json:"class"`
	Args     []string `json:"args"`
	Function string   `json:"function"`
	Operator string   `json:"operator"`
	Kind     string   `json:"kind,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <function> [arg-type...]",
		Short: "Resolve a function reference against the loaded catalogs",
		Long: `Resolve a catalog function for the given argument types and print the
operator it converts to. With --operator, resolve an operator name back to
the catalog key it converts from.

Functions are written "namespace#name:sig", "name:sig" or "name". Argument
types use the short names of the catalog ("i64", "string?", "varchar<10>").

Examples:
  relbridge resolve add i64 i64
  relbridge resolve /functions_builtin.yaml#sum:i64 i64 --class aggregate
  relbridge resolve --operator ">" i64 i64`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Manifests, "manifest", "m", nil, "additional host function manifest (repeatable)")
	cmd.Flags().StringVar(&opts.Class, "class", "scalar", "function class (scalar|aggregate|window)")
	cmd.Flags().BoolVar(&opts.Operator, "operator", false, "resolve an operator name to a catalog key")

	return cmd
}

func runResolve(opts *ResolveOptions, ref string, typeArgs []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	class, ok := extension.ParseClass(opts.Class)
	if !ok {
		return outputCommandError(f, ErrCodeArgs, fmt.Sprintf("invalid class %q: must be scalar, aggregate or window", opts.Class), nil)
	}
	argTypes := make([]types.Type, len(typeArgs))
	for i, s := range typeArgs {
		t, err := types.Parse(s)
		if err != nil {
			return outputCommandError(f, ErrCodeArgs, fmt.Sprintf("argument %d: %v", i, err), nil)
		}
		argTypes[i] = t
	}

	reg, err := loadRegistry(cmd.Context(), opts.RootOptions, opts.Manifests)
	if err != nil {
		return outputLoadError(f, err)
	}
	conv := converterFor(reg.Funcs, class)

	result := ResolveResult{Class: class.String(), Args: types.Strings(argTypes)}
	if opts.Operator {
		key, op, err := resolveOperator(reg, conv, ref, argTypes)
		if err != nil {
			_ = f.Failure(conversionCode(err), err.Error(), result)
			return WrapExitError(ExitFailure, "resolution failed", err)
		}
		result.Function = key.String()
		result.Operator = op.Name
		result.Kind = op.Kind
	} else {
		key, op, err := resolveFunction(conv, parseFunctionRef(ref), argTypes)
		if err != nil {
			_ = f.Failure(conversionCode(err), err.Error(), result)
			return WrapExitError(ExitFailure, "resolution failed", err)
		}
		result.Function = key.String()
		result.Operator = op.Name
		result.Kind = op.Kind
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	if opts.Operator {
		fmt.Fprintf(f.Writer, "%s(%s) <- %s\n", result.Operator, strings.Join(result.Args, ", "), result.Function)
	} else {
		fmt.Fprintf(f.Writer, "%s(%s) -> %s\n", result.Function, strings.Join(result.Args, ", "), result.Operator)
	}
	return nil
}

// parseFunctionRef splits "namespace#name:sig" into a key. The namespace
// and signature are optional.
func parseFunctionRef(ref string) extension.Key {
	if ns, compound, ok := strings.Cut(ref, "#"); ok {
		return extension.ParseKey(ns, compound)
	}
	return extension.ParseKey("", ref)
}

func converterFor(set funcs.Set, class extension.Class) funcs.FunctionConverter {
	switch class {
	case extension.ClassAggregate:
		return set.Aggregate
	case extension.ClassWindow:
		return set.Window
	default:
		return set.Scalar
	}
}

// resolveFunction resolves key to an operator. Converters that expose
// their resolver also report the declaration that was chosen.
func resolveFunction(conv funcs.FunctionConverter, key extension.Key, argTypes []types.Type) (extension.Key, *optree.Operator, error) {
	if r, ok := conv.(interface{ Resolver() *funcs.Resolver }); ok {
		res, err := r.Resolver().Resolve(key, argTypes)
		if err != nil {
			return extension.Key{}, nil, err
		}
		return res.Declaration.Key(), res.Operator, nil
	}
	op, err := conv.ToTarget(key, argTypes)
	if err != nil {
		return extension.Key{}, nil, err
	}
	return key, op, nil
}

// resolveOperator tries every known operator named name, standard ones
// first, and returns the first that resolves. Operators share names across
// syntaxes, such as binary and prefix minus.
func resolveOperator(reg *registry.Registry, conv funcs.FunctionConverter, name string, argTypes []types.Type) (extension.Key, *optree.Operator, error) {
	candidates := operatorsNamed(reg, name)
	if len(candidates) == 0 {
		return extension.Key{}, nil, converr.Unmapped(name, types.Strings(argTypes))
	}
	var lastErr error
	for _, op := range candidates {
		key, err := conv.ToSource(op, argTypes)
		if err == nil {
			return key, op, nil
		}
		lastErr = err
	}
	return extension.Key{}, nil, lastErr
}

func operatorsNamed(reg *registry.Registry, name string) []*optree.Operator {
	var out []*optree.Operator
	for _, op := range optree.StdOperators() {
		if strings.EqualFold(op.Name, name) {
			out = append(out, op)
		}
	}
	for _, b := range reg.Bundles {
		for _, op := range b.Operators {
			if strings.EqualFold(op.Name, name) {
				out = append(out, op)
			}
		}
	}
	return out
}
