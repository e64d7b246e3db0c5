package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/relbridge/internal/config"
	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/store"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage extension catalogs",
		Long: `Manage the extension catalogs that function references resolve against.

YAML catalogs imported into the database are loaded by every command,
after the builtin catalog and the catalogs named in the config file.`,
	}

	cmd.AddCommand(newCatalogListCommand(rootOpts))
	cmd.AddCommand(newCatalogImportCommand(rootOpts))
	cmd.AddCommand(newCatalogDeleteCommand(rootOpts))
	cmd.AddCommand(newCatalogFunctionsCommand(rootOpts))

	return cmd
}

// CatalogImportOptions holds flags for catalog import.
type CatalogImportOptions struct {
	*RootOptions
	Namespace string
}

// ImportResult reports one imported catalog.
type ImportResult struct {
	Namespace string `json:"namespace"`
	File      string `json:"file"`
	Functions int    `json:"functions"`
}

func newCatalogImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Import a YAML extension catalog into the database",
		Long: `Import a YAML extension catalog into the database. Declarations already
stored under the same key are replaced.

The namespace defaults to the file path.

Examples:
  relbridge catalog import functions_custom.yaml --namespace /functions_custom.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "namespace to declare the functions in")

	return cmd
}

func runCatalogImport(opts *CatalogImportOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return outputCommandError(f, ErrCodeNotFound, fmt.Sprintf("catalog file not found: %s", path), nil)
	}
	coll, err := extension.LoadFile(opts.Namespace, path)
	if err != nil {
		return outputCommandError(f, ErrCodeCatalog, err.Error(), nil)
	}

	st, err := openStore(f, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveCollection(ctx, coll); err != nil {
		return outputCommandError(f, ErrCodeStore, err.Error(), nil)
	}

	ns := opts.Namespace
	if ns == "" {
		ns = path
	}
	result := ImportResult{Namespace: ns, File: path, Functions: coll.Len()}
	config.GetLogger(ctx).Info("catalog imported", "namespace", ns, "functions", coll.Len())

	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ Imported %d function(s) into %s\n", result.Functions, result.Namespace)
	return nil
}

func newCatalogListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the namespaces stored in the database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(rootOpts, cmd)
		},
	}
}

func runCatalogList(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	st, err := openStore(f, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	namespaces, err := st.Namespaces(cmd.Context())
	if err != nil {
		return outputCommandError(f, ErrCodeStore, err.Error(), nil)
	}
	if namespaces == nil {
		namespaces = []store.NamespaceSummary{}
	}

	if f.Format == "json" {
		return f.Success(namespaces)
	}
	if len(namespaces) == 0 {
		fmt.Fprintln(f.Writer, "No catalogs imported.")
		return nil
	}
	for _, ns := range namespaces {
		fmt.Fprintf(f.Writer, "%s: %d scalar, %d aggregate, %d window\n", ns.Namespace, ns.Scalar, ns.Aggregate, ns.Window)
	}
	return nil
}

// DeleteResult reports a removed namespace.
type DeleteResult struct {
	Namespace string `json:"namespace"`
	Removed   int64  `json:"removed"`
}

func newCatalogDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <namespace>",
		Short:         "Remove a namespace from the database",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogDelete(rootOpts, args[0], cmd)
		},
	}
}

func runCatalogDelete(opts *RootOptions, namespace string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	st, err := openStore(f, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.DeleteNamespace(cmd.Context(), namespace)
	if err != nil {
		return outputCommandError(f, ErrCodeStore, err.Error(), nil)
	}
	if n == 0 {
		return outputCommandError(f, ErrCodeNotFound, fmt.Sprintf("namespace not found: %s", namespace), nil)
	}

	result := DeleteResult{Namespace: namespace, Removed: n}
	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ Removed %d function(s) from %s\n", n, namespace)
	return nil
}

// CatalogFunctionsOptions holds flags for catalog functions.
type CatalogFunctionsOptions struct {
	*RootOptions
	Manifests []string
	Class     string
}

// FunctionInfo describes one declaration of the assembled catalog.
type FunctionInfo struct {
	Key         string `json:"key"`
	Class       string `json:"class"`
	Declaration string `json:"declaration"`
}

func newCatalogFunctionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogFunctionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List every function commands resolve against",
		Long: `List the declarations of the assembled catalog: builtin, configured,
imported and manifest functions, in that order.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogFunctions(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Manifests, "manifest", "m", nil, "additional host function manifest (repeatable)")
	cmd.Flags().StringVar(&opts.Class, "class", "", "only list one class (scalar|aggregate|window)")

	return cmd
}

func runCatalogFunctions(opts *CatalogFunctionsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	reg, err := loadRegistry(cmd.Context(), opts.RootOptions, opts.Manifests)
	if err != nil {
		return outputLoadError(f, err)
	}

	decls := reg.Decls.All()
	if opts.Class != "" {
		class, ok := extension.ParseClass(opts.Class)
		if !ok {
			return outputCommandError(f, ErrCodeArgs, fmt.Sprintf("invalid class %q: must be scalar, aggregate or window", opts.Class), nil)
		}
		decls = reg.Decls.Functions(class)
	}

	infos := make([]FunctionInfo, len(decls))
	for i, d := range decls {
		infos[i] = FunctionInfo{Key: d.Key().String(), Class: d.Class.String(), Declaration: d.String()}
	}

	if f.Format == "json" {
		return f.Success(infos)
	}
	for _, info := range infos {
		fmt.Fprintf(f.Writer, "%-9s %s\n", info.Class, info.Key)
		f.VerboseLog("  %s", info.Declaration)
	}
	return nil
}
