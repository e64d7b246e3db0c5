package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/relbridge/internal/config"
	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/registry"
	"github.com/roach88/relbridge/internal/store"
	"github.com/roach88/relbridge/internal/wire"
)

// Error codes for command-level failures. Catalog and manifest load errors
// use the registry codes.
const (
	ErrCodeGeneric  = registry.ErrCodeGeneric
	ErrCodeNotFound = registry.ErrCodeNotFound
	ErrCodeCatalog  = registry.ErrCodeCatalog
	ErrCodePlan     = "E101" // Plan file could not be decoded
	ErrCodeStore    = "E102" // Database could not be opened or written
	ErrCodeArgs     = "E103" // Malformed argument
)

// loadRegistry assembles the registry described by the configuration: the
// builtin catalog unless disabled, configured YAML catalogs, collections
// imported into the database, configured manifests, then extra manifests.
//
// The database is only read when it already exists.
func loadRegistry(ctx context.Context, opts *RootOptions, extra []string) (*registry.Registry, error) {
	cfg := opts.settings()
	logger := config.GetLogger(ctx)

	ropts := []registry.Option{registry.WithLogger(logger)}
	if cfg.NoBuiltin {
		ropts = append(ropts, registry.WithoutBuiltin())
	}
	for _, c := range cfg.Catalogs {
		ropts = append(ropts, registry.WithCatalogFile(c.Namespace, c.Path))
	}

	if _, err := os.Stat(cfg.Database); err == nil {
		st, err := store.Open(cfg.Database)
		if err != nil {
			return nil, &registry.LoadError{Code: ErrCodeStore, Source: cfg.Database, Message: err.Error()}
		}
		defer st.Close()

		stored, err := st.LoadCollection(ctx)
		if err != nil {
			return nil, &registry.LoadError{Code: ErrCodeStore, Source: cfg.Database, Message: err.Error()}
		}
		if stored.Len() > 0 {
			logger.Debug("stored catalogs loaded", "database", cfg.Database, "functions", stored.Len())
			ropts = append(ropts, registry.WithCollection(stored))
		}
	}

	for _, m := range cfg.Manifests {
		ropts = append(ropts, registry.WithManifestFile(m))
	}
	for _, m := range extra {
		ropts = append(ropts, registry.WithManifestFile(m))
	}
	return registry.New(ropts...)
}

// outputLoadError reports a registry load failure with its code and, for
// manifests, its position.
func outputLoadError(f *OutputFormatter, err error) error {
	var loadErr *registry.LoadError
	if !errors.As(err, &loadErr) {
		return outputCommandError(f, ErrCodeGeneric, err.Error(), nil)
	}
	var details interface{}
	if loadErr.Pos.IsValid() {
		details = map[string]interface{}{
			"file":   loadErr.Pos.Filename(),
			"line":   loadErr.Pos.Line(),
			"column": loadErr.Pos.Column(),
		}
	}
	return outputCommandError(f, loadErr.Code, fmt.Sprintf("%s: %s", loadErr.Source, loadErr.Message), details)
}

// readPlan decodes the plan at path: protojson for .json files, binary
// protobuf otherwise. A path of "-" reads binary protobuf from stdin.
func readPlan(cmd *cobra.Command, path string) (*plan.Plan, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".json" {
		return wire.UnmarshalJSON(data)
	}
	return wire.Unmarshal(data)
}

// outputPlanError reports a plan that could not be read.
func outputPlanError(f *OutputFormatter, path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return outputCommandError(f, ErrCodeNotFound, fmt.Sprintf("plan file not found: %s", path), nil)
	}
	return outputCommandError(f, ErrCodePlan, fmt.Sprintf("failed to read plan %s: %v", path, err), nil)
}

// openStore opens the configured database, creating it if needed.
func openStore(f *OutputFormatter, opts *RootOptions) (*store.Store, error) {
	path := opts.settings().Database
	st, err := store.Open(path)
	if err != nil {
		return nil, outputCommandError(f, ErrCodeStore, fmt.Sprintf("failed to open database %s: %v", path, err), nil)
	}
	return st, nil
}

// conversionCode returns the conversion error code of err, or the generic
// code for errors that carry none.
func conversionCode(err error) string {
	if code := converr.CodeOf(err); code != "" {
		return string(code)
	}
	return ErrCodeGeneric
}
