// Package registry assembles the function catalog and host mappings that
// a conversion runs against.
//
// Sources are merged in the order they are added: the builtin catalog
// (unless disabled), YAML extension catalogs, stored collections, then CUE
// manifests, which contribute both declarations and host Sigs.
package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/relbridge/internal/extension"
	"github.com/roach88/relbridge/internal/forward"
	"github.com/roach88/relbridge/internal/funcs"
	"github.com/roach88/relbridge/internal/manifest"
	"github.com/roach88/relbridge/internal/reverse"
)

// Error codes, shared by the CLI commands that load catalogs.
const (
	ErrCodeGeneric   = "E001" // Generic/unknown error
	ErrCodeNotFound  = "E005" // Path not found
	ErrCodeCatalog   = "E201" // Malformed YAML catalog
	ErrCodeManifest  = "E202" // Manifest failed schema or build checks
	ErrCodeDuplicate = "E203" // Two sources declare the same key
)

// LoadError reports a source that could not be loaded.
type LoadError struct {
	Code    string
	Source  string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Code, e.Message)
}

// Registry is an assembled catalog with its function converters. It is
// immutable and safe for concurrent use.
type Registry struct {
	Decls   *extension.Collection
	Funcs   funcs.Set
	Bundles []*manifest.Bundle

	logger *slog.Logger
}

type settings struct {
	builtin     bool
	collections []*extension.Collection
	catalogs    []catalogSource
	manifests   []string
	logger      *slog.Logger
}

type catalogSource struct {
	namespace string
	path      string
}

// Option configures New.
type Option func(*settings)

// WithoutBuiltin leaves the builtin catalog out.
func WithoutBuiltin() Option {
	return func(s *settings) { s.builtin = false }
}

// WithCatalogFile adds a YAML extension catalog. An empty namespace uses
// the path.
func WithCatalogFile(namespace, path string) Option {
	return func(s *settings) {
		s.catalogs = append(s.catalogs, catalogSource{namespace: namespace, path: path})
	}
}

// WithCollection adds an already built collection, such as one read from
// the store.
func WithCollection(c *extension.Collection) Option {
	return func(s *settings) {
		if c != nil {
			s.collections = append(s.collections, c)
		}
	}
}

// WithManifestFile adds a CUE host manifest.
func WithManifestFile(path string) Option {
	return func(s *settings) { s.manifests = append(s.manifests, path) }
}

// WithLogger sets the logger handed to the converters.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New loads every source and builds the function converters.
func New(opts ...Option) (*Registry, error) {
	s := &settings{
		builtin: true,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	var colls []*extension.Collection
	if s.builtin {
		colls = append(colls, extension.Builtin())
	}
	for _, src := range s.catalogs {
		c, err := loadCatalog(src)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("catalog loaded", "path", src.path, "functions", c.Len())
		colls = append(colls, c)
	}
	colls = append(colls, s.collections...)

	var bundles []*manifest.Bundle
	var scalar, aggregate, window []funcs.Sig
	for _, path := range s.manifests {
		b, err := loadManifest(path)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("manifest loaded", "path", path, "namespace", b.Namespace, "functions", b.Collection.Len())
		bundles = append(bundles, b)
		colls = append(colls, b.Collection)
		scalar = append(scalar, b.ScalarSigs...)
		aggregate = append(aggregate, b.AggregateSigs...)
		window = append(window, b.WindowSigs...)
	}

	decls, err := merge(colls)
	if err != nil {
		return nil, err
	}
	return &Registry{
		Decls:   decls,
		Funcs:   funcs.NewSet(decls, scalar, aggregate, window),
		Bundles: bundles,
		logger:  s.logger,
	}, nil
}

func merge(colls []*extension.Collection) (*extension.Collection, error) {
	if len(colls) == 0 {
		return extension.NewCollection()
	}
	decls, err := colls[0].Merge(colls[1:]...)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDuplicate, Source: "catalog", Message: err.Error()}
	}
	return decls, nil
}

func loadCatalog(src catalogSource) (*extension.Collection, error) {
	if _, err := os.Stat(src.path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Source: src.path, Message: "catalog file not found"}
	}
	c, err := extension.LoadFile(src.namespace, src.path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCatalog, Source: src.path, Message: err.Error()}
	}
	return c, nil
}

func loadManifest(path string) (*manifest.Bundle, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Source: path, Message: "manifest file not found"}
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, convertManifestError(path, err)
	}
	b, err := m.Build()
	if err != nil {
		return nil, convertManifestError(path, err)
	}
	return b, nil
}

// convertManifestError keeps the CUE position of a manifest error.
func convertManifestError(path string, err error) *LoadError {
	var ce *manifest.CompileError
	if errors.As(err, &ce) {
		return &LoadError{
			Code:    ErrCodeManifest,
			Source:  path,
			Message: ce.Field + ": " + ce.Message,
			Pos:     ce.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Source: path, Message: err.Error()}
}

// Forward returns a plan-to-tree converter over the registry.
func (r *Registry) Forward() *forward.Converter {
	return forward.NewConverter(r.Decls, forward.WithFunctions(r.Funcs), forward.WithLogger(r.logger))
}

// Reverse returns a tree-to-plan converter over the registry.
func (r *Registry) Reverse() *reverse.Converter {
	return reverse.NewConverter(r.Decls, reverse.WithFunctions(r.Funcs), reverse.WithLogger(r.logger))
}
