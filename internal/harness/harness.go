package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/registry"
	"github.com/roach88/relbridge/internal/store"
	"github.com/roach88/relbridge/internal/wire"
)

// Harness runs scenarios. The zero configuration runs without a store and
// logs nothing.
type Harness struct {
	store  *store.Store
	ids    store.IDGenerator
	logger *slog.Logger
	extra  []registry.Option
}

// Option configures a Harness.
type Option func(*Harness)

// WithStore records every round trip in st.
func WithStore(st *store.Store) Option {
	return func(h *Harness) { h.store = st }
}

// WithIDGenerator sets how recorded round trips are identified. The
// default issues UUIDv7 IDs.
func WithIDGenerator(g store.IDGenerator) Option {
	return func(h *Harness) { h.ids = g }
}

// WithLogger sets the logger for the harness and the converters.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithRegistryOptions adds sources to every scenario's registry, after the
// scenario's own.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(h *Harness) { h.extra = append(h.extra, opts...) }
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		ids:    store.UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a scenario and evaluates its assertions.
//
// Errors loading the scenario's catalogs, manifests or plan are returned.
// A conversion failure is part of the result, since scenarios may expect
// it.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	opts := []registry.Option{registry.WithLogger(h.logger)}
	if scenario.NoBuiltin {
		opts = append(opts, registry.WithoutBuiltin())
	}
	for _, c := range scenario.Catalogs {
		opts = append(opts, registry.WithCatalogFile(c.Namespace, c.Path))
	}
	for _, m := range scenario.Manifests {
		opts = append(opts, registry.WithManifestFile(m))
	}
	opts = append(opts, h.extra...)

	reg, err := registry.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load functions: %w", err)
	}
	p, err := scenario.LoadPlan()
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	fp, err := wire.Fingerprint(p)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint plan: %w", err)
	}

	result := NewResult()
	result.Fingerprint = fp

	rt, convErr := reg.RoundTrip(p)
	if convErr != nil {
		result.ConvertError = convErr.Error()
		result.ErrorCode = string(converr.CodeOf(convErr))
	} else {
		result.trees = rt.Trees
		result.Explain = rt.Explain()
		result.Diff = rt.Diff
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	// An unexpected conversion failure fails the scenario even when no
	// assertion looked at it.
	if convErr != nil && !scenario.ExpectsError() && result.Pass {
		result.AddError("conversion failed: " + result.ConvertError)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"fingerprint", fp,
		"pass", result.Pass,
	)

	if h.store != nil {
		if err := h.record(ctx, scenario, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (h *Harness) record(ctx context.Context, scenario *Scenario, result *Result) error {
	_, err := h.store.RecordRoundTrip(ctx, store.RoundTrip{
		ID:          h.ids.Generate(),
		Name:        scenario.Name,
		Fingerprint: result.Fingerprint,
		OK:          result.ConvertError == "" && result.Diff == "",
		Diff:        result.Diff,
		Error:       result.ConvertError,
	})
	if err != nil {
		return fmt.Errorf("failed to record scenario %s: %w", scenario.Name, err)
	}
	return nil
}
