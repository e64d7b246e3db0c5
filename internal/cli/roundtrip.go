package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relbridge/internal/config"
	"github.com/roach88/relbridge/internal/store"
	"github.com/roach88/relbridge/internal/wire"
)

// RoundTripOptions holds flags for the roundtrip command.
type RoundTripOptions struct {
	*RootOptions
	Manifests []string
	Record    bool   // record the outcome in the database
	Name      string // name to record under (defaults to the file name)
}

// RoundTripResult is the outcome of converting a plan forward and back.
type RoundTripResult struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	OK          bool   `json:"ok"`
	Diff        string `json:"diff,omitempty"`
	Error       string `json:"error,omitempty"`
	Explain     string `json:"explain,omitempty"`
}

// NewRoundTripCommand creates the roundtrip command.
func NewRoundTripCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RoundTripOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "roundtrip <plan-file>",
		Short: "Convert a plan to operator trees and back",
		Long: `Convert a plan into operator trees, convert the trees back into a
plan and compare the result with the input.

Exit codes:
  0 - The plan came back unchanged
  1 - Conversion failed or the plan changed
  2 - Command error (unreadable plan, bad catalog, etc.)

Examples:
  relbridge roundtrip plan.json
  relbridge roundtrip plan.json --record --name nightly`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundTrip(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Manifests, "manifest", "m", nil, "additional host function manifest (repeatable)")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "record the outcome in the database")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name to record the round trip under")

	return cmd
}

func runRoundTrip(opts *RoundTripOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	logger := config.GetLogger(ctx)

	reg, err := loadRegistry(ctx, opts.RootOptions, opts.Manifests)
	if err != nil {
		return outputLoadError(f, err)
	}
	p, err := readPlan(cmd, path)
	if err != nil {
		return outputPlanError(f, path, err)
	}
	fp, err := wire.Fingerprint(p)
	if err != nil {
		return outputCommandError(f, ErrCodePlan, err.Error(), nil)
	}

	result := RoundTripResult{Name: opts.Name, Fingerprint: fp}
	if result.Name == "" {
		result.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	code := ""
	rt, convErr := reg.RoundTrip(p)
	if convErr != nil {
		code = conversionCode(convErr)
		result.Error = convErr.Error()
	} else {
		result.OK = rt.OK()
		result.Diff = rt.Diff
		result.Explain = rt.Explain()
	}
	logger.Info("round trip completed", "name", result.Name, "fingerprint", fp, "ok", result.OK)

	if opts.Record {
		if err := recordRoundTrip(f, opts.RootOptions, cmd, &result); err != nil {
			return err
		}
	}

	switch {
	case convErr != nil:
		_ = f.Failure(code, result.Error, result)
		return WrapExitError(ExitFailure, "conversion failed", convErr)
	case !result.OK:
		if f.Format == "json" {
			_ = f.Failure("PLAN_CHANGED", "plan changed", result)
		} else {
			fmt.Fprintf(f.Writer, "✗ %s: plan changed (-want +got):\n%s", result.Name, result.Diff)
		}
		return NewExitError(ExitFailure, "plan changed")
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ %s: round trip ok (%s)\n", result.Name, fp)
	f.VerboseLog("%s", result.Explain)
	return nil
}

func recordRoundTrip(f *OutputFormatter, opts *RootOptions, cmd *cobra.Command, result *RoundTripResult) error {
	id := store.UUIDv7Generator{}.Generate()
	st, err := openStore(f, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	_, err = st.RecordRoundTrip(cmd.Context(), store.RoundTrip{
		ID:          id,
		Name:        result.Name,
		Fingerprint: result.Fingerprint,
		OK:          result.OK,
		Diff:        result.Diff,
		Error:       result.Error,
	})
	if err != nil {
		return outputCommandError(f, ErrCodeStore, err.Error(), nil)
	}
	result.ID = id
	return nil
}
