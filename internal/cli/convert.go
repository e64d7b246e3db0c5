package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/relbridge/internal/optree"
	"github.com/roach88/relbridge/internal/wire"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	Manifests []string
}

// ConvertResult is the output of a successful conversion.
type ConvertResult struct {
	Fingerprint string `json:"fingerprint"`
	Roots       int    `json:"roots"`
	Explain     string `json:"explain"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <plan-file>",
		Short: "Convert a plan into operator trees",
		Long: `Convert every root of a plan into an operator tree and print it.

The plan is read as protojson when the file ends in .json and as binary
protobuf otherwise. Use "-" to read binary protobuf from stdin.

Exit codes:
  0 - Plan converted
  1 - A function call could not be resolved
  2 - Command error (unreadable plan, bad catalog, etc.)

Examples:
  relbridge convert plan.json
  relbridge convert plan.bin --manifest host.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Manifests, "manifest", "m", nil, "additional host function manifest (repeatable)")

	return cmd
}

func runConvert(opts *ConvertOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	reg, err := loadRegistry(cmd.Context(), opts.RootOptions, opts.Manifests)
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
	f.VerboseLog("Converting %s (%d root(s), fingerprint %s)", path, len(p.Relations), fp)

	trees, err := reg.Convert(p)
	if err != nil {
		_ = f.Failure(conversionCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "conversion failed", err)
	}

	result := ConvertResult{
		Fingerprint: fp,
		Roots:       len(trees),
		Explain:     optree.ExplainRoots(trees),
	}
	if f.Format == "json" {
		return f.Success(result)
	}
	_, err = f.Writer.Write([]byte(result.Explain))
	return err
}
