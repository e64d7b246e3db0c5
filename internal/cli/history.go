package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relbridge/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Failed bool // only list failed round trips
}

// HistoryResult lists recorded round trips.
type HistoryResult struct {
	RoundTrips []store.RoundTrip `json:"round_trips"`
	Stats      HistoryStats      `json:"stats"`
}

// HistoryStats summarizes a history listing.
type HistoryStats struct {
	Total  int `json:"total"`
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [fingerprint]",
		Short: "Show recorded round trips",
		Long: `Show the round trips recorded by "roundtrip --record" and "test --record",
oldest first. A fingerprint restricts the listing to one plan.

Examples:
  relbridge history
  relbridge history 3f9a... --format json
  relbridge history --failed`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fingerprint := ""
			if len(args) == 1 {
				fingerprint = args[0]
			}
			return runHistory(opts, fingerprint, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only show failed round trips")

	return cmd
}

func runHistory(opts *HistoryOptions, fingerprint string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(f, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	all, err := st.RoundTrips(cmd.Context(), fingerprint)
	if err != nil {
		return outputCommandError(f, ErrCodeStore, err.Error(), nil)
	}

	result := HistoryResult{RoundTrips: []store.RoundTrip{}}
	for _, rt := range all {
		if rt.OK {
			result.Stats.OK++
		} else {
			result.Stats.Failed++
		}
		if opts.Failed && rt.OK {
			continue
		}
		result.RoundTrips = append(result.RoundTrips, rt)
	}
	result.Stats.Total = len(all)

	if f.Format == "json" {
		return f.Success(result)
	}
	if len(result.RoundTrips) == 0 {
		fmt.Fprintln(f.Writer, "No round trips recorded.")
		return nil
	}
	for _, rt := range result.RoundTrips {
		mark := "✓"
		if !rt.OK {
			mark = "✗"
		}
		fmt.Fprintf(f.Writer, "%s [%d] %s %s\n", mark, rt.Seq, rt.Name, rt.Fingerprint)
		if rt.Error != "" {
			fmt.Fprintf(f.Writer, "    %s\n", rt.Error)
		}
		if rt.Diff != "" {
			f.VerboseLog("%s", rt.Diff)
		}
	}
	fmt.Fprintf(f.Writer, "\n%d ok, %d failed, %d total\n", result.Stats.OK, result.Stats.Failed, result.Stats.Total)
	return nil
}
