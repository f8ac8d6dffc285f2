package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/idemproxy/internal/repo"
)

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Load the persisted bookkeeping and report what was found",
		Long: `Rebuild the in-memory tables from the persisted keyspace, as a process
does on start, and print a summary.

Exit codes:
  0 - Bookkeeping loaded
  2 - Command error (database cannot be opened or read)

Examples:
  idemproxy restore --db ./idemproxy.db
  idemproxy restore --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(rootOpts, cmd)
		},
	}
}

func runRestore(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(context.Background(), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	f := opts.formatter(cmd)
	if f.Structured() {
		return f.Success(s.report)
	}
	writeRestoreText(cmd.OutOrStdout(), s.report)
	return nil
}

func writeRestoreText(w io.Writer, r repo.RestoreReport) {
	fmt.Fprintf(w, "Restored %d objects\n", r.Objects)
	fmt.Fprintf(w, "  current fingerprints: %d\n", r.CurrentFingerprints)
	fmt.Fprintf(w, "  default fingerprints: %d\n", r.DefaultFingerprints)
	fmt.Fprintf(w, "  default snapshots:    %d\n", r.DefaultSnapshots)
	fmt.Fprintf(w, "  hardware defaults:    %d\n", r.HardwareDefaults)
	fmt.Fprintf(w, "  owners:               %d\n", r.Owners)

	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped %d entries:\n", len(r.Skipped))
		for _, k := range r.Skipped {
			fmt.Fprintf(w, "  %s\n", k)
		}
	}
	if len(r.Ambiguous) > 0 {
		fmt.Fprintf(w, "\nAmbiguous fingerprints:\n")
		for _, a := range r.Ambiguous {
			fmt.Fprintf(w, "  %s (%s): %v\n", a.Fingerprint, a.Type, a.Objects)
		}
	}
}
