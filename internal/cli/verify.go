package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idemproxy/internal/repo"
)

// VerifyResult is the structured output of verify.
type VerifyResult struct {
	Objects    int              `json:"objects" yaml:"objects"`
	Violations []repo.Violation `json:"violations" yaml:"violations"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the bookkeeping for inconsistencies",
		Long: `Restore the bookkeeping and check that every object's fingerprints
resolve back to it and that no fingerprint or owner tag is left dangling.

Exit codes:
  0 - No violations
  1 - Violations found
  2 - Command error (database cannot be opened or read)

Examples:
  idemproxy verify --db ./idemproxy.db
  idemproxy verify --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(context.Background(), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	violations := s.repo.Verify()
	result := VerifyResult{Objects: s.report.Objects, Violations: violations}
	if result.Violations == nil {
		result.Violations = []repo.Violation{}
	}

	f := opts.formatter(cmd)
	if f.Structured() {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, v := range violations {
			fmt.Fprintf(w, "✗ %s\n", v)
		}
		if len(violations) == 0 {
			fmt.Fprintf(w, "✓ %d objects, no violations\n", result.Objects)
		} else {
			fmt.Fprintf(w, "\n%d objects, %d violations\n", result.Objects, len(violations))
		}
	}

	if len(violations) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d violations", len(violations)))
	}
	return nil
}
