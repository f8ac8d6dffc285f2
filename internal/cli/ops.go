package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/store"
)

// OpsOptions holds flags for the ops command.
type OpsOptions struct {
	*RootOptions
	After int64
}

// OpEntry is one queued downstream operation.
type OpEntry struct {
	Seq   int64             `json:"seq" yaml:"seq"`
	Epoch string            `json:"epoch" yaml:"epoch"`
	Kind  string            `json:"kind" yaml:"kind"`
	Key   string            `json:"key" yaml:"key"`
	Attrs map[string]string `json:"attrs" yaml:"attrs"`
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List queued downstream operations",
		Long: `List the operations handed to the downstream writer, in order.

Examples:
  idemproxy ops
  idemproxy ops --after 120 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only operations with a higher sequence number")

	return cmd
}

func runOps(opts *OpsOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	ops, err := st.ReadOps(context.Background(), opts.After)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read operations", err)
	}

	f := opts.formatter(cmd)
	if f.Structured() {
		entries := make([]OpEntry, 0, len(ops))
		for _, op := range ops {
			entries = append(entries, opEntry(op))
		}
		return f.Success(entries)
	}

	w := cmd.OutOrStdout()
	if len(ops) == 0 {
		fmt.Fprintln(w, "No operations queued.")
		return nil
	}
	for _, op := range ops {
		fmt.Fprintf(w, "%6d  %-6s %s %s\n", op.Seq, op.Kind, op.Key, model.FromMap(op.Attrs).Canonical())
	}
	return nil
}

func opEntry(op store.Op) OpEntry {
	return OpEntry{Seq: op.Seq, Epoch: op.Epoch, Kind: op.Kind, Key: op.Key, Attrs: op.Attrs}
}
