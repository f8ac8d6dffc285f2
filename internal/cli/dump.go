package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idemproxy/internal/model"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Prefix string
	Digest bool
}

// DumpResult is the structured output of dump.
type DumpResult struct {
	Keys     map[string]map[string]string `json:"keys" yaml:"keys"`
	Digest   string                       `json:"digest,omitempty" yaml:"digest,omitempty"`
	KeyCount int                          `json:"key_count" yaml:"key_count"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "List persisted keys and fields",
		Long: `List the persisted keyspace, optionally restricted to a key prefix.
With --digest a content hash of the listed keys is printed as well, so two
databases can be compared.

Examples:
  idemproxy dump
  idemproxy dump --prefix ATTR2OID_
  idemproxy dump --prefix ASIC_STATE: --format yaml
  idemproxy dump --digest`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only keys starting with this prefix")
	cmd.Flags().BoolVar(&opts.Digest, "digest", false, "print a digest of the listed keys")

	return cmd
}

func runDump(opts *DumpOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.Snapshot(ctx, opts.Prefix)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read keyspace", err)
	}

	result := DumpResult{Keys: snap, KeyCount: len(snap)}
	if opts.Digest {
		if result.Digest, err = model.KeyspaceDigest(snap); err != nil {
			return WrapExitError(ExitCommandError, "failed to hash keyspace", err)
		}
	}

	f := opts.formatter(cmd)
	if f.Structured() {
		return f.Success(result)
	}

	entries, err := st.Entries(ctx, opts.Prefix)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read keyspace", err)
	}
	w := cmd.OutOrStdout()
	last := ""
	for _, e := range entries {
		if e.Key != last {
			fmt.Fprintln(w, e.Key)
			last = e.Key
		}
		fmt.Fprintf(w, "  %s = %s\n", e.Field, e.Value)
	}
	fmt.Fprintf(w, "%d keys\n", result.KeyCount)
	if result.Digest != "" {
		fmt.Fprintf(w, "digest %s\n", result.Digest)
	}
	return nil
}
