package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idemproxy/internal/engine"
	"github.com/roach88/idemproxy/internal/model"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Switch string
	Owner  string
}

// ObjectResult is printed by the lifecycle commands.
type ObjectResult struct {
	Op     string `json:"op" yaml:"op"`
	Key    string `json:"key" yaml:"key"`
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Status string `json:"status" yaml:"status"`
}

func (r ObjectResult) String() string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("%s %s: %s", r.Op, r.Key, r.Status)
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <TYPE> [field=value ...]",
		Short: "Create an object unless an identical one exists",
		Long: `Create an object of TYPE with the given attributes. If an object with the
same type, owner and attributes already exists its id is printed and
nothing is written.

Examples:
  idemproxy create SWITCH init_switch=true
  idemproxy create PORT speed=100000 hw_lane_list=1,2,3,4 --switch 0x121000000000000
  idemproxy create VLAN vlan_id=100 --owner teamd`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Switch, "switch", "", "switch id the object is created on")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner tag scoping the object's fingerprint")

	return cmd
}

func runCreate(opts *CreateOptions, args []string, cmd *cobra.Command) error {
	attrs, err := parseFieldValues(args[1:])
	if err != nil {
		return err
	}
	req := engine.CreateRequest{
		Type:  model.ObjectType(args[0]),
		Attrs: attrs,
		Owner: opts.Owner,
	}
	if opts.Switch != "" {
		if req.SwitchID, err = model.ParseObjectID(opts.Switch); err != nil {
			return WrapExitError(ExitCommandError, "invalid --switch", err)
		}
	}

	ctx := context.Background()
	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.engine.Create(ctx, req)
	if err != nil {
		return lifecycleError("create", err)
	}
	return opts.formatter(cmd).Success(ObjectResult{
		Op:     "create",
		Key:    model.KeyFor(req.Type, id).String(),
		ID:     id.String(),
		Status: string(engine.StatusSuccess),
	})
}

// NewCreateEntryCommand creates the create-entry command.
func NewCreateEntryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create-entry <TYPE:entry> [field=value ...]",
		Short: "Create a route, neighbor or FDB entry unless it exists",
		Long: `Create a structured-key entry. Entries are identified by their key, so a
second create of the same key is skipped.

Examples:
  idemproxy create-entry 'ROUTE_ENTRY:{"dest":"10.0.0.0/24","vr":"0x3000000000001"}' packet_action=FORWARD`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateEntry(rootOpts, args, cmd)
		},
	}
}

func runCreateEntry(opts *RootOptions, args []string, cmd *cobra.Command) error {
	key, err := parseObjectKey(args[0])
	if err != nil {
		return err
	}
	attrs, err := parseFieldValues(args[1:])
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.CreateEntry(ctx, key, attrs); err != nil {
		return lifecycleError("create-entry", err)
	}
	return opts.formatter(cmd).Success(ObjectResult{Op: "create-entry", Key: key.String(), Status: string(engine.StatusSuccess)})
}

// SetOptions holds flags for the set command.
type SetOptions struct {
	*RootOptions
	Owner string
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <KEY> <field=value>",
		Short: "Set one attribute of an object",
		Long: `Set one attribute. Setting the value the object already has writes
nothing.

Examples:
  idemproxy set PORT:0x101000000000001 admin_state=true
  idemproxy set VLAN:0x126000000000001 learn_disable=true --owner teamd`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner tag, must match the tag recorded at creation")

	return cmd
}

func runSet(opts *SetOptions, args []string, cmd *cobra.Command) error {
	key, err := parseObjectKey(args[0])
	if err != nil {
		return err
	}
	fv, err := model.ParseFieldValue(args[1])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid attribute", err)
	}

	ctx := context.Background()
	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.Set(ctx, key, fv, opts.Owner); err != nil {
		return lifecycleError("set", err)
	}
	return opts.formatter(cmd).Success(ObjectResult{Op: "set", Key: key.String(), Status: string(engine.StatusSuccess)})
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <KEY>",
		Short: "Remove an object and its bookkeeping",
		Long: `Remove an object. Removing an object that no longer exists succeeds
without writing anything.

Examples:
  idemproxy remove PORT:0x101000000000001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(rootOpts, args, cmd)
		},
	}
}

func runRemove(opts *RootOptions, args []string, cmd *cobra.Command) error {
	key, err := parseObjectKey(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.Remove(ctx, key); err != nil {
		return lifecycleError("remove", err)
	}
	return opts.formatter(cmd).Success(ObjectResult{Op: "remove", Key: key.String(), Status: string(engine.StatusSuccess)})
}

func parseObjectKey(s string) (model.ObjectKey, error) {
	k, err := model.ParseObjectKey(s)
	if err != nil {
		return model.ObjectKey{}, WrapExitError(ExitCommandError, "invalid object key", err)
	}
	return k, nil
}

func parseFieldValues(args []string) ([]model.FieldValue, error) {
	out := make([]model.FieldValue, 0, len(args))
	for _, a := range args {
		fv, err := model.ParseFieldValue(a)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid attribute", err)
		}
		out = append(out, fv)
	}
	return out, nil
}
