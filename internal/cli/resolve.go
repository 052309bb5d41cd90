package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nidstore/internal/ident"
)

// ResolveResult is the JSON payload of the resolve command.
type ResolveResult struct {
	Nid   int32  `json:"nid"`
	UUIDs string `json:"uuids"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <uuid>[,<uuid>...] ...",
		Short: "Resolve uuids to their nid",
		Long: `Resolve an identity class of uuids to its nid, allocating one when
none of the uuids is known. All arguments name the same component.

Example:
  nidstore resolve --backend sqlite --db ./store.db 5f0c1a4e-...,8d2b7e19-...`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveIDs(rootOpts, args, cmd)
		},
	}
	return cmd
}

func resolveIDs(opts *RootOptions, args []string, cmd *cobra.Command) error {
	pid, err := ident.ParsePublicID(strings.Join(args, ","))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid uuid", err)
	}

	st, done, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	out := opts.formatter(cmd)
	n, err := st.NidForPublicID(commandContext(cmd), pid)
	if err != nil {
		return out.Fail("failed to resolve", err)
	}

	return out.Success(
		ResolveResult{Nid: int32(n), UUIDs: pid.String()},
		fmt.Sprintf("%d\n", int32(n)),
	)
}
