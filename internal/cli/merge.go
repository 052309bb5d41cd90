package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/nidstore/internal/nid"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Hex       string
	Pattern   int32
	Component int32
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <nid> [file]",
		Short: "Merge a chronicle into the store",
		Long: `Merge a serialized chronicle into the chronicle stored for a nid and
print the result. The chronicle is read from a file or given as --hex.
--pattern and --component index semantic chronicles and are ignored for
other kinds.

Example:
  nidstore merge --backend sqlite --db ./store.db 42 ./chronicle.bin
  nidstore merge 42 --hex 000000020000000701012a00000001000000050400000001`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mergeChronicle(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Hex, "hex", "", "chronicle bytes as hex")
	cmd.Flags().Int32Var(&opts.Pattern, "pattern", int32(nid.None), "pattern nid of a semantic")
	cmd.Flags().Int32Var(&opts.Component, "component", int32(nid.None), "referenced component nid of a semantic")

	return cmd
}

func mergeChronicle(opts *MergeOptions, args []string, cmd *cobra.Command) error {
	n, err := parseNid(args[0])
	if err != nil {
		return err
	}
	data, err := readInput(opts.Hex, args[1:])
	if err != nil {
		return err
	}

	st, done, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	out := opts.formatter(cmd)
	merged, err := st.Merge(commandContext(cmd), n, nid.Nid(opts.Pattern), nid.Nid(opts.Component), data)
	if err != nil {
		return out.Fail("failed to merge", err)
	}
	out.VerboseLog("merged %d bytes into nid %d", len(data), int32(n))

	result := newChronicleResult(int32(n), merged)
	return out.Success(result, result.Dump)
}
