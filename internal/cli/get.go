package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nidstore/internal/chronicle"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Raw bool
}

// ChronicleResult is the JSON payload of commands that print a chronicle.
type ChronicleResult struct {
	Nid  int32  `json:"nid"`
	Hex  string `json:"hex"`
	Dump string `json:"dump"`
}

func newChronicleResult(n int32, data []byte) ChronicleResult {
	return ChronicleResult{Nid: n, Hex: hex.EncodeToString(data), Dump: chronicle.Dump(data)}
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <nid>",
		Short: "Print the chronicle stored for a nid",
		Long: `Print the chronicle stored for a nid, one entry per line.

Exit codes:
  0 - Chronicle printed
  1 - Nothing stored for the nid
  2 - Command error

Example:
  nidstore get --backend sqlite --db ./store.db -- -2147483647
  nidstore get --raw 42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getChronicle(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print the stored bytes as hex")

	return cmd
}

func getChronicle(opts *GetOptions, arg string, cmd *cobra.Command) error {
	n, err := parseNid(arg)
	if err != nil {
		return err
	}

	st, done, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	out := opts.formatter(cmd)
	data, err := st.Get(commandContext(cmd), n)
	if err != nil {
		return out.Fail("failed to get chronicle", err)
	}
	if data == nil {
		msg := fmt.Sprintf("no chronicle stored for nid %d", int32(n))
		if err := out.Error("E_NOT_FOUND", msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	result := newChronicleResult(int32(n), data)
	text := result.Dump
	if opts.Raw {
		text = result.Hex + "\n"
	}
	return out.Success(result, text)
}
