package cli

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/roach88/nidstore/internal/chronicle"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Hex       string
	Canonical bool
}

// DecodeResult is the JSON payload of the decode command.
type DecodeResult struct {
	Hex  string `json:"hex"`
	Dump string `json:"dump"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Print a serialized chronicle without a store",
		Long: `Decode a serialized chronicle and print one entry per line.
With --canonical the chronicle is first rewritten into canonical order.

Exit codes:
  0 - Chronicle decoded
  1 - Malformed chronicle (DATA_CORRUPTION or UNSUPPORTED_ENCODING)
  2 - Command error

Example:
  nidstore decode ./chronicle.bin
  nidstore decode --canonical --hex 00000001000000070101420000000000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return decodeChronicle(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Hex, "hex", "", "chronicle bytes as hex")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "rewrite into canonical order first")

	return cmd
}

func decodeChronicle(opts *DecodeOptions, args []string, cmd *cobra.Command) error {
	data, err := readInput(opts.Hex, args)
	if err != nil {
		return err
	}

	out := opts.formatter(cmd)
	if opts.Canonical {
		data, err = chronicle.Canonicalize(data, nil)
	} else {
		_, err = chronicle.Decode(data)
	}
	if err != nil {
		return out.Fail("failed to decode", err)
	}

	dump := chronicle.Dump(data)
	return out.Success(DecodeResult{Hex: hex.EncodeToString(data), Dump: dump}, dump)
}
