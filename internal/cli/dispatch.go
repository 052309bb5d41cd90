package cli

import (
	"encoding/hex"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nidstore/internal/remote"
)

// DispatchResult is the JSON payload of the dispatch command.
type DispatchResult struct {
	Operation string `json:"operation"`
	Response  string `json:"response"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch <frame-hex>...",
		Short: "Execute remote operation frames against the store",
		Long: `Execute remote operation request frames, given as hex, against the
store and print each response payload as hex. Frames run in order on one
store, so a later frame observes the writes of an earlier one.

A frame is the operation token (1 NID_FOR_UUIDS, 2 GET_BYTES, 3 MERGE)
followed by its payload.

Example:
  nidstore dispatch 0200000001`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchFrames(rootOpts, args, cmd)
		},
	}
	return cmd
}

func dispatchFrames(opts *RootOptions, args []string, cmd *cobra.Command) error {
	frames := make([][]byte, len(args))
	for i, arg := range args {
		frame, err := hex.DecodeString(strings.TrimSpace(arg))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid frame hex", err)
		}
		frames[i] = frame
	}

	st, done, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	out := opts.formatter(cmd)
	d := remote.NewDispatcher(st, opts.Logger)
	ctx := commandContext(cmd)

	results := make([]DispatchResult, 0, len(frames))
	var text strings.Builder
	for _, frame := range frames {
		resp, err := d.Dispatch(ctx, frame)
		if err != nil {
			return out.Fail("failed to dispatch", err)
		}
		op, _ := remote.ParseOperation(frame[0])
		results = append(results, DispatchResult{Operation: op.String(), Response: hex.EncodeToString(resp)})
		text.WriteString(op.String())
		text.WriteByte(' ')
		text.WriteString(hex.EncodeToString(resp))
		text.WriteByte('\n')
	}

	return out.Success(results, text.String())
}
