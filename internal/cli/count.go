package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/nidstore/internal/chronicle"
	"github.com/roach88/nidstore/internal/nid"
	"github.com/roach88/nidstore/internal/store"
)

// KindCount tallies the chronicles of one kind.
type KindCount struct {
	Kind       string `json:"kind"`
	Chronicles int    `json:"chronicles"`
	Versions   int    `json:"versions"`
}

// CountResult is the JSON payload of the count command.
type CountResult struct {
	Kinds      []KindCount `json:"kinds"`
	Chronicles int         `json:"chronicles"`
	Versions   int         `json:"versions"`
}

// tally accumulates per-kind counts. It is safe for concurrent visitors.
type tally struct {
	mu     sync.Mutex
	counts map[chronicle.Token]*KindCount
}

func newTally() *tally {
	return &tally{counts: make(map[chronicle.Token]*KindCount)}
}

func (t *tally) visit(data []byte, n nid.Nid) error {
	c, err := chronicle.Decode(data)
	if err != nil {
		return fmt.Errorf("nid %d: %w", int32(n), err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	kc, ok := t.counts[c.Kind()]
	if !ok {
		kc = &KindCount{Kind: c.Kind().String()}
		t.counts[c.Kind()] = kc
	}
	kc.Chronicles++
	kc.Versions += len(c.Versions)
	return nil
}

func (t *tally) result() CountResult {
	var r CountResult
	kinds := make([]chronicle.Token, 0, len(t.counts))
	for kind := range t.counts {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		kc := *t.counts[kind]
		r.Kinds = append(r.Kinds, kc)
		r.Chronicles += kc.Chronicles
		r.Versions += kc.Versions
	}
	return r
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count stored chronicles per kind",
		Long: `Walk every stored chronicle twice, sequentially and with the parallel
traversal, tallying chronicles and versions per kind. The two tallies must
agree.

Exit codes:
  0 - Counts printed
  1 - A chronicle failed to decode, or the tallies disagree
  2 - Command error

Example:
  nidstore count --backend sqlite --db ./store.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return countChronicles(rootOpts, cmd)
		},
	}
	return cmd
}

func countChronicles(opts *RootOptions, cmd *cobra.Command) error {
	st, done, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer done()

	out := opts.formatter(cmd)
	sequential, parallel, err := countBoth(commandContext(cmd), st)
	if err != nil {
		return out.Fail("failed to count", err)
	}
	if !slices.Equal(sequential.Kinds, parallel.Kinds) {
		msg := fmt.Sprintf("sequential and parallel counts differ: %v, %v", sequential.Kinds, parallel.Kinds)
		if err := out.Error("E_COUNT_MISMATCH", msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	return out.Success(sequential, formatCounts(sequential))
}

// countBoth runs the sequential and the parallel traversal.
func countBoth(ctx context.Context, st *store.Store) (CountResult, CountResult, error) {
	seq := newTally()
	if err := st.ForEach(ctx, seq.visit); err != nil {
		return CountResult{}, CountResult{}, err
	}
	par := newTally()
	if err := st.ForEachParallel(ctx, par.visit); err != nil {
		return CountResult{}, CountResult{}, err
	}
	return seq.result(), par.result(), nil
}

func formatCounts(r CountResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-10s %10s %10s\n", "kind", "chronicles", "versions")
	for _, kc := range r.Kinds {
		fmt.Fprintf(&sb, "%-10s %10d %10d\n", kc.Kind, kc.Chronicles, kc.Versions)
	}
	fmt.Fprintf(&sb, "%-10s %10d %10d\n", "total", r.Chronicles, r.Versions)
	return sb.String()
}
