package harness

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/nidstore/internal/chronicle"
	"github.com/roach88/nidstore/internal/ident"
	"github.com/roach88/nidstore/internal/nid"
	"github.com/roach88/nidstore/internal/store"
)

type kindTokens struct {
	header  chronicle.Token
	version chronicle.Token
}

var kinds = map[string]kindTokens{
	"concept":  {chronicle.ConceptChronology, chronicle.ConceptVersion},
	"pattern":  {chronicle.PatternChronology, chronicle.PatternVersion},
	"semantic": {chronicle.SemanticChronology, chronicle.SemanticVersion},
	"stamp":    {chronicle.StampChronology, chronicle.StampVersion},
}

// Harness executes scenarios against a Store.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a scenario against a fresh in-memory store.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOpener(context.Background(), scenario, store.NewMemoryBackend().Opener())
}

// RunWithOpener executes a scenario against a store over the backends
// produced by open. The backend must be empty for the result to be
// reproducible.
//
// Execution flow:
// 1. Start the store
// 2. Execute flow steps, recording one trace event per step
// 3. Evaluate assertions
// 4. Dump every stored chronicle
func RunWithOpener(ctx context.Context, scenario *Scenario, open store.Opener) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	st := store.New(open, store.WithLogger(logger), store.WithName(scenario.Name))
	if err := st.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start store: %w", err)
	}
	defer st.Close()

	h := &Harness{store: st, logger: logger}
	result := NewResult()

	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, strconv.Itoa(i+1), step, result); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i+1, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, st, scenario.Assertions) {
		result.AddError(msg)
	}

	chronicles, err := dumpChronicles(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to dump chronicles: %w", err)
	}
	result.Chronicles = chronicles

	return result, nil
}

// executeStep runs one top-level step and records its events.
func (h *Harness) executeStep(ctx context.Context, label string, step Step, result *Result) error {
	var events []TraceEvent

	if step.Parallel != nil {
		nested := make([]TraceEvent, len(step.Parallel))
		problems := make([]string, len(step.Parallel))
		errs := make([]error, len(step.Parallel))

		var wg sync.WaitGroup
		for i, s := range step.Parallel {
			wg.Add(1)
			go func(i int, s Step) {
				defer wg.Done()
				nested[i], problems[i], errs[i] = h.apply(ctx, fmt.Sprintf("%s.%d", label, i+1), s)
			}(i, s)
		}
		wg.Wait()

		if err := errors.Join(errs...); err != nil {
			return err
		}
		for _, p := range problems {
			if p != "" {
				result.AddError(p)
			}
		}
		events = append(events, TraceEvent{
			Step:    label,
			Op:      "parallel",
			Target:  fmt.Sprintf("steps=%d", len(step.Parallel)),
			Outcome: "ok",
		})
		events = append(events, nested...)
	} else {
		event, problem, err := h.apply(ctx, label, step)
		if err != nil {
			return err
		}
		if problem != "" {
			result.AddError(problem)
		}
		events = append(events, event)
	}

	seq, err := h.store.WriteSequence(ctx)
	if err != nil {
		return err
	}
	events[0].Seq = seq
	events[0].HasSeq = true

	for _, e := range events {
		result.AddTrace(e)
	}
	return nil
}

// apply runs a single non-parallel step. It returns the trace event, a
// validation problem (empty when the step met its expectation) and an
// error for failures of the scenario itself, such as bad hex.
func (h *Harness) apply(ctx context.Context, label string, step Step) (TraceEvent, string, error) {
	event := TraceEvent{Step: label, Outcome: "ok"}
	var stepErr error

	switch {
	case step.Merge != nil:
		m := step.Merge
		event.Op = "merge"
		event.Target = fmt.Sprintf("nid=%d", m.Nid)

		data, err := buildChronicle(m)
		if err != nil {
			return event, "", fmt.Errorf("step %s: %w", label, err)
		}
		pattern, component := nid.None, nid.None
		if m.Pattern != nil {
			pattern = nid.Nid(*m.Pattern)
		}
		if m.Component != nil {
			component = nid.Nid(*m.Component)
		}
		_, stepErr = h.store.Merge(ctx, nid.Nid(m.Nid), pattern, component, data)

	case step.Cancel != nil:
		event.Op = "cancel"
		event.Target = fmt.Sprintf("stamp=%d", *step.Cancel)
		h.store.AddCanceledStampNid(nid.Nid(*step.Cancel))

	case step.ResetCaches:
		event.Op = "reset_caches"
		event.Target = "canceled"
		h.store.ResetCaches()

	case step.Resolve != nil:
		event.Op = "resolve"
		event.Target = "ids=" + strings.Join(step.Resolve.IDs, ",")

		var n nid.Nid
		n, stepErr = h.store.NidForUUIDs(ctx, namedUUIDs(step.Resolve.IDs)...)
		if stepErr == nil {
			event.Outcome = fmt.Sprintf("nid=%d", n)
			if want := step.Resolve.ExpectNid; want != nil && nid.Nid(*want) != n {
				return event, fmt.Sprintf("step %s: expected nid %d, got %d", label, *want, n), nil
			}
		}

	default:
		return event, "", fmt.Errorf("step %s: no operation", label)
	}

	if stepErr != nil {
		code := errorCode(stepErr)
		event.Outcome = "error=" + code
		if code != step.ExpectError {
			return event, fmt.Sprintf("step %s: unexpected error: %v", label, stepErr), nil
		}
		h.logger.Debug("step failed as expected", "step", label, "code", code)
		return event, "", nil
	}
	if step.ExpectError != "" {
		return event, fmt.Sprintf("step %s: expected error %s, got success", label, step.ExpectError), nil
	}
	return event, "", nil
}

// buildChronicle serializes a merge step's chronicle.
func buildChronicle(m *MergeStep) ([]byte, error) {
	if m.Data != "" {
		data, err := hex.DecodeString(m.Data)
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		return data, nil
	}

	tokens := kinds[m.Kind]
	payload, err := hex.DecodeString(m.Header)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	c := chronicle.Chronicle{
		Header: append([]byte{byte(tokens.header), chronicle.FormatVersion}, payload...),
	}
	for i, v := range m.Versions {
		payload, err := hex.DecodeString(v.Payload)
		if err != nil {
			return nil, fmt.Errorf("versions[%d].payload: %w", i, err)
		}
		version := binary.BigEndian.AppendUint32([]byte{byte(tokens.version)}, uint32(v.Stamp))
		c.Versions = append(c.Versions, append(version, payload...))
	}
	return c.Encode(), nil
}

// namedUUIDs maps scenario id names to deterministic uuids.
func namedUUIDs(names []string) []uuid.UUID {
	ids := make([]uuid.UUID, len(names))
	for i, name := range names {
		ids[i] = uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
	}
	return ids
}

// errorCode maps a step error to the code used by expect_error.
func errorCode(err error) string {
	switch {
	case chronicle.IsDataCorruption(err):
		return string(chronicle.ErrCodeDataCorruption)
	case chronicle.IsUnsupportedEncoding(err):
		return string(chronicle.ErrCodeUnsupportedEncoding)
	case ident.IsEmptyIdentity(err):
		return string(ident.ErrCodeEmptyIdentity)
	case ident.IsIdentityConflict(err):
		return string(ident.ErrCodeIdentityConflict)
	case errors.Is(err, store.ErrNotRunning):
		return "NOT_RUNNING"
	}
	return "ERROR"
}

// dumpChronicles renders every stored chronicle in nid order.
func dumpChronicles(ctx context.Context, st *store.Store) ([]string, error) {
	var out []string
	err := st.ForEach(ctx, func(data []byte, n nid.Nid) error {
		out = append(out, fmt.Sprintf("chronicle %d\n%s", n, chronicle.Dump(data)))
		return nil
	})
	return out, err
}
