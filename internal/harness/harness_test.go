package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nidstore/internal/store"
)

func int32Ptr(v int32) *int32 { return &v }
func intPtr(v int) *int       { return &v }

func conceptMerge(n int32, stamps ...int32) Step {
	m := &MergeStep{Nid: n, Kind: "concept", Header: "2a"}
	for _, s := range stamps {
		m.Versions = append(m.Versions, VersionSpec{Stamp: s, Payload: "a0"})
	}
	return Step{Merge: m}
}

// TestScenarios runs every scenario on both backends against one golden
// file, so the backends must agree byte for byte.
func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			t.Run("memory", func(t *testing.T) {
				result, err := Run(scenario)
				require.NoError(t, err)
				assert.True(t, result.Pass, "errors: %v", result.Errors)
				require.NoError(t, AssertGolden(t, scenario.Name, result))
			})

			t.Run("sqlite", func(t *testing.T) {
				open := store.SQLiteOpener(filepath.Join(t.TempDir(), "store.db"))
				result, err := RunWithOpener(context.Background(), scenario, open)
				require.NoError(t, err)
				assert.True(t, result.Pass, "errors: %v", result.Errors)
				require.NoError(t, AssertGolden(t, scenario.Name, result))
			})
		})
	}
}

func TestRunWithGolden_Cancellation(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/cancellation.yaml")
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, scenario))
}

func TestRun_TraceRecordsSequence(t *testing.T) {
	scenario := &Scenario{
		Name:        "trace",
		Description: "trace",
		Flow: []Step{
			conceptMerge(1, 1),
			{Cancel: int32Ptr(9)},
			conceptMerge(1, 2),
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Equal(t,
		"step 1 merge nid=1 ok seq=1\n"+
			"step 2 cancel stamp=9 ok seq=1\n"+
			"step 3 merge nid=1 ok seq=2\n",
		result.TraceText())
	require.Len(t, result.Chronicles, 1)
	assert.True(t, strings.HasPrefix(result.Chronicles[0], "chronicle 1\nentries 3\n"))
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "failing",
		Flow:        []Step{conceptMerge(1, 1, 2)},
		Assertions: []Assertion{
			{Type: AssertStamps, Nid: int32Ptr(1), Stamps: []int32{1}},
			{Type: AssertEntries, Nid: int32Ptr(1), Count: intPtr(3)},
			{Type: AssertAbsent, Nid: int32Ptr(1)},
			{Type: AssertWriteSequence, Count: intPtr(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], "Assertion failed: stamps")
	assert.Contains(t, result.Errors[1], "assertions[2]")
}

func TestRun_UnexpectedOutcome(t *testing.T) {
	bad := Step{Merge: &MergeStep{Nid: 1, Data: "00000001"}}
	good := conceptMerge(1, 1)
	good.ExpectError = "DATA_CORRUPTION"

	scenario := &Scenario{
		Name:        "unexpected",
		Description: "unexpected",
		Flow:        []Step{bad, good},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Contains(t, result.Errors[1], "expected error DATA_CORRUPTION, got success")
	assert.Equal(t, "error=DATA_CORRUPTION", result.Trace[0].Outcome)
}

func TestRun_ResolveExpectation(t *testing.T) {
	scenario := &Scenario{
		Name:        "resolve",
		Description: "resolve",
		Flow: []Step{
			{Resolve: &ResolveStep{IDs: []string{"alpha"}, ExpectNid: int32Ptr(7)}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected nid 7, got -2147483647")
}

func TestRun_BadHex(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_hex",
		Description: "bad hex",
		Flow:        []Step{{Merge: &MergeStep{Nid: 1, Kind: "concept", Header: "zz"}}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestSnapshot(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Step: "1", Op: "cancel", Target: "stamp=3", Outcome: "ok", HasSeq: true})
	result.Chronicles = []string{"chronicle 1\nentries 1\n"}

	assert.Equal(t,
		"scenario demo\nstep 1 cancel stamp=3 ok seq=0\nchronicle 1\nentries 1\n",
		string(Snapshot("demo", result)))
}
