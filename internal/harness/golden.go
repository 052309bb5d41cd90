package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result for golden comparison: the scenario name, the
// trace and the dump of every stored chronicle. Assertion failures are not
// part of the snapshot; callers check Result.Pass separately.
func Snapshot(scenarioName string, result *Result) []byte {
	var sb strings.Builder
	sb.WriteString("scenario ")
	sb.WriteString(scenarioName)
	sb.WriteByte('\n')
	sb.WriteString(result.TraceText())
	for _, c := range result.Chronicles {
		sb.WriteString(c)
	}
	return []byte(sb.String())
}

// RunWithGolden executes a scenario on an in-memory store and compares the
// snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the snapshot of an existing result against a
// golden file, so results from different backends share one fixture.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
	return nil
}
