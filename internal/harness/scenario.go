package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a convergence scenario: a sequence of writes,
// cancellations and identity resolutions against a fresh store, followed
// by assertions on the stored chronicles.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Flow contains the steps, executed in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final store state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one flow entry. Exactly one operation field is set.
type Step struct {
	// Merge merges a chronicle into the store.
	Merge *MergeStep `yaml:"merge,omitempty"`

	// Cancel marks a stamp nid canceled.
	Cancel *int32 `yaml:"cancel,omitempty"`

	// Resolve resolves uuid names to a nid.
	Resolve *ResolveStep `yaml:"resolve,omitempty"`

	// ResetCaches clears the canceled-stamp registry.
	ResetCaches bool `yaml:"reset_caches,omitempty"`

	// Parallel runs the nested steps concurrently.
	Parallel []Step `yaml:"parallel,omitempty"`

	// ExpectError is the error code the step must fail with. Empty means
	// the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// MergeStep describes a chronicle to merge.
type MergeStep struct {
	Nid int32 `yaml:"nid"`

	// Kind is concept, pattern, semantic or stamp.
	Kind string `yaml:"kind,omitempty"`

	// Header is the hex payload following the header's kind and format
	// bytes.
	Header string `yaml:"header,omitempty"`

	// Pattern and Component index semantics.
	Pattern   *int32 `yaml:"pattern,omitempty"`
	Component *int32 `yaml:"component,omitempty"`

	Versions []VersionSpec `yaml:"versions,omitempty"`

	// Data is raw chronicle hex, used instead of Kind, Header and Versions
	// to write malformed input.
	Data string `yaml:"data,omitempty"`
}

// VersionSpec describes one version entry.
type VersionSpec struct {
	Stamp int32 `yaml:"stamp"`

	// Payload is the hex payload following the stamp.
	Payload string `yaml:"payload,omitempty"`
}

// ResolveStep resolves uuid names. Names map to deterministic uuids, so
// the same name always denotes the same uuid.
type ResolveStep struct {
	IDs []string `yaml:"ids"`

	// ExpectNid, if set, is the nid the resolution must return.
	ExpectNid *int32 `yaml:"expect_nid,omitempty"`
}

// Assertion validates final store state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stamps": chronicle of Nid holds versions with exactly Stamps, in order
	// - "entries": chronicle of Nid holds Count entries
	// - "absent": nothing is stored for Nid
	// - "canonical": chronicle of Nid is already in canonical order
	// - "write_sequence": write sequence equals Count
	// - "category": nids of Category are exactly Nids
	// - "semantics": semantics of Pattern and/or Component are exactly Nids
	Type string `yaml:"type"`

	Nid       *int32  `yaml:"nid,omitempty"`
	Stamps    []int32 `yaml:"stamps,omitempty"`
	Count     *int    `yaml:"count,omitempty"`
	Category  string  `yaml:"category,omitempty"`
	Pattern   *int32  `yaml:"pattern,omitempty"`
	Component *int32  `yaml:"component,omitempty"`
	Nids      []int32 `yaml:"nids,omitempty"`
}

// Assertion type constants.
const (
	AssertStamps        = "stamps"
	AssertEntries       = "entries"
	AssertAbsent        = "absent"
	AssertCanonical     = "canonical"
	AssertWriteSequence = "write_sequence"
	AssertCategory      = "category"
	AssertSemantics     = "semantics"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step, true); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(where string, step Step, top bool) error {
	ops := 0
	if step.Merge != nil {
		ops++
	}
	if step.Cancel != nil {
		ops++
	}
	if step.Resolve != nil {
		ops++
	}
	if step.ResetCaches {
		ops++
	}
	if step.Parallel != nil {
		ops++
	}
	if ops != 1 {
		return fmt.Errorf("%s: exactly one of merge, cancel, resolve, reset_caches, parallel is required", where)
	}

	if step.Merge != nil && step.Merge.Data == "" {
		if _, ok := kinds[step.Merge.Kind]; !ok {
			return fmt.Errorf("%s.merge: unknown kind %q", where, step.Merge.Kind)
		}
	}

	if step.Parallel != nil {
		if !top {
			return fmt.Errorf("%s: parallel steps cannot nest", where)
		}
		if len(step.Parallel) == 0 {
			return fmt.Errorf("%s: parallel list must be non-empty", where)
		}
		if step.ExpectError != "" {
			return fmt.Errorf("%s: expect_error belongs on the nested steps", where)
		}
		for i, nested := range step.Parallel {
			if err := validateStep(fmt.Sprintf("%s.parallel[%d]", where, i), nested, false); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStamps, AssertAbsent, AssertCanonical:
		if a.Nid == nil {
			return fmt.Errorf("assertions[%d]: nid is required for %s", index, a.Type)
		}
	case AssertEntries:
		if a.Nid == nil || a.Count == nil {
			return fmt.Errorf("assertions[%d]: nid and count are required for entries", index)
		}
	case AssertWriteSequence:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for write_sequence", index)
		}
	case AssertCategory:
		if a.Category == "" {
			return fmt.Errorf("assertions[%d]: category is required for category", index)
		}
	case AssertSemantics:
		if a.Pattern == nil && a.Component == nil {
			return fmt.Errorf("assertions[%d]: pattern or component is required for semantics", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
