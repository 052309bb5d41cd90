// Package harness runs convergence scenarios against a Store.
//
// A scenario is a YAML file describing writes, cancellations and identity
// resolutions, followed by assertions on what the store holds afterwards.
// Running a scenario produces a trace and a dump of every stored
// chronicle; golden files pin both, so the same scenario run on the
// in-memory and SQLite backends must produce byte-identical snapshots.
//
// # Scenario Format
//
//	name: two_writers_converge
//	description: "Merges from two writers converge"
//	flow:
//	  - merge:
//	      nid: 42
//	      kind: concept
//	      header: "2a"
//	      versions:
//	        - { stamp: 1, payload: "a0" }
//	  - cancel: 101
//	  - resolve:
//	      ids: [alpha, beta]
//	      expect_nid: -2147483647
//	  - parallel:
//	      - merge: { ... }
//	      - merge: { ... }
//	  - merge:
//	      nid: 7
//	      data: "00000001"
//	    expect_error: DATA_CORRUPTION
//	assertions:
//	  - type: stamps
//	    nid: 42
//	    stamps: [1, 2]
//
// Headers and payloads are hex. The harness prepends the kind and format
// bytes to a header and the kind and stamp to a version payload. Resolve
// ids are names, mapped to name-based uuids so runs are reproducible.
//
// # Assertion Types
//
//   - stamps: version stamps of a chronicle, in stored order
//   - entries: entry count of a chronicle, header included
//   - absent: nothing stored for a nid
//   - canonical: stored bytes are already in canonical order
//   - write_sequence: number of writes applied
//   - category: nids stored in a category
//   - semantics: semantic nids indexed by pattern and/or component
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/cancellation.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
