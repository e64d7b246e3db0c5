// Package harness runs plan conversion scenarios.
//
// A scenario names a plan, the catalogs and manifests it needs, and the
// assertions its conversion must satisfy. The harness decodes the plan,
// converts it to optimizer trees and back, and evaluates the assertions
// against the trees, the round-tripped plan, or the conversion error.
//
// # Scenario Format
//
// Scenarios are YAML files. The plan is written inline in the protobuf
// JSON mapping of a Substrait plan, or referenced with plan_file:
//
//	name: custom_scalar_project
//	description: "A host function survives a round trip"
//	manifests:
//	  - host.cue
//	catalogs:
//	  - namespace: /functions_extra
//	    path: extra.yaml
//	plan:
//	  extensionUris: [{extensionUriAnchor: 1, uri: /functions_custom}]
//	  ...
//	assertions:
//	  - type: roundtrip
//	  - type: operator_count
//	    operator: CUSTOM_SCALAR
//	    count: 1
//
// Paths are relative to the scenario file.
//
// # Assertion Types
//
//   - roundtrip: the plan converts forward and back unchanged
//   - explain_contains: the explained trees contain text
//   - operator_count: an operator is called exactly count times
//   - error: conversion fails with the given error code
//   - fingerprint: the plan fingerprint equals value
//
// # Golden Files
//
// RunWithGolden compares the explained trees of a scenario against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
