package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden files live, relative to the test's package
// or to a scenario directory.
const GoldenDir = "testdata/golden"

// Snapshot renders the part of a result that golden files pin down: the
// explained trees, or the conversion error code for scenarios that fail.
func Snapshot(scenario *Scenario, result *Result) []byte {
	if result.ConvertError != "" {
		return []byte(fmt.Sprintf("-- %s\nerror: %s\n", scenario.Name, result.ErrorCode))
	}
	return []byte(fmt.Sprintf("-- %s\n%s", scenario.Name, result.Explain))
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(scenario, result))
}

// GoldenPath returns the golden file of a scenario loaded from dir, in a
// golden directory next to the scenario files.
func GoldenPath(dir string, scenario *Scenario) string {
	return filepath.Join(dir, "golden", scenario.Name+".golden")
}

// UpdateGolden writes the snapshot of result as the scenario's golden file.
func UpdateGolden(path string, scenario *Scenario, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, Snapshot(scenario, result), 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether result matches the golden file at path.
// A missing golden file is reported with ok false and exists false.
func CompareGolden(path string, scenario *Scenario, result *Result) (ok, exists bool, err error) {
	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, true, fmt.Errorf("failed to read golden file: %w", err)
	}
	return string(want) == string(Snapshot(scenario, result)), true, nil
}
