package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relbridge/internal/converr"
	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/wire"
)

// Scenario defines a conversion scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// NoBuiltin leaves the builtin catalog out.
	NoBuiltin bool `yaml:"no_builtin,omitempty"`

	// Catalogs lists YAML extension catalogs to load.
	Catalogs []CatalogRef `yaml:"catalogs,omitempty"`

	// Manifests lists CUE host manifests to load.
	Manifests []string `yaml:"manifests,omitempty"`

	// Plan is the plan in the protobuf JSON mapping. Exactly one of Plan
	// and PlanFile is set.
	Plan map[string]any `yaml:"plan,omitempty"`

	// PlanFile is a plan file: .json for the JSON mapping, anything else
	// for binary protobuf.
	PlanFile string `yaml:"plan_file,omitempty"`

	// Assertions validate the conversion.
	Assertions []Assertion `yaml:"assertions"`

	// Dir is the directory relative paths were resolved against.
	Dir string `yaml:"-"`
}

// CatalogRef names a YAML extension catalog. An empty Namespace uses the
// path.
type CatalogRef struct {
	Namespace string `yaml:"namespace,omitempty"`
	Path      string `yaml:"path"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "roundtrip": plan converts forward and back unchanged
	// - "explain_contains": explained trees contain Text
	// - "operator_count": Operator is called exactly Count times
	// - "error": conversion fails with error code Code
	// - "fingerprint": plan fingerprint equals Value
	Type string `yaml:"type"`

	Text     string `yaml:"text,omitempty"`
	Operator string `yaml:"operator,omitempty"`
	Count    int    `yaml:"count,omitempty"`
	Code     string `yaml:"code,omitempty"`
	Value    string `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertRoundTrip       = "roundtrip"
	AssertExplainContains = "explain_contains"
	AssertOperatorCount   = "operator_count"
	AssertError           = "error"
	AssertFingerprint     = "fingerprint"
)

// LoadScenario reads and parses a scenario YAML file. Relative catalog,
// manifest and plan paths are resolved against the file's directory.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving relative paths against
// dir.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Dir = dir
	for i := range scenario.Catalogs {
		scenario.Catalogs[i].Path = resolve(dir, scenario.Catalogs[i].Path)
	}
	for i := range scenario.Manifests {
		scenario.Manifests[i] = resolve(dir, scenario.Manifests[i])
	}
	scenario.PlanFile = resolve(dir, scenario.PlanFile)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(dir, path string) string {
	if path == "" || dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Plan == nil) == (s.PlanFile == "") {
		return fmt.Errorf("exactly one of plan and plan_file is required")
	}
	if s.PlanFile != "" {
		if _, err := os.Stat(s.PlanFile); os.IsNotExist(err) {
			return fmt.Errorf("plan file not found: %s", s.PlanFile)
		}
	}
	for i, c := range s.Catalogs {
		if c.Path == "" {
			return fmt.Errorf("catalogs[%d]: path is required", i)
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRoundTrip:
	case AssertExplainContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for explain_contains", index)
		}
	case AssertOperatorCount:
		if a.Operator == "" {
			return fmt.Errorf("assertions[%d]: operator is required for operator_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for operator_count", index)
		}
	case AssertError:
		switch converr.Code(a.Code) {
		case converr.CodeUnresolvedFunction, converr.CodeAmbiguousFunction,
			converr.CodeUnmappedSymbol, converr.CodeTypeMismatch:
		default:
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	case AssertFingerprint:
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for fingerprint", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// ExpectsError reports whether the scenario expects conversion to fail.
func (s *Scenario) ExpectsError() bool {
	for _, a := range s.Assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}

// LoadPlan decodes the scenario's plan.
func (s *Scenario) LoadPlan() (*plan.Plan, error) {
	if s.PlanFile != "" {
		data, err := os.ReadFile(s.PlanFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read plan file: %w", err)
		}
		if strings.EqualFold(filepath.Ext(s.PlanFile), ".json") {
			return wire.UnmarshalJSON(data)
		}
		return wire.Unmarshal(data)
	}
	// YAML decodes the inline plan into plain maps, which re-encode as the
	// JSON mapping.
	data, err := json.Marshal(s.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inline plan: %w", err)
	}
	return wire.UnmarshalJSON(data)
}
