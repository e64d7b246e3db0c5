package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relbridge/internal/plan"
	"github.com/roach88/relbridge/internal/wire"
)

func TestLoadScenario_Inline(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/builtin_filter_project.yaml")
	require.NoError(t, err)

	assert.Equal(t, "builtin_filter_project", s.Name)
	assert.Equal(t, "testdata/scenarios", s.Dir)
	assert.NotNil(t, s.Plan)
	assert.Empty(t, s.PlanFile)
	require.Len(t, s.Assertions, 3)
	assert.Equal(t, AssertOperatorCount, s.Assertions[2].Type)
	assert.Equal(t, "UPPER", s.Assertions[2].Operator)
	assert.Equal(t, 1, s.Assertions[2].Count)
	assert.False(t, s.ExpectsError())

	p, err := s.LoadPlan()
	require.NoError(t, err)
	require.Len(t, p.Relations, 1)
	assert.Equal(t, []string{"upper_b"}, p.Relations[0].Names)
	proj, ok := p.Relations[0].Input.(*plan.Project)
	require.True(t, ok, "got %T", p.Relations[0].Input)
	assert.Equal(t, []int{2}, proj.Remap)
}

func TestLoadScenario_ResolvesPaths(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/custom_aggregate.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join("testdata", "scenarios", "host.cue")}, s.Manifests)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "custom_aggregate.json"), s.PlanFile)

	p, err := s.LoadPlan()
	require.NoError(t, err)
	_, ok := p.Relations[0].Input.(*plan.Aggregate)
	assert.True(t, ok)
}

func TestLoadScenario_ExpectsError(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/unknown_function.yaml")
	require.NoError(t, err)
	assert.True(t, s.ExpectsError())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nonexistent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\nplan: {}\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nplan: {}\nassertions: [{type: roundtrip}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nplan: {}\nassertions: [{type: roundtrip}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no plan",
			yaml:    "name: x\ndescription: d\nassertions: [{type: roundtrip}]\n",
			wantErr: "exactly one of plan and plan_file",
		},
		{
			name:    "both plans",
			yaml:    "name: x\ndescription: d\nplan: {}\nplan_file: p.json\nassertions: [{type: roundtrip}]\n",
			wantErr: "exactly one of plan and plan_file",
		},
		{
			name:    "missing plan file",
			yaml:    "name: x\ndescription: d\nplan_file: nope.json\nassertions: [{type: roundtrip}]\n",
			wantErr: "plan file not found",
		},
		{
			name:    "no assertions",
			yaml:    "name: x\ndescription: d\nplan: {}\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: d\nplan: {}\nassertions: [{type: trace_order}]\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "explain without text",
			yaml:    "name: x\ndescription: d\nplan: {}\nassertions: [{type: explain_contains}]\n",
			wantErr: "text is required",
		},
		{
			name:    "operator count without operator",
			yaml:    "name: x\ndescription: d\nplan: {}\nassertions: [{type: operator_count, count: 1}]\n",
			wantErr: "operator is required",
		},
		{
			name:    "unknown error code",
			yaml:    "name: x\ndescription: d\nplan: {}\nassertions: [{type: error, code: BOOM}]\n",
			wantErr: `unknown error code "BOOM"`,
		},
		{
			name:    "catalog without path",
			yaml:    "name: x\ndescription: d\nplan: {}\ncatalogs: [{namespace: ns}]\nassertions: [{type: roundtrip}]\n",
			wantErr: "catalogs[0]: path is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPlan_BinaryFile(t *testing.T) {
	js, err := LoadScenario("testdata/scenarios/custom_aggregate.yaml")
	require.NoError(t, err)
	p, err := js.LoadPlan()
	require.NoError(t, err)

	dir := t.TempDir()
	data, err := wire.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.pb"), data, 0o644))

	s, err := ParseScenario([]byte("name: x\ndescription: d\nplan_file: plan.pb\nassertions: [{type: roundtrip}]\n"), dir)
	require.NoError(t, err)
	back, err := s.LoadPlan()
	require.NoError(t, err)
	assert.True(t, plan.PlanEqual(p, back), plan.PlanDiff(p, back))
}
