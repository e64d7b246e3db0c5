package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relbridge/internal/wire"
)

const filterProjectExplain = "Root(index=[0], names=[upper_b])\n" +
	"  LogicalProject($f0=[UPPER($1)])\n" +
	"    LogicalFilter(condition=[>($0, 10)])\n" +
	"      LogicalTableScan(table=[[t]])\n"

func TestConvertCommand_Text(t *testing.T) {
	out, err := execute(NewConvertCommand(testOptions(t, "text")), "testdata/filter_project.json")
	require.NoError(t, err)
	assert.Equal(t, filterProjectExplain, out)
}

func TestConvertCommand_JSON(t *testing.T) {
	out, err := execute(NewConvertCommand(testOptions(t, "json")), "testdata/filter_project.json")
	require.NoError(t, err)

	var result ConvertResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, 1, result.Roots)
	assert.Len(t, result.Fingerprint, 64)
	assert.Equal(t, filterProjectExplain, result.Explain)
}

func TestConvertCommand_BinaryFromStdin(t *testing.T) {
	data, err := os.ReadFile("testdata/filter_project.json")
	require.NoError(t, err)
	p, err := wire.UnmarshalJSON(data)
	require.NoError(t, err)
	bin, err := wire.Marshal(p)
	require.NoError(t, err)

	cmd := NewConvertCommand(testOptions(t, "text"))
	cmd.SetIn(bytes.NewReader(bin))
	out, err := execute(cmd, "-")
	require.NoError(t, err)
	assert.Equal(t, filterProjectExplain, out)
}

func TestConvertCommand_Manifest(t *testing.T) {
	out, err := execute(NewConvertCommand(testOptions(t, "text")),
		"testdata/custom_aggregate.json", "--manifest", "testdata/host.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "LogicalAggregate(group=[{0}], $f1=[CUSTOM_AGGREGATE($1)])")
}

func TestConvertCommand_ConfiguredManifest(t *testing.T) {
	opts := testOptions(t, "text")
	opts.Config.Manifests = []string{"testdata/host.cue"}

	out, err := execute(NewConvertCommand(opts), "testdata/custom_aggregate.json")
	require.NoError(t, err)
	assert.Contains(t, out, "CUSTOM_AGGREGATE($1)")
}

func TestConvertCommand_Unresolved(t *testing.T) {
	out, err := execute(NewConvertCommand(testOptions(t, "text")), "testdata/custom_aggregate.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "custom_aggregate")
}

func TestConvertCommand_UnresolvedJSON(t *testing.T) {
	out, err := execute(NewConvertCommand(testOptions(t, "json")), "testdata/custom_aggregate.json")
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNRESOLVED_FUNCTION", resp.Error.Code)
}

func TestConvertCommand_NoBuiltin(t *testing.T) {
	opts := testOptions(t, "json")
	opts.Config.NoBuiltin = true

	out, err := execute(NewConvertCommand(opts), "testdata/filter_project.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "UNRESOLVED_FUNCTION", resp.Error.Code)
}

func TestConvertCommand_CommandErrors(t *testing.T) {
	bad := writeTemp(t, "bad.json", "{not json")

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"missing plan", []string{"testdata/nonexistent.json"}, ErrCodeNotFound},
		{"malformed plan", []string{bad}, ErrCodePlan},
		{"missing manifest", []string{"testdata/filter_project.json", "-m", "testdata/nonexistent.cue"}, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewConvertCommand(testOptions(t, "text")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestConvertCommand_MissingArgs(t *testing.T) {
	_, err := execute(NewConvertCommand(testOptions(t, "text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
