package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relbridge/internal/store"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func recorded(t *testing.T, opts *RootOptions) []store.RoundTrip {
	t.Helper()
	st, err := store.Open(opts.Config.Database)
	require.NoError(t, err)
	defer st.Close()

	all, err := st.RoundTrips(context.Background(), "")
	require.NoError(t, err)
	return all
}

func TestRoundTripCommand_Text(t *testing.T) {
	out, err := execute(NewRoundTripCommand(testOptions(t, "text")), "testdata/filter_project.json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "✓ filter_project: round trip ok ("), out)
}

func TestRoundTripCommand_JSON(t *testing.T) {
	out, err := execute(NewRoundTripCommand(testOptions(t, "json")),
		"testdata/custom_aggregate.json", "-m", "testdata/host.cue")
	require.NoError(t, err)

	var result RoundTripResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.OK)
	assert.Equal(t, "custom_aggregate", result.Name)
	assert.Empty(t, result.Diff)
	assert.Empty(t, result.ID, "not recorded")
	assert.Contains(t, result.Explain, "CUSTOM_AGGREGATE")
}

func TestRoundTripCommand_Record(t *testing.T) {
	opts := testOptions(t, "json")

	out, err := execute(NewRoundTripCommand(opts), "testdata/filter_project.json", "--record", "--name", "nightly")
	require.NoError(t, err)

	var result RoundTripResult
	decodeResponse(t, out, &result)
	assert.NotEmpty(t, result.ID)

	all := recorded(t, opts)
	require.Len(t, all, 1)
	assert.Equal(t, result.ID, all[0].ID)
	assert.Equal(t, "nightly", all[0].Name)
	assert.Equal(t, result.Fingerprint, all[0].Fingerprint)
	assert.True(t, all[0].OK)
}

func TestRoundTripCommand_ConversionFailure(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(NewRoundTripCommand(opts), "testdata/custom_aggregate.json", "--record")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗")

	all := recorded(t, opts)
	require.Len(t, all, 1)
	assert.False(t, all[0].OK)
	assert.Contains(t, all[0].Error, "UNRESOLVED_FUNCTION")
}

func TestRoundTripCommand_ConversionFailureJSON(t *testing.T) {
	out, err := execute(NewRoundTripCommand(testOptions(t, "json")), "testdata/custom_aggregate.json")
	require.Error(t, err)

	var result RoundTripResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "UNRESOLVED_FUNCTION", resp.Error.Code)
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Fingerprint)
}

func TestRoundTripCommand_MissingPlan(t *testing.T) {
	out, err := execute(NewRoundTripCommand(testOptions(t, "text")), "testdata/nonexistent.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "plan file not found")
}
