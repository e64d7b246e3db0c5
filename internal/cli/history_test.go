package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSample(t *testing.T, opts *RootOptions) {
	t.Helper()
	_, err := execute(NewRoundTripCommand(opts), "testdata/filter_project.json", "--record")
	require.NoError(t, err)
	_, err = execute(NewRoundTripCommand(opts), "testdata/custom_aggregate.json", "--record")
	require.Error(t, err)
}

func TestHistoryCommand_Empty(t *testing.T) {
	out, err := execute(NewHistoryCommand(testOptions(t, "text")))
	require.NoError(t, err)
	assert.Equal(t, "No round trips recorded.\n", out)
}

func TestHistoryCommand_Text(t *testing.T) {
	opts := testOptions(t, "text")
	recordSample(t, opts)

	out, err := execute(NewHistoryCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ [1] filter_project")
	assert.Contains(t, out, "✗ [2] custom_aggregate")
	assert.Contains(t, out, "UNRESOLVED_FUNCTION")
	assert.Contains(t, out, "1 ok, 1 failed, 2 total")
}

func TestHistoryCommand_JSON(t *testing.T) {
	opts := testOptions(t, "json")
	recordSample(t, opts)

	out, err := execute(NewHistoryCommand(opts), "--failed")
	require.NoError(t, err)

	var result HistoryResult
	decodeResponse(t, out, &result)
	assert.Equal(t, HistoryStats{Total: 2, OK: 1, Failed: 1}, result.Stats)
	require.Len(t, result.RoundTrips, 1)
	assert.Equal(t, "custom_aggregate", result.RoundTrips[0].Name)
}

func TestHistoryCommand_Fingerprint(t *testing.T) {
	opts := testOptions(t, "json")
	recordSample(t, opts)
	all := recorded(t, opts)
	require.Len(t, all, 2)

	out, err := execute(NewHistoryCommand(opts), all[0].Fingerprint)
	require.NoError(t, err)

	var result HistoryResult
	decodeResponse(t, out, &result)
	require.Len(t, result.RoundTrips, 1)
	assert.Equal(t, all[0].ID, result.RoundTrips[0].ID)
}
