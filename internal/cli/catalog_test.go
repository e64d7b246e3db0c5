package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relbridge/internal/store"
)

func importExtra(t *testing.T, opts *RootOptions) {
	t.Helper()
	_, err := execute(NewCatalogCommand(opts), "import", "testdata/extra_catalog.yaml", "--namespace", "/functions_extra")
	require.NoError(t, err)
}

func TestCatalogImport(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(NewCatalogCommand(opts), "import", "testdata/extra_catalog.yaml", "-n", "/functions_extra")
	require.NoError(t, err)
	assert.Equal(t, "✓ Imported 2 function(s) into /functions_extra\n", out)
}

func TestCatalogImport_DefaultNamespace(t *testing.T) {
	opts := testOptions(t, "json")

	out, err := execute(NewCatalogCommand(opts), "import", "testdata/extra_catalog.yaml")
	require.NoError(t, err)

	var result ImportResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "testdata/extra_catalog.yaml", result.Namespace)
	assert.Equal(t, 2, result.Functions)
}

func TestCatalogImport_Errors(t *testing.T) {
	bad := writeTemp(t, "bad.yaml", "scalar_functions:\n  - impls: []\n")

	tests := []struct {
		name     string
		file     string
		wantCode string
	}{
		{"missing file", "testdata/nonexistent.yaml", ErrCodeNotFound},
		{"malformed catalog", bad, ErrCodeCatalog},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewCatalogCommand(testOptions(t, "text")), "import", tt.file)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestCatalogList(t *testing.T) {
	opts := testOptions(t, "json")
	importExtra(t, opts)
	// A second import replaces the stored declarations.
	importExtra(t, opts)

	out, err := execute(NewCatalogCommand(opts), "list")
	require.NoError(t, err)

	var namespaces []store.NamespaceSummary
	decodeResponse(t, out, &namespaces)
	assert.Equal(t, []store.NamespaceSummary{
		{Namespace: "/functions_extra", Scalar: 1, Aggregate: 1},
	}, namespaces)
}

func TestCatalogList_Text(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(NewCatalogCommand(opts), "list")
	require.NoError(t, err)
	assert.Equal(t, "No catalogs imported.\n", out)

	importExtra(t, opts)
	out, err = execute(NewCatalogCommand(opts), "list")
	require.NoError(t, err)
	assert.Equal(t, "/functions_extra: 1 scalar, 1 aggregate, 0 window\n", out)
}

func TestCatalogDelete(t *testing.T) {
	opts := testOptions(t, "json")
	importExtra(t, opts)

	out, err := execute(NewCatalogCommand(opts), "delete", "/functions_extra")
	require.NoError(t, err)
	var result DeleteResult
	decodeResponse(t, out, &result)
	assert.Equal(t, int64(2), result.Removed)

	_, err = execute(NewCatalogCommand(opts), "delete", "/functions_extra")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCatalogFunctions(t *testing.T) {
	opts := testOptions(t, "json")
	importExtra(t, opts)

	out, err := execute(NewCatalogCommand(opts), "functions", "--class", "aggregate", "-m", "testdata/host.cue")
	require.NoError(t, err)

	var infos []FunctionInfo
	decodeResponse(t, out, &infos)
	keys := make([]string, len(infos))
	for i, info := range infos {
		assert.Equal(t, "aggregate", info.Class)
		keys[i] = info.Key
	}
	assert.Contains(t, keys, "/functions_builtin.yaml#sum:i64")
	assert.Contains(t, keys, "/functions_extra#total:i64")
	assert.Contains(t, keys, "/functions_custom#custom_aggregate:i64")
	assert.NotContains(t, keys, "/functions_extra#twice:i64")
}

func TestCatalogImport_StoredFunctionsNeedAnOperator(t *testing.T) {
	opts := testOptions(t, "json")
	importExtra(t, opts)

	out, err := execute(NewResolveCommand(opts), "/functions_extra#total", "i64", "--class", "aggregate")
	// Stored catalogs declare functions but map no operators.
	require.Error(t, err)
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "UNRESOLVED_FUNCTION", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "/functions_extra#total:i64")
}

func TestCatalogFunctions_BadClass(t *testing.T) {
	_, err := execute(NewCatalogCommand(testOptions(t, "text")), "functions", "--class", "table")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
