package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relbridge/internal/extension"
)

func TestResolveCommand_Forward(t *testing.T) {
	out, err := execute(NewResolveCommand(testOptions(t, "text")), "add", "i64", "i64")
	require.NoError(t, err)
	assert.Equal(t, "/functions_builtin.yaml#add:i64_i64(i64, i64) -> +\n", out)
}

func TestResolveCommand_ForwardJSON(t *testing.T) {
	out, err := execute(NewResolveCommand(testOptions(t, "json")), "sum", "i64", "--class", "aggregate")
	require.NoError(t, err)

	var result ResolveResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "aggregate", result.Class)
	assert.Equal(t, []string{"i64"}, result.Args)
	assert.Equal(t, "/functions_builtin.yaml#sum:i64", result.Function)
	assert.Equal(t, "SUM", result.Operator)
}

func TestResolveCommand_Operator(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"binary", []string{"--operator", "+", "i64", "i64"}, "/functions_builtin.yaml#add:i64_i64"},
		{"prefix minus", []string{"--operator", "-", "i64"}, "/functions_builtin.yaml#negate:i64"},
		{"case insensitive", []string{"--operator", "upper", "string"}, "/functions_builtin.yaml#upper:str"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewResolveCommand(testOptions(t, "json")), tt.args...)
			require.NoError(t, err, out)

			var result ResolveResult
			decodeResponse(t, out, &result)
			assert.Equal(t, tt.want, result.Function)
		})
	}
}

func TestResolveCommand_Manifest(t *testing.T) {
	out, err := execute(NewResolveCommand(testOptions(t, "text")),
		"/functions_custom#custom_scalar", "string", "-m", "testdata/host.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "-> CUSTOM_SCALAR")

	out, err = execute(NewResolveCommand(testOptions(t, "text")),
		"--operator", "CUSTOM_SCALAR", "string", "-m", "testdata/host.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "<- /functions_custom#custom_scalar:str")
}

func TestResolveCommand_Failures(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"unknown function", []string{"no_such_function", "i64"}, "UNRESOLVED_FUNCTION"},
		{"no matching overload", []string{"add", "string", "string"}, "UNRESOLVED_FUNCTION"},
		{"unknown operator", []string{"--operator", "NO_SUCH_OP", "i64"}, "UNMAPPED_SYMBOL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewResolveCommand(testOptions(t, "json")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestResolveCommand_BadArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad class", []string{"add", "i64", "i64", "--class", "table"}},
		{"bad type", []string{"add", "i64", "no_such_type"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewResolveCommand(testOptions(t, "text")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+ErrCodeArgs+"]")
		})
	}
}

func TestParseFunctionRef(t *testing.T) {
	assert.Equal(t, extension.ParseKey("/ns", "f:i64"), parseFunctionRef("/ns#f:i64"))
	assert.Equal(t, extension.ParseKey("", "f:i64"), parseFunctionRef("f:i64"))
	assert.Equal(t, extension.ParseKey("", "f"), parseFunctionRef("f"))
}
