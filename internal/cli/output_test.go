package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	return resp
}

func TestFormatterJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]int{"rows": 20}))
	resp := decodeResponse(t, &buf)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"rows": float64(20)}, resp.Data)
	assert.Nil(t, resp.Error)

	buf.Reset()
	details := map[string]any{"statement": "SELECT t0.orderid FROM orders t0", "args": []any{50}}
	require.NoError(t, f.Error("BACKEND_EXECUTION", "backend rejected statement", details))
	resp = decodeResponse(t, &buf)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BACKEND_EXECUTION", resp.Error.Code)
	assert.Equal(t, "backend rejected statement", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
	assert.Nil(t, resp.Data)
}

func TestFormatterTextError(t *testing.T) {
	details := map[string]string{"file": "orders.yaml"}

	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := &OutputFormatter{Format: "text", Writer: &buf, Verbose: tt.verbose}
			require.NoError(t, f.Error("E101", "schema does not compile", details))

			assert.Contains(t, buf.String(), "Error [E101]: schema does not compile")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: map[file:orders.yaml]")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestFormatterTextSuccess(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Success("✓ Schema valid (6 entities)"))
	assert.Equal(t, "✓ Schema valid (6 entities)\n", buf.String())
}

func TestFormatterVerboseLog(t *testing.T) {
	var out, diag bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &diag}

	f.VerboseLog("loading %s", "orders.yaml")
	assert.Empty(t, diag.String())

	f.Verbose = true
	f.VerboseLog("loading %s", "orders.yaml")
	assert.Equal(t, "loading orders.yaml\n", diag.String())
	assert.Empty(t, out.String(), "diagnostics must not corrupt JSON output")

	f.ErrWriter = nil
	f.VerboseLog("fallback")
	assert.Equal(t, "fallback\n", out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "schema not found")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "UNSUPPORTED_CONSTRUCT", errors.New("intersect"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "inner", NewExitError(ExitCommandError, "inner").Error())

	cause := errors.New("boom")
	exitErr := WrapExitError(ExitFailure, "bad", cause)
	assert.Equal(t, "bad: boom", exitErr.Error())
	assert.ErrorIs(t, exitErr, cause)
}
