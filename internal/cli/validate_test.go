package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchemaOnly(t *testing.T) {
	stdout, _, err := execute(NewValidateCommand(rootOpts("text")))
	require.NoError(t, err)
	assert.Equal(t, "✓ Schema valid (6 entities)\n", stdout)
}

func TestValidateDocuments(t *testing.T) {
	stdout, _, err := execute(NewValidateCommand(rootOpts("text")), queriesDir, runsDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Schema valid")
	assert.Contains(t, stdout, "document(s) valid")
}

func TestValidateDocumentsJSON(t *testing.T) {
	stdout, _, err := execute(NewValidateCommand(rootOpts("json")), filepath.Join(queriesDir, "atc.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 6, resp.Data.Entities)
	assert.Equal(t, 1, resp.Data.Documents)
}

func TestValidateInvalidDocuments(t *testing.T) {
	broken := writeDoc(t, "broken.yaml", `
name: broken
description: "undeclared parameter"
query:
  from: Orders
  ops:
    - where: {gt: [{get: Freight}, {param: minFreight}]}
`)
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	stdout, _, err := execute(NewValidateCommand(rootOpts("text")), broken, missing)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")

	assert.Contains(t, stdout, "✗ Validation failed")
	assert.Contains(t, stdout, "E202: document broken: query: line 7:")
	assert.Contains(t, stdout, `parameter "minFreight" is not declared`)
	assert.Contains(t, stdout, "E005: path not found")
}

func TestValidateInvalidDocumentsJSON(t *testing.T) {
	doc := writeDoc(t, "bad.yaml", "name: bad\n")

	stdout, _, err := execute(NewValidateCommand(rootOpts("json")), doc)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDocument, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "description is required")
}

func TestValidateBrokenSchema(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(schema, []byte("tables: {}\n"), 0o644))

	opts := &RootOptions{Format: "text", Schema: schema}
	stdout, _, err := execute(NewValidateCommand(opts))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E101]: entity: at least one entity is required")
}
