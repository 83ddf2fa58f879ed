package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateAllDialects(t *testing.T) {
	stdout, _, err := execute(NewTranslateCommand(rootOpts("text")), filepath.Join(queriesDir, "paging.yaml"))
	require.NoError(t, err)

	for _, d := range []string{"mysql", "postgres", "sqlite", "vfp"} {
		assert.Contains(t, stdout, "-- "+d+" --")
	}
	assert.Contains(t, stdout, "TOP 10")
	assert.NotContains(t, stdout, "✗")
}

func TestTranslateSelectedDialect(t *testing.T) {
	stdout, _, err := execute(NewTranslateCommand(rootOpts("text")),
		"--dialect", "vfp", filepath.Join(queriesDir, "atc.yaml"))
	require.NoError(t, err)

	assert.Equal(t,
		"-- vfp --\nSELECT t0.companyname AS Value FROM customers t0 WHERE ATC('market', t0.contactname) > 0\n",
		stdout)
}

func TestTranslateRejectedDialect(t *testing.T) {
	stdout, _, err := execute(NewTranslateCommand(rootOpts("text")),
		"-d", "sqlite", "-d", "mysql", filepath.Join(queriesDir, "atc.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 dialect(s) rejected atc")

	assert.Contains(t, stdout, "-- sqlite --\n✗ UNSUPPORTED_FUNCTION")
	assert.Contains(t, stdout, "LOCATE('market', t0.contactname)")
}

func TestTranslateJSON(t *testing.T) {
	stdout, _, err := execute(NewTranslateCommand(rootOpts("json")), filepath.Join(queriesDir, "parameters.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   TranslateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "parameters", resp.Data.Document)
	require.Len(t, resp.Data.Statements, 4)
	for _, s := range resp.Data.Statements {
		assert.Equal(t, []string{"min", "max"}, s.Params, s.Dialect)
		assert.NotEmpty(t, s.Fingerprint)
	}
}

func TestTranslateUnknownDialect(t *testing.T) {
	stdout, _, err := execute(NewTranslateCommand(rootOpts("text")),
		"--dialect", "oracle", filepath.Join(queriesDir, "atc.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E001]")
}

func TestTranslateMissingSchema(t *testing.T) {
	opts := &RootOptions{Format: "text", Schema: filepath.Join(t.TempDir(), "missing.cue")}
	stdout, _, err := execute(NewTranslateCommand(opts), filepath.Join(queriesDir, "atc.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E005]: schema not found")
}

func TestTranslateBrokenDocument(t *testing.T) {
	path := writeDoc(t, "broken.yaml", `
name: broken
description: "unknown operator"
query:
  from: Orders
  ops:
    - shuffle: ~
`)
	stdout, _, err := execute(NewTranslateCommand(rootOpts("text")), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E202]")
	assert.Contains(t, stdout, `unknown operator "shuffle"`)
}
