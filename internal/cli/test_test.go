package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/testutil"
)

func newTest(format string) *TestOptions {
	return &TestOptions{RootOptions: rootOpts(format), IDGenerator: testutil.NewSequenceIDs("")}
}

func TestTestGoldenDocuments(t *testing.T) {
	stdout, _, err := execute(newTestCommand(newTest("text")),
		"--dsn", testutil.NorthwindDSN(t), "--golden", goldenDir, queriesDir)
	require.NoError(t, err, stdout)

	assert.Contains(t, stdout, "✓ paging")
	assert.Contains(t, stdout, "✓ intersect")
	assert.NotContains(t, stdout, "✗")
	assert.Contains(t, stdout, "0 failed")
}

func TestTestSeededInMemoryDatabase(t *testing.T) {
	stdout, _, err := execute(newTestCommand(newTest("json")),
		"--dsn", ":memory:", "--seed", northwindSeed, runsDir)
	require.NoError(t, err, stdout)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, resp.Data.Failed)
	assert.Equal(t, resp.Data.Total, resp.Data.Passed)
	assert.NotZero(t, resp.Data.Total)
}

func TestTestFilter(t *testing.T) {
	stdout, _, err := execute(newTestCommand(newTest("json")),
		"--dsn", testutil.NorthwindDSN(t), "--golden", goldenDir, "--filter", "pa*", queriesDir)
	require.NoError(t, err, stdout)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, "paging", resp.Data.Documents[0].Name)
	assert.Equal(t, "parameters", resp.Data.Documents[1].Name)
}

func TestTestUpdateGolden(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden")

	_, _, err := execute(newTestCommand(newTest("text")),
		"--golden", golden, "--filter", "atc", "--update", queriesDir)
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(golden, "atc.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "atc.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	// A changed golden file fails the document.
	require.NoError(t, os.WriteFile(filepath.Join(golden, "atc.golden"), []byte("-- vfp --\nSELECT 1\n"), 0o644))
	stdout, _, err := execute(newTestCommand(newTest("text")),
		"--golden", golden, "--filter", "atc", queriesDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ atc")
	assert.Contains(t, stdout, "do not match golden file")
}

func TestTestRunsWithoutDatabase(t *testing.T) {
	stdout, _, err := execute(newTestCommand(newTest("text")), "--filter", "union", queriesDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "runs need a backend")
}

func TestTestNoDocuments(t *testing.T) {
	stdout, _, err := execute(newTestCommand(newTest("text")), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E201]")
}

func TestTestMissingSeed(t *testing.T) {
	stdout, _, err := execute(newTestCommand(newTest("text")),
		"--dsn", ":memory:", "--seed", filepath.Join(t.TempDir(), "none.sql"), queriesDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "seed script")
}
