package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	northwindSchema = "../testutil/testdata/northwind.cue"
	northwindSeed   = "../testutil/testdata/northwind.sql"
	queriesDir      = "../harness/testdata/queries"
	goldenDir       = "../harness/testdata/golden"
	runsDir         = "../harness/testdata/runs"
)

// execute runs cmd with args and returns its stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeDoc writes a query document into a temporary directory.
func writeDoc(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func rootOpts(format string) *RootOptions {
	return &RootOptions{Format: format, Schema: northwindSchema}
}
