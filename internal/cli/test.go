package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/vfpquery/internal/engine"
	"github.com/roach88/vfpquery/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Driver  string
	DSN     string
	Dialect string
	Seed    string // SQL script run before the documents
	Golden  string // golden directory, default <documents-dir>/golden
	Update  bool   // regenerate golden files
	Filter  string // document filter (glob pattern)

	IDGenerator engine.IDGenerator // nil keeps the runner default
}

// DocumentResult holds the result of a single document.
type DocumentResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Documents []DocumentResult `json:"documents"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return newTestCommand(&TestOptions{RootOptions: rootOpts})
}

func newTestCommand(opts *TestOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <documents-dir>",
		Short: "Run conformance documents",
		Long: `Run query conformance documents.

Every document is rendered for its dialects and checked against its
expected outcomes. Documents with runs need a database (--dsn); --seed
runs a SQL script on it first. When a golden file exists for a document
its rendered statements must match it byte for byte.

Exit codes:
  0 - All documents passed
  1 - One or more documents failed
  2 - Command error (invalid paths, database not reachable, etc.)

Examples:
  vfpquery test -s northwind.cue ./queries
  vfpquery test -s northwind.cue --dsn ":memory:" --seed northwind.sql ./queries
  vfpquery test -s northwind.cue ./queries --filter "paging*" --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	addBackendFlags(cmd, &opts.Driver, &opts.DSN, &opts.Dialect)
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "SQL script to run before the documents")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory (default <documents-dir>/golden)")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter documents by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)

	model, err := loadModel(opts.Schema)
	if err != nil {
		return loadFailure(formatter, err)
	}
	docs, err := loadDocuments(dir, opts.Filter)
	if err != nil {
		return loadFailure(formatter, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runnerOpts := []harness.RunnerOption{harness.WithLogger(logger)}
	if opts.IDGenerator != nil {
		runnerOpts = append(runnerOpts, harness.WithIDGenerator(opts.IDGenerator))
	}
	if opts.DSN != "" {
		st, dialect, err := openBackend(opts.Driver, opts.DSN, opts.Dialect)
		if err != nil {
			return loadFailure(formatter, err)
		}
		defer st.Close()

		if opts.Seed != "" {
			script, err := os.ReadFile(opts.Seed)
			if err != nil {
				return loadFailure(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("seed script: %v", err)})
			}
			if err := st.Exec(ctx, string(script)); err != nil {
				return loadFailure(formatter, &LoadError{Code: ErrCodeBackend, Message: fmt.Sprintf("seed script: %v", err)})
			}
			formatter.VerboseLog("Seeded database from %s", opts.Seed)
		}
		runnerOpts = append(runnerOpts, harness.WithBackend(st, dialect))
	}
	runner := harness.NewRunner(model, runnerOpts...)

	goldenDir := opts.Golden
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}

	result := TestResult{
		Documents: make([]DocumentResult, 0, len(docs)),
		Total:     len(docs),
	}
	for _, doc := range docs {
		dr := runDocument(ctx, runner, doc, goldenDir, opts)
		result.Documents = append(result.Documents, dr)
		if dr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if opts.Format != "json" {
			writeDocumentResult(formatter, dr)
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d document(s) failed", result.Failed, result.Total))
	}
	return nil
}

// runDocument runs one document and compares or updates its golden file.
func runDocument(ctx context.Context, runner *harness.Runner, doc *harness.Document, goldenDir string, opts *TestOptions) DocumentResult {
	dr := DocumentResult{Name: doc.Name}

	result, err := runner.Run(ctx, doc)
	if err != nil {
		dr.Errors = []string{err.Error()}
		return dr
	}
	dr.Pass = result.Pass
	dr.Errors = result.Errors

	snapshot := harness.Snapshot(result)
	goldenPath := filepath.Join(goldenDir, doc.Name+".golden")

	if opts.Update {
		if err := os.MkdirAll(goldenDir, 0o755); err != nil {
			return failDocument(dr, fmt.Sprintf("failed to create golden directory: %v", err))
		}
		if err := os.WriteFile(goldenPath, snapshot, 0o644); err != nil {
			return failDocument(dr, fmt.Sprintf("failed to write golden file: %v", err))
		}
		return dr
	}

	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return dr
	}
	if err != nil {
		return failDocument(dr, fmt.Sprintf("failed to read golden file: %v", err))
	}
	if !bytes.Equal(golden, snapshot) {
		return failDocument(dr, "statements do not match golden file (run with --update to regenerate)")
	}
	return dr
}

func failDocument(dr DocumentResult, msg string) DocumentResult {
	dr.Pass = false
	dr.Errors = append(dr.Errors, msg)
	return dr
}

func writeDocumentResult(f *OutputFormatter, dr DocumentResult) {
	if dr.Pass {
		fmt.Fprintf(f.Writer, "✓ %s\n", dr.Name)
		return
	}
	fmt.Fprintf(f.Writer, "✗ %s\n", dr.Name)
	for _, e := range dr.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e)
	}
}
