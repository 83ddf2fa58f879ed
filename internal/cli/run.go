package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/vfpquery/internal/engine"
	"github.com/roach88/vfpquery/internal/harness"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Driver  string
	DSN     string
	Dialect string   // defaults to the driver's dialect
	Params  []string // name=value overrides

	IDGenerator engine.IDGenerator // nil means engine.UUIDv7Generator
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Document    string     `json:"document"`
	ExecutionID string     `json:"execution_id"`
	Statement   string     `json:"statement"`
	Rows        int        `json:"rows"`
	Value       ir.IRValue `json:"value"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <document>",
		Short: "Execute a query document against a database",
		Long: `Compile a query document for the database's dialect and execute it once.

Parameters start at the values the document declares; --param overrides
them. Values are read as YAML scalars (50, 18.5, 1996-07-20, London).
Sequence results print one element per line.

Examples:
  vfpquery run -s northwind.cue --dsn ./northwind.db queries/orders.yaml
  vfpquery run -s northwind.cue --driver postgres --dsn "postgres://localhost/nw" queries/orders.yaml
  vfpquery run -s northwind.cue --dsn ./northwind.db --param minFreight=100 queries/freight.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	addBackendFlags(cmd, &opts.Driver, &opts.DSN, &opts.Dialect)
	_ = cmd.MarkFlagRequired("dsn")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "parameter override name=value; repeatable")

	return cmd
}

func addBackendFlags(cmd *cobra.Command, driver, dsn, dialect *string) {
	cmd.Flags().StringVar(driver, "driver", "sqlite3", fmt.Sprintf("database driver %v", store.Drivers()))
	cmd.Flags().StringVar(dsn, "dsn", "", "data source name")
	cmd.Flags().StringVar(dialect, "dialect", "", "dialect to render for (default: the driver's)")
}

// openBackend opens the database and resolves the dialect its statements
// are rendered in.
func openBackend(driver, dsn, dialect string) (*store.Store, string, error) {
	if dialect == "" {
		d, err := store.DefaultDialect(driver)
		if err != nil {
			return nil, "", &LoadError{Code: ErrCodeBackend, Message: err.Error()}
		}
		dialect = d
	}

	st, err := store.Open(driver, dsn)
	if err != nil {
		return nil, "", &LoadError{Code: ErrCodeBackend, Message: err.Error()}
	}
	return st, dialect, nil
}

func runQuery(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)

	params, err := harness.ParseParams(opts.Params)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid parameter", err)
	}

	model, err := loadModel(opts.Schema)
	if err != nil {
		return loadFailure(formatter, err)
	}
	docs, err := loadDocuments(path, "")
	if err != nil {
		return loadFailure(formatter, err)
	}
	doc := docs[0]

	st, dialect, err := openBackend(opts.Driver, opts.DSN, opts.Dialect)
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ids := opts.IDGenerator
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	runner := harness.NewRunner(model,
		harness.WithBackend(st, dialect),
		harness.WithIDGenerator(ids),
		harness.WithLogger(logger),
	)

	// Use command's context if available (for testing)
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("running document", "document", doc.Name, "driver", opts.Driver, "dialect", dialect)
	c, res, err := runner.Execute(ctx, doc, params)
	if err != nil {
		return queryFailure(formatter, err)
	}
	formatter.VerboseLog("%s", c.Statement.Text)

	if opts.Format == "json" {
		return formatter.Success(RunResult{
			Document:    doc.Name,
			ExecutionID: res.ExecutionID,
			Statement:   c.Statement.Text,
			Rows:        res.Rows,
			Value:       res.Value,
		})
	}
	return writeValue(formatter, res.Value)
}

// writeValue prints a sequence one JSON element per line, anything else
// as a single JSON value.
func writeValue(f *OutputFormatter, v ir.IRValue) error {
	items, ok := v.(ir.IRArray)
	if !ok {
		items = ir.IRArray{v}
	}
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Fprintln(f.Writer, string(data))
	}
	return nil
}
