package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vfpquery/internal/harness"
	"github.com/roach88/vfpquery/internal/querysql"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Dialects []string
}

// TranslateResult is the JSON payload of the translate command.
type TranslateResult struct {
	Document   string             `json:"document"`
	Statements []harness.Rendered `json:"statements"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <document>",
		Short: "Render a query document as SQL",
		Long: `Translate a query document into SQL for one or more dialects.

Without --dialect the document's own dialects are rendered (all of them
when it lists none). Constructs a dialect cannot express are reported
with their error code instead of a statement.

Exit codes:
  0 - Every requested dialect rendered
  1 - At least one dialect rejected the query
  2 - Command error (schema or document invalid, unknown dialect)

Examples:
  vfpquery translate --schema northwind.cue queries/paging.yaml
  vfpquery translate -s northwind.cue --dialect vfp --dialect sqlite queries/paging.yaml
  vfpquery translate -s northwind.cue --format json queries/paging.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Dialects, "dialect", "d", nil,
		fmt.Sprintf("dialect to render (%s); repeatable", strings.Join(querysql.DialectNames(), "|")))

	return cmd
}

func runTranslate(opts *TranslateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	for _, d := range opts.Dialects {
		if _, err := querysql.LookupDialect(d); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid dialect", err)
		}
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
	formatter.VerboseLog("Translating %s (%s)", doc.Name, doc.Description)

	runner := harness.NewRunner(model, harness.WithLogger(newLogger(formatter.GetErrWriter(), opts.Verbose)))
	statements, err := runner.Render(doc, opts.Dialects...)
	if err != nil {
		return loadFailure(formatter, &LoadError{Code: ErrCodeDocument, Message: err.Error()})
	}

	failed := 0
	for _, s := range statements {
		if s.Error != "" {
			failed++
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(TranslateResult{Document: doc.Name, Statements: statements}); err != nil {
			return err
		}
	} else {
		writeStatements(formatter, statements)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d dialect(s) rejected %s", failed, len(statements), doc.Name))
	}
	return nil
}

func writeStatements(f *OutputFormatter, statements []harness.Rendered) {
	for _, s := range statements {
		fmt.Fprintf(f.Writer, "-- %s --\n", s.Dialect)
		if s.Error != "" {
			fmt.Fprintf(f.Writer, "✗ %s\n", s.Message)
			continue
		}
		fmt.Fprintln(f.Writer, s.Text)
		if len(s.Params) > 0 {
			fmt.Fprintf(f.Writer, "params: %s\n", strings.Join(s.Params, " "))
		}
		f.VerboseLog("%s fingerprint %s", s.Dialect, s.Fingerprint)
	}
}
