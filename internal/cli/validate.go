package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vfpquery/internal/harness"
)

// ValidationIssue is one problem found by validate.
type ValidationIssue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Entities  int               `json:"entities"`
	Documents int               `json:"documents"`
	Errors    []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [document-or-dir...]",
		Short: "Validate the schema and query documents",
		Long: `Validate the CUE schema and, optionally, query documents.

Documents are parsed and their query trees built against the schema.
Nothing is rendered or executed, so a document that expects a dialect to
reject its query is still valid.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	model, err := loadModel(opts.Schema)
	if err != nil {
		return loadFailure(formatter, err)
	}
	formatter.VerboseLog("Schema %s: %d entities", opts.Schema, len(model.Names()))

	result := ValidationResult{Entities: len(model.Names())}
	runner := harness.NewRunner(model)

	for _, path := range paths {
		docs, err := loadDocuments(path, "")
		if err != nil {
			code := ErrCodeGeneric
			var le *LoadError
			if errors.As(err, &le) {
				code, err = le.Code, errors.New(le.Message)
			}
			result.Errors = append(result.Errors, ValidationIssue{Path: path, Code: code, Message: err.Error()})
			continue
		}
		for _, doc := range docs {
			formatter.VerboseLog("Validating document: %s", doc.Name)
			result.Documents++
			// Building happens before any rendering; one dialect is enough.
			if _, err := runner.Render(doc, "vfp"); err != nil {
				result.Errors = append(result.Errors, ValidationIssue{Path: path, Code: ErrCodeDocument, Message: err.Error()})
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return reportValidation(formatter, result)
}

func reportValidation(f *OutputFormatter, result ValidationResult) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			first := result.Errors[0]
			resp.Status = "error"
			resp.Error = &CLIError{Code: first.Code, Message: first.Message}
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(f.Writer, "✓ Schema valid (%d entities)\n", result.Entities)
		if result.Documents > 0 {
			fmt.Fprintf(f.Writer, "✓ All %d document(s) valid\n", result.Documents)
		}
	} else {
		fmt.Fprint(f.Writer, "✗ Validation failed\n\n")
		for _, issue := range result.Errors {
			fmt.Fprintf(f.Writer, "%s\n  %s: %s\n\n", issue.Path, issue.Code, issue.Message)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}
