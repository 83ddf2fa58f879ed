package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/vfpquery/internal/harness"
	"github.com/roach88/vfpquery/internal/plan"
	"github.com/roach88/vfpquery/internal/schema"
)

// LoadError is a failure to load the schema or query documents.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the CUE line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// Error code constants - unified across all CLI commands. Query failures
// report the engine's own codes (UNSUPPORTED_CONSTRUCT, ...).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeSchema      = "E101" // Schema does not compile
	ErrCodeNoDocuments = "E201" // No query documents found
	ErrCodeDocument    = "E202" // Document does not parse or build
	ErrCodeBackend     = "E301" // Database could not be opened
)

// loadModel loads and compiles the schema at path.
func loadModel(path string) (*schema.Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}
	}

	m, err := schema.Load(path)
	if err != nil {
		var ce *schema.CompileError
		if errors.As(err, &ce) {
			return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: %s", ce.Field, ce.Message), Pos: ce.Pos}
		}
		return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
	}
	return m, nil
}

// loadDocuments reads one document file or the documents of a directory
// whose base name matches filter (a glob; empty matches all).
func loadDocuments(path, filter string) ([]*harness.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}

	paths := []string{path}
	if info.IsDir() {
		if paths, err = matchingFiles(path, filter); err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
		}
		if len(paths) == 0 {
			return nil, &LoadError{Code: ErrCodeNoDocuments, Message: fmt.Sprintf("no query documents in %s", path)}
		}
	}

	docs, err := harness.LoadFiles(paths)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDocument, Message: err.Error()}
	}
	return docs, nil
}

func matchingFiles(dir, filter string) ([]string, error) {
	files, err := harness.DocumentFiles(dir)
	if err != nil || filter == "" {
		return files, err
	}

	var out []string
	for _, f := range files {
		base := filepath.Base(f)
		matched, err := filepath.Match(filter, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, f)
		}
	}
	return out, nil
}

// loadFailure writes a load error and returns the command error for it.
func loadFailure(f *OutputFormatter, err error) error {
	var le *LoadError
	if !errors.As(err, &le) {
		le = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	var details any
	if line := le.Line(); line > 0 {
		details = map[string]int{"line": line}
	}
	_ = f.Error(le.Code, le.Message, details)
	return WrapExitError(ExitCommandError, le.Code, err)
}

// queryFailure writes a translation or execution failure. The statement
// and its arguments are attached for backend failures.
func queryFailure(f *OutputFormatter, err error) error {
	var pe *plan.Error
	if !errors.As(err, &pe) {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "query failed", err)
	}

	var details any
	if pe.Statement != "" {
		details = map[string]any{"statement": pe.Statement, "args": pe.Args}
	}
	_ = f.Error(string(pe.Code), strings.TrimPrefix(pe.Error(), string(pe.Code)+": "), details)
	return WrapExitError(ExitFailure, string(pe.Code), err)
}
