package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vfpquery/internal/capability"
	"github.com/roach88/vfpquery/internal/plan"
	"github.com/roach88/vfpquery/internal/querysql"
)

// Document is a query conformance document. It describes one query, the
// statement each dialect should render (or the failure it should report)
// and the results of executing it with successive parameter values.
type Document struct {
	// Name uniquely identifies the document and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the document checks.
	Description string `yaml:"description"`

	// Params declares named parameters with their initial values. Values
	// are scalars or {date: "..."} mappings.
	Params yaml.Node `yaml:"params,omitempty"`

	// Query is the query tree: {from: Entity, ops: [...]}.
	Query yaml.Node `yaml:"query"`

	// Dialects maps dialect names to what compiling for them should
	// produce. Empty means every dialect must compile.
	Dialects map[string]DialectExpect `yaml:"dialects,omitempty"`

	// Backend is the capability profile used for runs. Defaults to the
	// profile of the execution dialect.
	Backend string `yaml:"backend,omitempty"`

	// Runs execute the compiled query in order. Each run may change
	// parameter values before executing.
	Runs []Run `yaml:"runs,omitempty"`
}

// DialectExpect is the expected outcome of compiling for one dialect.
type DialectExpect struct {
	// Error is the expected error code. Empty means compilation succeeds.
	Error string `yaml:"error,omitempty"`
}

// Run is one execution of the compiled query.
type Run struct {
	// Params overrides parameter values before this run. Earlier
	// overrides stay in effect.
	Params yaml.Node `yaml:"params,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect checks the outcome of a run. Only the fields that are set are
// compared.
type Expect struct {
	// Count is the number of result elements.
	Count *int `yaml:"count,omitempty"`

	// Rows are the expected elements in order. Objects match when every
	// listed field matches; unlisted fields are ignored.
	Rows []any `yaml:"rows,omitempty"`

	// Value is the expected result of a terminal aggregate or quantifier.
	Value any `yaml:"value,omitempty"`

	// Error is the expected error code.
	Error string `yaml:"error,omitempty"`
}

func (e Expect) empty() bool {
	return e.Count == nil && e.Rows == nil && e.Value == nil && e.Error == ""
}

var errorCodes = map[string]bool{
	string(plan.ErrCodeUnsupportedConstruct): true,
	string(plan.ErrCodeUnsupportedFunction):  true,
	string(plan.ErrCodeBackendExecution):     true,
	string(plan.ErrCodeTranslation):          true,
}

// ParseDocument parses a document. Unknown fields are rejected so typos
// do not silently disable a check.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateDocument(&doc); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return &doc, nil
}

// LoadDocument reads and parses a document file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// DocumentFiles lists the *.yaml and *.yml files of dir, sorted by name.
func DocumentFiles(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDir loads every *.yaml and *.yml document in dir, sorted by file name.
func LoadDir(dir string) ([]*Document, error) {
	paths, err := DocumentFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no query documents in %s", dir)
	}
	return LoadFiles(paths)
}

// LoadFiles loads the documents at paths. Names must be unique.
func LoadFiles(paths []string) ([]*Document, error) {
	docs := make([]*Document, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		doc, err := LoadDocument(p)
		if err != nil {
			return nil, err
		}
		if other, dup := names[doc.Name]; dup {
			return nil, fmt.Errorf("document name %q used by %s and %s", doc.Name, other, p)
		}
		names[doc.Name] = p
		docs = append(docs, doc)
	}
	return docs, nil
}

// DialectNames returns the dialects the document compiles for, sorted.
func (d *Document) DialectNames() []string {
	if len(d.Dialects) == 0 {
		return querysql.DialectNames()
	}
	names := make([]string, 0, len(d.Dialects))
	for name := range d.Dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateDocument(d *Document) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(d.Name, `/\ `) {
		return fmt.Errorf("name %q must not contain slashes or spaces", d.Name)
	}
	if d.Description == "" {
		return fmt.Errorf("description is required")
	}
	if d.Query.Kind != yaml.MappingNode {
		return fmt.Errorf("query is required and must be a mapping")
	}

	declared, err := paramNames(&d.Params, "params")
	if err != nil {
		return err
	}

	for name, exp := range d.Dialects {
		if _, err := querysql.LookupDialect(name); err != nil {
			return fmt.Errorf("dialects: %w", err)
		}
		if exp.Error != "" && !errorCodes[exp.Error] {
			return fmt.Errorf("dialects.%s: unknown error code %q", name, exp.Error)
		}
	}

	if d.Backend != "" {
		if _, err := capability.Lookup(capability.Backend(d.Backend)); err != nil {
			return fmt.Errorf("backend: %w", err)
		}
	}

	for i, run := range d.Runs {
		field := fmt.Sprintf("runs[%d]", i)
		names, err := paramNames(&run.Params, field+".params")
		if err != nil {
			return err
		}
		for _, n := range names {
			if !slices.Contains(declared, n) {
				return fmt.Errorf("%s.params: %s is not declared in params", field, n)
			}
		}
		if run.Expect.empty() {
			return fmt.Errorf("%s.expect: at least one of count, rows, value or error is required", field)
		}
		if run.Expect.Error != "" && !errorCodes[run.Expect.Error] {
			return fmt.Errorf("%s.expect: unknown error code %q", field, run.Expect.Error)
		}
	}
	return nil
}

// paramNames returns the keys of a params mapping. An absent node has none.
func paramNames(n *yaml.Node, field string) ([]string, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping", field)
	}
	var names []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		names = append(names, n.Content[i].Value)
	}
	return names, nil
}
