package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/vfpquery/internal/capability"
	"github.com/roach88/vfpquery/internal/engine"
	"github.com/roach88/vfpquery/internal/plan"
	"github.com/roach88/vfpquery/internal/querysql"
	"github.com/roach88/vfpquery/internal/schema"
)

// Runner executes query documents against one model. Compilation needs
// nothing else; runs need a backend.
type Runner struct {
	model   *schema.Model
	backend engine.Backend
	dialect string
	ids     engine.IDGenerator
	logger  *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBackend sets the backend runs execute on and the dialect their
// statements are rendered in.
func WithBackend(b engine.Backend, dialect string) RunnerOption {
	return func(r *Runner) {
		r.backend = b
		r.dialect = dialect
	}
}

// WithIDGenerator sets the execution ID generator.
func WithIDGenerator(g engine.IDGenerator) RunnerOption {
	return func(r *Runner) {
		r.ids = g
	}
}

// WithLogger sets the logger passed to engines. Default: discard.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner for model.
func NewRunner(model *schema.Model, opts ...RunnerOption) *Runner {
	r := &Runner{
		model:  model,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run compiles the document for each of its dialects and executes its
// runs. Failed expectations are reported in the result; the error is for
// documents that cannot be run at all.
//
// Execution flow:
// 1. Build the query tree with parameters at their declared values
// 2. Compile for every dialect and check the dialect expectations
// 3. Compile for the execution dialect and backend profile
// 4. Execute each run after applying its parameter overrides
func (r *Runner) Run(ctx context.Context, doc *Document) (*Result, error) {
	q, err := buildQuery(doc)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.Name, err)
	}

	result := NewResult(doc.Name)
	result.Statements, err = r.renderAll(q, doc.DialectNames())
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.Name, err)
	}
	for _, rendered := range result.Statements {
		if err := assertCompile(doc.Dialects[rendered.Dialect], rendered); err != nil {
			result.AddError(err.Error())
		}
	}

	if len(doc.Runs) == 0 {
		return result, nil
	}
	if r.backend == nil {
		return nil, fmt.Errorf("document %s: runs need a backend", doc.Name)
	}

	if err := r.execute(ctx, doc, q, result); err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.Name, err)
	}
	return result, nil
}

func (r *Runner) newEngine(dialect string, backend capability.Backend) (*engine.Engine, error) {
	d, err := querysql.LookupDialect(dialect)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithDialect(d),
		engine.WithBackend(backend),
		engine.WithLogger(r.logger),
	}
	if r.ids != nil {
		opts = append(opts, engine.WithIDGenerator(r.ids))
	}
	return engine.New(r.model, opts...)
}

func (r *Runner) renderAll(q *built, dialects []string) ([]Rendered, error) {
	out := make([]Rendered, 0, len(dialects))
	for _, name := range dialects {
		rendered, err := r.render(q, name)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}
	return out, nil
}

// render compiles for one dialect. Query failures become part of the
// rendering; only a broken setup returns an error.
func (r *Runner) render(q *built, dialect string) (Rendered, error) {
	eng, err := r.newEngine(dialect, "")
	if err != nil {
		return Rendered{}, err
	}

	out := Rendered{Dialect: dialect}
	c, err := eng.Compile(q.query)
	if err != nil {
		out.Error, out.Message = failure(err)
		return out, nil
	}
	out.Text = c.Statement.Text
	out.Params = c.Statement.ParamNames()
	out.Fingerprint = c.Fingerprint
	return out, nil
}

func (r *Runner) execute(ctx context.Context, doc *Document, q *built, result *Result) error {
	eng, err := r.newEngine(r.dialect, capability.Backend(doc.Backend))
	if err != nil {
		return err
	}

	// The statement is compiled once; runs only change parameter values.
	c, compileErr := eng.Compile(q.query)
	var statement string
	if compileErr == nil {
		statement = c.Statement.Text
	}

	for i, run := range doc.Runs {
		if err := q.apply(&run.Params); err != nil {
			return fmt.Errorf("runs[%d]: %w", i, err)
		}

		var o Outcome
		if compileErr != nil {
			o.Error, o.Message = failure(compileErr)
		} else {
			res, err := eng.Execute(ctx, c, r.backend)
			if err != nil {
				o.Error, o.Message = failure(err)
			} else {
				o.ExecutionID, o.Value, o.Rows = res.ExecutionID, res.Value, res.Rows
			}
		}
		result.Runs = append(result.Runs, o)

		for _, err := range assertRun(run.Expect, o, statement) {
			result.AddError(fmt.Sprintf("runs[%d]: %v", i, err))
		}
	}
	return nil
}

// failure splits an error into its code and message. Errors outside the
// taxonomy are reported as ERROR.
func failure(err error) (string, string) {
	var pe *plan.Error
	if errors.As(err, &pe) {
		return string(pe.Code), pe.Error()
	}
	return "ERROR", err.Error()
}
