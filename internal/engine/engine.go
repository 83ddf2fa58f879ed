package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/vfpquery/internal/capability"
	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/hierarchy"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/plan"
	"github.com/roach88/vfpquery/internal/querysql"
	"github.com/roach88/vfpquery/internal/schema"
	"github.com/roach88/vfpquery/internal/store"
)

// Backend executes statement text with positional arguments.
// *store.Store implements it.
type Backend interface {
	Query(ctx context.Context, text string, args []any) (*store.ResultSet, error)
}

// Expression is a built query: an arena and the handle of its root node.
// linq.Query implements it.
type Expression interface {
	Arena() *expr.Arena
	Root() expr.Handle
	Err() error
}

// Engine compiles query expressions against one model for one dialect and
// capability profile.
type Engine struct {
	model     *schema.Model
	compiler  *querysql.SQLCompiler
	backend   capability.Backend
	ids       IDGenerator
	logger    *slog.Logger
	resolvers map[string]*hierarchy.Resolver
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithDialect sets the SQL dialect. Default: vfp.
func WithDialect(d *querysql.Dialect) Option {
	return func(e *Engine) {
		e.compiler = querysql.NewSQLCompiler(d)
	}
}

// WithBackend sets the capability profile checked before emission.
// Default: the profile named like the dialect.
func WithBackend(b capability.Backend) Option {
	return func(e *Engine) {
		e.backend = b
	}
}

// WithIDGenerator sets the execution ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine for model.
func New(model *schema.Model, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, fmt.Errorf("engine: nil model")
	}

	e := &Engine{
		model:     model,
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
		resolvers: make(map[string]*hierarchy.Resolver),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.compiler == nil {
		d, err := querysql.LookupDialect("vfp")
		if err != nil {
			return nil, err
		}
		e.compiler = querysql.NewSQLCompiler(d)
	}
	if e.backend == "" {
		e.backend = capability.Backend(e.compiler.Dialect().Name)
	}
	if _, err := capability.Lookup(e.backend); err != nil {
		return nil, err
	}

	for _, name := range model.Names() {
		ent, _ := model.Entity(name)
		if ent.Hierarchy == nil {
			continue
		}
		r, err := hierarchy.New(ent.Hierarchy)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", name, err)
		}
		e.resolvers[name] = r
	}
	return e, nil
}

// Model returns the engine's model.
func (e *Engine) Model() *schema.Model {
	return e.model
}

// Dialect returns the engine's dialect.
func (e *Engine) Dialect() *querysql.Dialect {
	return e.compiler.Dialect()
}

// Backend returns the capability profile the engine checks against.
func (e *Engine) Backend() capability.Backend {
	return e.backend
}

// Compiled is a translated, checked and rendered query. It never changes
// after Compile; parameters are read again on every execution.
type Compiled struct {
	Plan      *plan.Plan
	Statement *querysql.Statement

	// Fingerprint identifies the plan; equal plans share it.
	Fingerprint string

	// Forwarded lists constructs passed to the backend although it may
	// reject them when the statement runs.
	Forwarded []capability.Finding
}

// Compile translates q, checks it against the capability profile and
// renders its statement. An unsupported construct fails here, before any
// text is produced.
func (e *Engine) Compile(q Expression) (*Compiled, error) {
	if err := q.Err(); err != nil {
		return nil, plan.Translation("building query: %v", err)
	}

	p, err := plan.Translate(e.model, q.Arena(), q.Root())
	if err != nil {
		return nil, err
	}

	res, err := capability.Check(p, e.backend)
	if err != nil {
		return nil, err
	}
	for _, f := range res.Runtime() {
		e.logger.Warn("construct forwarded to backend",
			"construct", f.Construct,
			"reason", f.Reason,
			"backend", e.backend,
		)
	}

	st, err := e.compiler.Compile(p)
	if err != nil {
		return nil, err
	}

	fp, err := p.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint plan: %w", err)
	}

	e.logger.Debug("query compiled",
		"entity", p.Entity,
		"dialect", st.Dialect,
		"fingerprint", fp,
		"stages", len(p.Root.Stages),
		"params", len(st.Slots),
	)

	return &Compiled{
		Plan:        p,
		Statement:   st,
		Fingerprint: fp,
		Forwarded:   res.Runtime(),
	}, nil
}

// Result is the materialized outcome of one execution.
type Result struct {
	ExecutionID string

	// Value is an ir.IRArray for sequence queries, the scalar for a
	// terminal aggregate and an ir.IRBool for a terminal Any or All.
	Value ir.IRValue

	// Rows is the number of rows the backend returned.
	Rows int
}

// Items returns the elements of a sequence result, or nil.
func (r *Result) Items() ir.IRArray {
	arr, _ := r.Value.(ir.IRArray)
	return arr
}

// Execute runs c on backend with the parameters' current values. A
// statement the backend rejects fails with BACKEND_EXECUTION carrying the
// statement text and arguments.
func (e *Engine) Execute(ctx context.Context, c *Compiled, backend Backend) (*Result, error) {
	id := e.ids.Generate()
	text := c.Statement.Text

	args, err := c.Statement.Args()
	if err != nil {
		return nil, fmt.Errorf("execution %s: read parameters: %w", id, err)
	}

	start := time.Now()
	rs, err := backend.Query(ctx, text, args)
	if err != nil {
		e.logger.Error("statement failed",
			"execution_id", id,
			"fingerprint", c.Fingerprint,
			"error", err,
		)
		return nil, plan.BackendExecution(text, args, err)
	}

	m := &materializer{resolvers: e.resolvers}
	value, err := m.result(c.Plan, rs)
	if err != nil {
		return nil, fmt.Errorf("execution %s: %w", id, err)
	}

	e.logger.Info("statement executed",
		"execution_id", id,
		"fingerprint", c.Fingerprint,
		"rows", rs.Len(),
		"elapsed", time.Since(start),
	)
	return &Result{ExecutionID: id, Value: value, Rows: rs.Len()}, nil
}

// Query compiles q and executes it once.
func (e *Engine) Query(ctx context.Context, q Expression, backend Backend) (*Result, error) {
	c, err := e.Compile(q)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, c, backend)
}
