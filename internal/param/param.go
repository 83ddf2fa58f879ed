package param

import (
	"fmt"
	"sync"

	"github.com/roach88/vfpquery/internal/ir"
)

// Source yields the current value of a referenced variable.
type Source interface {
	Load() any
}

// Ref is a live reference to a caller-owned variable.
type Ref[T any] struct {
	p *T
}

// NewRef borrows p. The caller keeps ownership and may keep writing to it.
func NewRef[T any](p *T) Ref[T] {
	return Ref[T]{p: p}
}

// Load returns the value p points to right now.
func (r Ref[T]) Load() any {
	if r.p == nil {
		return nil
	}
	return *r.p
}

// Cell is an indirection cell safe for concurrent Set and Load.
type Cell[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewCell creates a cell holding v.
func NewCell[T any](v T) *Cell[T] {
	return &Cell[T]{v: v}
}

// Set replaces the held value.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// Get returns the held value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Load implements Source.
func (c *Cell[T]) Load() any {
	return c.Get()
}

// Func adapts a function to Source.
type Func func() any

// Load implements Source.
func (f Func) Load() any { return f() }

// Fixed is a Source whose value never changes. The emitter uses it for
// constants that cannot be written inline.
type Fixed struct {
	Value ir.IRValue
}

// Load implements Source.
func (f Fixed) Load() any { return f.Value }

// Parameter is a named slot bound to a live Source.
type Parameter struct {
	Name   string
	Source Source
}

// New creates a parameter.
func New(name string, src Source) Parameter {
	return Parameter{Name: name, Source: src}
}

// Value reads the referenced variable and converts it to an IRValue.
func (p Parameter) Value() (ir.IRValue, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("parameter %q: no source bound", p.Name)
	}
	v, err := ir.FromGo(p.Source.Load())
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
	}
	return v, nil
}

// Bindings is a set of named cells, used when parameters are declared by
// name (query documents, the CLI) rather than by Go pointer.
type Bindings struct {
	mu    sync.RWMutex
	cells map[string]*Cell[any]
}

// NewBindings creates an empty set.
func NewBindings() *Bindings {
	return &Bindings{cells: make(map[string]*Cell[any])}
}

// Bind returns the parameter for name, creating its cell with initial when
// it does not exist yet. Binding the same name twice shares one cell.
func (b *Bindings) Bind(name string, initial any) Parameter {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cells[name]
	if !ok {
		c = NewCell[any](initial)
		b.cells[name] = c
	}
	return New(name, c)
}

// Set updates the value of a declared name.
func (b *Bindings) Set(name string, v any) error {
	b.mu.RLock()
	c, ok := b.cells[name]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	c.Set(v)
	return nil
}

// Lookup returns the parameter for an already declared name.
func (b *Bindings) Lookup(name string) (Parameter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.cells[name]
	if !ok {
		return Parameter{}, false
	}
	return New(name, c), true
}
