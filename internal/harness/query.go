package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vfpquery/internal/capability"
	"github.com/roach88/vfpquery/internal/engine"
)

// Render compiles doc for the given dialects, or for the document's own
// dialects when none are given. Expectations are not checked.
func (r *Runner) Render(doc *Document, dialects ...string) ([]Rendered, error) {
	q, err := buildQuery(doc)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.Name, err)
	}
	if len(dialects) == 0 {
		dialects = doc.DialectNames()
	}
	out, err := r.renderAll(q, dialects)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.Name, err)
	}
	return out, nil
}

// Execute compiles doc for the runner's backend and runs it once. params
// overrides declared parameter values and may be nil.
func (r *Runner) Execute(ctx context.Context, doc *Document, params *yaml.Node) (*engine.Compiled, *engine.Result, error) {
	if r.backend == nil {
		return nil, nil, errors.New("no backend configured")
	}

	q, err := buildQuery(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("document %s: %w", doc.Name, err)
	}
	if params != nil {
		if err := q.apply(params); err != nil {
			return nil, nil, fmt.Errorf("document %s: params: %w", doc.Name, err)
		}
	}

	eng, err := r.newEngine(r.dialect, capability.Backend(doc.Backend))
	if err != nil {
		return nil, nil, err
	}
	c, err := eng.Compile(q.query)
	if err != nil {
		return nil, nil, err
	}
	res, err := eng.Execute(ctx, c, r.backend)
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

// ParseParams turns name=value pairs into a parameter mapping. Values are
// read as YAML scalars, so 50 is an integer, 18.5 a decimal and
// 1996-07-20 a date.
func ParseParams(pairs []string) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q: expected name=value", pair)
		}

		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(value), &doc); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		v := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: ""}
		if len(doc.Content) == 1 {
			v = doc.Content[0]
		}
		if _, err := literal(v); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}

		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}, v)
	}
	return m, nil
}
