// Package span plans eager loading. Include paths are dotted navigation
// chains ("Orders.Items"); the planner merges them into one tree so that
// paths with a common prefix share the joins of that prefix.
package span

import (
	"fmt"
	"strings"

	"github.com/roach88/vfpquery/internal/schema"
)

// Node is one navigation of the tree, joined once no matter how many
// paths pass through it.
type Node struct {
	Path     string
	Nav      *schema.Navigation
	Entity   *schema.Entity
	Children []*Node
}

// Tree is the merged set of Include paths for one root entity.
type Tree struct {
	Root     *schema.Entity
	Children []*Node

	model *schema.Model
}

// New creates an empty tree rooted at root.
func New(model *schema.Model, root *schema.Entity) *Tree {
	return &Tree{Root: root, model: model}
}

// Add merges a dotted path into the tree. Adding a path twice, or a
// prefix of an existing path, changes nothing.
func (t *Tree) Add(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("include: empty path")
	}

	owner := t.Root
	siblings := &t.Children
	var prefix []string
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return fmt.Errorf("include %q: empty segment", path)
		}
		prefix = append(prefix, seg)

		nav, ok := owner.Navigation(seg)
		if !ok {
			return fmt.Errorf("include %q: %s has no navigation %s", path, owner.Name, seg)
		}
		target, ok := t.model.Entity(nav.Target)
		if !ok {
			return fmt.Errorf("include %q: unknown entity %s", path, nav.Target)
		}

		var node *Node
		for _, n := range *siblings {
			if n.Nav.Name == seg {
				node = n
				break
			}
		}
		if node == nil {
			node = &Node{Path: strings.Join(prefix, "."), Nav: nav, Entity: target}
			*siblings = append(*siblings, node)
		}

		owner = target
		siblings = &node.Children
	}
	return nil
}

// Walk visits nodes depth first, parents before children. parent is nil
// for navigations of the root entity.
func (t *Tree) Walk(fn func(parent, n *Node) error) error {
	var visit func(parent *Node, nodes []*Node) error
	visit = func(parent *Node, nodes []*Node) error {
		for _, n := range nodes {
			if err := fn(parent, n); err != nil {
				return err
			}
			if err := visit(n, n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(nil, t.Children)
}

// Len returns the number of joins the tree needs.
func (t *Tree) Len() int {
	n := 0
	_ = t.Walk(func(_, _ *Node) error { n++; return nil })
	return n
}

// HasMany reports whether any navigation is to-many, in which case the
// joined rows must be regrouped under their parents.
func (t *Tree) HasMany() bool {
	many := false
	_ = t.Walk(func(_, n *Node) error {
		many = many || n.Nav.Many
		return nil
	})
	return many
}

// Empty reports whether no path was added.
func (t *Tree) Empty() bool { return len(t.Children) == 0 }

// Join describes the join stage for one node.
type Join struct {
	Path       string
	ParentPath string
	Nav        *schema.Navigation
	Target     *schema.Entity
}

// Joins lists one join per node in Walk order.
func (t *Tree) Joins() []Join {
	var out []Join
	_ = t.Walk(func(parent, n *Node) error {
		j := Join{Path: n.Path, Nav: n.Nav, Target: n.Entity}
		if parent != nil {
			j.ParentPath = parent.Path
		}
		out = append(out, j)
		return nil
	})
	return out
}
