package expr

import (
	"fmt"
	"sync"
)

// Arena is an append-only store of nodes. Handles are indices into it.
//
// Add only accepts operands that already exist, so a node can never refer
// to itself or to a node created after it. Concurrent Add and Node calls
// are safe; nodes themselves are immutable values.
type Arena struct {
	mu    sync.RWMutex
	nodes []Node
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add appends n and returns its handle.
func (a *Arena) Add(n Node) (Handle, error) {
	if n == nil {
		return NoHandle, fmt.Errorf("cannot add nil node")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := Handle(len(a.nodes))
	for _, c := range Children(n) {
		if c < 0 || c >= next {
			return NoHandle, fmt.Errorf("%s: operand handle %d does not exist", Name(n), c)
		}
	}
	a.nodes = append(a.nodes, n)
	return next, nil
}

// MustAdd is Add for callers that construct handles they know are valid.
func (a *Arena) MustAdd(n Node) Handle {
	h, err := a.Add(n)
	if err != nil {
		panic(err)
	}
	return h
}

// Node returns the node at h.
func (a *Arena) Node(h Handle) (Node, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if h < 0 || int(h) >= len(a.nodes) {
		return nil, fmt.Errorf("handle %d out of range", h)
	}
	return a.nodes[h], nil
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.nodes)
}

// Walk visits root and everything reachable from it, each handle once,
// operands before the nodes that use them.
func (a *Arena) Walk(root Handle, fn func(Handle, Node) error) error {
	seen := make(map[Handle]bool)
	var visit func(Handle) error
	visit = func(h Handle) error {
		if seen[h] {
			return nil
		}
		seen[h] = true
		n, err := a.Node(h)
		if err != nil {
			return err
		}
		for _, c := range Children(n) {
			if err := visit(c); err != nil {
				return err
			}
		}
		return fn(h, n)
	}
	return visit(root)
}
