package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates execution IDs "exec-1", "exec-2", ... so that logs
// and traces of a test run are reproducible.
//
// Thread-safety: all methods are safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceIDs creates a generator. An empty prefix means "exec".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "exec"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Count returns how many IDs were generated.
func (g *SequenceIDs) Count() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
