package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIDs(t *testing.T) {
	g := NewSequenceIDs("")
	assert.Equal(t, "exec-1", g.Generate())
	assert.Equal(t, "exec-2", g.Generate())
	assert.Equal(t, int64(2), g.Count())

	g.Reset()
	assert.Equal(t, "exec-1", g.Generate())
}

func TestSequenceIDsPrefix(t *testing.T) {
	g := NewSequenceIDs("run")
	assert.Equal(t, "run-1", g.Generate())
}

func TestSequenceIDsConcurrent(t *testing.T) {
	g := NewSequenceIDs("")
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(g.Generate(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), g.Count())
}
