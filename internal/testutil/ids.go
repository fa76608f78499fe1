package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable block ids for tests.
//
// Ids are the prefix followed by a counter starting at 1, so the same
// build with a fresh generator produces byte-identical output. This is
// what golden snapshots rely on.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id, e.g. "id1", "id2".
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}

// Count returns how many ids have been handed out.
func (g *SequentialIDs) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts the sequence at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// StaticDigests is an asset hasher backed by a fixed path → digest table.
// Unknown paths are an error, which catches tests that touch the disk.
type StaticDigests map[string]string

// Digest returns the digest registered for path.
func (d StaticDigests) Digest(path string) (string, error) {
	sum, ok := d[path]
	if !ok {
		return "", fmt.Errorf("no digest registered for %s", path)
	}
	return sum, nil
}
