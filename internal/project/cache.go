package project

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/roach88/blockc/internal/codegen"
	"github.com/roach88/blockc/internal/store"
)

// CachedHasher serves asset digests from the build cache. An entry is only
// reused while the file's size and modification time are unchanged;
// anything else is hashed again and written back.
//
// Thread-safety: safe for concurrent use; the store serializes writes.
type CachedHasher struct {
	ctx   context.Context
	store *store.Store
	files codegen.AssetHasher

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedHasher returns a hasher backed by s. ctx bounds every cache
// query made through it.
func NewCachedHasher(ctx context.Context, s *store.Store) *CachedHasher {
	return &CachedHasher{ctx: ctx, store: s, files: codegen.FileHasher{}}
}

// Digest implements codegen.AssetHasher.
func (h *CachedHasher) Digest(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("read asset: %w", err)
	}
	sum, ok, err := h.store.LookupDigest(h.ctx, path, info.Size(), info.ModTime())
	if err != nil {
		return "", err
	}
	if ok {
		h.hits.Add(1)
		return sum, nil
	}

	h.misses.Add(1)
	if sum, err = h.files.Digest(path); err != nil {
		return "", err
	}
	err = h.store.PutDigest(h.ctx, store.AssetDigest{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Digest:  sum,
	})
	if err != nil {
		return "", err
	}
	return sum, nil
}

// Stats reports cache hits and misses so far.
func (h *CachedHasher) Stats() (hits, misses int64) {
	return h.hits.Load(), h.misses.Load()
}
