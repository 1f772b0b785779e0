// Package dedupe tracks the pair keys already scored in an inference run.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen keys so each one is processed at most once.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// SeenAny reports whether any of keys was recorded, without recording.
	SeenAny(ctx context.Context, keys ...string) bool

	Size() int64
}

// inMemoryDeduper implements Deduper with a map. It never evicts: an
// evicted pair key would let the reverse pair be scored a second time.
type inMemoryDeduper struct {
	mu   sync.RWMutex
	seen map[string]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates an empty deduper sized for about capacity keys.
func NewInMemoryDeduper(capacity int) Deduper {
	if capacity < 0 {
		capacity = 0
	}
	return &inMemoryDeduper{seen: make(map[string]struct{}, capacity)}
}

// SeenAndRecord atomically checks if key was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

// SeenAny reports whether any of keys was recorded.
func (d *inMemoryDeduper) SeenAny(_ context.Context, keys ...string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, k := range keys {
		if _, exists := d.seen[k]; exists {
			return true
		}
	}
	return false
}

// Size returns the number of recorded keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
