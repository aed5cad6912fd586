package store

import (
	"context"
	"sync"
)

// MemoryTier is the last line of defense: a process-local map whose
// operations cannot fail.
type MemoryTier struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryTier returns an empty MemoryTier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{data: make(map[string][]byte)}
}

// Name implements [Tier].
func (t *MemoryTier) Name() string { return "memory" }

// Get implements [Tier].
func (t *MemoryTier) Get(ctx context.Context, key string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	value, ok := t.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements [Tier].
func (t *MemoryTier) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[key] = stored
	return nil
}

// Remove implements [Tier].
func (t *MemoryTier) Remove(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, key)
	return nil
}

// ListKeys implements [Tier].
func (t *MemoryTier) ListKeys(ctx context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		keys = append(keys, k)
	}
	return keys, nil
}
