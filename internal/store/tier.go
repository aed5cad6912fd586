package store

import (
	"context"
	"errors"
)

// ErrNotFound reports a key with no stored payload in a tier.
var ErrNotFound = errors.New("state not found")

// Tier is one candidate backing store in the fallback chain. Keys are opaque
// full keys (prefix included); payloads are opaque bytes.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}
