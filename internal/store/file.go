package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fileTierExt = ".state"

// FileTier persists payloads as one file per key under a directory, for the
// desktop-shell variant and as the session-scoped fallback between the
// durable tier and process memory. Keys are base64-encoded into filenames so
// they never appear in plaintext on disk.
type FileTier struct {
	dir string
}

// NewFileTier returns a FileTier rooted at dir, creating it if needed.
func NewFileTier(dir string) (*FileTier, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("file tier: %w", err)
	}
	return &FileTier{dir: dir}, nil
}

// Name implements [Tier].
func (t *FileTier) Name() string { return "file" }

func (t *FileTier) path(key string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(key)) + fileTierExt
	return filepath.Join(t.dir, name)
}

// Get implements [Tier].
func (t *FileTier) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(t.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("file tier: %w", err)
	}
	return data, nil
}

// Set implements [Tier]. Writes go through a temp file and rename so a crash
// mid-write never leaves a truncated record behind.
func (t *FileTier) Set(ctx context.Context, key string, value []byte) error {
	target := t.path(key)
	tmp, err := os.CreateTemp(t.dir, "write-*")
	if err != nil {
		return fmt.Errorf("file tier: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("file tier: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file tier: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file tier: %w", err)
	}
	return nil
}

// Remove implements [Tier].
func (t *FileTier) Remove(ctx context.Context, key string) error {
	if err := os.Remove(t.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file tier: %w", err)
	}
	return nil
}

// ListKeys implements [Tier]. Files that do not decode back to a key are
// skipped rather than surfaced.
func (t *FileTier) ListKeys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("file tier: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileTierExt) {
			continue
		}
		encoded := strings.TrimSuffix(entry.Name(), fileTierExt)
		raw, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		keys = append(keys, string(raw))
	}
	return keys, nil
}
