// Package localstore holds client state that must survive a process restart:
// the set of in-flight job ids and the batches still waiting in the queue.
package localstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// KV is a small durable key-value store. Values are JSON documents.
type KV interface {
	// Get returns the stored value, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Update atomically replaces the value of key with fn(current). Returning
	// nil from fn deletes the key.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open selects a backend by name.
func Open(backend, path string, logger zerolog.Logger) (KV, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileKV(path, logger)
	case BackendSQLite:
		return NewSQLiteKV(path)
	default:
		return nil, fmt.Errorf("localstore: unknown backend %q", backend)
	}
}
