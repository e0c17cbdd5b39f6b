package store

import (
	"context"
	"fmt"
	"io"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Handle is a Store that must be closed when the program exits.
type Handle interface {
	Store
	io.Closer
}

type nopCloser struct{ *MemoryStore }

func (nopCloser) Close() error { return nil }

// Open returns the backend named by backend. path is used by sqlite and
// redisURL by redis. An empty backend selects sqlite.
func Open(ctx context.Context, backend, path, redisURL string) (Handle, error) {
	switch backend {
	case "", BackendSQLite:
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		s, err := NewRedisStore(ctx, redisURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return nopCloser{NewMemoryStore()}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
