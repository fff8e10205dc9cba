// Package fallback wraps a durable LocalStore with an in-memory fallback.
package fallback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ersonp/bookspace/internal/domain/ports"
)

// Store tries the primary store first. When it fails, the operation is
// served by the fallback and the failure is logged, so callers keep working
// on a best-effort copy.
type Store struct {
	primary  ports.LocalStore
	fallback ports.LocalStore
	logger   *slog.Logger
	degraded atomic.Bool

	// stale holds keys whose latest write reached only the fallback.
	mu    sync.Mutex
	stale map[string]bool
}

// NewStore creates a Store. A nil logger uses slog.Default().
func NewStore(primary, fallback ports.LocalStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{primary: primary, fallback: fallback, logger: logger, stale: make(map[string]bool)}
}

// Get reads from the primary, falling back on error. Keys written only to
// the fallback are found there while the primary misses them. A key whose
// last write failed on the primary is served from the fallback.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.isStale(key) {
		if fv, ffound, ferr := s.fallback.Get(ctx, key); ferr == nil && ffound {
			return fv, true, nil
		}
	}

	v, found, err := s.primary.Get(ctx, key)
	if err == nil && found {
		return v, true, nil
	}
	if err != nil {
		s.markDegraded(ctx, "get", key, err)
	}

	fv, ffound, ferr := s.fallback.Get(ctx, key)
	if ferr != nil || !ffound {
		// Only a primary failure is worth reporting.
		return "", false, err
	}
	return fv, true, nil
}

// Set writes to the primary, falling back on error. The fallback also keeps
// a copy of every successful write.
func (s *Store) Set(ctx context.Context, key, value string) error {
	err := s.primary.Set(ctx, key, value)
	if err != nil {
		s.markDegraded(ctx, "set", key, err)
	}
	s.setStale(key, err != nil)
	if ferr := s.fallback.Set(ctx, key, value); ferr != nil && err != nil {
		return err
	}
	return nil
}

// Degraded reports whether the primary has failed at least once.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

func (s *Store) isStale(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale[key]
}

func (s *Store) setStale(key string, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stale {
		s.stale[key] = true
		return
	}
	delete(s.stale, key)
}

func (s *Store) markDegraded(ctx context.Context, op, key string, err error) {
	if !s.degraded.Swap(true) {
		s.logger.WarnContext(ctx, "local store failing, using in-memory fallback", "op", op, "key", key, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "local store failure", "op", op, "key", key, "error", err)
}
