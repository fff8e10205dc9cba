// Package poll turns repeated reads into a live subscription for remote
// stores without a native change feed.
package poll

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ersonp/bookspace/internal/domain/ports"
)

// DefaultInterval is used when no positive interval is given.
const DefaultInterval = 5 * time.Second

// Subscribe calls fetch immediately and then every interval until the
// returned disposer is called or ctx is done. deliver receives a snapshot
// only when it differs from the previous one. Fetch errors are logged and
// the previous snapshot is kept.
func Subscribe[T any](ctx context.Context, interval time.Duration, logger *slog.Logger, fetch func(ctx context.Context) (T, error), deliver func(T)) ports.Unsubscribe {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	var stopped atomic.Bool

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last [sha256.Size]byte
		first := true
		for {
			snap, err := fetch(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				logger.WarnContext(ctx, "polling remote store", "error", err)
			default:
				sum, ok := digest(snap)
				if first || !ok || sum != last {
					first = false
					last = sum
					if !stopped.Load() {
						deliver(snap)
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			cancel()
		})
	}
}

// digest hashes the JSON form of v. ok is false when v cannot be encoded,
// in which case every poll counts as a change.
func digest(v any) ([sha256.Size]byte, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return [sha256.Size]byte{}, false
	}
	return sha256.Sum256(data), true
}
