// Package ports defines interfaces for external service communication.
package ports

import "context"

// Keys used in the local store.
const (
	// DatasetKey holds the full serialized dataset.
	DatasetKey = "bs12-data"
	// ActivityLogKey holds the bounded local activity log.
	ActivityLogKey = "bs12-activity-log"
)

// LocalStore is durable key/value persistence on the local device.
// Values are opaque strings; callers serialize.
type LocalStore interface {
	// Get returns the value stored under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}
