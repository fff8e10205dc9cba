package ports

import "context"

// Remote collection names.
const (
	// UsersDataCollection holds one dataset document per user, keyed by user id.
	UsersDataCollection = "users_data"
	// ActivityCollection holds activity log entries of all users.
	ActivityCollection = "activity_logs"
	// TasksCollection holds shared tasks of all users, keyed by task id.
	TasksCollection = "tasks"
)

// Document is a schema-free remote document.
type Document map[string]any

// serverTimestamp is the type of the ServerTimestamp sentinel.
type serverTimestamp struct{}

// ServerTimestamp is a field value that remote stores replace with their own
// clock when the document is written.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Unsubscribe stops a live subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// NoopUnsubscribe is the disposer returned when there is nothing to stop.
func NoopUnsubscribe() {}

// FilterOp is the comparison a Filter applies.
type FilterOp int

const (
	// OpEqual matches documents whose field equals Value.
	OpEqual FilterOp = iota
	// OpArrayContains matches documents whose array field holds Value.
	OpArrayContains
)

// Filter is a condition on a document field. The zero Op is equality.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Query selects documents from a collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// RemoteStore is a document/collection store with queries and live subscriptions.
// Query results and subscription snapshots carry the remote-assigned id under "id".
type RemoteStore interface {
	// GetDocument reads a document by key. found is false when it does not exist.
	GetDocument(ctx context.Context, collection, key string) (doc Document, found bool, err error)

	// SetDocument writes a document. With merge, fields absent from the payload
	// are left untouched at the remote.
	SetDocument(ctx context.Context, collection, key string, fields Document, merge bool) error

	// AddDocument appends a document with a remote-assigned id and returns the id.
	AddDocument(ctx context.Context, collection string, fields Document) (string, error)

	// DeleteDocument removes a document by key. Deleting a missing document
	// is not an error.
	DeleteDocument(ctx context.Context, collection, key string) error

	// Query returns documents matching q.
	Query(ctx context.Context, q Query) ([]Document, error)

	// SubscribeDocument delivers the document on every change. found is false
	// when the document does not exist.
	SubscribeDocument(ctx context.Context, collection, key string, fn func(doc Document, found bool)) (Unsubscribe, error)

	// SubscribeQuery delivers the full result set of q on every change.
	SubscribeQuery(ctx context.Context, q Query, fn func(docs []Document)) (Unsubscribe, error)

	// Close releases the connection.
	Close() error
}
