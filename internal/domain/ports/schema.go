package ports

import "context"

// SchemaManager prepares the tables, collections or indexes a store needs.
// This is separate from the store interfaces because not every backend needs
// setup, and it keeps those interfaces focused on data operations.
type SchemaManager interface {
	// EnsureSchema creates whatever is missing. It is safe to call repeatedly.
	EnsureSchema(ctx context.Context) error
}
