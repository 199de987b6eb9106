package vectorstore

import "context"

// Store manages named vector indexes.
type Store interface {
	// ListIndexNames returns the names of all existing indexes.
	ListIndexNames(ctx context.Context) ([]string, error)

	// CreateIndex creates a new index.
	// Returns ErrIndexExists if an index with the same name exists.
	CreateIndex(ctx context.Context, spec IndexSpec) error

	// Index returns a handle to the named index. The handle is not checked
	// for existence until it is used.
	Index(name string) Index

	// Close releases resources held by the store.
	Close() error
}

// Index is a handle to one named index.
type Index interface {
	// Name returns the index name.
	Name() string

	// Upsert inserts records, overwriting any existing record with the same id.
	Upsert(ctx context.Context, records ...Record) error

	// Query returns up to opts.TopK records most similar to vector,
	// ordered by descending score.
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Match, error)
}
