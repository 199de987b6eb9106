// Package mock provides a recording test double for vectorstore.Store.
package mock

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/docqa/vectorstore"
)

// MockStore is an in-memory vectorstore.Store that records every call.
// Behavior can be overridden per operation via the function fields.
type MockStore struct {
	// ListIndexNamesFunc is called by ListIndexNames if set.
	ListIndexNamesFunc func(ctx context.Context) ([]string, error)

	// CreateIndexFunc is called by CreateIndex if set.
	CreateIndexFunc func(ctx context.Context, spec vectorstore.IndexSpec) error

	// UpsertFunc is called by Index.Upsert if set, instead of storing.
	UpsertFunc func(ctx context.Context, index string, records []vectorstore.Record) error

	// QueryFunc is called by Index.Query if set, instead of scoring.
	QueryFunc func(ctx context.Context, index string, vector []float32, opts vectorstore.QueryOptions) ([]vectorstore.Match, error)

	mu      sync.Mutex
	specs   map[string]vectorstore.IndexSpec
	records map[string]map[string]vectorstore.Record
	listed  int
	created []vectorstore.IndexSpec
	upserts [][]vectorstore.Record
	queries []vectorstore.QueryOptions
	closed  bool
}

var _ vectorstore.Store = (*MockStore)(nil)

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		specs:   make(map[string]vectorstore.IndexSpec),
		records: make(map[string]map[string]vectorstore.Record),
	}
}

// WithIndex registers an existing index without recording a CreateIndex call.
func (m *MockStore) WithIndex(spec vectorstore.IndexSpec) *MockStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.specs[spec.Name] = spec
	m.records[spec.Name] = make(map[string]vectorstore.Record)
	return m
}

// ListIndexNames returns the registered index names in lexical order.
func (m *MockStore) ListIndexNames(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	m.listed++
	m.mu.Unlock()

	if m.ListIndexNamesFunc != nil {
		return m.ListIndexNamesFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.specs)), nil
}

// CreateIndex records the call and registers the index.
func (m *MockStore) CreateIndex(ctx context.Context, spec vectorstore.IndexSpec) error {
	m.mu.Lock()
	m.created = append(m.created, spec)
	m.mu.Unlock()

	if m.CreateIndexFunc != nil {
		return m.CreateIndexFunc(ctx, spec)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.specs[spec.Name]; ok {
		return fmt.Errorf("%w: %s", vectorstore.ErrIndexExists, spec.Name)
	}
	m.specs[spec.Name] = spec
	m.records[spec.Name] = make(map[string]vectorstore.Record)
	return nil
}

// Index returns a handle to the named index.
func (m *MockStore) Index(name string) vectorstore.Index {
	return &mockIndex{store: m, name: name}
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ListCallCount returns the number of ListIndexNames calls.
func (m *MockStore) ListCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listed
}

// CreatedIndexes returns the specs passed to CreateIndex, in call order.
func (m *MockStore) CreatedIndexes() []vectorstore.IndexSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.created)
}

// Upserts returns the record batches passed to Upsert, in call order.
func (m *MockStore) Upserts() [][]vectorstore.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.upserts)
}

// Queries returns the options of every Query call, in call order.
func (m *MockStore) Queries() []vectorstore.QueryOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queries)
}

// Records returns the stored records of an index, sorted by id.
func (m *MockStore) Records(index string) []vectorstore.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Collect(maps.Values(m.records[index]))
	slices.SortFunc(out, func(a, b vectorstore.Record) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockIndex struct {
	store *MockStore
	name  string
}

func (i *mockIndex) Name() string {
	return i.name
}

func (i *mockIndex) Upsert(ctx context.Context, records ...vectorstore.Record) error {
	m := i.store
	m.mu.Lock()
	m.upserts = append(m.upserts, slices.Clone(records))
	m.mu.Unlock()

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, i.name, records)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[i.name]
	if !ok {
		return fmt.Errorf("%w: %s", vectorstore.ErrIndexNotFound, i.name)
	}
	for _, r := range records {
		stored[r.ID] = r
	}
	return nil
}

func (i *mockIndex) Query(ctx context.Context, vector []float32, opts vectorstore.QueryOptions) ([]vectorstore.Match, error) {
	m := i.store
	m.mu.Lock()
	m.queries = append(m.queries, opts)
	m.mu.Unlock()

	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, i.name, vector, opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	spec, ok := m.specs[i.name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrIndexNotFound, i.name)
	}

	matches := make([]vectorstore.Match, 0, len(m.records[i.name]))
	for _, r := range m.records[i.name] {
		match := vectorstore.Match{ID: r.ID, Score: vectorstore.Score(spec.Metric, vector, r.Values)}
		if opts.IncludeValues {
			match.Values = r.Values
		}
		if opts.IncludeMetadata {
			match.Metadata = r.Metadata
		}
		matches = append(matches, match)
	}
	slices.SortFunc(matches, func(a, b vectorstore.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if opts.TopK > 0 && len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}
	return matches, nil
}
