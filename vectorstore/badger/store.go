package badger

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/vectorstore"
)

// Store implements vectorstore.Store on an embedded BadgerDB database.
// Queries scan every record of the index.
type Store struct {
	backend    *Backend
	ownBackend bool
	logger     *slog.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// newStore is an internal constructor that returns the concrete type.
func newStore(backend *Backend, own bool) *Store {
	return &Store{
		backend:    backend,
		ownBackend: own,
		logger:     slog.Default().With("component", "badger-store"),
	}
}

// NewStore opens (or creates) a store in the directory at path.
//
// Returns vectorstore.Store interface to enforce abstraction.
func NewStore(path string) (vectorstore.Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newStore(backend, true), nil
}

// NewStoreWithBackend creates a store on an existing backend.
// The caller keeps ownership of the backend and must close it.
func NewStoreWithBackend(backend *Backend) vectorstore.Store {
	return newStore(backend, false)
}

// ListIndexNames returns the names of all indexes in lexical order.
func (s *Store) ListIndexNames(ctx context.Context) ([]string, error) {
	if s.backend.IsClosed() {
		return nil, vectorstore.ErrStoreClosed
	}

	var names []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(indexPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := iter.Item().Key()
			names = append(names, string(bytes.TrimPrefix(key, []byte(indexPrefix))))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	return names, nil
}

// CreateIndex stores a new index descriptor.
// Index names may not contain ':' since it delimits record keys.
func (s *Store) CreateIndex(ctx context.Context, spec vectorstore.IndexSpec) error {
	if s.backend.IsClosed() {
		return vectorstore.ErrStoreClosed
	}
	if spec.Metric == "" {
		spec.Metric = vectorstore.MetricCosine
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if strings.Contains(spec.Name, ":") {
		return fmt.Errorf("%w: name %q contains ':'", vectorstore.ErrInvalidIndexSpec, spec.Name)
	}

	value, err := marshalIndex(spec)
	if err != nil {
		return err
	}

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeIndexKey(spec.Name)
		_, err := tx.Get(key)
		if err == nil {
			return fmt.Errorf("%w: %s", vectorstore.ErrIndexExists, spec.Name)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	s.logger.Info("created index", "name", spec.Name, "dimension", spec.Dimension, "metric", spec.Metric)
	return nil
}

// Index returns a handle to the named index.
func (s *Store) Index(name string) vectorstore.Index {
	return &Index{store: s, name: name}
}

// Close closes the underlying database if the store opened it.
func (s *Store) Close() error {
	if !s.ownBackend || s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

// loadSpec reads the descriptor of the named index.
func (s *Store) loadSpec(tx *badger.Txn, name string) (vectorstore.IndexSpec, error) {
	item, err := tx.Get(makeIndexKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return vectorstore.IndexSpec{}, fmt.Errorf("%w: %s", vectorstore.ErrIndexNotFound, name)
		}
		return vectorstore.IndexSpec{}, err
	}

	var spec vectorstore.IndexSpec
	err = item.Value(func(val []byte) error {
		var decodeErr error
		spec, decodeErr = unmarshalIndex(val)
		return decodeErr
	})
	return spec, err
}

// Index is a handle to one index in a Store.
type Index struct {
	store *Store
	name  string
}

var _ vectorstore.Index = (*Index)(nil)

// Name returns the index name.
func (i *Index) Name() string {
	return i.name
}

// Upsert writes records, overwriting existing records with the same id.
// Every record is validated before anything is written.
func (i *Index) Upsert(ctx context.Context, records ...vectorstore.Record) error {
	if i.store.backend.IsClosed() {
		return vectorstore.ErrStoreClosed
	}
	if len(records) == 0 {
		return nil
	}

	var spec vectorstore.IndexSpec
	err := i.store.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		spec, err = i.store.loadSpec(tx, i.name)
		return err
	}, false)
	if err != nil {
		return err
	}

	values := make([][]byte, len(records))
	for n, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		if len(r.Values) != spec.Dimension {
			return fmt.Errorf("%w: record %s has %d values, index %s expects %d",
				vectorstore.ErrDimensionMismatch, r.ID, len(r.Values), i.name, spec.Dimension)
		}
		if values[n], err = marshalRecord(r); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	err = i.store.backend.WriteBatch(func(wb *badger.WriteBatch) error {
		for n, r := range records {
			if err := wb.Set(makeRecordKey(i.name, r.ID), values[n]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	i.store.logger.Debug("upserted records", "index", i.name, "count", len(records))
	return nil
}

// Query scores every record against vector and returns the best opts.TopK.
// Ties are broken by id so results are stable.
func (i *Index) Query(ctx context.Context, vector []float32, opts vectorstore.QueryOptions) ([]vectorstore.Match, error) {
	if i.store.backend.IsClosed() {
		return nil, vectorstore.ErrStoreClosed
	}
	if opts.TopK < 1 {
		return nil, fmt.Errorf("%w: topK must be positive", vectorstore.ErrInvalidQuery)
	}

	var matches []vectorstore.Match
	err := i.store.backend.WithTx(func(tx *badger.Txn) error {
		spec, err := i.store.loadSpec(tx, i.name)
		if err != nil {
			return err
		}
		if len(vector) != spec.Dimension {
			return fmt.Errorf("%w: query has %d values, index %s expects %d",
				vectorstore.ErrDimensionMismatch, len(vector), i.name, spec.Dimension)
		}

		prefix := makeRecordPrefix(i.name)
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := iter.Item()
			var record recordValue
			err := item.Value(func(val []byte) error {
				var decodeErr error
				record, decodeErr = unmarshalRecord(val)
				return decodeErr
			})
			if err != nil {
				return err
			}

			match := vectorstore.Match{
				ID:    string(bytes.TrimPrefix(item.Key(), prefix)),
				Score: vectorstore.Score(spec.Metric, vector, record.Values),
			}
			if opts.IncludeValues {
				match.Values = record.Values
			}
			if opts.IncludeMetadata {
				match.Metadata = record.Metadata
			}
			matches = append(matches, match)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b vectorstore.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	if len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}

	return matches, nil
}
