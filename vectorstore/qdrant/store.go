// Package qdrant implements vectorstore.Store on a Qdrant server.
//
// Indexes map to collections. Qdrant point ids must be integers or UUIDs, so
// each record id is mapped to a name-based UUID and the original id travels in
// the payload under RecordIDKey.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/vectorstore"
	"github.com/qdrant/go-client/qdrant"
)

// RecordIDKey is the payload key holding the caller's record id.
const RecordIDKey = "record_id"

const defaultPort = 6334

// pointNamespace scopes the name-based UUIDs derived from record ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/poiesic/docqa/points"))

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address, e.g. "http://localhost:6334" or
	// "https://example.cloud.qdrant.io:6334". Without a scheme, https is assumed.
	URL string

	// APIKey is optional API key for authentication.
	APIKey string
}

// pointsClient is the subset of the Qdrant client used by Store.
type pointsClient interface {
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Store implements vectorstore.Store for Qdrant.
type Store struct {
	client pointsClient
	logger *slog.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// NewStore connects to the Qdrant server described by cfg.
//
// Returns vectorstore.Store interface to enforce abstraction.
func NewStore(cfg Config) (vectorstore.Store, error) {
	qcfg, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return newStore(client), nil
}

func newStore(client pointsClient) *Store {
	return &Store{
		client: client,
		logger: slog.Default().With("component", "qdrant-store"),
	}
}

// clientConfig parses cfg.URL into host, port and TLS settings.
func clientConfig(cfg Config) (*qdrant.Config, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	raw := cfg.URL
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("qdrant url %q has no host", cfg.URL)
	}

	port := defaultPort
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
	}

	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	}, nil
}

// ListIndexNames returns the names of all collections.
func (s *Store) ListIndexNames(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("qdrant list collections failed: %w", err)
	}
	return names, nil
}

// CreateIndex creates a collection with a single unnamed dense vector.
func (s *Store) CreateIndex(ctx context.Context, spec vectorstore.IndexSpec) error {
	if spec.Metric == "" {
		spec.Metric = vectorstore.MetricCosine
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: spec.Name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(spec.Dimension),
					Distance: distance(spec.Metric),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s failed: %w", spec.Name, err)
	}

	s.logger.Info("created collection", "name", spec.Name, "dimension", spec.Dimension, "metric", spec.Metric)
	return nil
}

// Index returns a handle to the named collection.
func (s *Store) Index(name string) vectorstore.Index {
	return &Index{store: s, name: name}
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func distance(m vectorstore.Metric) qdrant.Distance {
	switch m {
	case vectorstore.MetricDotProduct:
		return qdrant.Distance_Dot
	case vectorstore.MetricEuclidean:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

// PointID returns the Qdrant point UUID for a record id.
func PointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}

// Index is a handle to one Qdrant collection.
type Index struct {
	store *Store
	name  string
}

var _ vectorstore.Index = (*Index)(nil)

// Name returns the collection name.
func (i *Index) Name() string {
	return i.name
}

// Upsert writes records as points and waits for the write to be applied.
func (i *Index) Upsert(ctx context.Context, records ...vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for n, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}

		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[RecordIDKey] = r.ID

		values, err := qdrant.TryValueMap(payload)
		if err != nil {
			return fmt.Errorf("record %s has unsupported metadata: %w", r.ID, err)
		}

		points[n] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Values...),
			Payload: values,
		}
	}

	_, err := i.store.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.name,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert into %s failed: %w", i.name, err)
	}

	i.store.logger.Debug("upserted points", "collection", i.name, "count", len(points))
	return nil
}

// Query runs a nearest-neighbor query. Qdrant returns points ordered by
// descending score.
func (i *Index) Query(ctx context.Context, vector []float32, opts vectorstore.QueryOptions) ([]vectorstore.Match, error) {
	if opts.TopK < 1 {
		return nil, fmt.Errorf("%w: topK must be positive", vectorstore.ErrInvalidQuery)
	}

	limit := uint64(opts.TopK)
	points, err := i.store.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(opts.IncludeValues),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query on %s failed: %w", i.name, err)
	}

	matches := make([]vectorstore.Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, toMatch(p, opts))
	}
	return matches, nil
}

func toMatch(p *qdrant.ScoredPoint, opts vectorstore.QueryOptions) vectorstore.Match {
	payload := p.GetPayload()

	match := vectorstore.Match{
		ID:    p.GetId().GetUuid(),
		Score: p.GetScore(),
	}
	if id := payload[RecordIDKey].GetStringValue(); id != "" {
		match.ID = id
	}

	if opts.IncludeMetadata {
		match.Metadata = make(map[string]any, len(payload))
		for k, v := range payload {
			if k == RecordIDKey {
				continue
			}
			match.Metadata[k] = convertValue(v)
		}
	}

	if opts.IncludeValues {
		if dense := p.GetVectors().GetVector().GetDense(); dense != nil {
			match.Values = dense.GetData()
		}
	}

	return match
}

// convertValue converts a Qdrant payload value to a plain Go value.
func convertValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}

	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		out := make([]any, len(val.ListValue.GetValues()))
		for i, lv := range val.ListValue.GetValues() {
			out[i] = convertValue(lv)
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(val.StructValue.GetFields()))
		for k, nv := range val.StructValue.GetFields() {
			out[k] = convertValue(nv)
		}
		return out
	default:
		return nil
	}
}
