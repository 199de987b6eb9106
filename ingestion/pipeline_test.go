package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	aimock "github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/chunking"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/vectorstore"
	"github.com/poiesic/docqa/vectorstore/badger"
	storemock "github.com/poiesic/docqa/vectorstore/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/textsplitter"
)

const testDimension = 8

func testConfig() Config {
	return Config{
		IndexName: "test-index",
		Dimension: testDimension,
		ChunkSize: 1000,
		BatchSize: 100,
	}
}

func newTestPipeline(t *testing.T, store vectorstore.Store, embedder *aimock.MockEmbedder, cfg Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(store, embedder, cfg, opts...)
	require.NoError(t, err)
	return p
}

// runesDoc returns a document that splits into exactly n chunks with a chunk size of 1.
func runesDoc(source string, n int) core.Document {
	return core.Document{Source: source, Content: strings.Repeat("x", n)}
}

func TestNewPipeline_Validation(t *testing.T) {
	embedder := aimock.NewMockEmbedderWithDimension(testDimension)
	store := storemock.NewMockStore()

	_, err := NewPipeline(nil, embedder, testConfig())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(store, nil, testConfig())
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	cfg := testConfig()
	cfg.BatchSize = -1
	_, err = NewPipeline(store, embedder, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewPipeline_Defaults(t *testing.T) {
	p := newTestPipeline(t, storemock.NewMockStore(), aimock.NewMockEmbedder(), Config{})

	cfg := p.Config()
	assert.Equal(t, DefaultIndexName, cfg.IndexName)
	assert.Equal(t, DefaultDimension, cfg.Dimension)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, time.Duration(0), cfg.ReadyWait)
	assert.Equal(t, DefaultChunkSize, p.chunker.ChunkSize())
}

func TestEnsureIndex_Creates(t *testing.T) {
	store := storemock.NewMockStore()
	p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), testConfig())

	created, err := p.EnsureIndex(context.Background())
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, 1, store.ListCallCount())
	require.Len(t, store.CreatedIndexes(), 1)
	spec := store.CreatedIndexes()[0]
	assert.Equal(t, "test-index", spec.Name)
	assert.Equal(t, testDimension, spec.Dimension)
	assert.Equal(t, vectorstore.MetricCosine, spec.Metric)
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{
		Name: "test-index", Dimension: testDimension, Metric: vectorstore.MetricCosine,
	})
	cfg := testConfig()
	cfg.ReadyWait = time.Hour
	p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), cfg)

	created, err := p.EnsureIndex(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, store.ListCallCount())
	assert.Empty(t, store.CreatedIndexes())
}

func TestEnsureIndex_WaitRespectsContext(t *testing.T) {
	store := storemock.NewMockStore()
	cfg := testConfig()
	cfg.ReadyWait = time.Hour
	p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	created, err := p.EnsureIndex(ctx)
	assert.True(t, created)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, store.CreatedIndexes(), 1)
}

func TestEnsureIndex_Waits(t *testing.T) {
	cfg := testConfig()
	cfg.ReadyWait = 30 * time.Millisecond
	p := newTestPipeline(t, storemock.NewMockStore(), aimock.NewMockEmbedderWithDimension(testDimension), cfg)

	start := time.Now()
	_, err := p.EnsureIndex(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestEnsureIndex_Errors(t *testing.T) {
	boom := errors.New("unavailable")

	t.Run("list", func(t *testing.T) {
		store := storemock.NewMockStore()
		store.ListIndexNamesFunc = func(context.Context) ([]string, error) { return nil, boom }
		p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), testConfig())

		_, err := p.EnsureIndex(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, store.CreatedIndexes())
	})

	t.Run("create", func(t *testing.T) {
		store := storemock.NewMockStore()
		store.CreateIndexFunc = func(context.Context, vectorstore.IndexSpec) error { return boom }
		p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), testConfig())

		created, err := p.EnsureIndex(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.False(t, created)
	})
}

func TestRun_SingleDocumentTwoChunks(t *testing.T) {
	store := storemock.NewMockStore()
	embedder := aimock.NewMockEmbedderWithDimension(testDimension)
	p := newTestPipeline(t, store, embedder, testConfig())

	content := strings.Repeat("A ", 750)
	result, err := p.Run(context.Background(), []core.Document{{Source: "doc.txt", Content: content}})
	require.NoError(t, err)

	assert.True(t, result.IndexCreated)
	assert.Equal(t, 1, result.Documents)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, 1, result.Batches)

	assert.Equal(t, 1, store.ListCallCount())
	assert.Len(t, store.CreatedIndexes(), 1)
	assert.Equal(t, 1, embedder.BatchCallCount())

	upserts := store.Upserts()
	require.Len(t, upserts, 1)
	require.Len(t, upserts[0], 2)

	first, second := upserts[0][0], upserts[0][1]
	assert.Equal(t, "doc.txt_0", first.ID)
	assert.Equal(t, "doc.txt_1", second.ID)
	assert.Len(t, first.Metadata[core.MetaPageContent], 1000)
	assert.Len(t, second.Metadata[core.MetaPageContent], 500)
	assert.Equal(t, "doc.txt", first.Metadata[core.MetaSource])
	assert.Equal(t, content, first.Metadata[core.MetaPageContent].(string)+second.Metadata[core.MetaPageContent].(string))
	assert.Equal(t, `{"lines":{"from":1,"to":1},"offset":1000,"length":500}`, second.Metadata[core.MetaLocation])
	assert.Len(t, first.Values, testDimension)
}

func TestIngest_BatchesSpanDocuments(t *testing.T) {
	store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
	embedder := aimock.NewMockEmbedderWithDimension(testDimension)
	cfg := testConfig()
	cfg.ChunkSize = 1
	p := newTestPipeline(t, store, embedder, cfg)

	docs := []core.Document{runesDoc("a.txt", 120), runesDoc("b.txt", 80), runesDoc("c.txt", 50)}
	result, err := p.Ingest(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 250, result.Records)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 3, embedder.BatchCallCount())

	upserts := store.Upserts()
	require.Len(t, upserts, 3)
	assert.Len(t, upserts[0], 100)
	assert.Len(t, upserts[1], 100)
	assert.Len(t, upserts[2], 50)

	assert.Equal(t, "a.txt_100", upserts[1][0].ID)
	assert.Equal(t, "b.txt_0", upserts[1][20].ID)
	assert.Equal(t, "c.txt_49", upserts[2][49].ID)
	assert.Len(t, store.Records("test-index"), 250)
}

func TestIngest_BatchCounts(t *testing.T) {
	tests := []struct {
		chunks    int
		batchSize int
		want      []int
	}{
		{chunks: 1, batchSize: 100, want: []int{1}},
		{chunks: 100, batchSize: 100, want: []int{100}},
		{chunks: 101, batchSize: 100, want: []int{100, 1}},
		{chunks: 7, batchSize: 3, want: []int{3, 3, 1}},
		{chunks: 0, batchSize: 100, want: nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d chunks batch %d", tt.chunks, tt.batchSize), func(t *testing.T) {
			store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
			embedder := aimock.NewMockEmbedderWithDimension(testDimension)
			cfg := testConfig()
			cfg.ChunkSize = 1
			cfg.BatchSize = tt.batchSize
			p := newTestPipeline(t, store, embedder, cfg)

			_, err := p.Ingest(context.Background(), []core.Document{runesDoc("doc.txt", tt.chunks)})
			require.NoError(t, err)

			var sizes []int
			for _, batch := range store.Upserts() {
				sizes = append(sizes, len(batch))
			}
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestIngest_NormalizesNewlinesForEmbedding(t *testing.T) {
	store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
	embedder := aimock.NewMockEmbedderWithDimension(testDimension)
	p := newTestPipeline(t, store, embedder, testConfig())

	_, err := p.Ingest(context.Background(), []core.Document{{Source: "notes.md", Content: "line one\nline two\n"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"line one line two "}, embedder.Texts())
	records := store.Upserts()[0]
	assert.Equal(t, "line one\nline two\n", records[0].Metadata[core.MetaPageContent])
}

func TestIngest_MetadataLayering(t *testing.T) {
	store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
	p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), testConfig())

	doc := core.Document{
		Source:  "docs/guide.pdf",
		Content: "hello",
		Metadata: map[string]any{
			"total_pages":        3,
			core.MetaPageContent: "overwritten",
		},
	}
	_, err := p.Ingest(context.Background(), []core.Document{doc})
	require.NoError(t, err)

	md := store.Upserts()[0][0].Metadata
	assert.Equal(t, 3, md["total_pages"])
	assert.Equal(t, "hello", md[core.MetaPageContent])
	assert.Equal(t, "docs/guide.pdf", md[core.MetaSource])
	assert.Equal(t, "overwritten", doc.Metadata[core.MetaPageContent], "document metadata must not be mutated")
}

func TestIngest_EmptyInputs(t *testing.T) {
	store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
	embedder := aimock.NewMockEmbedderWithDimension(testDimension)
	p := newTestPipeline(t, store, embedder, testConfig())

	result, err := p.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Records)

	result, err = p.Ingest(context.Background(), []core.Document{{Source: "empty.txt"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Documents)
	assert.Zero(t, result.Chunks)

	assert.Zero(t, embedder.CallCount())
	assert.Empty(t, store.Upserts())
}

func TestIngest_InvalidDocument(t *testing.T) {
	store := storemock.NewMockStore()
	embedder := aimock.NewMockEmbedderWithDimension(testDimension)
	p := newTestPipeline(t, store, embedder, testConfig())

	_, err := p.Ingest(context.Background(), []core.Document{{Content: "no source"}})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
	assert.Zero(t, embedder.CallCount())
}

func TestIngest_DuplicateSource(t *testing.T) {
	store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
	embedder := aimock.NewMockEmbedderWithDimension(testDimension)
	p := newTestPipeline(t, store, embedder, testConfig())

	_, err := p.Ingest(context.Background(), []core.Document{
		{Source: "a.txt", Content: "first"},
		{Source: "b.txt", Content: "other"},
		{Source: "a.txt", Content: "second"},
	})
	require.ErrorIs(t, err, core.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "duplicate source a.txt")
	assert.Zero(t, embedder.CallCount())
	assert.Empty(t, store.Upserts())
}

func TestIngest_EmbeddingErrors(t *testing.T) {
	t.Run("embedder failure", func(t *testing.T) {
		store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
		embedder := aimock.NewMockEmbedderWithDimension(testDimension)
		boom := errors.New("rate limited")
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) { return nil, boom }
		p := newTestPipeline(t, store, embedder, testConfig())

		_, err := p.Ingest(context.Background(), []core.Document{{Source: "a.txt", Content: "text"}})
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, store.Upserts())
	})

	t.Run("count mismatch", func(t *testing.T) {
		store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
		embedder := aimock.NewMockEmbedderWithDimension(testDimension)
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) { return [][]float32{}, nil }
		p := newTestPipeline(t, store, embedder, testConfig())

		_, err := p.Ingest(context.Background(), []core.Document{{Source: "a.txt", Content: "text"}})
		assert.ErrorIs(t, err, ErrEmbeddingMismatch)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
		p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(4), testConfig())

		_, err := p.Ingest(context.Background(), []core.Document{{Source: "a.txt", Content: "text"}})
		assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
		assert.Empty(t, store.Upserts())
	})
}

func TestIngest_UpsertFailureKeepsEarlierBatches(t *testing.T) {
	store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
	boom := errors.New("write failed")
	calls := 0
	store.UpsertFunc = func(_ context.Context, _ string, records []vectorstore.Record) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}
	cfg := testConfig()
	cfg.ChunkSize = 1
	cfg.BatchSize = 10
	p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), cfg)

	result, err := p.Ingest(context.Background(), []core.Document{runesDoc("a.txt", 35)})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Batches)
	assert.Equal(t, 10, result.Records)
	assert.Len(t, store.Upserts(), 2)
}

func TestIngest_Deterministic(t *testing.T) {
	docs := []core.Document{
		{Source: "a.txt", Content: strings.Repeat("alpha beta gamma\n", 200)},
		{Source: "b.txt", Content: strings.Repeat("delta ", 400)},
	}

	run := func() [][]vectorstore.Record {
		store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
		p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), testConfig())
		_, err := p.Ingest(context.Background(), docs)
		require.NoError(t, err)
		return store.Upserts()
	}

	assert.Equal(t, run(), run())
}

func TestRun_IdempotentWithBadger(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	cfg := testConfig()
	cfg.ChunkSize = 50
	p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), cfg)

	docs := []core.Document{
		{Source: "a.txt", Content: strings.Repeat("some words here ", 30)},
		{Source: "b.txt", Content: "short"},
	}

	first, err := p.Run(context.Background(), docs)
	require.NoError(t, err)
	assert.True(t, first.IndexCreated)

	query := func() []vectorstore.Match {
		matches, err := store.Index("test-index").Query(context.Background(),
			aimock.DeterministicVector("short", testDimension),
			vectorstore.QueryOptions{TopK: 1000, IncludeMetadata: true})
		require.NoError(t, err)
		return matches
	}
	before := query()
	assert.Len(t, before, first.Records)

	second, err := p.Run(context.Background(), docs)
	require.NoError(t, err)
	assert.False(t, second.IndexCreated)
	assert.Equal(t, first.Records, second.Records)

	after := query()
	assert.Equal(t, before, after)
	assert.Equal(t, "b.txt_0", after[0].ID)
}

func TestWithChunker(t *testing.T) {
	store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
	chunker := chunking.NewChunker(textsplitter.WithChunkSize(4))
	p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), testConfig(), WithChunker(chunker))

	result, err := p.Ingest(context.Background(), []core.Document{{Source: "a.txt", Content: "abcdefgh"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Chunks)
}

func TestWithProgress(t *testing.T) {
	store := storemock.NewMockStore().WithIndex(vectorstore.IndexSpec{Name: "test-index", Dimension: testDimension})
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.ChunkSize = 1
	cfg.BatchSize = 5
	p := newTestPipeline(t, store, aimock.NewMockEmbedderWithDimension(testDimension), cfg, WithProgress(&buf))

	_, err := p.Ingest(context.Background(), []core.Document{runesDoc("a.txt", 12)})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "5/12")
	assert.Contains(t, out, "12/12 chunks (100.0%)")
	assert.True(t, strings.HasSuffix(out, "\n"))
}
