package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/chunking"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/vectorstore"
	"github.com/tmc/langchaingo/textsplitter"
)

// Pipeline chunks, embeds and upserts documents into a single index.
type Pipeline struct {
	store    vectorstore.Store
	embedder ai.Embedder
	chunker  *chunking.Chunker
	config   Config
	progress io.Writer
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunker replaces the chunker built from Config.ChunkSize.
func WithChunker(chunker *chunking.Chunker) Option {
	return func(p *Pipeline) error {
		p.chunker = chunker
		return nil
	}
}

// WithProgress writes a progress line to w while upserting.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// Result summarizes an ingestion run.
type Result struct {
	IndexCreated bool
	Documents    int
	Chunks       int
	Records      int
	Batches      int
	Elapsed      time.Duration
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store vectorstore.Store, embedder ai.Embedder, cfg Config, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:    store,
		embedder: embedder,
		config:   cfg,
		logger:   slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.chunker == nil {
		p.chunker = chunking.NewChunker(textsplitter.WithChunkSize(cfg.ChunkSize))
	}

	return p, nil
}

// Config returns the pipeline configuration after defaults were applied.
func (p *Pipeline) Config() Config {
	return p.config
}

// Run ensures the index exists and then ingests docs.
func (p *Pipeline) Run(ctx context.Context, docs []core.Document) (*Result, error) {
	created, err := p.EnsureIndex(ctx)
	if err != nil {
		return nil, err
	}

	result, err := p.Ingest(ctx, docs)
	if result != nil {
		result.IndexCreated = created
	}
	return result, err
}

// EnsureIndex creates the configured index if the store does not list it,
// then waits ReadyWait for it to become usable. It reports whether the index
// was created. The check and the creation are not atomic.
func (p *Pipeline) EnsureIndex(ctx context.Context) (bool, error) {
	names, err := p.store.ListIndexNames(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list indexes: %w", err)
	}

	if slices.Contains(names, p.config.IndexName) {
		p.logger.Info("index already exists", "index", p.config.IndexName)
		return false, nil
	}

	p.logger.Info("creating index", "index", p.config.IndexName, "dimension", p.config.Dimension)
	err = p.store.CreateIndex(ctx, vectorstore.IndexSpec{
		Name:      p.config.IndexName,
		Dimension: p.config.Dimension,
		Metric:    vectorstore.MetricCosine,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create index %s: %w", p.config.IndexName, err)
	}

	if p.config.ReadyWait > 0 {
		p.logger.Info("waiting for index to initialize", "index", p.config.IndexName, "wait", p.config.ReadyWait)
		timer := time.NewTimer(p.config.ReadyWait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

// Ingest chunks, embeds and upserts docs in order. Records accumulate across
// documents and are flushed every BatchSize records, with a final flush for
// the remainder. The returned Result reflects the work done even on error.
func (p *Pipeline) Ingest(ctx context.Context, docs []core.Document) (*Result, error) {
	result := &Result{}

	chunked := make([][]core.Chunk, len(docs))
	seen := make(map[string]struct{}, len(docs))
	total := 0
	for i := range docs {
		if err := core.ValidateDocument(&docs[i]); err != nil {
			return result, err
		}
		// Record ids derive from the source, so a repeat would overwrite.
		if _, ok := seen[docs[i].Source]; ok {
			return result, fmt.Errorf("%w: duplicate source %s", core.ErrInvalidDocument, docs[i].Source)
		}
		seen[docs[i].Source] = struct{}{}
		chunked[i] = p.chunker.Split(docs[i].Source, docs[i].Content)
		total += len(chunked[i])
	}

	tracker := newProgressTracker(p.progress, total, p.config.BatchSize)
	tracker.start()
	defer func() {
		tracker.finish()
		result.Elapsed = tracker.elapsed()
	}()

	index := p.store.Index(p.config.IndexName)
	batch := make([]vectorstore.Record, 0, p.config.BatchSize)

	flush := func() error {
		if err := index.Upsert(ctx, batch...); err != nil {
			return fmt.Errorf("failed to upsert batch %d: %w", result.Batches+1, err)
		}
		result.Batches++
		result.Records += len(batch)
		tracker.increment(len(batch))
		p.logger.Debug("upserted batch", "index", p.config.IndexName, "records", len(batch))
		batch = make([]vectorstore.Record, 0, p.config.BatchSize)
		return nil
	}

	for i, doc := range docs {
		chunks := chunked[i]
		result.Documents++
		if len(chunks) == 0 {
			p.logger.Debug("document produced no chunks", "source", doc.Source)
			continue
		}
		result.Chunks += len(chunks)

		p.logger.Debug("embedding document", "source", doc.Source, "chunks", len(chunks))
		vectors, err := p.embed(ctx, chunks)
		if err != nil {
			return result, fmt.Errorf("failed to embed %s: %w", doc.Source, err)
		}

		for j, chunk := range chunks {
			batch = append(batch, newRecord(doc, chunk, vectors[j]))
			if len(batch) == p.config.BatchSize {
				if err := flush(); err != nil {
					return result, err
				}
			}
		}
	}

	if len(batch) > 0 {
		if err := flush(); err != nil {
			return result, err
		}
	}

	p.logger.Info("ingestion complete",
		"index", p.config.IndexName,
		"documents", result.Documents,
		"records", result.Records,
		"batches", result.Batches)

	return result, nil
}

func (p *Pipeline) embed(ctx context.Context, chunks []core.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = strings.ReplaceAll(chunk.Text, "\n", " ")
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingMismatch, len(vectors), len(texts))
	}
	for _, v := range vectors {
		if len(v) != p.config.Dimension {
			return nil, fmt.Errorf("%w: got %d, index expects %d",
				vectorstore.ErrDimensionMismatch, len(v), p.config.Dimension)
		}
	}
	return vectors, nil
}

// newRecord layers the chunk fields over the document metadata.
func newRecord(doc core.Document, chunk core.Chunk, values []float32) vectorstore.Record {
	metadata := make(map[string]any, len(doc.Metadata)+3)
	maps.Copy(metadata, doc.Metadata)
	metadata[core.MetaPageContent] = chunk.Text
	metadata[core.MetaSource] = doc.Source
	metadata[core.MetaLocation] = chunk.Location.String()

	return vectorstore.Record{
		ID:       chunk.ID(),
		Values:   values,
		Metadata: metadata,
	}
}
