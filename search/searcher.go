package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/vectorstore"
)

// Default configuration values.
const (
	DefaultIndexName = "docqa"
	DefaultTopK      = 10
)

// Config holds searcher settings.
type Config struct {
	IndexName string
	TopK      int
}

// DefaultConfig returns the default searcher configuration.
func DefaultConfig() Config {
	return Config{IndexName: DefaultIndexName, TopK: DefaultTopK}
}

// Normalize fills zero fields with defaults.
func (c *Config) Normalize() {
	c.IndexName = strings.TrimSpace(c.IndexName)
	if c.IndexName == "" {
		c.IndexName = DefaultIndexName
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.IndexName == "" {
		return fmt.Errorf("%w: index name is required", ErrInvalidConfig)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top k must be positive, got %d", ErrInvalidConfig, c.TopK)
	}
	return nil
}

// Answer is a generated answer with the matches it was based on.
type Answer struct {
	Question string
	Text     string
	Matches  []vectorstore.Match
}

// Searcher answers questions against a vector store index.
type Searcher struct {
	store     vectorstore.Store
	embedder  ai.Embedder
	generator ai.AnswerGenerator
	config    Config
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store vectorstore.Store, provider ai.AIProvider, cfg Config, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Searcher{
		store:     store,
		embedder:  provider.Embedder(),
		generator: provider.AnswerGenerator(),
		config:    cfg,
		logger:    slog.Default().With("component", "search"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Answer answers question from the configured index.
// It returns nil without calling the generator when nothing matches.
func (s *Searcher) Answer(ctx context.Context, question string) (*Answer, error) {
	return s.AnswerFromIndex(ctx, s.config.IndexName, question, nil)
}

// AnswerWithMonitor answers question from the configured index with monitoring.
// The monitor receives callbacks at each stage.
func (s *Searcher) AnswerWithMonitor(ctx context.Context, question string, monitor QueryMonitor) (*Answer, error) {
	return s.AnswerFromIndex(ctx, s.config.IndexName, question, monitor)
}

// AnswerFromIndex answers question from the named index. A nil monitor is allowed.
func (s *Searcher) AnswerFromIndex(ctx context.Context, indexName, question string, monitor QueryMonitor) (*Answer, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(question)

	vector, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		s.logger.Error("error generating embedding for question", "err", err)
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	monitor.AfterEmbedding(vector)

	matches, err := s.store.Index(indexName).Query(ctx, vector, vectorstore.QueryOptions{
		TopK:            s.config.TopK,
		IncludeMetadata: true,
		IncludeValues:   true,
	})
	if err != nil {
		s.logger.Error("error querying index", "index", indexName, "err", err)
		return nil, fmt.Errorf("failed to query index %s: %w", indexName, err)
	}
	monitor.AfterRetrieval(matches)
	s.logger.Debug("retrieved matches", "index", indexName, "count", len(matches))

	if len(matches) == 0 {
		s.logger.Info("no matches, skipping answer generation", "index", indexName)
		monitor.SkippedGeneration()
		monitor.Finish(nil)
		return nil, nil
	}

	text, err := s.generator.GenerateAnswer(ctx, question, []string{JoinContext(matches)})
	if err != nil {
		s.logger.Error("error generating answer", "err", err)
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	answer := &Answer{
		Question: question,
		Text:     text,
		Matches:  matches,
	}
	monitor.Finish(answer)
	return answer, nil
}

// JoinContext joins the chunk text of matches with single spaces, in order.
func JoinContext(matches []vectorstore.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text(core.MetaPageContent)
	}
	return strings.Join(texts, " ")
}
