// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package docqa wires configuration, AI services and a vector store into
// ready-to-use ingestion and question answering pipelines.
package docqa

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/loader"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/vectorstore"
	"github.com/poiesic/docqa/vectorstore/badger"
	"github.com/poiesic/docqa/vectorstore/qdrant"
)

// App holds the long-lived services shared by setup and question answering.
type App struct {
	config   *config.Config
	store    vectorstore.Store
	provider ai.AIProvider
	logger   *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	store    vectorstore.Store
	provider ai.AIProvider
}

// WithStore uses store instead of opening the configured backend.
// The App takes ownership and closes it.
func WithStore(store vectorstore.Store) AppOption {
	return func(o *appOptions) {
		o.store = store
	}
}

// WithProvider uses provider instead of the configured OpenAI-compatible services.
// The App takes ownership and closes it.
func WithProvider(provider ai.AIProvider) AppOption {
	return func(o *appOptions) {
		o.provider = provider
	}
}

// NewApp builds the services described by cfg.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	// Apply options
	options := &appOptions{}
	for _, opt := range opts {
		opt(options)
	}

	store := options.store
	if store == nil {
		var err error
		store, err = OpenStore(cfg.VectorStore)
		if err != nil {
			return nil, err
		}
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(AIConfig(cfg.AI))
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return &App{
		config:   cfg,
		store:    store,
		provider: provider,
		logger:   slog.Default().With("component", "docqa"),
	}, nil
}

// OpenStore opens the vector store backend selected by cfg.
func OpenStore(cfg config.VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Backend {
	case config.BackendQdrant:
		return qdrant.NewStore(qdrant.Config{URL: cfg.URL, APIKey: cfg.APIKey})
	case config.BackendBadger:
		if cfg.InMemory {
			return badger.NewMemoryStore()
		}
		return badger.NewStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.Backend)
	}
}

// AIConfig converts application settings to an ai.Config.
func AIConfig(cfg config.AIConfig) *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(cfg.EmbeddingHost),
		ai.WithGeneratorHost(cfg.GeneratorHost),
		ai.WithEmbeddingModel(cfg.EmbeddingModel),
		ai.WithGeneratorModel(cfg.GeneratorModel),
		ai.WithAPIKey(cfg.APIKey),
		ai.WithEmbeddingBatchSize(cfg.EmbeddingBatchSize),
		ai.WithAnswerPrompt(cfg.AnswerPrompt),
	)
}

// IngestionConfig converts application settings to an ingestion.Config.
func IngestionConfig(cfg config.IngestionConfig) ingestion.Config {
	return ingestion.Config{
		IndexName: cfg.IndexName,
		Dimension: cfg.Dimension,
		ChunkSize: cfg.ChunkSize,
		BatchSize: cfg.BatchSize,
		ReadyWait: cfg.ReadyWait.Std(),
	}
}

// SearchConfig converts application settings to a search.Config.
func SearchConfig(cfg *config.Config) search.Config {
	return search.Config{
		IndexName: cfg.Ingestion.IndexName,
		TopK:      cfg.Search.TopK,
	}
}

// Config returns the application configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Store returns the vector store.
func (a *App) Store() vectorstore.Store {
	return a.store
}

// Provider returns the AI provider.
func (a *App) Provider() ai.AIProvider {
	return a.provider
}

// NewIngestionPipeline creates an ingestion pipeline over the shared services.
func (a *App) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(a.store, a.provider.Embedder(), IngestionConfig(a.config.Ingestion), opts...)
}

// NewSearcher creates a searcher over the shared services.
func (a *App) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(a.store, a.provider, SearchConfig(a.config), opts...)
}

// Setup loads the documents under dir, or the configured directory when dir
// is empty, and ingests them into the configured index. Progress is written
// to progress when it is not nil.
func (a *App) Setup(ctx context.Context, dir string, progress io.Writer) (*ingestion.Result, error) {
	if dir == "" {
		dir = a.config.Documents.Dir
	}

	var loadOpts []loader.Option
	if exts := a.config.Documents.Extensions; len(exts) > 0 {
		loadOpts = append(loadOpts, loader.WithExtensions(exts...))
	}

	docs, err := loader.LoadDirectory(ctx, dir, loadOpts...)
	if err != nil {
		return nil, err
	}

	pipeline, err := a.NewIngestionPipeline(ingestion.WithProgress(progress))
	if err != nil {
		return nil, err
	}

	return pipeline.Run(ctx, docs)
}

// Ask answers question from the configured index. A nil answer means
// nothing in the index matched.
func (a *App) Ask(ctx context.Context, question string, monitor search.QueryMonitor) (*search.Answer, error) {
	searcher, err := a.NewSearcher()
	if err != nil {
		return nil, err
	}
	return searcher.AnswerWithMonitor(ctx, question, monitor)
}

// Close releases the provider and the store.
func (a *App) Close() error {
	// Close AI provider first
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing vector store", "err", err)
		return err
	}
	return nil
}
