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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Environment variables that override file settings.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvQdrantKey = "QDRANT_API_KEY"
)

// Vector store backends.
const (
	BackendQdrant = "qdrant"
	BackendBadger = "badger"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the application configuration.
type Config struct {
	Documents   DocumentsConfig   `toml:"documents"`
	AI          AIConfig          `toml:"ai"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Ingestion   IngestionConfig   `toml:"ingestion"`
	Search      SearchConfig      `toml:"search"`
	Server      ServerConfig      `toml:"server"`
}

// DocumentsConfig locates the source documents.
type DocumentsConfig struct {
	Dir        string   `toml:"dir" validate:"required"`
	Extensions []string `toml:"extensions" validate:"dive,oneof=.txt .md .pdf"`
}

// AIConfig configures the embedding and answer generation services.
type AIConfig struct {
	EmbeddingHost      string `toml:"embedding_host" validate:"required,url"`
	GeneratorHost      string `toml:"generator_host" validate:"required,url"`
	EmbeddingModel     string `toml:"embedding_model" validate:"required"`
	GeneratorModel     string `toml:"generator_model" validate:"required"`
	APIKey             string `toml:"api_key"`
	EmbeddingBatchSize int    `toml:"embedding_batch_size" validate:"gte=1"`
	AnswerPrompt       string `toml:"answer_prompt"`
}

// VectorStoreConfig selects and configures the vector store.
type VectorStoreConfig struct {
	Backend  string `toml:"backend" validate:"oneof=qdrant badger"`
	URL      string `toml:"url" validate:"required_if=Backend qdrant"`
	APIKey   string `toml:"api_key"`
	Path     string `toml:"path" validate:"required_if=Backend badger InMemory false"`
	InMemory bool   `toml:"in_memory"`
}

// IngestionConfig configures the setup pipeline.
type IngestionConfig struct {
	IndexName string   `toml:"index_name" validate:"required,excludesall=:"`
	Dimension int      `toml:"dimension" validate:"gte=1"`
	ChunkSize int      `toml:"chunk_size" validate:"gte=1"`
	BatchSize int      `toml:"batch_size" validate:"gte=1"`
	ReadyWait Duration `toml:"ready_wait"`
}

// SearchConfig configures question answering.
type SearchConfig struct {
	TopK int `toml:"top_k" validate:"gte=1"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`

	// ReportSuccessOnError makes /setup answer with the success message even
	// when ingestion fails. The failure is still logged.
	ReportSuccessOnError bool `toml:"report_success_on_error"`

	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Documents: DocumentsConfig{
			Dir:        "documents",
			Extensions: []string{".txt", ".md", ".pdf"},
		},
		AI: AIConfig{
			EmbeddingHost:      "https://api.openai.com/v1",
			GeneratorHost:      "https://api.openai.com/v1",
			EmbeddingModel:     "text-embedding-3-small",
			GeneratorModel:     "gpt-4o-mini",
			EmbeddingBatchSize: 512,
		},
		VectorStore: VectorStoreConfig{
			Backend: BackendQdrant,
			URL:     "http://localhost:6334",
			Path:    "docqa.db",
		},
		Ingestion: IngestionConfig{
			IndexName: "docqa",
			Dimension: 1536,
			ChunkSize: 1000,
			BatchSize: 100,
			ReadyWait: Duration(80 * time.Second),
		},
		Search: SearchConfig{
			TopK: 10,
		},
		Server: ServerConfig{
			Addr:            ":3000",
			ShutdownTimeout: Duration(10 * time.Second),
		},
	}
}

// Load reads the TOML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML from r over the defaults and validates the result.
// Environment overrides are not applied.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	return toml.NewDecoder(r).DisallowUnknownFields().Decode(c)
}

// ApplyEnv overrides API keys from the environment when set.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvOpenAIKey); ok && v != "" {
		c.AI.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvQdrantKey); ok && v != "" {
		c.VectorStore.APIKey = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace() + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(c)
}

// newValidator reports fields by their TOML names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
