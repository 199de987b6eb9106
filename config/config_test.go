package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "docqa", cfg.Ingestion.IndexName)
	assert.Equal(t, 1536, cfg.Ingestion.Dimension)
	assert.Equal(t, 1000, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 100, cfg.Ingestion.BatchSize)
	assert.Equal(t, 80*time.Second, cfg.Ingestion.ReadyWait.Std())
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, BackendQdrant, cfg.VectorStore.Backend)
	assert.False(t, cfg.Server.ReportSuccessOnError)
}

func TestParse(t *testing.T) {
	input := `
[documents]
dir = "./docs"

[ai]
embedding_host = "http://localhost:11434/v1"
generator_model = "llama3"

[vector_store]
backend = "badger"
path = "/tmp/docqa"

[ingestion]
index_name = "handbook"
ready_wait = "5s"

[search]
top_k = 4

[server]
addr = "127.0.0.1:8080"
report_success_on_error = true
`
	cfg, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "./docs", cfg.Documents.Dir)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.EmbeddingHost)
	assert.Equal(t, "https://api.openai.com/v1", cfg.AI.GeneratorHost, "unset keys keep defaults")
	assert.Equal(t, "llama3", cfg.AI.GeneratorModel)
	assert.Equal(t, BackendBadger, cfg.VectorStore.Backend)
	assert.Equal(t, "/tmp/docqa", cfg.VectorStore.Path)
	assert.Equal(t, "handbook", cfg.Ingestion.IndexName)
	assert.Equal(t, 5*time.Second, cfg.Ingestion.ReadyWait.Std())
	assert.Equal(t, 1536, cfg.Ingestion.Dimension)
	assert.Equal(t, 4, cfg.Search.TopK)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.True(t, cfg.Server.ReportSuccessOnError)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unknown key", input: "[ai]\ntemperature = 0.2\n"},
		{name: "bad duration", input: "[ingestion]\nready_wait = \"soon\"\n"},
		{name: "wrong type", input: "[search]\ntop_k = \"ten\"\n"},
		{name: "syntax", input: "[ai\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing documents dir", func(c *Config) { c.Documents.Dir = "" }, "documents.dir"},
		{"unsupported extension", func(c *Config) { c.Documents.Extensions = []string{".docx"} }, "documents.extensions"},
		{"bad embedding host", func(c *Config) { c.AI.EmbeddingHost = "not a url" }, "ai.embedding_host"},
		{"zero batch", func(c *Config) { c.AI.EmbeddingBatchSize = 0 }, "ai.embedding_batch_size"},
		{"unknown backend", func(c *Config) { c.VectorStore.Backend = "pinecone" }, "vector_store.backend"},
		{"qdrant without url", func(c *Config) { c.VectorStore.URL = "" }, "vector_store.url"},
		{"badger without path", func(c *Config) {
			c.VectorStore.Backend = BackendBadger
			c.VectorStore.Path = ""
		}, "vector_store.path"},
		{"index name with colon", func(c *Config) { c.Ingestion.IndexName = "a:b" }, "ingestion.index_name"},
		{"zero dimension", func(c *Config) { c.Ingestion.Dimension = 0 }, "ingestion.dimension"},
		{"zero top k", func(c *Config) { c.Search.TopK = 0 }, "search.top_k"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_BadgerInMemory(t *testing.T) {
	cfg := Default()
	cfg.VectorStore.Backend = BackendBadger
	cfg.VectorStore.Path = ""
	cfg.VectorStore.InMemory = true
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "")
	t.Setenv(EnvQdrantKey, "")

	path := filepath.Join(t.TempDir(), "docqa.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ai]\napi_key = \"from-file\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AI.APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "sk-env")
	t.Setenv(EnvQdrantKey, "qd-env")

	path := filepath.Join(t.TempDir(), "docqa.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ai]\napi_key = \"from-file\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.AI.APIKey)
	assert.Equal(t, "qd-env", cfg.VectorStore.APIKey)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Ingestion, cfg.Ingestion)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncode_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.ReportSuccessOnError = true
	cfg.Ingestion.ReadyWait = Duration(3 * time.Second)

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	assert.Contains(t, buf.String(), "3s")

	decoded, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}
