package ingestion

import (
	"fmt"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultIndexName = "docqa"
	DefaultDimension = 1536
	DefaultChunkSize = 1000
	DefaultBatchSize = 100
	DefaultReadyWait = 80 * time.Second
)

// Config holds ingestion settings.
type Config struct {
	// IndexName is the vector store index records are written to.
	IndexName string

	// Dimension is the vector length used when the index is created.
	// It must match the embedding model.
	Dimension int

	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int

	// BatchSize is the number of records sent per upsert.
	BatchSize int

	// ReadyWait is how long to wait after creating an index before writing to it.
	// Zero disables the wait.
	ReadyWait time.Duration
}

// DefaultConfig returns the default ingestion configuration.
func DefaultConfig() Config {
	return Config{
		IndexName: DefaultIndexName,
		Dimension: DefaultDimension,
		ChunkSize: DefaultChunkSize,
		BatchSize: DefaultBatchSize,
		ReadyWait: DefaultReadyWait,
	}
}

// Normalize fills zero fields with defaults. ReadyWait is left as is.
func (c *Config) Normalize() {
	c.IndexName = strings.TrimSpace(c.IndexName)
	if c.IndexName == "" {
		c.IndexName = DefaultIndexName
	}
	if c.Dimension == 0 {
		c.Dimension = DefaultDimension
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.IndexName == "" {
		return fmt.Errorf("%w: index name is required", ErrInvalidConfig)
	}
	if c.Dimension < 1 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, c.Dimension)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.ReadyWait < 0 {
		return fmt.Errorf("%w: ready wait must not be negative", ErrInvalidConfig)
	}
	return nil
}
