package vectorstore

import (
	"fmt"
	"strings"
)

// Metric is the similarity function of an index.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dotproduct"
	MetricEuclidean  Metric = "euclidean"
)

// ParseMetric converts a metric name to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricCosine, MetricDotProduct, MetricEuclidean:
		return m, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// IndexSpec describes an index to create.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

// Validate checks the spec for a usable name, dimension and metric.
func (s IndexSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidIndexSpec)
	}
	if s.Dimension < 1 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidIndexSpec)
	}
	if _, err := ParseMetric(string(s.Metric)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndexSpec, err)
	}
	return nil
}

// Record is a vector with metadata, keyed by ID.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Validate checks that the record has an id and values.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if len(r.Values) == 0 {
		return fmt.Errorf("%w: record %s has no values", ErrInvalidRecord, r.ID)
	}
	return nil
}

// QueryOptions controls a similarity query.
type QueryOptions struct {
	TopK            int
	IncludeMetadata bool
	IncludeValues   bool
}

// Match is one query result.
type Match struct {
	ID       string
	Score    float32
	Values   []float32
	Metadata map[string]any
}

// Text returns the string metadata value stored under key, or "".
func (m Match) Text(key string) string {
	if m.Metadata == nil {
		return ""
	}
	s, _ := m.Metadata[key].(string)
	return s
}
