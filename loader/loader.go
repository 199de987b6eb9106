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

package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/docqa/core"
	"github.com/tmc/langchaingo/documentloaders"
)

// Metadata keys set on loaded documents.
const (
	MetaSource     = "source"
	MetaTotalPages = "total_pages"
)

// ErrNoDocuments is returned when a directory holds no loadable files.
var ErrNoDocuments = errors.New("no documents found")

// DefaultExtensions lists the file extensions loaded when none are configured.
var DefaultExtensions = []string{".txt", ".md", ".pdf"}

type loaderConfig struct {
	extensions map[string]struct{}
	allowEmpty bool
	logger     *slog.Logger
}

// Option configures LoadDirectory.
type Option func(*loaderConfig)

// WithExtensions restricts loading to the given extensions (".txt", ".md", ".pdf").
func WithExtensions(exts ...string) Option {
	return func(c *loaderConfig) {
		c.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			c.extensions[strings.ToLower(ext)] = struct{}{}
		}
	}
}

// WithAllowEmpty makes an empty directory a valid, empty result instead of ErrNoDocuments.
func WithAllowEmpty() Option {
	return func(c *loaderConfig) {
		c.allowEmpty = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *loaderConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// LoadDirectory walks root in lexical order and loads every supported file.
// Unsupported files are skipped. Any read failure aborts the load.
func LoadDirectory(ctx context.Context, root string, opts ...Option) ([]core.Document, error) {
	cfg := &loaderConfig{
		logger: slog.Default().With("component", "loader"),
	}
	WithExtensions(DefaultExtensions...)(cfg)
	for _, opt := range opts {
		opt(cfg)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open documents directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var docs []core.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := cfg.extensions[ext]; !ok {
			cfg.logger.Debug("skipping unsupported file", "path", path)
			return nil
		}

		var doc core.Document
		var loadErr error
		if ext == ".pdf" {
			doc, loadErr = loadPDF(path)
		} else {
			doc, loadErr = loadText(ctx, path)
		}
		if loadErr != nil {
			return fmt.Errorf("failed to load %s: %w", path, loadErr)
		}

		cfg.logger.Debug("loaded document", "path", path, "bytes", len(doc.Content))
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 && !cfg.allowEmpty {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, root)
	}

	cfg.logger.Info("loaded documents", "root", root, "count", len(docs))
	return docs, nil
}

// LoadFile loads a single supported file.
func LoadFile(ctx context.Context, path string) (core.Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return loadPDF(path)
	}
	return loadText(ctx, path)
}

func loadText(ctx context.Context, path string) (core.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Document{}, err
	}
	defer f.Close()

	loaded, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return core.Document{}, err
	}

	var content strings.Builder
	for _, d := range loaded {
		content.WriteString(d.PageContent)
	}

	return core.Document{
		Source:   path,
		Content:  toValidText(content.String()),
		Metadata: map[string]any{MetaSource: path},
	}, nil
}

func loadPDF(path string) (doc core.Document, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return core.Document{}, err
	}
	defer f.Close()

	text, err := reader.GetPlainText()
	if err != nil {
		return core.Document{}, err
	}

	content, err := io.ReadAll(text)
	if err != nil {
		return core.Document{}, err
	}

	return core.Document{
		Source:  path,
		Content: toValidText(string(content)),
		Metadata: map[string]any{
			MetaSource:     path,
			MetaTotalPages: reader.NumPage(),
		},
	}, nil
}

// toValidText replaces invalid UTF-8 sequences with U+FFFD so every store
// receives the same text.
func toValidText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
