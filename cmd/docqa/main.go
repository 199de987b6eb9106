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

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/server"
	"github.com/poiesic/docqa/vectorstore"
	"github.com/urfave/cli/v2"
)

// openApp builds the application services. Tests replace it.
var openApp = func(cfg *config.Config) (*docqa.App, error) {
	return docqa.NewApp(cfg)
}

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "docqa",
		Usage: "Question answering over local documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				EnvVars: []string{"DOCQA_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "setup",
				Usage:  "Create the index if needed and load documents into it",
				Action: setupCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "docs",
						Aliases: []string{"d"},
						Usage:   "Documents directory (overrides documents.dir)",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Do not print upsert progress",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed documents",
				ArgsUsage: "QUESTION...",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print the retrieved chunks",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve /setup and /read over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Aliases: []string{"a"},
						Usage:   "Listen address (overrides server.addr)",
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: configCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if dir := c.String("docs"); dir != "" {
		cfg.Documents.Dir = dir
	}

	app, err := openApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	var progress io.Writer = c.App.ErrWriter
	if c.Bool("quiet") {
		progress = nil
	}

	fmt.Fprintf(c.App.ErrWriter, "Documents: %s\n", cfg.Documents.Dir)
	fmt.Fprintf(c.App.ErrWriter, "Index: %s\n", cfg.Ingestion.IndexName)

	result, err := app.Setup(c.Context, cfg.Documents.Dir, progress)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	if result.IndexCreated {
		fmt.Fprintf(c.App.Writer, "Created index %s\n", cfg.Ingestion.IndexName)
	}
	fmt.Fprintf(c.App.Writer, "Loaded %d documents as %d records in %d batches (%s)\n",
		result.Documents, result.Records, result.Batches, result.Elapsed.Round(time.Millisecond))
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	app, err := openApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	var monitor search.QueryMonitor
	if c.Bool("verbose") {
		monitor = &printMonitor{w: c.App.ErrWriter}
	}

	answer, err := app.Ask(c.Context, question, monitor)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}
	if answer == nil {
		fmt.Fprintln(c.App.Writer, "No relevant documents found.")
		return nil
	}

	fmt.Fprintln(c.App.Writer, answer.Text)
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	app, err := openApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	srv, err := server.New(app,
		server.WithReportSuccessOnError(cfg.Server.ReportSuccessOnError),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout.Std()))
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if cfg.AI.APIKey != "" {
		cfg.AI.APIKey = "REDACTED"
	}
	if cfg.VectorStore.APIKey != "" {
		cfg.VectorStore.APIKey = "REDACTED"
	}
	return cfg.Encode(c.App.Writer)
}

// printMonitor writes retrieval details for ask --verbose.
type printMonitor struct {
	w io.Writer
}

var _ search.QueryMonitor = (*printMonitor)(nil)

func (m *printMonitor) Start(question string) {
	fmt.Fprintf(m.w, "Question: %s\n", question)
}

func (m *printMonitor) AfterEmbedding(vector []float32) {
	fmt.Fprintf(m.w, "Embedded question (%d dimensions)\n", len(vector))
}

func (m *printMonitor) AfterRetrieval(matches []vectorstore.Match) {
	fmt.Fprintf(m.w, "Retrieved %d matches\n", len(matches))
	for i, match := range matches {
		text := truncate(match.Text(core.MetaPageContent), 80)
		fmt.Fprintf(m.w, "  %2d. [%.3f] %s: %q\n", i+1, match.Score, match.ID, text)
	}
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func (m *printMonitor) SkippedGeneration() {
	fmt.Fprintln(m.w, "No matches, skipping answer generation")
}

func (m *printMonitor) Finish(_ *search.Answer) {
	fmt.Fprintln(m.w)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
