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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/search"
)

// SetupMessage is the /setup success response.
const SetupMessage = "successfully created index and loaded data into the vector store."

// maxQuestionBytes bounds the /read request body.
const maxQuestionBytes = 1 << 20

// Service is the application behind the HTTP routes.
type Service interface {
	Setup(ctx context.Context, dir string, progress io.Writer) (*ingestion.Result, error)
	Ask(ctx context.Context, question string, monitor search.QueryMonitor) (*search.Answer, error)
}

// Server serves the HTTP routes.
type Server struct {
	service              Service
	setupPool            *ants.Pool
	reportSuccessOnError bool
	shutdownTimeout      time.Duration
	mux                  *http.ServeMux
	logger               *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithReportSuccessOnError makes /setup answer with SetupMessage even when
// ingestion fails. The failure is still logged.
func WithReportSuccessOnError(enabled bool) Option {
	return func(s *Server) error {
		s.reportSuccessOnError = enabled
		return nil
	}
}

// WithShutdownTimeout bounds how long ListenAndServe waits for requests to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.shutdownTimeout = d
		return nil
	}
}

// antsLoggerAdapter adapts slog.Logger to the ants.Logger interface.
type antsLoggerAdapter struct {
	logger *slog.Logger
}

var _ ants.Logger = (*antsLoggerAdapter)(nil)

func (al *antsLoggerAdapter) Printf(format string, args ...any) {
	al.logger.Warn(fmt.Sprintf(format, args...))
}

// New creates a server for service.
func New(service Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, errors.New("service required")
	}

	s := &Server{
		service:         service,
		shutdownTimeout: 10 * time.Second,
		mux:             http.NewServeMux(),
		logger:          slog.Default().With("component", "server"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(1,
		ants.WithNonblocking(true),
		ants.WithLogger(&antsLoggerAdapter{logger: s.logger}))
	if err != nil {
		return nil, err
	}
	s.setupPool = pool

	s.mux.HandleFunc("POST /setup", s.handleSetup)
	s.mux.HandleFunc("POST /read", s.handleRead)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases the setup worker pool.
func (s *Server) Close() {
	s.setupPool.Release()
}

type setupOutcome struct {
	result *ingestion.Result
	err    error
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	// Ingestion outlives a disconnected client; it holds the only worker.
	ctx := context.WithoutCancel(r.Context())

	done := make(chan setupOutcome, 1)
	err := s.setupPool.Submit(func() {
		var out setupOutcome
		defer func() {
			if p := recover(); p != nil {
				out = setupOutcome{err: fmt.Errorf("setup panicked: %v", p)}
			}
			done <- out
		}()
		out.result, out.err = s.service.Setup(ctx, "", nil)
	})
	if errors.Is(err, ants.ErrPoolOverload) {
		writeError(w, http.StatusConflict, "setup already in progress")
		return
	}
	if err != nil {
		s.logger.Error("error scheduling setup", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	var out setupOutcome
	select {
	case out = <-done:
	case <-r.Context().Done():
		s.logger.Warn("client disconnected before setup finished")
		return
	}

	if out.err != nil {
		s.logger.Error("error running setup", "err", out.err)
		if !s.reportSuccessOnError {
			writeError(w, http.StatusInternalServerError, out.err.Error())
			return
		}
	} else if out.result != nil {
		s.logger.Info("setup complete",
			"documents", out.result.Documents,
			"records", out.result.Records,
			"index_created", out.result.IndexCreated)
	}

	writeJSON(w, http.StatusOK, dataResponse{Data: ptr(SetupMessage)})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var question string
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes))
	if err := dec.Decode(&question); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON string")
		return
	}

	answer, err := s.service.Ask(r.Context(), question, nil)
	if err != nil {
		s.logger.Error("error answering question", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	resp := dataResponse{}
	if answer != nil {
		resp.Data = &answer.Text
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

// dataResponse encodes a nil Data as null.
type dataResponse struct {
	Data *string `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func ptr[T any](v T) *T {
	return &v
}
