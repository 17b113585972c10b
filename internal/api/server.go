// Package api exposes the bug intelligence service over HTTP. The main bug
// tracker calls these endpoints when bugs are reported and resolved.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bugspotter/intelligence/internal/dedup"
	"github.com/bugspotter/intelligence/internal/normalize"
	"github.com/bugspotter/intelligence/internal/provider"
	"github.com/bugspotter/intelligence/internal/rag"
	"github.com/bugspotter/intelligence/internal/store"
)

// Analyzer is the write side of the dedup engine.
type Analyzer interface {
	AnalyzeAndStore(ctx context.Context, bugID string, report normalize.Report) (*dedup.AnalyzeResult, error)
}

// Similarity is the read side of the dedup engine.
type Similarity interface {
	FindSimilar(bugID string, thresholdOverride float64, limitOverride int) (*dedup.SimilarResult, error)
}

// Assembler generates mitigation suggestions and resolution summaries.
type Assembler interface {
	MitigationSuggestion(ctx context.Context, bugID string, useSimilarBugs bool) (*rag.Mitigation, error)
	UpdateResolution(ctx context.Context, bugID, resolution, status string) (*rag.ResolutionResult, error)
}

// Store is the subset of store.DB the API reads directly.
type Store interface {
	GetBug(bugID string) (*store.Bug, error)
	GetStats() (*store.Stats, error)
}

// Deps holds the dependencies for the Server.
type Deps struct {
	Analyzer   Analyzer
	Similarity Similarity
	Assembler  Assembler
	Store      Store
	Generator  provider.Generator
	Logger     *slog.Logger

	// LLMType and LLMModel identify the configured generator; they are echoed
	// in ask responses.
	LLMType  string
	LLMModel string
}

// Server is the HTTP API server.
type Server struct {
	router *chi.Mux
	deps   Deps
}

// New creates a Server with all routes registered.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(s.accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/stats", s.handleStats)

		r.Route("/bugs", func(r chi.Router) {
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/{bug_id}", s.handleGetBug)
			r.Get("/{bug_id}/similar", s.handleFindSimilar)
			r.Get("/{bug_id}/mitigation", s.handleMitigation)
			r.Patch("/{bug_id}/resolution", s.handleUpdateResolution)
		})
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger logs every request with method, path, status and duration.
func (s *Server) accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.deps.Logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
