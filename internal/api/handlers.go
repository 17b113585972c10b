package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bugspotter/intelligence/internal/normalize"
	"github.com/bugspotter/intelligence/internal/provider"
	"github.com/bugspotter/intelligence/internal/store"
)

// Ask defaults mirror the request model: moderate creativity, medium-length
// answers.
const (
	defaultAskTemperature = 0.7
	defaultAskMaxTokens   = 500
	maxQuestionLength     = 1000
)

type analyzeRequest struct {
	BugID       string                 `json:"bug_id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	ConsoleLogs []normalize.ConsoleLog `json:"console_logs"`
	NetworkLogs []normalize.NetworkLog `json:"network_logs"`
	Metadata    *normalize.Metadata    `json:"metadata"`
}

type analyzeResponse struct {
	BugID              string `json:"bug_id"`
	EmbeddingGenerated bool   `json:"embedding_generated"`
}

type bugDetailResponse struct {
	BugID             string `json:"bug_id"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	Status            string `json:"status"`
	Resolution        string `json:"resolution,omitempty"`
	ResolutionSummary string `json:"resolution_summary,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type similarBugResponse struct {
	BugID      string  `json:"bug_id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Resolution string  `json:"resolution,omitempty"`
	Similarity float64 `json:"similarity"`
}

type similarBugsResponse struct {
	BugID         string               `json:"bug_id"`
	IsDuplicate   bool                 `json:"is_duplicate"`
	SimilarBugs   []similarBugResponse `json:"similar_bugs"`
	ThresholdUsed float64              `json:"threshold_used"`
}

type mitigationResponse struct {
	BugID                string `json:"bug_id"`
	MitigationSuggestion string `json:"mitigation_suggestion"`
	BasedOnSimilarBugs   bool   `json:"based_on_similar_bugs"`
}

type resolutionRequest struct {
	Resolution string `json:"resolution"`
	Status     string `json:"status"`
}

type resolutionResponse struct {
	BugID             string `json:"bug_id"`
	Status            string `json:"status"`
	ResolutionSummary string `json:"resolution_summary"`
}

type askRequest struct {
	Question    string   `json:"question"`
	Context     []string `json:"context"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

type askResponse struct {
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type statsResponse struct {
	TotalBugs     int            `json:"total_bugs"`
	EmbeddedBugs  int            `json:"embedded_bugs"`
	CountByStatus map[string]int `json:"count_by_status"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	result, err := s.deps.Analyzer.AnalyzeAndStore(r.Context(), req.BugID, normalize.Report{
		Title:       req.Title,
		Description: req.Description,
		ConsoleLogs: req.ConsoleLogs,
		NetworkLogs: req.NetworkLogs,
		Metadata:    req.Metadata,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, analyzeResponse{
		BugID:              result.BugID,
		EmbeddingGenerated: result.EmbeddingGenerated,
	})
}

func (s *Server) handleGetBug(w http.ResponseWriter, r *http.Request) {
	bugID := chi.URLParam(r, "bug_id")

	bug, err := s.deps.Store.GetBug(bugID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bugDetailResponse{
		BugID:             bug.BugID,
		Title:             bug.Title,
		Description:       bug.Description,
		Status:            bug.Status,
		Resolution:        bug.Resolution,
		ResolutionSummary: bug.ResolutionSummary,
		CreatedAt:         bug.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         bug.UpdatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleFindSimilar(w http.ResponseWriter, r *http.Request) {
	bugID := chi.URLParam(r, "bug_id")

	// A zero threshold means "use configured" downstream, so an explicit 0 is
	// rejected rather than silently ignored.
	var threshold float64
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("threshold must be in (0, 1], got %q", raw)})
			return
		}
		threshold = v
	}

	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("invalid limit: %q", raw)})
			return
		}
		limit = v
	}

	result, err := s.deps.Similarity.FindSimilar(bugID, threshold, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	similar := make([]similarBugResponse, 0, len(result.SimilarBugs))
	for _, sb := range result.SimilarBugs {
		similar = append(similar, similarBugResponse{
			BugID:      sb.BugID,
			Title:      sb.Title,
			Status:     sb.Status,
			Resolution: sb.Resolution,
			Similarity: sb.Similarity,
		})
	}

	writeJSON(w, http.StatusOK, similarBugsResponse{
		BugID:         result.BugID,
		IsDuplicate:   result.IsDuplicate,
		SimilarBugs:   similar,
		ThresholdUsed: result.ThresholdUsed,
	})
}

func (s *Server) handleMitigation(w http.ResponseWriter, r *http.Request) {
	bugID := chi.URLParam(r, "bug_id")

	useSimilar := true
	if raw := r.URL.Query().Get("use_similar_bugs"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("invalid use_similar_bugs: %q", raw)})
			return
		}
		useSimilar = v
	}

	result, err := s.deps.Assembler.MitigationSuggestion(r.Context(), bugID, useSimilar)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mitigationResponse{
		BugID:                result.BugID,
		MitigationSuggestion: result.Suggestion,
		BasedOnSimilarBugs:   result.BasedOnSimilarBugs,
	})
}

func (s *Server) handleUpdateResolution(w http.ResponseWriter, r *http.Request) {
	bugID := chi.URLParam(r, "bug_id")

	var req resolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	result, err := s.deps.Assembler.UpdateResolution(r.Context(), bugID, req.Resolution, req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resolutionResponse{
		BugID:             result.BugID,
		Status:            result.Status,
		ResolutionSummary: result.ResolutionSummary,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "question is required"})
		return
	}
	if len(req.Question) > maxQuestionLength {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("question exceeds %d characters", maxQuestionLength)})
		return
	}

	opts := provider.GenerateOptions{
		Context:     req.Context,
		Temperature: defaultAskTemperature,
		MaxTokens:   defaultAskMaxTokens,
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "temperature must be between 0 and 1"})
			return
		}
		opts.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		if *req.MaxTokens < 10 || *req.MaxTokens > 2000 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "max_tokens must be between 10 and 2000"})
			return
		}
		opts.MaxTokens = *req.MaxTokens
	}

	answer, err := s.deps.Generator.Generate(r.Context(), req.Question, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:   answer,
		Provider: s.deps.LLMType,
		Model:    s.deps.LLMModel,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Store.GetStats()
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalBugs:     stats.TotalBugs,
		EmbeddedBugs:  stats.EmbeddedBugs,
		CountByStatus: stats.CountByStatus,
	})
}

// writeError maps domain errors to HTTP status codes: invalid input to 400,
// missing bugs to 404, upstream provider failures to 502, everything else to
// 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, provider.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, provider.ErrRateLimit),
		errors.Is(err, provider.ErrTimeout),
		errors.Is(err, provider.ErrInvalidResponse):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.deps.Logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
