// Package api serves the text analysis helpers over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"abstkit/app"
	"abstkit/internal"
	"abstkit/internal/errors"
	"abstkit/internal/readability"
	"abstkit/models"
	"abstkit/ports"
)

// UsageSummarizer reports aggregated LLM usage
type UsageSummarizer interface {
	Summary(ctx context.Context, days int) (*models.UsageSummary, error)
}

// Deps are the collaborators behind the handlers. Jobs and Usage may be nil.
type Deps struct {
	Morph   ports.Morphologizer
	Counter ports.TokenCounter
	Ledger  *app.Ledger
	Jobs    ports.JobRepository
	Usage   UsageSummarizer
}

// Server is the HTTP API
type Server struct {
	router *chi.Mux
	deps   Deps
	logger *internal.Logger
}

// NewServer creates the router with its middleware and routes
func NewServer(deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		logger: internal.DefaultLogger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP makes Server an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/readability", s.handleReadability)
		r.Post("/tokens", s.handleTokens)
		r.Post("/morph", s.handleMorph)
		r.Get("/jobs", s.handleJobs)
		r.Get("/usage", s.handleUsage)
	})
}

type textRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("[API] %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: errors.GetCode(err)})
}

// decodeText reads a {"text": ...} body
func decodeText(r *http.Request) (string, error) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "invalid JSON body"))
	}
	return req.Text, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadability(w http.ResponseWriter, r *http.Request) {
	text, err := decodeText(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readability.AnalyzeText(s.deps.Morph, text))
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	text, err := decodeText(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"tokens": s.deps.Counter.Count(text)})
}

func (s *Server) handleMorph(w http.ResponseWriter, r *http.Request) {
	text, err := decodeText(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Morph.Analyze(text))
}

// handleJobs lists jobs from the store when there is one, else from the ledger
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs != nil {
		jobs, err := s.deps.Jobs.List(r.Context(), 0)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if r.URL.Query().Get("active") == "true" {
			active := []*models.BatchJob{}
			for _, j := range jobs {
				if !j.Terminal() {
					active = append(active, j)
				}
			}
			jobs = active
		}
		writeJSON(w, http.StatusOK, jobs)
		return
	}

	jobs := []*models.BatchJob{}
	if s.deps.Ledger != nil {
		entries, err := s.deps.Ledger.Entries()
		if err != nil {
			s.writeError(w, err)
			return
		}
		for _, e := range entries {
			jobs = append(jobs, &models.BatchJob{BatchID: e.BatchID, InputFile: e.InputFile, InputFileID: e.InputFileID})
		}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "usage store not configured"})
		return
	}
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, errors.InvalidInput("days must be a positive integer"))
			return
		}
		days = n
	}
	summary, err := s.deps.Usage.Summary(r.Context(), days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
