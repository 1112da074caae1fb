package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/maltedev/amazon-cart-agent/internal/progress"
)

// StatusSource is satisfied by *progress.Tracker.
type StatusSource interface {
	Snapshot() progress.Snapshot
}

type Handlers struct {
	status StatusSource
	logger *slog.Logger
}

func NewHandlers(status StatusSource, logger *slog.Logger) *Handlers {
	return &Handlers{
		status: status,
		logger: logger.With("component", "api"),
	}
}

// Router serves the read-only run status.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1/run", func(r chi.Router) {
		r.Get("/", h.GetRun)
		r.Get("/candidates", h.GetCandidates)
		r.Get("/added", h.GetAdded)
	})

	return r
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"run_id": snap.RunID,
		"stage":  snap.Stage,
	})
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.status.Snapshot())
}

type CandidatesResponse struct {
	Query      string      `json:"query"`
	Criteria   interface{} `json:"criteria"`
	Scraped    int         `json:"scraped"`
	Candidates interface{} `json:"candidates"`
}

// GetCandidates returns the filtered candidates, or every scraped one with
// ?all=true.
func (h *Handlers) GetCandidates(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()

	list := snap.Filtered
	if r.URL.Query().Get("all") == "true" {
		list = snap.Candidates
	}

	h.respondJSON(w, http.StatusOK, CandidatesResponse{
		Query:      snap.Query,
		Criteria:   snap.Criteria,
		Scraped:    len(snap.Candidates),
		Candidates: list,
	})
}

func (h *Handlers) GetAdded(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(snap.Added),
		"max":      snap.MaxItems,
		"added":    snap.Added,
		"attempts": snap.Attempts,
	})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
