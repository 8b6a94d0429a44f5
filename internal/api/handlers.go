package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/auth"
	"github.com/quayside-labs/quayscrape/internal/scrape"
	"github.com/quayside-labs/quayscrape/internal/storage"
)

// Runner is the slice of the orchestrator the API needs.
type Runner interface {
	Run(ctx context.Context, creds auth.Credentials, codes []string) *scrape.RunResult
	ListTargets() []scrape.Target
}

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Targets  []string `json:"targets,omitempty"`
}

// Handlers serves the JSON API over one orchestrator and one store.
type Handlers struct {
	log    *zap.Logger
	runner Runner
	store  *storage.JSONStore
}

// NewHandlers creates the handler set.
func NewHandlers(logger *zap.Logger, runner Runner, store *storage.JSONStore) *Handlers {
	return &Handlers{
		log:    logger.Named("api_handlers"),
		runner: runner,
		store:  store,
	}
}

// RegisterRoutes sets up the routing for the API server.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Get("/targets", h.HandleTargets)
		r.Get("/data", h.HandleData)
		r.Post("/scrape", h.HandleScrape)
	})
}

// HandleHealth confirms the server is responsive.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleTargets lists the configured targets.
func (h *Handlers) HandleTargets(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]any{"targets": h.runner.ListTargets()})
}

// HandleScrape runs a scrape synchronously and returns the aggregated
// result. Credentials live only for the duration of the request.
func (h *Handlers) HandleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.respondWithError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	h.log.Info("Scrape requested", zap.Strings("targets", req.Targets))

	result := h.runner.Run(r.Context(), auth.Credentials{
		Username: req.Username,
		Password: req.Password,
	}, req.Targets)

	if result.Success {
		if err := h.store.Save(result); err != nil {
			h.log.Error("Failed to persist run result", zap.Error(err))
		}
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnauthorized
	}
	h.respondWithJSON(w, status, result)
}

// HandleData returns the most recently persisted run result.
func (h *Handlers) HandleData(w http.ResponseWriter, r *http.Request) {
	var result scrape.RunResult
	ok, err := h.store.Load(&result)
	if err != nil {
		h.log.Error("Failed to load stored data", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "failed to load stored data")
		return
	}
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "no data available - run a scrape first")
		return
	}
	h.respondWithJSON(w, http.StatusOK, &result)
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

func (h *Handlers) respondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
