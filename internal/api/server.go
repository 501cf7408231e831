package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/staykit/staykit/internal/engine"
	"github.com/staykit/staykit/internal/repository"
	"github.com/staykit/staykit/internal/services"
	"github.com/staykit/staykit/internal/staykit"
	"github.com/staykit/staykit/internal/staykit/ports"
)

// Server exposes the engine to the dashboard's CRUD surface: rule
// CRUD, enable/disable, execution history, dry-run tests, draft
// generation, and event injection.
type Server struct {
	ruleSvc    *services.RuleService
	historySvc *services.HistoryService
	generator  ports.DraftGenerator
	bus        *engine.Bus
}

func NewServer(ruleSvc *services.RuleService, historySvc *services.HistoryService, generator ports.DraftGenerator, bus *engine.Bus) *Server {
	return &Server{
		ruleSvc:    ruleSvc,
		historySvc: historySvc,
		generator:  generator,
		bus:        bus,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", s.createRule)
			r.Get("/", s.listRules)
			r.Post("/test", s.testDraft)
			r.Post("/generate", s.generateRule)
			r.Get("/{id}", s.getRule)
			r.Put("/{id}", s.updateRule)
			r.Delete("/{id}", s.deleteRule)
			r.Post("/{id}/enable", s.enableRule)
			r.Post("/{id}/disable", s.disableRule)
			r.Post("/{id}/test", s.testRule)
			r.Get("/{id}/executions", s.listRuleExecutions)
		})
		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.listExecutions)
			r.Get("/{id}", s.getExecution)
		})
		r.Post("/events", s.injectEvent)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps service errors to HTTP statuses: validation
// failures carry their field list, missing entities 404, the rest 500.
func respondError(w http.ResponseWriter, err error) {
	var cfgErr *staykit.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid rule",
			"fields": cfgErr.Fields,
		})
	case errors.Is(err, repository.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
