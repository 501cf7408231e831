package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/staykit/staykit/internal/staykit"
)

// createRule persists a new rule.
// POST /api/rules
func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var rule staykit.AutomationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := s.ruleSvc.Create(r.Context(), &rule); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, &rule)
}

// GET /api/rules
func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.ruleSvc.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// GET /api/rules/{id}
func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.ruleSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// PUT /api/rules/{id}
func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	var rule staykit.AutomationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	rule.ID = chi.URLParam(r, "id")

	if err := s.ruleSvc.Update(r.Context(), &rule); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &rule)
}

// DELETE /api/rules/{id}
func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.ruleSvc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/rules/{id}/enable
func (s *Server) enableRule(w http.ResponseWriter, r *http.Request) {
	s.setEnabled(w, r, true)
}

// POST /api/rules/{id}/disable
func (s *Server) disableRule(w http.ResponseWriter, r *http.Request) {
	s.setEnabled(w, r, false)
}

func (s *Server) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	rule, err := s.ruleSvc.SetEnabled(r.Context(), chi.URLParam(r, "id"), enabled)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// testRule dry-runs a stored rule.
// POST /api/rules/{id}/test
func (s *Server) testRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.ruleSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.ruleSvc.DryRun(rule))
}

// testDraft dry-runs a rule document from the request body without
// persisting it.
// POST /api/rules/test
func (s *Server) testDraft(w http.ResponseWriter, r *http.Request) {
	var rule staykit.AutomationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	staykit.RepairDraft(&rule)
	respondJSON(w, http.StatusOK, s.ruleSvc.DryRun(&rule))
}

// generateRule turns a natural-language description into a repaired,
// validated rule draft. A draft that fails validation is still returned
// so the dashboard can show what the model produced alongside the
// errors.
// POST /api/rules/generate
func (s *Server) generateRule(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "draft generation not configured"})
		return
	}

	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Description == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
		return
	}

	draft, err := s.generator.GenerateDraft(r.Context(), req.Description)
	if err != nil {
		var cfgErr *staykit.ConfigurationError
		if errors.As(err, &cfgErr) && draft != nil {
			respondJSON(w, http.StatusOK, map[string]any{
				"draft":  draft,
				"valid":  false,
				"errors": cfgErr.Fields,
			})
			return
		}
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"draft": draft, "valid": true})
}
