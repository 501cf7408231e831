package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GET /api/rules/{id}/executions?limit=&offset=
func (s *Server) listRuleExecutions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	records, total, err := s.historySvc.ListByRule(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"executions": records,
		"total":      total,
	})
}

// GET /api/executions?status=&limit=&offset=
func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	status := r.URL.Query().Get("status")
	records, total, err := s.historySvc.ListAll(r.Context(), limit, offset, status)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"executions": records,
		"total":      total,
	})
}

// GET /api/executions/{id}
func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	record, err := s.historySvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
