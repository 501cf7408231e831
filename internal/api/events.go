package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/staykit/staykit/internal/staykit"
)

// injectEvent accepts a domain event from the property's broker adapter
// and publishes it onto the in-process bus. Events without an id get one
// assigned; callers that redeliver must reuse the original id, since it
// is the deduplication bucket for event-based rules.
// POST /api/events
func (s *Server) injectEvent(w http.ResponseWriter, r *http.Request) {
	var ev staykit.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if ev.Type == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	s.bus.Publish(ev)
	respondJSON(w, http.StatusAccepted, map[string]string{"id": ev.ID})
}
