package engine

import (
	"fmt"
	"sync"
)

// TemplateStore is a registry of named message templates. Templates use
// the same {{variable}} syntax as action configs; unresolved tokens stay
// literal.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewTemplateStore creates a store seeded from the given template map
// (typically the config file's templates section).
func NewTemplateStore(templates map[string]string) *TemplateStore {
	store := make(map[string]string, len(templates))
	for id, body := range templates {
		store[id] = body
	}
	return &TemplateStore{templates: store}
}

func (s *TemplateStore) Has(templateID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.templates[templateID]
	return ok
}

func (s *TemplateStore) Render(templateID string, vars map[string]any) (string, error) {
	s.mu.RLock()
	body, ok := s.templates[templateID]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown template %q", templateID)
	}
	rendered, _ := Render(body, vars)
	return rendered, nil
}

// Set adds or replaces a template.
func (s *TemplateStore) Set(templateID, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[templateID] = body
}
