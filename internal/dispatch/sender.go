package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/staykit/staykit/internal/staykit"
)

// Sender delivers one action type to its external service. Dispatch
// receives the step's fully rendered config and returns an output object
// that is merged into the execution context for later steps.
type Sender interface {
	// Type returns the action type this sender handles.
	Type() staykit.ActionType
	Dispatch(ctx context.Context, config map[string]any) (map[string]any, error)
}

// Registry maps action types to their senders.
type Registry struct {
	mu      sync.RWMutex
	senders map[staykit.ActionType]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[staykit.ActionType]Sender)}
}

// Register adds a sender for an action type.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Type()] = s
}

// Get returns the sender for the given action type.
func (r *Registry) Get(actionType staykit.ActionType) (Sender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[actionType]
	if !ok {
		return nil, fmt.Errorf("no sender registered for action type %q", actionType)
	}
	return s, nil
}
