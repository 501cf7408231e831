package engine

import (
	"sync"

	"github.com/staykit/staykit/internal/staykit"
)

// EventHandler consumes a domain event.
type EventHandler func(staykit.Event)

// Bus is a minimal in-process event bus. The property's broker adapter
// publishes into it; the event trigger service subscribes.
type Bus struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *Bus) Publish(event staykit.Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}
