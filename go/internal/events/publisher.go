package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Publisher moves room events toward connected clients. Delivery is
// best-effort; a failed publish is logged, never retried.
type Publisher interface {
	Publish(ctx context.Context, event *RoomEvent) error
}

// Handler consumes a published event.
type Handler func(event *RoomEvent)

// Dispatcher is the in-process Publisher used in the default single-process
// deployment: it hands events straight to subscribed handlers (the gateway's
// broadcast queue).
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a handler for every subsequent event.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

func (d *Dispatcher) Publish(ctx context.Context, event *RoomEvent) error {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}

	log.Debug().
		Str("event", event.Event).
		Str("room_id", event.RoomID.String()).
		Int("handlers", len(handlers)).
		Msg("event dispatched")
	return nil
}

var _ Publisher = (*Dispatcher)(nil)
