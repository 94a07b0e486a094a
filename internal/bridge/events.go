package bridge

import (
	"context"
	"sync"

	"github.com/lumabank/credit-engine/internal/logging"
	"github.com/lumabank/credit-engine/internal/workflow"
)

type EventKind string

const (
	EventKindDecision EventKind = "decision"
	EventKindAlert    EventKind = "alert"
)

// Event is a closed tagged variant: exactly one of the payload fields is set,
// selected by Kind. New kinds are introduced here and picked up by handlers
// registered for them; there is no runtime reflection.
type Event struct {
	Kind          EventKind
	CorrelationID string
	Decision      *workflow.Result
	Alert         *Alert
}

type Alert struct {
	ApplicationRef string
	Reason         string
	Attempts       int
}

type Handler func(ctx context.Context, ev Event)

// Registry fans events out to handlers keyed by event kind. Handlers run
// synchronously in registration order; a slow handler slows the worker that
// produced the event.
type Registry struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[EventKind][]Handler)}
}

func (r *Registry) Register(kind EventKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = append(r.handlers[kind], h)
}

func (r *Registry) Dispatch(ctx context.Context, ev Event) {
	r.mu.RLock()
	handlers := r.handlers[ev.Kind]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		logging.FromContext(ctx).Debug("no handlers for event kind", "kind", ev.Kind)
		return
	}
	for _, h := range handlers {
		h(ctx, ev)
	}
}
