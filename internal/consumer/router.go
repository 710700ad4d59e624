package consumer

import (
	"context"
	"errors"
)

// Router dispatches a message to every handler registered for its event type.
// Messages of unregistered types are acknowledged without work.
type Router struct {
	routes   map[string][]Handler
	fallback []Handler
}

// NewRouter constructs an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string][]Handler)}
}

// On registers h for the given event types.
func (r *Router) On(h Handler, eventTypes ...string) *Router {
	for _, t := range eventTypes {
		r.routes[t] = append(r.routes[t], h)
	}
	return r
}

// All registers h for every event type.
func (r *Router) All(h Handler) *Router {
	r.fallback = append(r.fallback, h)
	return r
}

// Handle implements Handler. Every matching handler runs; their errors are joined.
func (r *Router) Handle(ctx context.Context, msg Message) error {
	var errs []error
	for _, h := range r.fallback {
		if err := h.Handle(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	for _, h := range r.routes[msg.EventType] {
		if err := h.Handle(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
