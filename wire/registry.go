package wire

import "context"

// Handler processes one decoded request and returns the response message.
// Handlers may suspend on the Context (user confirmation, follow-up
// messages) before returning.
type Handler func(ctx context.Context, c *Context, msg Message) (Message, error)

// Registry maps message types to their registered handlers. Registration
// happens once at boot; lookups are read-only afterward, so no locking is
// needed under the sequential-request model.
type Registry struct {
	handlers map[MessageType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[MessageType]Handler)}
}

// Register installs the handler for a message type, replacing any previous
// registration.
func (r *Registry) Register(t MessageType, h Handler) {
	r.handlers[t] = h
}

// Find returns the handler registered for the message type, or nil. The
// interface argument exists so that resolution strategies layered on top
// (the lock gate) can treat transports differently; the base registry
// itself is interface-agnostic.
func (r *Registry) Find(iface Interface, t MessageType) Handler {
	return r.handlers[t]
}

// ResolveFunc resolves a handler for an inbound message. The dispatcher
// only ever talks to one of these; which one is installed depends on the
// device lock state.
type ResolveFunc func(iface Interface, t MessageType) Handler
