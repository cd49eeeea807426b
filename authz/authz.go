// Package authz implements the single-slot preauthorized-operation store:
// one user-approved allow-list of future wire types plus an opaque policy
// payload, scoped to the active session.
package authz

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmcleod/firmgate/session"
	"github.com/jmcleod/firmgate/wire"
)

// record is the serialized form stored in the session's authorization
// slot. The payload is opaque to this package; rate limits and coordinator
// identity live inside it and are enforced by the consuming handler.
type record struct {
	WireTypes []wire.MessageType `json:"wire_types"`
	Payload   []byte             `json:"payload,omitempty"`
}

// Store reads and writes the authorization slot of the active session and
// dispatches preauthorized operations through the handler registry.
type Store struct {
	sessions *session.Store
	registry *wire.Registry
}

func NewStore(sessions *session.Store, registry *wire.Registry) *Store {
	return &Store{sessions: sessions, registry: registry}
}

// Authorize installs a preauthorized operation for the active session,
// silently replacing any pending one. Last writer wins; there is no merge
// and no confirmation-before-replace.
func (s *Store) Authorize(types []wire.MessageType, payload []byte) error {
	data, err := json.Marshal(record{WireTypes: types, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding authorization record: %w", err)
	}
	return s.sessions.Set(session.SlotAuthorization, data)
}

func (s *Store) load() (*record, error) {
	data, ok, err := s.sessions.Get(session.SlotAuthorization)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding authorization record: %w", err)
	}
	return &rec, nil
}

// IsSet reports whether the active session holds a pending authorization.
// Returns false when no session is active.
func (s *Store) IsSet() bool {
	set, err := s.sessions.IsSet(session.SlotAuthorization)
	return err == nil && set
}

// Payload returns the opaque authorization payload of the active session.
func (s *Store) Payload() ([]byte, error) {
	rec, err := s.load()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return rec.Payload, nil
}

// WireTypes returns the allowed wire types of the pending authorization.
func (s *Store) WireTypes() ([]wire.MessageType, error) {
	rec, err := s.load()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return rec.WireTypes, nil
}

// Clear removes the pending authorization. Idempotent: clearing an empty
// slot is not an error.
func (s *Store) Clear() error {
	return s.sessions.Delete(session.SlotAuthorization)
}

// DispatchPreauthorized asks the host for exactly one message covered by
// the pending authorization and invokes its registered handler with the
// authorization payload attached as extra context. The record is not
// consumed: it stays valid until cancelled, replaced, or the session ends.
func (s *Store) DispatchPreauthorized(ctx context.Context, c *wire.Context) (wire.Message, error) {
	rec, err := s.load()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, wire.Errorf(wire.CodePrecondition, "No preauthorized operation")
	}
	if len(rec.WireTypes) == 0 {
		return nil, wire.Errorf(wire.CodeInvariant, "Unsupported preauthorization found")
	}

	req, err := c.CallAny(ctx, wire.PreauthorizedRequest{}, rec.WireTypes...)
	if err != nil {
		return nil, err
	}

	handler := s.registry.Find(c.Iface(), req.WireType())
	if handler == nil {
		return nil, wire.ErrUnexpectedMessage
	}
	return handler(ctx, c.WithExtra(rec.Payload), req)
}
