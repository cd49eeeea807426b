// Package session implements the per-session cache: isolated, resumable
// slot mappings keyed by an opaque session identifier, with exactly one
// session bound to the transport at a time.
package session

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/firmgate/internal/util"
)

// IDLength is the size of an opaque session identifier.
const IDLength = 32

// MaxSessions bounds the number of concurrently parked sessions. When the
// table is full, StartSession evicts the least recently started non-active
// session; with a table of one occupied by the active session, it fails
// with ErrCapacity instead.
const MaxSessions = 10

// Slot keys a semantically typed value inside a session's cache. The
// enumeration is closed: callers never invent slot keys at runtime.
type Slot uint8

const (
	// SlotSeed holds the derived master secret. Write-once per session.
	SlotSeed Slot = iota
	// SlotDeriveCardano fixes the seed-derivation variant. Immutable once
	// the seed is derived.
	SlotDeriveCardano
	// SlotBusyDeadline holds the absolute busy deadline in milliseconds
	// since boot, 4 bytes big-endian.
	SlotBusyDeadline
	// SlotAuthorization holds the serialized preauthorized-operation
	// record.
	SlotAuthorization
)

type entry struct {
	id    []byte
	seq   uint64
	slots map[Slot][]byte
	seed  *memguard.Enclave
}

func (e *entry) wipe() {
	for k, v := range e.slots {
		util.WipeBytes(v)
		delete(e.slots, k)
	}
	e.seed = nil
	util.WipeBytes(e.id)
}

// Store owns all sessions and the active-session pointer. All methods are
// safe for concurrent use, though the dispatcher serializes requests; the
// mutex exists for the idle-lock timer and for parallel test harnesses.
type Store struct {
	mu      sync.Mutex
	entries []*entry
	active  *entry
	seq     uint64
}

func NewStore() *Store {
	return &Store{}
}

// StartSession resumes the session with the requested identifier if one is
// stored, otherwise allocates a fresh session and makes it active. The
// returned identifier is a copy owned by the caller.
func (s *Store) StartSession(requestedID []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(requestedID) == IDLength {
		for _, e := range s.entries {
			if bytes.Equal(e.id, requestedID) {
				s.active = e
				return util.CopyBytes(e.id), nil
			}
		}
	}

	if len(s.entries) >= MaxSessions {
		if err := s.evictOldest(); err != nil {
			return nil, err
		}
	}

	id, err := util.RandomBytes(IDLength)
	if err != nil {
		return nil, fmt.Errorf("allocating session ID: %w", err)
	}
	e := &entry{
		id:    id,
		seq:   s.seq,
		slots: make(map[Slot][]byte),
	}
	s.seq++
	s.entries = append(s.entries, e)
	s.active = e
	return util.CopyBytes(id), nil
}

// evictOldest removes the least recently started session that is not
// active. Callers hold the mutex.
func (s *Store) evictOldest() error {
	victim := -1
	for i, e := range s.entries {
		if e == s.active {
			continue
		}
		if victim < 0 || e.seq < s.entries[victim].seq {
			victim = i
		}
	}
	if victim < 0 {
		return ErrCapacity
	}
	s.entries[victim].wipe()
	s.entries = append(s.entries[:victim], s.entries[victim+1:]...)
	return nil
}

// EndCurrentSession destroys the active session's slots and identifier.
// No session is active afterward. No-op when nothing is active.
func (s *Store) EndCurrentSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return
	}
	for i, e := range s.entries {
		if e == s.active {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	s.active.wipe()
	s.active = nil
}

// Reset destroys every session. Used on device wipe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.wipe()
	}
	s.entries = nil
	s.active = nil
}

// ActiveID returns a copy of the active session's identifier, or nil.
func (s *Store) ActiveID() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	return util.CopyBytes(s.active.id)
}

// Get returns a copy of the slot value in the active session. The second
// return distinguishes an unset slot from an empty value.
func (s *Store) Get(slot Slot) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, false, ErrNoActiveSession
	}
	v, ok := s.active.slots[slot]
	if !ok {
		return nil, false, nil
	}
	return util.CopyBytes(v), true, nil
}

// Set stores a copy of the value in the active session's slot. The seed
// slot must go through SetSeed; the derivation-variant slot is rejected
// once a seed exists.
func (s *Store) Set(slot Slot, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoActiveSession
	}
	switch slot {
	case SlotSeed:
		return ErrSeedSet
	case SlotDeriveCardano:
		if s.active.seed != nil {
			return ErrDerivationFixed
		}
	}
	if old, ok := s.active.slots[slot]; ok {
		util.WipeBytes(old)
	}
	s.active.slots[slot] = util.CopyBytes(value)
	return nil
}

// Delete removes the slot from the active session. Idempotent.
func (s *Store) Delete(slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoActiveSession
	}
	if old, ok := s.active.slots[slot]; ok {
		util.WipeBytes(old)
		delete(s.active.slots, slot)
	}
	return nil
}

// IsSet reports whether the slot has a value in the active session.
func (s *Store) IsSet(slot Slot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return false, ErrNoActiveSession
	}
	if slot == SlotSeed {
		return s.active.seed != nil, nil
	}
	_, ok := s.active.slots[slot]
	return ok, nil
}

// SetSeed seals the derived master secret into the active session. The
// seed slot is write-once: a second call fails with ErrSeedSet. The input
// slice is wiped by the enclave; ownership passes to the store.
func (s *Store) SetSeed(seed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoActiveSession
	}
	if s.active.seed != nil {
		return ErrSeedSet
	}
	s.active.seed = memguard.NewEnclave(seed)
	return nil
}

// Seed returns a copy of the active session's derived master secret.
// Callers wipe the copy when done.
func (s *Store) Seed() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrNoActiveSession
	}
	if s.active.seed == nil {
		return nil, ErrSeedNotSet
	}
	buf, err := s.active.seed.Open()
	if err != nil {
		return nil, fmt.Errorf("opening seed enclave: %w", err)
	}
	defer buf.Destroy()
	return util.CopyBytes(buf.Bytes()), nil
}
