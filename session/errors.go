package session

import "errors"

var (
	// ErrNoActiveSession indicates a slot operation was attempted while no
	// session is bound to the transport.
	ErrNoActiveSession = errors.New("no active session")
	// ErrCapacity indicates the session table is full and nothing can be
	// evicted to make room.
	ErrCapacity = errors.New("session table full")
	// ErrSeedSet indicates an attempt to overwrite a session's seed slot.
	ErrSeedSet = errors.New("seed already set for this session")
	// ErrSeedNotSet indicates the session has no derived seed yet.
	ErrSeedNotSet = errors.New("seed not set for this session")
	// ErrDerivationFixed indicates an attempt to change the seed-derivation
	// variant after the seed was derived.
	ErrDerivationFixed = errors.New("derivation variant is fixed once the seed is derived")
)
