// Package memory provides an in-memory devstore.Store for tests and
// emulation without persistence.
package memory

import (
	"sync"

	"github.com/jmcleod/firmgate/devstore"
)

// Store is a thread-safe in-memory devstore.Store.
type Store struct {
	mu  sync.Mutex
	cfg *devstore.Config
}

var _ devstore.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Load() (*devstore.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil, devstore.ErrNotFound
	}
	return s.cfg.Clone(), nil
}

func (s *Store) Save(cfg *devstore.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Clone()
	return nil
}

func (s *Store) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = nil
	return nil
}
