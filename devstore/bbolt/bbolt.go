// Package bbolt provides a BBolt-backed devstore.Store.
package bbolt

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/firmgate/devstore"
)

var (
	bucketName = []byte("device")
	configKey  = []byte("config")
)

// Store implements devstore.Store backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ devstore.Store = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewStoreFromFile opens a BBolt database at the given path.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load() (*devstore.Config, error) {
	var cfg *devstore.Config
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return devstore.ErrNotFound
		}
		data := b.Get(configKey)
		if data == nil {
			return devstore.ErrNotFound
		}
		cfg = &devstore.Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decoding device config: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Store) Save(cfg *devstore.Config) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding device config: %w", err)
		}
		return b.Put(configKey, data)
	})
}

func (s *Store) Wipe() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketName) == nil {
			return nil
		}
		return tx.DeleteBucket(bucketName)
	})
}
