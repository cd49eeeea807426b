// Package devstore holds the persistent device configuration: identity,
// label, PIN verifier material, autolock delay, and the backing entropy for
// seed derivation. Everything else in the trust core is volatile.
package devstore

import (
	"errors"

	"github.com/google/uuid"

	"github.com/jmcleod/firmgate/internal/util"
)

// EntropyLength is the size of the backing entropy generated at device
// initialization.
const EntropyLength = 32

var (
	// ErrNotFound indicates no device configuration has been stored yet.
	ErrNotFound = errors.New("device configuration not found")
)

// Config is the stored device configuration. PIN material is an argon2id
// hash plus salt; the raw PIN never touches storage.
type Config struct {
	DeviceID             string `json:"device_id"`
	Label                string `json:"label,omitempty"`
	Initialized          bool   `json:"initialized"`
	PinSalt              []byte `json:"pin_salt,omitempty"`
	PinHash              []byte `json:"pin_hash,omitempty"`
	AutoLockDelayMs      uint32 `json:"auto_lock_delay_ms,omitempty"`
	PassphraseProtection bool   `json:"passphrase_protection,omitempty"`
	Entropy              []byte `json:"entropy,omitempty"`
}

// HasPin reports whether PIN protection is configured.
func (c *Config) HasPin() bool {
	return len(c.PinHash) > 0
}

// Clone returns a deep copy so stores can hand out configs without
// aliasing their internal state.
func (c *Config) Clone() *Config {
	out := *c
	out.PinSalt = util.CopyBytes(c.PinSalt)
	out.PinHash = util.CopyBytes(c.PinHash)
	out.Entropy = util.CopyBytes(c.Entropy)
	return &out
}

// NewConfig allocates a fresh, initialized device configuration with a
// random device ID and backing entropy.
func NewConfig(label string) (*Config, error) {
	entropy, err := util.RandomBytes(EntropyLength)
	if err != nil {
		return nil, err
	}
	return &Config{
		DeviceID:    uuid.NewString(),
		Label:       label,
		Initialized: true,
		Entropy:     entropy,
	}, nil
}

// Store abstracts where the device configuration lives so tests can run
// in-memory while the device uses bbolt-backed flash.
type Store interface {
	// Load returns the stored configuration, or ErrNotFound.
	Load() (*Config, error)
	// Save persists the configuration, replacing any previous one.
	Save(cfg *Config) error
	// Wipe removes the configuration entirely.
	Wipe() error
}
