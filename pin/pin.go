// Package pin hashes and verifies the device PIN with argon2id. Only the
// hash and salt are persisted; comparison is constant time.
package pin

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"

	"github.com/jmcleod/firmgate/devstore"
	"github.com/jmcleod/firmgate/internal/util"
)

const (
	saltLength = 16
	keyLength  = 32

	// Device-class parameters: flash-resident verifier, interactive use.
	timeCost   = 3
	memoryKiB  = 8 * 1024
	threadCost = 1
)

var (
	// ErrMismatch indicates the presented PIN does not match the stored
	// verifier.
	ErrMismatch = errors.New("PIN mismatch")
	// ErrNotSet indicates no PIN is configured on the device.
	ErrNotSet = errors.New("PIN not set")
)

func hash(pin string, salt []byte) []byte {
	return argon2.IDKey([]byte(pin), salt, timeCost, memoryKiB, threadCost, keyLength)
}

// Set installs a new PIN verifier on the configuration. The caller
// persists the configuration afterward.
func Set(cfg *devstore.Config, pin string) error {
	salt, err := util.RandomBytes(saltLength)
	if err != nil {
		return err
	}
	cfg.PinSalt = salt
	cfg.PinHash = hash(pin, salt)
	return nil
}

// Clear removes PIN protection from the configuration.
func Clear(cfg *devstore.Config) {
	util.WipeBytes(cfg.PinHash)
	util.WipeBytes(cfg.PinSalt)
	cfg.PinHash = nil
	cfg.PinSalt = nil
}

// Verify checks the presented PIN against the stored verifier in constant
// time. Returns ErrNotSet when no PIN is configured and ErrMismatch on a
// wrong PIN.
func Verify(cfg *devstore.Config, pin string) error {
	if !cfg.HasPin() {
		return ErrNotSet
	}
	candidate := hash(pin, cfg.PinSalt)
	defer util.WipeBytes(candidate)
	if subtle.ConstantTimeCompare(candidate, cfg.PinHash) != 1 {
		return ErrMismatch
	}
	return nil
}
