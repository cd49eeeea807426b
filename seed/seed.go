// Package seed is the key-derivation collaborator: it turns the device's
// backing entropy and an optional passphrase into a session seed, and
// derives symmetric subkeys from that seed via SLIP-21 style HMAC chains.
package seed

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"

	"github.com/jmcleod/firmgate/internal/util"
)

// Length is the size of a derived session seed.
const Length = 64

// Normalize applies NFKD to a passphrase so that visually identical input
// from different hosts derives the same seed.
func Normalize(passphrase string) string {
	return norm.NFKD.String(passphrase)
}

// FromEntropy derives a session seed from the device's backing entropy and
// the user passphrase. The Cardano variant is domain-separated so the two
// derivations never collide; which variant a session uses is fixed before
// its seed exists.
func FromEntropy(entropy []byte, passphrase string, deriveCardano bool) ([]byte, error) {
	if len(entropy) == 0 {
		return nil, fmt.Errorf("backing entropy is empty")
	}
	info := []byte("firmgate seed v1")
	if deriveCardano {
		info = []byte("firmgate cardano seed v1")
	}
	h := hkdf.New(sha256.New, entropy, []byte(Normalize(passphrase)), info)
	s := make([]byte, Length)
	if _, err := io.ReadFull(h, s); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return s, nil
}

// Slip21Node is one node of a SLIP-21 symmetric derivation tree.
type Slip21Node struct {
	data [sha512.Size]byte
}

// NewSlip21 returns the SLIP-21 master node for a seed.
func NewSlip21(seed []byte) *Slip21Node {
	n := &Slip21Node{}
	mac := hmac.New(sha512.New, []byte("Symmetric key seed"))
	mac.Write(seed)
	copy(n.data[:], mac.Sum(nil))
	return n
}

// Derive descends one labeled edge of the tree in place.
func (n *Slip21Node) Derive(label []byte) *Slip21Node {
	mac := hmac.New(sha512.New, n.data[:32])
	mac.Write([]byte{0})
	mac.Write(label)
	copy(n.data[:], mac.Sum(nil))
	return n
}

// Key returns the 32-byte symmetric key of this node.
func (n *Slip21Node) Key() []byte {
	return util.CopyBytes(n.data[32:])
}

// Wipe zeroes the node's key material.
func (n *Slip21Node) Wipe() {
	util.WipeBytes(n.data[:])
}

// Node derives opaque key material for a hardened derivation path. The
// per-coin derivation arithmetic lives with the signing apps; the trust
// core only needs a deterministic, seed-bound byte string per path.
func Node(seed []byte, path []uint32) []byte {
	n := NewSlip21(seed)
	defer n.Wipe()
	var buf [4]byte
	for _, p := range path {
		binary.BigEndian.PutUint32(buf[:], p)
		n.Derive(buf[:])
	}
	return n.Key()
}
