// Package pathlock grants scoped, non-interactive access to the sensitive
// CoinJoin derivation subtree. Access is proven either by one-time user
// confirmation or by a MAC the device itself issued earlier; the MAC is a
// stateless capability bound to the session seed and the exact path.
package pathlock

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/jmcleod/firmgate/seed"
	"github.com/jmcleod/firmgate/wire"

	"github.com/jmcleod/firmgate/internal/util"
)

// Slip25Purpose is the hardened purpose of the CoinJoin subtree, the only
// path UnlockPath accepts. Whole-subtree unlock only: partial or sibling
// grants would need a confirmation UI that cannot convey their scope.
const Slip25Purpose uint32 = 0x80000000 + 10025

var macKeyPath = [][]byte{[]byte("FIRMGATE"), []byte("Keychain MAC key")}

// SeedFunc returns the active session's seed, deriving it first if the
// session does not have one yet. The wire context is needed because
// derivation may suspend for a passphrase prompt.
type SeedFunc func(ctx context.Context, c *wire.Context) ([]byte, error)

// Protocol is the stateless path-unlock verifier.
type Protocol struct {
	registry   *wire.Registry
	deriveSeed SeedFunc
}

func NewProtocol(registry *wire.Registry, deriveSeed SeedFunc) *Protocol {
	return &Protocol{registry: registry, deriveSeed: deriveSeed}
}

// followUps are the only operations the host may send after a successful
// unlock.
var followUps = []wire.MessageType{
	wire.TypeGetAddress,
	wire.TypeGetPublicKey,
	wire.TypeSignTx,
}

func macOverPath(key []byte, path []uint32) []byte {
	mac := hmac.New(sha256.New, key)
	var buf [4]byte
	for _, p := range path {
		binary.LittleEndian.PutUint32(buf[:], p)
		mac.Write(buf[:])
	}
	return mac.Sum(nil)
}

// ExpectedMAC computes the MAC the device would accept for the given path
// under the active session's seed, deriving the seed if necessary.
func (p *Protocol) ExpectedMAC(ctx context.Context, c *wire.Context, path []uint32) ([]byte, error) {
	s, err := p.deriveSeed(ctx, c)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(s)

	node := seed.NewSlip21(s)
	defer node.Wipe()
	for _, label := range macKeyPath {
		node.Derive(label)
	}
	key := node.Key()
	defer util.WipeBytes(key)

	return macOverPath(key, path), nil
}

// UnlockPath validates the unlock request, then hands the issued MAC back
// to the host and dispatches exactly one allow-listed follow-up operation
// with the unlock request attached as extra context.
//
// With a MAC present the comparison is constant time and any mismatch,
// including a length mismatch, is reported identically. Without one, the
// user confirms the grant; rejection cancels the whole exchange and grants
// nothing.
func (p *Protocol) UnlockPath(ctx context.Context, c *wire.Context, msg wire.UnlockPath) (wire.Message, error) {
	if len(msg.AddressN) != 1 || msg.AddressN[0] != Slip25Purpose {
		return nil, wire.Errorf(wire.CodePolicy, "Invalid path")
	}

	expected, err := p.ExpectedMAC(ctx, c, msg.AddressN)
	if err != nil {
		return nil, err
	}

	if len(msg.MAC) > 0 {
		if !hmac.Equal(expected, msg.MAC) {
			return nil, wire.Errorf(wire.CodeAuthFailed, "Invalid MAC")
		}
	} else {
		err := c.Confirm(ctx, "confirm_coinjoin_access",
			"CoinJoin account",
			"Do you want to allow access to CoinJoin accounts?")
		if err != nil {
			return nil, err
		}
	}

	req, err := c.CallAny(ctx, wire.UnlockedPathRequest{MAC: expected}, followUps...)
	if err != nil {
		return nil, err
	}

	handler := p.registry.Find(c.Iface(), req.WireType())
	if handler == nil {
		return nil, wire.ErrUnexpectedMessage
	}
	return handler(ctx, c.WithExtra(msg), req)
}
