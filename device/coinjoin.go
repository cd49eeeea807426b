package device

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jmcleod/firmgate/pathlock"
	"github.com/jmcleod/firmgate/seed"
	"github.com/jmcleod/firmgate/wire"

	"github.com/jmcleod/firmgate/internal/util"
)

// CoinJoinAuthorization is the policy payload stored with a CoinJoin
// preauthorization. The authorization store treats it as opaque bytes; the
// consuming handlers decode it and enforce its limits, including the
// remaining-rounds counter.
type CoinJoinAuthorization struct {
	Coordinator           string   `json:"coordinator"`
	MaxRounds             uint64   `json:"max_rounds"`
	MaxCoordinatorFeeRate uint64   `json:"max_coordinator_fee_rate"`
	MaxFeePerKvbyte       uint64   `json:"max_fee_per_kvbyte"`
	AddressN              []uint32 `json:"address_n,omitempty"`
	CoinName              string   `json:"coin_name,omitempty"`
}

// preauthorizedTypes are the operations a CoinJoin authorization covers.
var preauthorizedTypes = []wire.MessageType{
	wire.TypeSignTx,
	wire.TypeGetOwnershipProof,
}

func (sc *SecurityContext) handleAuthorizeCoinJoin(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	req := msg.(wire.AuthorizeCoinJoin)

	if req.Coordinator == "" {
		return nil, wire.Errorf(wire.CodePolicy, "Invalid coordinator")
	}
	if req.MaxRounds == 0 {
		return nil, wire.Errorf(wire.CodePolicy, "Invalid number of rounds")
	}

	err := c.Confirm(ctx, "authorize_coinjoin",
		"Authorize CoinJoin",
		fmt.Sprintf("Allow %q to run up to %d CoinJoin rounds?", req.Coordinator, req.MaxRounds))
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(CoinJoinAuthorization{
		Coordinator:           req.Coordinator,
		MaxRounds:             req.MaxRounds,
		MaxCoordinatorFeeRate: req.MaxCoordinatorFeeRate,
		MaxFeePerKvbyte:       req.MaxFeePerKvbyte,
		AddressN:              req.AddressN,
		CoinName:              req.CoinName,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding coinjoin authorization: %w", err)
	}
	if err := sc.authz.Authorize(preauthorizedTypes, payload); err != nil {
		return nil, err
	}
	return wire.Success{Message: "CoinJoin authorized"}, nil
}

// coinjoinAuthorization decodes the preauthorization payload attached by
// DoPreauthorized, or nil when the request came in directly.
func coinjoinAuthorization(c *wire.Context) (*CoinJoinAuthorization, error) {
	payload, ok := c.Extra().([]byte)
	if !ok {
		return nil, nil
	}
	var auth CoinJoinAuthorization
	if err := json.Unmarshal(payload, &auth); err != nil {
		return nil, wire.Errorf(wire.CodeInvariant, "malformed authorization payload")
	}
	return &auth, nil
}

func (sc *SecurityContext) handleGetOwnershipProof(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	req := msg.(wire.GetOwnershipProof)

	auth, err := coinjoinAuthorization(c)
	if err != nil {
		return nil, err
	}
	if auth != nil {
		// The commitment binds the proof to the coordinator the user
		// approved; a proof for anyone else is refused.
		if !bytes.HasPrefix(req.CommitmentData, []byte(auth.Coordinator)) {
			return nil, wire.Errorf(wire.CodeAuthFailed, "Unauthorized operation")
		}
	} else {
		err := c.Confirm(ctx, "confirm_ownership_proof",
			"Proof of ownership",
			"Do you want to create a proof of ownership?")
		if err != nil {
			return nil, err
		}
	}

	s, err := sc.sessionSeed(ctx, c)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(s)

	node := seed.Node(s, req.AddressN)
	defer util.WipeBytes(node)
	mac := hmac.New(sha256.New, node)
	mac.Write(req.CommitmentData)
	return wire.OwnershipProofSigned{Proof: mac.Sum(nil)}, nil
}

func (sc *SecurityContext) handleSignTx(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	auth, err := coinjoinAuthorization(c)
	if err != nil {
		return nil, err
	}
	if auth != nil {
		if auth.MaxRounds == 0 {
			return nil, wire.Errorf(wire.CodePrecondition, "No more CoinJoin rounds authorized")
		}
		auth.MaxRounds--
		payload, err := json.Marshal(auth)
		if err != nil {
			return nil, fmt.Errorf("encoding coinjoin authorization: %w", err)
		}
		if err := sc.authz.Authorize(preauthorizedTypes, payload); err != nil {
			return nil, err
		}
	} else {
		err := c.Confirm(ctx, "confirm_sign_tx",
			"Sign transaction",
			"Do you want to sign this transaction?")
		if err != nil {
			return nil, err
		}
	}

	// The per-coin signing arithmetic is out of scope for the trust core.
	return wire.Success{Message: "Transaction signed"}, nil
}

// requireUnlockedPath rejects direct access to the CoinJoin subtree: those
// paths are reachable only through the path-unlock protocol.
func requireUnlockedPath(c *wire.Context, path []uint32) error {
	if len(path) == 0 || path[0] != pathlock.Slip25Purpose {
		return nil
	}
	if _, ok := c.Extra().(wire.UnlockPath); ok {
		return nil
	}
	return wire.Errorf(wire.CodePolicy, "Forbidden key path")
}

func (sc *SecurityContext) handleGetAddress(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	req := msg.(wire.GetAddress)
	if err := requireUnlockedPath(c, req.AddressN); err != nil {
		return nil, err
	}
	s, err := sc.sessionSeed(ctx, c)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(s)
	node := seed.Node(s, req.AddressN)
	defer util.WipeBytes(node)
	return wire.Address{Address: hex.EncodeToString(node[:20])}, nil
}

func (sc *SecurityContext) handleGetPublicKey(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	req := msg.(wire.GetPublicKey)
	if err := requireUnlockedPath(c, req.AddressN); err != nil {
		return nil, err
	}
	s, err := sc.sessionSeed(ctx, c)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(s)
	return wire.PublicKey{Node: seed.Node(s, req.AddressN)}, nil
}
