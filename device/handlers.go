package device

import (
	"context"

	"github.com/jmcleod/firmgate/session"
	"github.com/jmcleod/firmgate/wire"
)

const vendor = "firmgate.dev"

var capabilities = []string{"Bitcoin", "CoinJoin", "Passphrase"}

// registerHandlers installs the base protocol handlers. App-level signing
// handlers register through Registry() on top of these.
func (sc *SecurityContext) registerHandlers() {
	r := sc.registry
	r.Register(wire.TypeInitialize, sc.handleInitialize)
	r.Register(wire.TypeGetFeatures, sc.handleGetFeatures)
	r.Register(wire.TypeCancel, sc.handleCancel)
	r.Register(wire.TypeLockDevice, sc.handleLockDevice)
	r.Register(wire.TypeEndSession, sc.handleEndSession)
	r.Register(wire.TypePing, sc.handlePing)
	r.Register(wire.TypeSetBusy, sc.handleSetBusy)
	r.Register(wire.TypeWipeDevice, sc.handleWipeDevice)
	r.Register(wire.TypeDoPreauthorized, sc.handleDoPreauthorized)
	r.Register(wire.TypeCancelAuthorization, sc.handleCancelAuthorization)
	r.Register(wire.TypeUnlockPath, sc.handleUnlockPath)
	r.Register(wire.TypeAuthorizeCoinJoin, sc.handleAuthorizeCoinJoin)
	r.Register(wire.TypeGetAddress, sc.handleGetAddress)
	r.Register(wire.TypeGetPublicKey, sc.handleGetPublicKey)
	r.Register(wire.TypeSignTx, sc.handleSignTx)
	r.Register(wire.TypeGetOwnershipProof, sc.handleGetOwnershipProof)
}

// Features builds the device feature report. Private fields are reported
// only while unlocked.
func (sc *SecurityContext) Features() wire.Features {
	cfg := sc.config()
	unlocked := sc.Unlocked()

	f := wire.Features{
		Vendor:       vendor,
		Unlocked:     unlocked,
		BusyExpiryMs: sc.busyExpiryMs(),
		Capabilities: capabilities,
	}
	if cfg == nil {
		return f
	}
	f.DeviceID = cfg.DeviceID
	f.Label = cfg.Label
	f.Initialized = cfg.Initialized
	f.PinProtection = cfg.HasPin()
	if unlocked {
		f.AutoLockDelayMs = cfg.AutoLockDelayMs
		f.PassphraseActive = cfg.PassphraseProtection
	}
	return f
}

func (sc *SecurityContext) handleInitialize(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	req := msg.(wire.Initialize)

	sessionID, err := sc.sessions.StartSession(req.SessionID)
	if err != nil {
		return nil, err
	}

	deriveCardano, _, err := sc.sessions.DeriveCardano()
	if err != nil {
		return nil, err
	}
	haveSeed, err := sc.sessions.IsSet(session.SlotSeed)
	if err != nil {
		return nil, err
	}

	// The host cannot flip the derivation variant under an already derived
	// seed; resuming with a conflicting flag silently becomes a fresh
	// session instead.
	if haveSeed && req.DeriveCardano != nil && *req.DeriveCardano != deriveCardano {
		sc.sessions.EndCurrentSession()
		sessionID, err = sc.sessions.StartSession(nil)
		if err != nil {
			return nil, err
		}
		haveSeed = false
	}

	if !haveSeed {
		derive := req.DeriveCardano != nil && *req.DeriveCardano
		if err := sc.sessions.SetDeriveCardano(derive); err != nil {
			return nil, err
		}
	}

	f := sc.Features()
	f.SessionID = sessionID
	return f, nil
}

func (sc *SecurityContext) handleGetFeatures(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	return sc.Features(), nil
}

func (sc *SecurityContext) handleCancel(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	return nil, wire.ErrActionCancelled
}

func (sc *SecurityContext) handleLockDevice(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	sc.Lock()
	return wire.Success{}, nil
}

func (sc *SecurityContext) handleEndSession(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	sc.sessions.EndCurrentSession()
	return wire.Success{}, nil
}

func (sc *SecurityContext) handlePing(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	req := msg.(wire.Ping)
	if req.ButtonProtection {
		if err := c.Confirm(ctx, "ping", "Confirm", "ping"); err != nil {
			return nil, err
		}
	}
	return wire.Success{Message: req.Message}, nil
}

func (sc *SecurityContext) handleSetBusy(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	req := msg.(wire.SetBusy)

	cfg := sc.config()
	if cfg == nil || !cfg.Initialized {
		return nil, wire.ErrNotInitialized
	}

	if req.ExpiryMs > 0 {
		if err := sc.sessions.SetBusyDeadline(sc.nowMs() + req.ExpiryMs); err != nil {
			return nil, err
		}
	} else {
		if err := sc.sessions.Delete(session.SlotBusyDeadline); err != nil {
			return nil, err
		}
	}
	sc.setHomescreen()
	return wire.Success{}, nil
}

func (sc *SecurityContext) handleWipeDevice(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	err := c.Confirm(ctx, "confirm_wipe",
		"Wipe device",
		"Do you really want to wipe the device? All data will be lost.")
	if err != nil {
		return nil, err
	}
	if err := sc.Wipe(ctx); err != nil {
		return nil, err
	}
	return wire.Success{Message: "Device wiped"}, nil
}

func (sc *SecurityContext) handleDoPreauthorized(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	return sc.authz.DispatchPreauthorized(ctx, c)
}

func (sc *SecurityContext) handleCancelAuthorization(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	if err := sc.authz.Clear(); err != nil {
		return nil, err
	}
	return wire.Success{Message: "Authorization cancelled"}, nil
}

func (sc *SecurityContext) handleUnlockPath(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
	return sc.pathlock.UnlockPath(ctx, c, msg.(wire.UnlockPath))
}
