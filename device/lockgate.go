package device

import (
	"context"

	"github.com/jmcleod/firmgate/pin"
	"github.com/jmcleod/firmgate/wire"
)

// allowedWhileLocked is the fixed set of message types that resolve
// without PIN entry while the device is locked: session bootstrap, feature
// query, cancel, lock, preauthorized dispatch, wipe, busy and session end.
var allowedWhileLocked = map[wire.MessageType]bool{
	wire.TypeInitialize:      true,
	wire.TypeEndSession:      true,
	wire.TypeGetFeatures:     true,
	wire.TypeCancel:          true,
	wire.TypeLockDevice:      true,
	wire.TypeDoPreauthorized: true,
	wire.TypeWipeDevice:      true,
	wire.TypeSetBusy:         true,
}

// resolver is the handler-resolution strategy selected by the lock state.
type resolver interface {
	resolve(iface wire.Interface, t wire.MessageType) wire.Handler
}

// fullResolver delegates straight to the registry; installed while the
// device is unlocked.
type fullResolver struct {
	reg *wire.Registry
}

func (r fullResolver) resolve(iface wire.Interface, t wire.MessageType) wire.Handler {
	return r.reg.Find(iface, t)
}

// lockedResolver is installed while the device is PIN-locked. Allow-listed
// types pass through; everything else is wrapped so that invocation first
// unlocks the device (suspending on PIN entry) and only then runs the
// original handler.
type lockedResolver struct {
	sc *SecurityContext
}

func (r lockedResolver) resolve(iface wire.Interface, t wire.MessageType) wire.Handler {
	orig := r.sc.registry.Find(iface, t)
	if orig == nil {
		return nil
	}
	if debugBypass(iface) {
		return orig
	}
	if allowedWhileLocked[t] {
		return orig
	}
	return func(ctx context.Context, c *wire.Context, msg wire.Message) (wire.Message, error) {
		if err := r.sc.Unlock(ctx, c); err != nil {
			return nil, err
		}
		return orig(ctx, c, msg)
	}
}

// Resolve returns the handler for an inbound message under the current
// lock state, or nil if no handler is registered.
func (sc *SecurityContext) Resolve(iface wire.Interface, t wire.MessageType) wire.Handler {
	sc.mu.Lock()
	r := sc.resolver
	sc.mu.Unlock()
	return r.resolve(iface, t)
}

// Lock transitions to the locked state, switches resolution to the
// restricted strategy, and installs the lock idle screen. No-op when PIN
// protection was never configured.
func (sc *SecurityContext) Lock() {
	cfg := sc.config()
	if cfg == nil || !cfg.HasPin() {
		return
	}

	sc.mu.Lock()
	sc.unlocked = false
	sc.resolver = lockedResolver{sc: sc}
	sc.mu.Unlock()

	sc.setHomescreen()
	sc.log.Info("device locked")
}

// LockIfUnlocked is the idle timer's callback.
func (sc *SecurityContext) LockIfUnlocked() {
	if sc.Unlocked() {
		sc.Lock()
	}
}

// Unlock ensures the device is unlocked, suspending on PIN entry when it
// is not. A failed verification surfaces as an authentication failure and
// leaves the lock state unchanged. On success the full resolver is
// restored, the default idle workflow override is cleared, and the idle
// timer restarts.
func (sc *SecurityContext) Unlock(ctx context.Context, c *wire.Context) error {
	if !sc.Unlocked() {
		cfg := sc.config()
		if cfg == nil || !cfg.HasPin() {
			// Locked without a PIN cannot happen outside of a wipe race;
			// fall through and restore full resolution.
		} else {
			entered, err := c.PromptPin(ctx)
			if err != nil {
				return err
			}
			if err := pin.Verify(cfg, entered); err != nil {
				sc.log.Warn("PIN verification failed")
				return wire.ErrPinInvalid
			}
		}
	}

	sc.mu.Lock()
	sc.unlocked = true
	sc.resolver = fullResolver{reg: sc.registry}
	sc.mu.Unlock()

	sc.setHomescreen()
	sc.armIdleTimer()
	return nil
}
