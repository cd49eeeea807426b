// Package device ties the trust core together: it owns the global lock
// state, the handler registry and its two resolution strategies, the base
// protocol handlers, and the sequential request dispatcher.
package device

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmcleod/firmgate/authz"
	"github.com/jmcleod/firmgate/devstore"
	"github.com/jmcleod/firmgate/pathlock"
	"github.com/jmcleod/firmgate/session"
	"github.com/jmcleod/firmgate/wire"
)

// Workflow is the idle screen shown when no request is in flight.
type Workflow uint8

const (
	WorkflowHome Workflow = iota
	WorkflowLock
	WorkflowBusy
)

// SecurityContext owns the process-wide mutable trust state: the lock
// flag, the active resolver strategy, the session table, and the pending
// authorization store. One instance lives for the process lifetime and is
// passed by reference into the dispatcher and all handlers. The mutex
// serializes the idle-lock timer against in-flight dispatch.
type SecurityContext struct {
	store    devstore.Store
	sessions *session.Store
	registry *wire.Registry
	authz    *authz.Store
	pathlock *pathlock.Protocol
	log      *slog.Logger

	mu         sync.Mutex
	cfg        *devstore.Config
	unlocked   bool
	resolver   resolver
	homescreen Workflow
	idle       *time.Timer

	boot  time.Time
	nowMs func() uint32
}

// Option configures a SecurityContext.
type Option func(*SecurityContext)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *SecurityContext) {
		sc.log = logger
	}
}

// WithClock overrides the monotonic millisecond clock used for the busy
// deadline. Tests use this to step time deterministically.
func WithClock(nowMs func() uint32) Option {
	return func(sc *SecurityContext) {
		sc.nowMs = nowMs
	}
}

// NewSecurityContext creates the trust core over the given configuration
// store and registers all base handlers. The initial lock state follows
// the persisted PIN flag: locked iff a PIN is configured.
func NewSecurityContext(store devstore.Store, opts ...Option) *SecurityContext {
	sc := &SecurityContext{
		store:    store,
		sessions: session.NewStore(),
		registry: wire.NewRegistry(),
		boot:     time.Now(),
	}
	sc.nowMs = func() uint32 {
		return uint32(time.Since(sc.boot) / time.Millisecond)
	}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.log == nil {
		sc.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	sc.authz = authz.NewStore(sc.sessions, sc.registry)
	sc.pathlock = pathlock.NewProtocol(sc.registry, sc.sessionSeed)
	sc.boot0()
	return sc
}

// boot0 loads the persisted configuration and selects the initial resolver
// and idle screen from it.
func (sc *SecurityContext) boot0() {
	cfg, err := sc.store.Load()
	if err != nil && !errors.Is(err, devstore.ErrNotFound) {
		sc.log.Error("loading device config", "err", err)
	}

	sc.registerHandlers()

	sc.mu.Lock()
	sc.cfg = cfg
	if cfg != nil && cfg.HasPin() {
		sc.unlocked = false
		sc.resolver = lockedResolver{sc: sc}
	} else {
		sc.unlocked = true
		sc.resolver = fullResolver{reg: sc.registry}
	}
	sc.mu.Unlock()

	sc.setHomescreen()
	sc.armIdleTimer()
}

// Sessions exposes the session store to collaborating packages and tests.
func (sc *SecurityContext) Sessions() *session.Store { return sc.sessions }

// Authz exposes the authorization store.
func (sc *SecurityContext) Authz() *authz.Store { return sc.authz }

// Registry exposes the handler registry for app-level registrations.
func (sc *SecurityContext) Registry() *wire.Registry { return sc.registry }

// PathLock exposes the path-unlock protocol.
func (sc *SecurityContext) PathLock() *pathlock.Protocol { return sc.pathlock }

// Unlocked reports the global lock state.
func (sc *SecurityContext) Unlocked() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.unlocked
}

// Homescreen reports the current idle workflow.
func (sc *SecurityContext) Homescreen() Workflow {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.homescreen
}

func (sc *SecurityContext) config() *devstore.Config {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.cfg
}

func (sc *SecurityContext) setConfig(cfg *devstore.Config) {
	sc.mu.Lock()
	sc.cfg = cfg
	sc.mu.Unlock()
}

// ReloadConfig re-reads the persisted configuration and re-arms the idle
// timer, mirroring a settings change.
func (sc *SecurityContext) ReloadConfig() error {
	cfg, err := sc.store.Load()
	if err != nil && !errors.Is(err, devstore.ErrNotFound) {
		return err
	}
	sc.setConfig(cfg)
	sc.armIdleTimer()
	return nil
}

// setHomescreen selects the idle workflow from the busy and lock state, in
// that priority order.
func (sc *SecurityContext) setHomescreen() {
	busy := sc.busyExpiryMs() > 0

	sc.mu.Lock()
	defer sc.mu.Unlock()
	switch {
	case busy:
		sc.homescreen = WorkflowBusy
	case !sc.unlocked:
		sc.homescreen = WorkflowLock
	default:
		sc.homescreen = WorkflowHome
	}
}

// busyExpiryMs returns the time left until the busy deadline, or 0 when
// the device is not busy or no session is active.
func (sc *SecurityContext) busyExpiryMs() uint32 {
	deadline, set, err := sc.sessions.BusyDeadline()
	if err != nil || !set {
		return 0
	}
	now := sc.nowMs()
	if deadline <= now {
		return 0
	}
	return deadline - now
}

// armIdleTimer starts or restarts the idle auto-lock timer from the
// persisted delay. A zero delay disables auto-lock.
func (sc *SecurityContext) armIdleTimer() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.idle != nil {
		sc.idle.Stop()
		sc.idle = nil
	}
	if sc.cfg == nil || sc.cfg.AutoLockDelayMs == 0 {
		return
	}
	delay := time.Duration(sc.cfg.AutoLockDelayMs) * time.Millisecond
	sc.idle = time.AfterFunc(delay, sc.LockIfUnlocked)
}

// touchIdle pushes the auto-lock deadline back; called once per dispatched
// request.
func (sc *SecurityContext) touchIdle() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.idle == nil || sc.cfg == nil || sc.cfg.AutoLockDelayMs == 0 {
		return
	}
	sc.idle.Reset(time.Duration(sc.cfg.AutoLockDelayMs) * time.Millisecond)
}

// Wipe factory-resets the device: persistent configuration, every session,
// and the lock state (no PIN remains, so the device ends up unlocked).
func (sc *SecurityContext) Wipe(ctx context.Context) error {
	if err := sc.store.Wipe(); err != nil {
		return err
	}
	sc.sessions.Reset()

	sc.mu.Lock()
	sc.cfg = nil
	sc.unlocked = true
	sc.resolver = fullResolver{reg: sc.registry}
	sc.mu.Unlock()

	sc.setHomescreen()
	sc.armIdleTimer()
	sc.log.InfoContext(ctx, "device wiped")
	return nil
}
