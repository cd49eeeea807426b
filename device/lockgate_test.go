package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/firmgate/devstore"
	"github.com/jmcleod/firmgate/devstore/memory"
	"github.com/jmcleod/firmgate/pin"
	"github.com/jmcleod/firmgate/wire"
	"github.com/jmcleod/firmgate/wire/wiretest"
)

const testPin = "1234"

func testConfig(t *testing.T, withPin bool) *devstore.Config {
	t.Helper()
	cfg, err := devstore.NewConfig("test device")
	require.NoError(t, err)
	if withPin {
		require.NoError(t, pin.Set(cfg, testPin))
	}
	return cfg
}

func newTestDevice(t *testing.T, cfg *devstore.Config, opts ...Option) (*SecurityContext, *Dispatcher) {
	t.Helper()
	store := memory.NewStore()
	if cfg != nil {
		require.NoError(t, store.Save(cfg))
	}
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	sc := NewSecurityContext(store, opts...)
	return sc, NewDispatcher(sc)
}

func handle(t *testing.T, d *Dispatcher, link *wiretest.Link, msg wire.Message) wire.Message {
	t.Helper()
	return d.Handle(context.Background(), wire.NewContext(wire.IfaceMain, link), msg)
}

func TestBootLockState(t *testing.T) {
	sc, _ := newTestDevice(t, testConfig(t, true))
	assert.False(t, sc.Unlocked(), "PIN-protected device boots locked")
	assert.Equal(t, WorkflowLock, sc.Homescreen())

	sc, _ = newTestDevice(t, testConfig(t, false))
	assert.True(t, sc.Unlocked(), "device without PIN boots unlocked")
	assert.Equal(t, WorkflowHome, sc.Homescreen())

	sc, _ = newTestDevice(t, nil)
	assert.True(t, sc.Unlocked(), "uninitialized device boots unlocked")
}

func TestLockedDevice_AllowListedPassesWithoutPin(t *testing.T) {
	_, d := newTestDevice(t, testConfig(t, true))

	link := wiretest.NewLink()
	resp := handle(t, d, link, wire.GetFeatures{})

	f, ok := resp.(wire.Features)
	require.True(t, ok, "GetFeatures must succeed while locked, got %#v", resp)
	assert.False(t, f.Unlocked)
	for _, sent := range link.Sent() {
		assert.NotEqual(t, wire.TypePinMatrixRequest, sent.WireType())
	}
}

func TestLockedDevice_PinGateThenUnlock(t *testing.T) {
	sc, d := newTestDevice(t, testConfig(t, true))

	link := wiretest.NewLink()
	resp := handle(t, d, link, wire.Initialize{})
	_, ok := resp.(wire.Features)
	require.True(t, ok)

	// A non-allow-listed request suspends for PIN first.
	link.Queue(wire.PinMatrixAck{Pin: testPin})
	resp = handle(t, d, link, wire.GetAddress{AddressN: []uint32{0x80000000 + 44}})

	_, ok = resp.(wire.Address)
	require.True(t, ok, "expected Address after PIN unlock, got %#v", resp)
	assert.True(t, sc.Unlocked())
	assert.Equal(t, WorkflowHome, sc.Homescreen())

	// Subsequent requests no longer prompt.
	link2 := wiretest.NewLink()
	resp = handle(t, d, link2, wire.GetAddress{AddressN: []uint32{0x80000000 + 44}})
	_, ok = resp.(wire.Address)
	require.True(t, ok)
	for _, sent := range link2.Sent() {
		assert.NotEqual(t, wire.TypePinMatrixRequest, sent.WireType())
	}
}

func TestLockedDevice_WrongPinStaysLocked(t *testing.T) {
	sc, d := newTestDevice(t, testConfig(t, true))

	link := wiretest.NewLink()
	handle(t, d, link, wire.Initialize{})

	link.Queue(wire.PinMatrixAck{Pin: "0000"})
	resp := handle(t, d, link, wire.GetAddress{AddressN: []uint32{0x80000000 + 44}})

	f, ok := resp.(wire.Failure)
	require.True(t, ok)
	assert.Equal(t, wire.CodeAuthFailed, f.Code)
	assert.False(t, sc.Unlocked(), "failed verification leaves the device locked")
}

func TestLockedDevice_AllowListCompleteness(t *testing.T) {
	// Every allow-listed type resolves without a PIN suspension; the
	// wrapped types prompt first.
	for typ := range allowedWhileLocked {
		_, d := newTestDevice(t, testConfig(t, true))

		link := wiretest.NewLink()
		if typ == wire.TypeWipeDevice {
			link.Queue(wire.ButtonAck{})
		}
		msg, err := messageOfType(typ)
		require.NoError(t, err)
		handle(t, d, link, msg)

		for _, sent := range link.Sent() {
			assert.NotEqualf(t, wire.TypePinMatrixRequest, sent.WireType(),
				"type %d must not require PIN while locked", typ)
		}
	}

	// Outside the allow-list: PIN suspension comes first.
	_, d := newTestDevice(t, testConfig(t, true))
	link := wiretest.NewLink()
	handle(t, d, link, wire.Ping{ButtonProtection: false})
	require.NotEmpty(t, link.Sent())
	assert.Equal(t, wire.TypePinMatrixRequest, link.Sent()[0].WireType())
}

func messageOfType(t wire.MessageType) (wire.Message, error) {
	switch t {
	case wire.TypeInitialize:
		return wire.Initialize{}, nil
	case wire.TypeEndSession:
		return wire.EndSession{}, nil
	case wire.TypeGetFeatures:
		return wire.GetFeatures{}, nil
	case wire.TypeCancel:
		return wire.Cancel{}, nil
	case wire.TypeLockDevice:
		return wire.LockDevice{}, nil
	case wire.TypeDoPreauthorized:
		return wire.DoPreauthorized{}, nil
	case wire.TypeWipeDevice:
		return wire.WipeDevice{}, nil
	case wire.TypeSetBusy:
		return wire.SetBusy{}, nil
	}
	return nil, fmt.Errorf("no fixture for message type %d", t)
}

func TestLock_NoOpWithoutPin(t *testing.T) {
	sc, d := newTestDevice(t, testConfig(t, false))

	resp := handle(t, d, wiretest.NewLink(), wire.LockDevice{})
	_, ok := resp.(wire.Success)
	require.True(t, ok)
	assert.True(t, sc.Unlocked(), "locking without a configured PIN is a no-op")
}

func TestLockDevice_ThenRestrictedResolution(t *testing.T) {
	sc, d := newTestDevice(t, testConfig(t, true))

	link := wiretest.NewLink(wire.PinMatrixAck{Pin: testPin})
	handle(t, d, link, wire.Initialize{})
	handle(t, d, link, wire.GetAddress{AddressN: []uint32{0x80000000 + 44}})
	require.True(t, sc.Unlocked())

	resp := handle(t, d, wiretest.NewLink(), wire.LockDevice{})
	_, ok := resp.(wire.Success)
	require.True(t, ok)
	assert.False(t, sc.Unlocked())
	assert.Equal(t, WorkflowLock, sc.Homescreen())
}

func TestIdleTimer_LocksWhenUnattended(t *testing.T) {
	cfg := testConfig(t, true)
	cfg.AutoLockDelayMs = 20
	sc, d := newTestDevice(t, cfg)

	link := wiretest.NewLink(wire.PinMatrixAck{Pin: testPin})
	handle(t, d, link, wire.Initialize{})
	handle(t, d, link, wire.GetAddress{AddressN: []uint32{0x80000000 + 44}})
	require.True(t, sc.Unlocked())

	assert.Eventually(t, func() bool { return !sc.Unlocked() },
		time.Second, 5*time.Millisecond, "idle timer should lock the device")
}

func TestWipe_ClearsEverything(t *testing.T) {
	sc, d := newTestDevice(t, testConfig(t, true))

	link := wiretest.NewLink(wire.ButtonAck{})
	resp := handle(t, d, link, wire.WipeDevice{})
	_, ok := resp.(wire.Success)
	require.True(t, ok)

	assert.True(t, sc.Unlocked(), "no PIN remains after a wipe")
	assert.Nil(t, sc.Sessions().ActiveID())

	f := sc.Features()
	assert.False(t, f.Initialized)
	assert.False(t, f.PinProtection)
}

func TestWipe_RejectedLeavesDeviceIntact(t *testing.T) {
	sc, d := newTestDevice(t, testConfig(t, true))

	link := wiretest.NewLink(wire.Cancel{})
	resp := handle(t, d, link, wire.WipeDevice{})
	f, ok := resp.(wire.Failure)
	require.True(t, ok)
	assert.Equal(t, wire.CodeActionCancelled, f.Code)
	assert.True(t, sc.Features().Initialized)
	assert.False(t, sc.Unlocked())
}
