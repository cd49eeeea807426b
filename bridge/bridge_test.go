package bridge

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/firmgate/device"
	"github.com/jmcleod/firmgate/devstore"
	"github.com/jmcleod/firmgate/devstore/memory"
	"github.com/jmcleod/firmgate/pin"
	"github.com/jmcleod/firmgate/wire"
)

func newTestBridge(t *testing.T, withPin bool) *httptest.Server {
	t.Helper()

	store := memory.NewStore()
	cfg, err := devstore.NewConfig("bridge test")
	require.NoError(t, err)
	if withPin {
		require.NoError(t, pin.Set(cfg, "1234"))
	}
	require.NoError(t, store.Save(cfg))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sc := device.NewSecurityContext(store, device.WithLogger(logger))
	b := New(sc, WithLogger(logger))

	srv := httptest.NewServer(b.Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func call(t *testing.T, srv *httptest.Server, msg wire.Message) wire.Message {
	t.Helper()
	body, err := wire.Marshal(msg)
	require.NoError(t, err)

	resp := post(t, srv, "/call", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out, err := wire.Unmarshal(data)
	require.NoError(t, err)
	return out
}

func TestCall_RequiresAcquire(t *testing.T) {
	srv := newTestBridge(t, false)

	body, err := wire.Marshal(wire.Initialize{})
	require.NoError(t, err)
	resp := post(t, srv, "/call", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCall_InitializeRoundTrip(t *testing.T) {
	srv := newTestBridge(t, false)

	resp := post(t, srv, "/acquire", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := call(t, srv, wire.Initialize{})
	f, ok := out.(wire.Features)
	require.True(t, ok, "expected Features, got %#v", out)
	assert.True(t, f.Initialized)
	assert.Len(t, f.SessionID, 32)
}

func TestCall_SuspensionSurfacesAsResponse(t *testing.T) {
	srv := newTestBridge(t, true)

	post(t, srv, "/acquire", nil)
	call(t, srv, wire.Initialize{})

	// A gated request suspends: the PIN prompt arrives as the response to
	// this call, the ack goes out as the next call.
	out := call(t, srv, wire.GetAddress{AddressN: []uint32{0x80000000 + 44}})
	require.Equal(t, wire.TypePinMatrixRequest, out.WireType())

	out = call(t, srv, wire.PinMatrixAck{Pin: "1234"})
	_, ok := out.(wire.Address)
	require.True(t, ok, "expected Address after PIN ack, got %#v", out)
}

func TestCall_MalformedEnvelope(t *testing.T) {
	srv := newTestBridge(t, false)
	post(t, srv, "/acquire", nil)

	resp := post(t, srv, "/call", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnumerate(t *testing.T) {
	srv := newTestBridge(t, false)

	resp, err := http.Get(srv.URL + "/enumerate")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRelease_DropsTransport(t *testing.T) {
	srv := newTestBridge(t, false)

	post(t, srv, "/acquire", nil)
	call(t, srv, wire.Initialize{})

	resp := post(t, srv, "/release", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := wire.Marshal(wire.GetFeatures{})
	require.NoError(t, err)
	resp = post(t, srv, "/call", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReacquire_ReplacesTransport(t *testing.T) {
	srv := newTestBridge(t, false)

	post(t, srv, "/acquire", nil)
	call(t, srv, wire.Initialize{})

	// A second acquire cancels the first binding and starts fresh.
	resp := post(t, srv, "/acquire", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := call(t, srv, wire.GetFeatures{})
	_, ok := out.(wire.Features)
	assert.True(t, ok)
}
