// Package bridge exposes the device over HTTP for host software: one
// endpoint to acquire the transport, one to exchange messages. Each call
// delivers exactly one host-to-device message and returns the next
// device-to-host message, so mid-request suspensions (button prompts, PIN
// entry, preauthorized follow-ups) surface as ordinary responses.
package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/firmgate/device"
	"github.com/jmcleod/firmgate/wire"
)

// Bridge serves the device dispatcher over HTTP.
type Bridge struct {
	sc  *device.SecurityContext
	d   *device.Dispatcher
	log *slog.Logger

	mu   sync.Mutex
	conn *conn
}

// Option configures the Bridge.
type Option func(*Bridge)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.log = logger
	}
}

func New(sc *device.SecurityContext, opts ...Option) *Bridge {
	b := &Bridge{
		sc: sc,
		d:  device.NewDispatcher(sc),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return b
}

// conn is one acquired logical transport. The dispatcher goroutine blocks
// on toDevice between requests and pushes every outbound message, final or
// mid-request, onto fromDevice.
type conn struct {
	toDevice   chan wire.Message
	fromDevice chan wire.Message
	cancel     context.CancelFunc
}

type chanLink conn

var _ wire.Link = (*chanLink)(nil)

func (l *chanLink) Read(ctx context.Context) (wire.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-l.toDevice:
		return msg, nil
	}
}

func (l *chanLink) Write(ctx context.Context, msg wire.Message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.fromDevice <- msg:
		return nil
	}
}

// Router returns the bridge's HTTP routes.
func (b *Bridge) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(b.logRequests)
	r.Get("/enumerate", b.handleEnumerate)
	r.Post("/acquire", b.handleAcquire)
	r.Post("/release", b.handleRelease)
	r.Post("/call", b.handleCall)
	return r
}

func (b *Bridge) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		b.log.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (b *Bridge) handleEnumerate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.sc.Features())
}

// handleAcquire binds the transport, starting the dispatcher goroutine.
// Acquiring again releases the previous binding, matching a host
// reconnecting over the same physical link.
func (b *Bridge) handleAcquire(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		b.conn.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		toDevice:   make(chan wire.Message),
		fromDevice: make(chan wire.Message),
		cancel:     cancel,
	}
	b.conn = c

	go func() {
		err := b.d.Serve(ctx, wire.IfaceMain, (*chanLink)(c))
		if err != nil && ctx.Err() == nil {
			b.log.Error("dispatcher stopped", "err", err)
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{"session": "main"})
}

func (b *Bridge) handleRelease(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.cancel()
		b.conn = nil
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (b *Bridge) handleCall(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	c := b.conn
	b.mu.Unlock()
	if c == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "transport not acquired"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	msg, err := wire.Unmarshal(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	select {
	case c.toDevice <- msg:
	case <-r.Context().Done():
		return
	}

	select {
	case resp := <-c.fromDevice:
		out, err := wire.Marshal(resp)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	case <-r.Context().Done():
	}
}
