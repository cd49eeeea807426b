package device

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmcleod/firmgate/devstore"
	"github.com/jmcleod/firmgate/session"
	"github.com/jmcleod/firmgate/wire"
)

// Dispatcher runs the sequential request loop: resolve through the lock
// gate, invoke, and turn handler errors into typed Failure responses. It
// knows nothing about the authorization or path-unlock internals.
type Dispatcher struct {
	sc  *SecurityContext
	log *slog.Logger
}

func NewDispatcher(sc *SecurityContext) *Dispatcher {
	return &Dispatcher{sc: sc, log: sc.log}
}

// Handle processes one decoded request to completion, including any
// suspensions, and returns the response to send.
func (d *Dispatcher) Handle(ctx context.Context, c *wire.Context, msg wire.Message) wire.Message {
	d.sc.touchIdle()

	h := d.sc.Resolve(c.Iface(), msg.WireType())
	if h == nil {
		return wire.Failure{Code: wire.CodeUnexpectedMessage, Message: "unexpected message"}
	}

	resp, err := h(ctx, c, msg)
	if err != nil {
		f := failureFrom(err)
		if f.Code == wire.CodeInvariant {
			// Firmware-bug signal: reported to the host like any failure,
			// but flagged loudly for diagnostics.
			d.log.Error("invariant violation", "type", msg.WireType(), "err", err)
		} else {
			d.log.Warn("request failed", "type", msg.WireType(), "err", err)
		}
		return f
	}
	return resp
}

// Serve reads requests from the link one at a time until the link or
// context fails. One request is fully handled before the next is read.
func (d *Dispatcher) Serve(ctx context.Context, iface wire.Interface, link wire.Link) error {
	c := wire.NewContext(iface, link)
	for {
		msg, err := link.Read(ctx)
		if err != nil {
			return err
		}
		resp := d.Handle(ctx, c, msg)
		if resp == nil {
			continue
		}
		if err := link.Write(ctx, resp); err != nil {
			return err
		}
	}
}

// failureFrom maps package sentinels onto the typed failure surface
// reported to the host.
func failureFrom(err error) wire.Failure {
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return wire.Failure{Code: wire.CodeNoActiveSession, Message: err.Error()}
	case errors.Is(err, session.ErrCapacity):
		return wire.Failure{Code: wire.CodeCapacity, Message: err.Error()}
	case errors.Is(err, session.ErrSeedNotSet):
		return wire.Failure{Code: wire.CodePrecondition, Message: "seed unavailable"}
	case errors.Is(err, session.ErrSeedSet), errors.Is(err, session.ErrDerivationFixed):
		return wire.Failure{Code: wire.CodeInvariant, Message: err.Error()}
	case errors.Is(err, devstore.ErrNotFound):
		return wire.Failure{Code: wire.CodeNotInitialized, Message: "device is not initialized"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return wire.Failure{Code: wire.CodeActionCancelled, Message: "action cancelled"}
	}
	return wire.FailureFrom(err)
}
