// Package wiretest provides a scripted wire.Link for handler tests: reads
// pop from a pre-queued host script, writes are recorded for inspection.
package wiretest

import (
	"context"
	"errors"
	"sync"

	"github.com/jmcleod/firmgate/wire"
)

// ErrScriptExhausted is returned when the device reads past the end of the
// queued host script.
var ErrScriptExhausted = errors.New("wiretest: host script exhausted")

// Link is a scripted transport double.
type Link struct {
	mu       sync.Mutex
	incoming []wire.Message
	sent     []wire.Message
}

var _ wire.Link = (*Link)(nil)

func NewLink(script ...wire.Message) *Link {
	return &Link{incoming: script}
}

// Queue appends host-to-device messages to the script.
func (l *Link) Queue(msgs ...wire.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.incoming = append(l.incoming, msgs...)
}

func (l *Link) Read(ctx context.Context) (wire.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.incoming) == 0 {
		return nil, ErrScriptExhausted
	}
	msg := l.incoming[0]
	l.incoming = l.incoming[1:]
	return msg, nil
}

func (l *Link) Write(ctx context.Context, msg wire.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, msg)
	return nil
}

// Sent returns a copy of everything the device wrote, in order.
func (l *Link) Sent() []wire.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]wire.Message, len(l.sent))
	copy(out, l.sent)
	return out
}

// LastSent returns the most recent device-to-host message, or nil.
func (l *Link) LastSent() wire.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sent) == 0 {
		return nil
	}
	return l.sent[len(l.sent)-1]
}
