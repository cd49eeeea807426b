package wire

import "context"

// Link is the transport seen by a single request: a way to push a message
// to the host and block for the next one. Implementations are provided by
// the bridge (HTTP) and by test doubles.
type Link interface {
	Read(ctx context.Context) (Message, error)
	Write(ctx context.Context, msg Message) error
}

// Context carries the per-request wire state handed to every handler: the
// originating interface, the transport link for mid-request exchanges, and
// any supplemental message attached by a dispatching handler
// (DoPreauthorized, UnlockPath).
type Context struct {
	iface Interface
	link  Link
	extra any
}

func NewContext(iface Interface, link Link) *Context {
	return &Context{iface: iface, link: link}
}

func (c *Context) Iface() Interface { return c.iface }

// Extra returns the supplemental context attached by the dispatching
// handler (an authorization payload, the original unlock request), or nil
// when the request was sent directly.
func (c *Context) Extra() any { return c.extra }

// WithExtra returns a derived context carrying supplemental context for
// the next handler in a re-dispatch chain.
func (c *Context) WithExtra(extra any) *Context {
	return &Context{iface: c.iface, link: c.link, extra: extra}
}

// CallAny sends req and suspends until the host answers with a message
// whose type is in accept. A Cancel aborts with ErrActionCancelled; any
// other type outside the accept set fails with ErrUnexpectedMessage without
// consuming further state.
func (c *Context) CallAny(ctx context.Context, req Message, accept ...MessageType) (Message, error) {
	if err := c.link.Write(ctx, req); err != nil {
		return nil, err
	}
	resp, err := c.link.Read(ctx)
	if err != nil {
		return nil, err
	}
	if resp.WireType() == TypeCancel {
		return nil, ErrActionCancelled
	}
	for _, t := range accept {
		if resp.WireType() == t {
			return resp, nil
		}
	}
	return nil, Errorf(CodeUnexpectedMessage, "unexpected message type %d", resp.WireType())
}

// Confirm suspends until the user approves or rejects the described action
// on the host side. Rejection surfaces as ErrActionCancelled.
func (c *Context) Confirm(ctx context.Context, name, title, description string) error {
	req := ButtonRequest{Name: name, Title: title, Description: description}
	_, err := c.CallAny(ctx, req, TypeButtonAck)
	return err
}

// PromptPin suspends until the host supplies the user's PIN entry.
func (c *Context) PromptPin(ctx context.Context) (string, error) {
	resp, err := c.CallAny(ctx, PinMatrixRequest{}, TypePinMatrixAck)
	if err != nil {
		return "", err
	}
	ack := resp.(PinMatrixAck)
	return ack.Pin, nil
}

// PromptPassphrase suspends until the host supplies the passphrase used
// for seed derivation.
func (c *Context) PromptPassphrase(ctx context.Context) (string, error) {
	resp, err := c.CallAny(ctx, PassphraseRequest{}, TypePassphraseAck)
	if err != nil {
		return "", err
	}
	ack := resp.(PassphraseAck)
	return ack.Passphrase, nil
}
