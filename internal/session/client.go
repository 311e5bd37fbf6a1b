package session

import (
	"context"

	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// Session is the client side of a confidential channel.
type Session interface {
	Connect(ctx context.Context) error
	SendEncrypted(ctx context.Context, req *wire.Envelope) error
	ReceiveEncrypted(ctx context.Context) (*wire.Envelope, error)
	Disconnect() error
}

// Dialer opens the raw connection a session runs over.
type Dialer func(ctx context.Context) (wire.Conn, error)

// Call sends req and returns the decrypted reply. A FAIL-* or ERROR-* reply
// is returned as a *protocol.SignalError.
func Call(ctx context.Context, s Session, req *wire.Envelope) (*wire.Envelope, error) {
	if err := s.SendEncrypted(ctx, req); err != nil {
		return nil, err
	}
	resp, err := s.ReceiveEncrypted(ctx)
	if err != nil {
		return nil, err
	}
	if err := protocol.CheckOK(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// base holds what both client variants share once the handshake is done.
type base struct {
	dial  Dialer
	conn  wire.Conn
	key   []byte
	token protocol.SealedToken
	x     Exchange
}

// bind records the session key and token agreed by the handshake.
func (b *base) bind(key []byte, tok protocol.SealedToken) {
	b.key = key
	b.token = tok
	b.x = NewClientExchange(key)
}

func (b *base) open(ctx context.Context) error {
	if b.conn != nil {
		_ = b.conn.Close()
	}
	conn, err := b.dial(ctx)
	if err != nil {
		return err
	}
	b.conn = conn
	b.x = Exchange{}
	b.key = nil
	return nil
}

// roundTrip sends a clear handshake envelope and reads the reply.
func (b *base) roundTrip(req *wire.Envelope) (*wire.Envelope, error) {
	if err := b.conn.Send(req); err != nil {
		return nil, err
	}
	resp, err := b.conn.Recv()
	if err != nil {
		return nil, err
	}
	if err := protocol.CheckOK(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (b *base) SendEncrypted(ctx context.Context, req *wire.Envelope) error {
	if b.key == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := b.x.Seal(b.key, req, b.token)
	if err != nil {
		return err
	}
	return b.conn.Send(msg)
}

// receive reads one reply. Clear signals are returned as errors; encrypted
// replies are verified and decrypted.
func (b *base) receive(e *wire.Envelope) (*wire.Envelope, error) {
	if protocol.IsSignal(e.Tag) {
		return nil, &protocol.SignalError{Signal: e.Tag}
	}
	m, err := protocol.DecodeEncrypted(e)
	if err != nil {
		return nil, err
	}
	return b.x.Open(b.key, m)
}

func (b *base) Disconnect() error {
	if b.conn == nil {
		return nil
	}
	_ = b.conn.Send(protocol.Disconnect())
	err := b.conn.Close()
	b.conn = nil
	b.key = nil
	b.x = Exchange{}
	return err
}
