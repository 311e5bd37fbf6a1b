package rpc

import (
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

type msgStream interface {
	SendMsg(m any) error
	RecvMsg(m any) error
}

type streamConn struct {
	stream msgStream
	close  func() error
}

// ServerConn wraps the server side of a Connect stream. Close is a no-op;
// the stream ends when the handler returns.
func ServerConn(stream grpc.ServerStream) wire.Conn {
	return &streamConn{stream: stream, close: func() error { return nil }}
}

func (c *streamConn) Send(e *wire.Envelope) error {
	return c.stream.SendMsg(e)
}

// Recv returns io.EOF when the peer ends the stream, including by
// cancellation.
func (c *streamConn) Recv() (*wire.Envelope, error) {
	e := new(wire.Envelope)
	if err := c.stream.RecvMsg(e); err != nil {
		if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
			return nil, io.EOF
		}
		return nil, err
	}
	return e, nil
}

func (c *streamConn) Close() error {
	return c.close()
}
