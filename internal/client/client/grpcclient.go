package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophgroups/internal/rpc"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// GRPCTransport dials Connect streams to one service address.
type GRPCTransport struct {
	endpointURL string
	conn        *grpc.ClientConn
}

func NewGRPCTransport(endpointURL string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	conn, err := rpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCTransport{endpointURL: endpointURL, conn: conn}, nil
}

// Dial opens a new stream; it satisfies session.Dialer. The stream lives
// until the returned Conn is closed or ctx is done.
func (t *GRPCTransport) Dial(ctx context.Context) (wire.Conn, error) {
	conn, err := rpc.Open(ctx, t.conn)
	if err != nil {
		return nil, mapError(err)
	}
	return &mappedConn{Conn: conn}, nil
}

func (t *GRPCTransport) Close() error {
	return t.conn.Close()
}

// mappedConn reports transport outages as ErrUnavailable.
type mappedConn struct {
	wire.Conn
}

func (c *mappedConn) Send(e *wire.Envelope) error {
	return mapError(c.Conn.Send(e))
}

func (c *mappedConn) Recv() (*wire.Envelope, error) {
	e, err := c.Conn.Recv()
	return e, mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("rate limited: %w", err)
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
