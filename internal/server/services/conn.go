// Package services holds the per-connection request handlers of the
// authentication service and of a message service. Each handler runs a
// blocking read, dispatch and write loop over one wire.Conn until the peer
// disconnects or the transport fails. Per-request failures become signals on
// the wire and never end the connection.
package services

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// Handler serves one accepted connection.
type Handler interface {
	Serve(ctx context.Context, conn wire.Conn, peer string) error
	// Name labels logs and metrics.
	Name() string
}

// errDisconnect ends a connection loop cleanly.
var errDisconnect = errors.New("peer disconnected")

// recv reads the next envelope, folding a DISCONNECT or a closed stream into
// errDisconnect.
func recv(ctx context.Context, conn wire.Conn) (*wire.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := conn.Recv()
	if errors.Is(err, io.EOF) {
		return nil, errDisconnect
	}
	if err != nil {
		return nil, err
	}
	if e.Tag == protocol.TagDisconnect {
		return nil, errDisconnect
	}
	return e, nil
}

// finish maps the end of a loop to Serve's result.
func finish(err error) error {
	if errors.Is(err, errDisconnect) {
		return nil
	}
	return err
}

func replyTag(e *wire.Envelope) string {
	if e == nil {
		return ""
	}
	return e.Tag
}
