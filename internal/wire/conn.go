package wire

import (
	"io"
	"sync"
)

// Conn carries envelopes between two peers. Send and Recv block; they are
// the only suspension points of a connection loop.
type Conn interface {
	Send(e *Envelope) error
	Recv() (*Envelope, error)
	Close() error
}

// Pipe returns two connected in-memory Conns. Envelopes are encoded and
// decoded on every hop so the codec is exercised exactly as on a network
// transport. Closing either end makes Recv on both ends return io.EOF.
func Pipe() (Conn, Conn) {
	ab := make(chan []byte)
	ba := make(chan []byte)
	done := make(chan struct{})
	once := &sync.Once{}

	a := &pipeConn{in: ba, out: ab, done: done, once: once}
	b := &pipeConn{in: ab, out: ba, done: done, once: once}
	return a, b
}

type pipeConn struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

func (p *pipeConn) Send(e *Envelope) error {
	b, err := Marshal(e)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- b:
		return nil
	case <-p.done:
		return io.ErrClosedPipe
	}
}

func (p *pipeConn) Recv() (*Envelope, error) {
	select {
	case b := <-p.in:
		return Unmarshal(b)
	case <-p.done:
		return nil, io.EOF
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
