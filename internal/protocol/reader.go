package protocol

import (
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// fields reads positional fields and keeps the first error, so decoders can
// read a whole schema and check once.
type fields struct {
	e   *wire.Envelope
	err error
}

func read(e *wire.Envelope, tag string, n int) *fields {
	return &fields{e: e, err: expect(e, tag, n)}
}

func (f *fields) str(i int) string {
	if f.err != nil {
		return ""
	}
	s, err := f.e.StringAt(i)
	f.err = err
	return s
}

func (f *fields) bytes(i int) []byte {
	if f.err != nil {
		return nil
	}
	b, err := f.e.BytesAt(i)
	f.err = err
	return b
}

func (f *fields) int(i int) int {
	if f.err != nil {
		return 0
	}
	n, err := f.e.IntAt(i)
	f.err = err
	return int(n)
}

func (f *fields) strings(i int) []string {
	if f.err != nil {
		return nil
	}
	l, err := f.e.StringsAt(i)
	f.err = err
	return l
}

func (f *fields) nested(i int, tag string) *wire.Envelope {
	if f.err != nil {
		return nil
	}
	inner, err := f.e.NestedTagged(i, tag)
	f.err = err
	return inner
}

func (f *fields) any(i int) *wire.Envelope {
	if f.err != nil {
		return nil
	}
	inner, err := f.e.EnvelopeAt(i)
	f.err = err
	return inner
}
