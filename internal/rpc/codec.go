// Package rpc carries wire envelopes over a gRPC bidirectional stream. One
// stream is one connection; the envelope codec replaces protobuf messages
// so no generated code is involved.
package rpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// CodecName is the gRPC content subtype of envelope frames.
const CodecName = "envelope"

// Codec encodes *wire.Envelope values with the wire codec.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	e, ok := v.(*wire.Envelope)
	if !ok {
		return nil, fmt.Errorf("envelope codec: cannot marshal %T", v)
	}
	return wire.Marshal(e)
}

func (Codec) Unmarshal(data []byte, v any) error {
	e, ok := v.(*wire.Envelope)
	if !ok {
		return fmt.Errorf("envelope codec: cannot unmarshal into %T", v)
	}
	decoded, err := wire.Unmarshal(data)
	if err != nil {
		return err
	}
	*e = *decoded
	return nil
}

func (Codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(Codec{})
}
