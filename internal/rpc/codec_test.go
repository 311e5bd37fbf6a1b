package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"

	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

func TestCodec_Registered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())
}

func TestCodec_RoundTrip(t *testing.T) {
	in := wire.New("TOKEN", wire.String("alice"), wire.Strings([]string{"G1", "G2"}), wire.Bytes([]byte{9}))
	in.SetSeq(3)

	b, err := Codec{}.Marshal(in)
	require.NoError(t, err)

	out := new(wire.Envelope)
	require.NoError(t, Codec{}.Unmarshal(b, out))
	assert.True(t, wire.Equal(in, out))
}

func TestCodec_RejectsOtherTypes(t *testing.T) {
	_, err := Codec{}.Marshal("text")
	assert.Error(t, err)

	var s string
	assert.Error(t, Codec{}.Unmarshal([]byte{}, &s))

	assert.Error(t, Codec{}.Unmarshal([]byte{0xff, 0xff}, new(wire.Envelope)))
}
