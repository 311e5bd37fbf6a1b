package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
)

func newSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer(cryptox.GenerateKey())
	require.NoError(t, err)
	return s
}

func TestAuthToken_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newSealer(t)
	sk := cryptox.GenerateKey()

	tok, err := s.SealAuthToken("alice", sk)
	require.NoError(t, err)

	user, got, err := s.OpenAuthToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, sk, got)
}

func TestHostToken_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newSealer(t)
	sk := cryptox.GenerateKey()

	tok, err := s.SealHostToken(sk)
	require.NoError(t, err)

	got, err := s.OpenHostToken(tok)
	require.NoError(t, err)
	assert.Equal(t, sk, got)
}

func TestTokens_FreshCiphertextEachTime(t *testing.T) {
	t.Parallel()

	s := newSealer(t)
	sk := cryptox.GenerateKey()

	a, err := s.SealHostToken(sk)
	require.NoError(t, err)
	b, err := s.SealHostToken(sk)
	require.NoError(t, err)
	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestTokens_KindsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	s := newSealer(t)
	sk := cryptox.GenerateKey()

	host, err := s.SealHostToken(sk)
	require.NoError(t, err)
	_, _, err = s.OpenAuthToken(host)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	// Same bytes relabelled still fail the audience check.
	host.Tag = "AUTHTOKEN"
	_, _, err = s.OpenAuthToken(host)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestTokens_RejectForeignOrTampered(t *testing.T) {
	t.Parallel()

	s := newSealer(t)
	other := newSealer(t)

	tok, err := s.SealAuthToken("alice", cryptox.GenerateKey())
	require.NoError(t, err)

	_, _, err = other.OpenAuthToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	tok.Ciphertext[len(tok.Ciphertext)-20] ^= 0x01
	_, _, err = s.OpenAuthToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = s.OpenHostToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
