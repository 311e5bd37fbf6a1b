package session

import (
	"context"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

var (
	keysOnce   sync.Once
	clientKey  *rsa.PrivateKey
	serverKey  *rsa.PrivateKey
	keysErr    error
	fakeAuthTk = protocol.SealedToken{Tag: protocol.TagAuthToken, Ciphertext: []byte("opaque"), IV: []byte("iv")}
	fakeHostTk = protocol.SealedToken{Tag: protocol.TagHostToken, Ciphertext: []byte("opaque"), IV: []byte("iv")}
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		clientKey, keysErr = cryptox.GenerateKeyPair()
		if keysErr == nil {
			serverKey, keysErr = cryptox.GenerateKeyPair()
		}
	})
	require.NoError(t, keysErr)
	return clientKey, serverKey
}

func pipeDialer(conn wire.Conn) Dialer {
	return func(context.Context) (wire.Conn, error) { return conn, nil }
}

type verifierFunc func(ctx context.Context, pub *rsa.PublicKey) error

func (f verifierFunc) VerifyHost(ctx context.Context, pub *rsa.PublicKey) error { return f(ctx, pub) }

func trustAll() HostVerifier {
	return verifierFunc(func(context.Context, *rsa.PublicKey) error { return nil })
}

// echo answers one encrypted request with OK{tag of the request}.
func echo(t *testing.T, conn wire.Conn, key []byte, tok protocol.SealedToken, x *Exchange) {
	e, err := conn.Recv()
	if !assert.NoError(t, err) {
		return
	}
	m, err := protocol.DecodeEncrypted(e)
	if !assert.NoError(t, err) {
		return
	}
	inner, err := x.Open(key, m)
	if !assert.NoError(t, err) {
		return
	}
	out, err := x.Seal(key, protocol.OK(wire.String(inner.Tag)), tok)
	if !assert.NoError(t, err) {
		return
	}
	assert.NoError(t, conn.Send(out))
}

func TestPasswordSession_HandshakeAndCall(t *testing.T) {
	client, server := wire.Pipe()
	defer server.Close()

	password := []byte("pw1")
	salt := cryptox.GenerateSalt()
	userKey := cryptox.DeriveKey(password, salt)
	sk := cryptox.GenerateKey()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e, err := server.Recv()
		if !assert.NoError(t, err) {
			return
		}
		req, err := protocol.DecodeAuthSessionRequest(e)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "alice", req.Username)

		reply, err := GrantAuthSession(userKey, salt, sk, fakeAuthTk)
		if !assert.NoError(t, err) {
			return
		}
		assert.NoError(t, server.Send(reply))

		x := NewServerExchange(sk)
		echo(t, server, sk, fakeAuthTk, &x)
		echo(t, server, sk, fakeAuthTk, &x)

		e, err = server.Recv()
		if assert.NoError(t, err) {
			assert.Equal(t, protocol.TagDisconnect, e.Tag)
		}
	}()

	ctx := context.Background()
	s := NewPasswordSession(pipeDialer(client), "alice", password)
	require.NoError(t, s.Connect(ctx))

	for _, tag := range []string{"LMEMBERS", "CGROUP"} {
		resp, err := Call(ctx, s, wire.New(tag))
		require.NoError(t, err)
		got, err := resp.StringAt(0)
		require.NoError(t, err)
		assert.Equal(t, tag, got)
	}
	require.NoError(t, s.Disconnect())
	<-done
}

func TestPasswordSession_WrongPassword(t *testing.T) {
	client, server := wire.Pipe()
	defer server.Close()

	salt := cryptox.GenerateSalt()
	userKey := cryptox.DeriveKey([]byte("right"), salt)

	go func() {
		if _, err := server.Recv(); err != nil {
			return
		}
		reply, err := GrantAuthSession(userKey, salt, cryptox.GenerateKey(), fakeAuthTk)
		if err == nil {
			_ = server.Send(reply)
		}
	}()

	s := NewPasswordSession(pipeDialer(client), "alice", []byte("wrong"))
	assert.Error(t, s.Connect(context.Background()))
}

func TestPasswordSession_SignalDuringHandshake(t *testing.T) {
	client, server := wire.Pipe()
	defer server.Close()

	go func() {
		if _, err := server.Recv(); err == nil {
			_ = server.Send(protocol.Signal(protocol.FailBadRequester))
		}
	}()

	s := NewPasswordSession(pipeDialer(client), "mallory", []byte("x"))
	err := s.Connect(context.Background())
	assert.True(t, protocol.IsFailure(err, protocol.FailBadRequester))
}

func TestSession_NotConnected(t *testing.T) {
	s := NewPasswordSession(nil, "alice", nil)
	assert.ErrorIs(t, s.SendEncrypted(context.Background(), wire.New("X")), ErrNotConnected)
	_, err := s.ReceiveEncrypted(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, s.Disconnect())
}

func TestExchange_ReplayAndTamper(t *testing.T) {
	key := cryptox.GenerateKey()
	sender, receiver := NewClientExchange(key), NewServerExchange(key)

	seal := func() protocol.Encrypted {
		e, err := sender.Seal(key, wire.New("GETCHANNELS"), fakeHostTk)
		require.NoError(t, err)
		m, err := protocol.DecodeEncrypted(e)
		require.NoError(t, err)
		return m
	}

	first := seal()
	_, err := receiver.Open(key, first)
	require.NoError(t, err)

	_, err = receiver.Open(key, first)
	assert.ErrorIs(t, err, ErrReplay)

	tests := []struct {
		name   string
		tamper func(*protocol.Encrypted)
	}{
		{"ciphertext", func(m *protocol.Encrypted) { m.Ciphertext[0] ^= 1 }},
		{"iv", func(m *protocol.Encrypted) { m.IV[0] ^= 1 }},
		{"token", func(m *protocol.Encrypted) { m.Token.Ciphertext = []byte("other") }},
		{"sequence", func(m *protocol.Encrypted) { m.Seq += 10 }},
		{"mac stripped", func(m *protocol.Encrypted) { m.MAC = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := seal()
			tt.tamper(&m)
			_, err := receiver.Open(key, m)
			assert.ErrorIs(t, err, cryptox.ErrDecrypt)
		})
	}

	_, err = receiver.Open(cryptox.GenerateKey(), seal())
	assert.ErrorIs(t, err, ErrForeignKey)

	// Rejected messages do not advance the receiver.
	_, err = receiver.Open(key, seal())
	assert.NoError(t, err)
}

func TestExchange_BoundToItsKey(t *testing.T) {
	key, other := cryptox.GenerateKey(), cryptox.GenerateKey()

	var unbound Exchange
	_, err := unbound.Seal(key, wire.New("LMEMBERS"), fakeAuthTk)
	assert.ErrorIs(t, err, ErrForeignKey)

	client := NewClientExchange(other)
	e, err := client.Seal(other, wire.New("LMEMBERS"), fakeAuthTk)
	require.NoError(t, err)
	m, err := protocol.DecodeEncrypted(e)
	require.NoError(t, err)

	_, err = unbound.Open(other, m)
	assert.ErrorIs(t, err, ErrForeignKey, "no handshake on this connection")

	server := NewServerExchange(key)
	_, err = server.Open(other, m)
	assert.ErrorIs(t, err, ErrForeignKey, "key from another connection")

	fresh := NewServerExchange(other)
	_, err = fresh.Open(other, m)
	assert.NoError(t, err)
}

func TestExchange_ReflectionFails(t *testing.T) {
	key := cryptox.GenerateKey()
	client, server := NewClientExchange(key), NewServerExchange(key)

	e, err := server.Seal(key, protocol.OK(), fakeAuthTk)
	require.NoError(t, err)
	reply, err := protocol.DecodeEncrypted(e)
	require.NoError(t, err)

	_, err = server.Open(key, reply)
	assert.ErrorIs(t, err, cryptox.ErrDecrypt, "a reply is not a valid request")

	e, err = client.Seal(key, wire.New("LMEMBERS"), fakeAuthTk)
	require.NoError(t, err)
	req, err := protocol.DecodeEncrypted(e)
	require.NoError(t, err)

	freshClient := NewClientExchange(key)
	_, err = freshClient.Open(key, req)
	assert.ErrorIs(t, err, cryptox.ErrDecrypt, "a request is not a valid reply")

	_, err = client.Open(key, reply)
	assert.NoError(t, err)
}

func TestHostSession_HandshakeWithChallenge(t *testing.T) {
	priv, srv := testKeys(t)
	client, server := wire.Pipe()
	defer server.Close()

	sk := cryptox.GenerateKey()
	const bits = 8

	go func() {
		e, err := server.Recv()
		if !assert.NoError(t, err) {
			return
		}
		req, err := protocol.DecodeHostSessionRequest(e)
		if !assert.NoError(t, err) {
			return
		}
		reply, err := GrantHostSession(req.PublicKey, &srv.PublicKey, sk, fakeHostTk)
		if !assert.NoError(t, err) {
			return
		}
		if !assert.NoError(t, server.Send(reply)) {
			return
		}

		e, err = server.Recv()
		if !assert.NoError(t, err) {
			return
		}
		challenge := cryptox.GenerateChallenge()
		if !assert.NoError(t, server.Send(protocol.Challenge{Challenge: challenge, Bits: bits}.Envelope())) {
			return
		}
		ans, err := server.Recv()
		if !assert.NoError(t, err) {
			return
		}
		a, err := protocol.DecodeChallengeAnswer(ans)
		if !assert.NoError(t, err) {
			return
		}
		assert.True(t, cryptox.CheckProofOfWork(challenge, a.Nonce, bits))

		x := NewServerExchange(sk)
		m, err := protocol.DecodeEncrypted(e)
		if !assert.NoError(t, err) {
			return
		}
		inner, err := x.Open(sk, m)
		if !assert.NoError(t, err) {
			return
		}
		out, err := x.Seal(sk, protocol.OK(wire.String(inner.Tag)), fakeHostTk)
		if assert.NoError(t, err) {
			assert.NoError(t, server.Send(out))
		}
	}()

	var seen *rsa.PublicKey
	verifier := verifierFunc(func(_ context.Context, pub *rsa.PublicKey) error {
		seen = pub
		return nil
	})

	ctx := context.Background()
	s := NewHostSession(pipeDialer(client), priv, verifier)
	require.NoError(t, s.Connect(ctx))
	assert.True(t, srv.PublicKey.Equal(seen))
	assert.True(t, srv.PublicKey.Equal(s.ServerKey()))
	assert.Equal(t, fakeHostTk, s.HostToken())

	resp, err := Call(ctx, s, wire.New("GETCHANNELS"))
	require.NoError(t, err)
	got, err := resp.StringAt(0)
	require.NoError(t, err)
	assert.Equal(t, "GETCHANNELS", got)
}

func TestHostSession_UntrustedHostAborts(t *testing.T) {
	priv, srv := testKeys(t)
	client, server := wire.Pipe()
	defer server.Close()

	go func() {
		e, err := server.Recv()
		if err != nil {
			return
		}
		req, err := protocol.DecodeHostSessionRequest(e)
		if err != nil {
			return
		}
		reply, err := GrantHostSession(req.PublicKey, &srv.PublicKey, cryptox.GenerateKey(), fakeHostTk)
		if err == nil {
			_ = server.Send(reply)
		}
		_, _ = server.Recv()
	}()

	pinned := errors.New("fingerprint mismatch")
	s := NewHostSession(pipeDialer(client), priv, verifierFunc(func(context.Context, *rsa.PublicKey) error { return pinned }))
	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrUntrustedHost)
	assert.ErrorIs(t, err, pinned)
	assert.ErrorIs(t, s.SendEncrypted(context.Background(), wire.New("X")), ErrNotConnected)
}

func TestHostSession_RefusesHardChallenge(t *testing.T) {
	priv, srv := testKeys(t)
	client, server := wire.Pipe()
	defer server.Close()

	go func() {
		e, err := server.Recv()
		if err != nil {
			return
		}
		req, _ := protocol.DecodeHostSessionRequest(e)
		reply, err := GrantHostSession(req.PublicKey, &srv.PublicKey, cryptox.GenerateKey(), fakeHostTk)
		if err != nil || server.Send(reply) != nil {
			return
		}
		if _, err := server.Recv(); err != nil {
			return
		}
		_ = server.Send(protocol.Challenge{Challenge: cryptox.GenerateChallenge(), Bits: MaxChallengeBits + 1}.Envelope())
	}()

	ctx := context.Background()
	s := NewHostSession(pipeDialer(client), priv, trustAll())
	require.NoError(t, s.Connect(ctx))
	_, err := Call(ctx, s, wire.New("GETCHANNELS"))
	assert.ErrorIs(t, err, ErrChallengeTooHard)
}

func TestHostSession_ClearSignalAfterChallenge(t *testing.T) {
	priv, srv := testKeys(t)
	client, server := wire.Pipe()
	defer server.Close()

	go func() {
		e, err := server.Recv()
		if err != nil {
			return
		}
		req, _ := protocol.DecodeHostSessionRequest(e)
		reply, err := GrantHostSession(req.PublicKey, &srv.PublicKey, cryptox.GenerateKey(), fakeHostTk)
		if err != nil || server.Send(reply) != nil {
			return
		}
		if _, err := server.Recv(); err != nil {
			return
		}
		_ = server.Send(protocol.Challenge{Challenge: cryptox.GenerateChallenge(), Bits: 1}.Envelope())
		if _, err := server.Recv(); err != nil {
			return
		}
		_ = server.Send(protocol.Signal(protocol.FailBadHash))
	}()

	ctx := context.Background()
	s := NewHostSession(pipeDialer(client), priv, trustAll())
	require.NoError(t, s.Connect(ctx))
	_, err := Call(ctx, s, wire.New("GETCHANNELS"))
	assert.True(t, protocol.IsFailure(err, protocol.FailBadHash))
}
