package services

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/logging"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/server/auth"
	"github.com/dmitrijs2005/gophgroups/internal/server/channels"
	"github.com/dmitrijs2005/gophgroups/internal/server/directory"
	"github.com/dmitrijs2005/gophgroups/internal/server/instrument"
	"github.com/dmitrijs2005/gophgroups/internal/session"
	"github.com/dmitrijs2005/gophgroups/internal/token"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

var (
	keysOnce sync.Once
	authKey  *rsa.PrivateKey
	hostKey  *rsa.PrivateKey
	userKey  *rsa.PrivateKey
	keysErr  error
)

func testKeys(t *testing.T) {
	t.Helper()
	keysOnce.Do(func() {
		for _, k := range []**rsa.PrivateKey{&authKey, &hostKey, &userKey} {
			if *k, keysErr = cryptox.GenerateKeyPair(); keysErr != nil {
				return
			}
		}
	})
	require.NoError(t, keysErr)
}

func discardLogger() logging.Logger {
	return logging.Discard()
}

type fixture struct {
	dir   *directory.Store
	store *channels.Store
	auth  *AuthService
	msg   *MessageService
}

func newFixture(t *testing.T, opts MessageOptions) *fixture {
	t.Helper()
	testKeys(t)

	dir := directory.NewStore()
	created, err := dir.Bootstrap("alice", []byte("pw1"))
	require.NoError(t, err)
	require.True(t, created)

	authSealer, err := auth.NewSealer(cryptox.GenerateKey())
	require.NoError(t, err)
	hostSealer, err := auth.NewSealer(cryptox.GenerateKey())
	require.NoError(t, err)

	store := channels.NewStore(channels.NewMemoryBlobStore(), 64)
	metrics := instrument.New()

	return &fixture{
		dir:   dir,
		store: store,
		auth:  NewAuthService(dir, authSealer, authKey, discardLogger(), metrics),
		msg:   NewMessageService(store, hostSealer, hostKey, &authKey.PublicKey, opts, discardLogger(), metrics),
	}
}

func defaultOptions() MessageOptions {
	return MessageOptions{PowBits: 4, StrictHostBinding: true}
}

// dialer starts h on the far end of a fresh pipe for every dial.
func dialer(t *testing.T, h Handler) session.Dialer {
	return func(ctx context.Context) (wire.Conn, error) {
		return rawConn(t, h), nil
	}
}

func rawConn(t *testing.T, h Handler) wire.Conn {
	t.Helper()
	client, server := wire.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- h.Serve(context.Background(), server, "pipe")
		_ = server.Close()
	}()
	t.Cleanup(func() {
		_ = client.Close()
		require.NoError(t, <-done)
	})
	return client
}

// recorder dials h like dialer and keeps every envelope the client sends.
type recorder struct {
	wire.Conn
	sent []*wire.Envelope
}

func (r *recorder) Send(e *wire.Envelope) error {
	r.sent = append(r.sent, e)
	return r.Conn.Send(e)
}

func (r *recorder) dialer(t *testing.T, h Handler) session.Dialer {
	return func(ctx context.Context) (wire.Conn, error) {
		r.Conn = rawConn(t, h)
		return r, nil
	}
}

// last returns the most recent sent envelope with the given tag.
func (r *recorder) last(t *testing.T, tag string) *wire.Envelope {
	t.Helper()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Tag == tag {
			return r.sent[i]
		}
	}
	require.FailNow(t, "nothing sent", "tag %s", tag)
	return nil
}

type trustAll struct{}

func (trustAll) VerifyHost(context.Context, *rsa.PublicKey) error { return nil }

func (f *fixture) login(t *testing.T, user, password string) *session.PasswordSession {
	t.Helper()
	s := session.NewPasswordSession(dialer(t, f.auth), user, []byte(password))
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Disconnect() })
	return s
}

func (f *fixture) host(t *testing.T) *session.HostSession {
	t.Helper()
	s := session.NewHostSession(dialer(t, f.msg), userKey, trustAll{})
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Disconnect() })
	return s
}

func call(t *testing.T, s session.Session, req protocol.Request) (*wire.Envelope, error) {
	t.Helper()
	return session.Call(context.Background(), s, req.Envelope())
}

func mustCall(t *testing.T, s session.Session, req protocol.Request) *wire.Envelope {
	t.Helper()
	resp, err := call(t, s, req)
	require.NoError(t, err)
	return resp
}

func createUser(t *testing.T, admin session.Session, user, password string) {
	t.Helper()
	salt := cryptox.GenerateSalt()
	mustCall(t, admin, protocol.CreateUser{Username: user, Key: cryptox.DeriveKey([]byte(password), salt), Salt: salt})
}

func getToken(t *testing.T, s session.Session, hs *session.HostSession) *token.Token {
	t.Helper()
	resp := mustCall(t, s, protocol.GetToken{HostToken: hs.HostToken()})
	reply, err := protocol.DecodeTokenReply(resp)
	require.NoError(t, err)
	return reply.Token
}

func groupKeys(t *testing.T, s session.Session) map[string][][]byte {
	t.Helper()
	reply, err := protocol.DecodeGroupKeysReply(mustCall(t, s, protocol.GetGroupKeys{}))
	require.NoError(t, err)
	out := make(map[string][][]byte)
	for _, g := range reply.Groups {
		out[g.Group] = g.Keys
	}
	return out
}

// op wraps a message service operation with its capability token.
func op(req protocol.Request, tok *token.Token) protocol.Request {
	return protocol.OperationData{Operation: req.Envelope(), Token: tok}
}
