package session

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// MaxChallengeBits caps the work a client is willing to do per request.
const MaxChallengeBits = 28

// HostVerifier decides whether a server public key may be trusted, typically
// by comparing its fingerprint with a pinned one.
type HostVerifier interface {
	VerifyHost(ctx context.Context, pub *rsa.PublicKey) error
}

// HostSession is a client session with a message service.
type HostSession struct {
	base
	priv     *rsa.PrivateKey
	verifier HostVerifier
	server   *rsa.PublicKey
}

func NewHostSession(dial Dialer, priv *rsa.PrivateKey, verifier HostVerifier) *HostSession {
	return &HostSession{base: base{dial: dial}, priv: priv, verifier: verifier}
}

// Connect runs the public-key handshake. The server key is checked with the
// verifier before the session key is accepted.
func (s *HostSession) Connect(ctx context.Context) error {
	if err := s.open(ctx); err != nil {
		return err
	}

	der, err := cryptox.MarshalPublicKey(&s.priv.PublicKey)
	if err != nil {
		return err
	}
	resp, err := s.roundTrip(protocol.HostSessionRequest{PublicKey: der}.Envelope())
	if err != nil {
		return err
	}
	reply, err := protocol.DecodeHostSessionReply(resp)
	if err != nil {
		return err
	}

	server, err := cryptox.ParsePublicKey(reply.ServerPublicKey)
	if err != nil {
		return err
	}
	if err := s.verifier.VerifyHost(ctx, server); err != nil {
		_ = s.Disconnect()
		return fmt.Errorf("%w: %w", ErrUntrustedHost, err)
	}

	key, err := cryptox.DecryptAsymmetric(reply.EncryptedSessionKey, s.priv)
	if err != nil {
		return err
	}
	if len(key) != common.KeySize {
		return cryptox.ErrBadKey
	}

	s.bind(key, reply.HostToken)
	s.server = server
	return nil
}

// HostToken is the token to present to the authentication service when
// asking for a capability token bound to this session.
func (s *HostSession) HostToken() protocol.SealedToken {
	return s.token
}

// ServerKey is the pinned public key of the connected host.
func (s *HostSession) ServerKey() *rsa.PublicKey {
	return s.server
}

// ReceiveEncrypted answers any proof-of-work challenge before reading the
// encrypted reply.
func (s *HostSession) ReceiveEncrypted(ctx context.Context) (*wire.Envelope, error) {
	if s.key == nil {
		return nil, ErrNotConnected
	}
	for {
		e, err := s.conn.Recv()
		if err != nil {
			return nil, err
		}
		if e.Tag != protocol.TagChallenge {
			return s.receive(e)
		}
		if err := s.answer(ctx, e); err != nil {
			return nil, err
		}
	}
}

func (s *HostSession) answer(ctx context.Context, e *wire.Envelope) error {
	c, err := protocol.DecodeChallenge(e)
	if err != nil {
		return err
	}
	if c.Bits > MaxChallengeBits {
		return fmt.Errorf("%w: %d bits", ErrChallengeTooHard, c.Bits)
	}
	nonce, err := cryptox.SolveProofOfWork(ctx, c.Challenge, c.Bits)
	if err != nil {
		return err
	}
	return s.conn.Send(protocol.ChallengeAnswer{Nonce: nonce}.Envelope())
}
