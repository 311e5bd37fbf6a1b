package session

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// PasswordSession is a client session with the authentication service.
type PasswordSession struct {
	base
	username string
	password []byte
}

func NewPasswordSession(dial Dialer, username string, password []byte) *PasswordSession {
	return &PasswordSession{base: base{dial: dial}, username: username, password: password}
}

// Connect runs the password handshake. A wrong password surfaces as
// cryptox.ErrDecrypt since the grant cannot be opened.
func (s *PasswordSession) Connect(ctx context.Context) error {
	if err := s.open(ctx); err != nil {
		return err
	}

	resp, err := s.roundTrip(protocol.AuthSessionRequest{Username: s.username}.Envelope())
	if err != nil {
		return err
	}
	reply, err := protocol.DecodeAuthSessionReply(resp)
	if err != nil {
		return err
	}

	userKey := cryptox.DeriveKey(s.password, reply.Salt)
	defer common.WipeByteArray(userKey)

	plain, err := cryptox.DecryptSymmetric(reply.Ciphertext, userKey, reply.IV)
	if err != nil {
		return err
	}
	inner, err := wire.Unmarshal(plain)
	if err != nil {
		return fmt.Errorf("session grant: %w", err)
	}
	grant, err := protocol.DecodeAuthSessionGrant(inner)
	if err != nil {
		return err
	}
	if len(grant.SessionKey) != common.KeySize {
		return cryptox.ErrBadKey
	}

	s.bind(grant.SessionKey, grant.AuthToken)
	return nil
}

func (s *PasswordSession) ReceiveEncrypted(ctx context.Context) (*wire.Envelope, error) {
	if s.key == nil {
		return nil, ErrNotConnected
	}
	e, err := s.conn.Recv()
	if err != nil {
		return nil, err
	}
	return s.receive(e)
}
