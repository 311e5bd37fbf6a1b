package session

import (
	"crypto/rsa"
	"fmt"

	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// GrantAuthSession builds the authentication service's reply to
// GETSESSIONKEY. The session key and auth token are encrypted under the
// user's stored long-term key; the salt goes in clear so the client can
// derive that key from its password.
func GrantAuthSession(userKey, salt, sessionKey []byte, authToken protocol.SealedToken) (*wire.Envelope, error) {
	grant := protocol.AuthSessionGrant{SessionKey: sessionKey, AuthToken: authToken}
	plain, err := wire.Marshal(grant.Envelope())
	if err != nil {
		return nil, err
	}
	ct, iv, err := cryptox.Seal(plain, userKey)
	if err != nil {
		return nil, fmt.Errorf("seal grant: %w", err)
	}
	return protocol.AuthSessionReply{Ciphertext: ct, IV: iv, Salt: salt}.Envelope(), nil
}

// GrantHostSession builds a message service's reply to GETSESSIONKEY: the
// session key encrypted under the client's public key, the server's own
// public key for pinning and the host token.
func GrantHostSession(clientPublicKey []byte, server *rsa.PublicKey, sessionKey []byte, hostToken protocol.SealedToken) (*wire.Envelope, error) {
	pub, err := cryptox.ParsePublicKey(clientPublicKey)
	if err != nil {
		return nil, err
	}
	enc, err := cryptox.EncryptAsymmetric(sessionKey, pub)
	if err != nil {
		return nil, fmt.Errorf("encrypt session key: %w", err)
	}
	der, err := cryptox.MarshalPublicKey(server)
	if err != nil {
		return nil, err
	}
	return protocol.HostSessionReply{
		ServerPublicKey:     der,
		EncryptedSessionKey: enc,
		HostToken:           hostToken,
	}.Envelope(), nil
}
