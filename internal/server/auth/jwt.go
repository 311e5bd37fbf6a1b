// Package auth seals the auth and host tokens a server hands to clients in
// place of session state. The claims are an HS256 JWT which is then encrypted
// under the server's master key, so the token is opaque to its bearer and
// only the issuing server can open it.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
)

const (
	audienceAuth = "auth"
	audienceHost = "host"
)

// Claims carries the session key and, for auth tokens, the username as Subject.
type Claims struct {
	jwt.RegisteredClaims
	SessionKey []byte `json:"sk"`
}

// Sealer issues and opens tokens for one server.
type Sealer struct {
	encKey  []byte
	signKey []byte
	now     func() time.Time
}

// NewSealer derives separate encryption and signing keys from master.
func NewSealer(master []byte) (*Sealer, error) {
	enc, err := cryptox.Subkey(master, "token-enc")
	if err != nil {
		return nil, err
	}
	sign, err := cryptox.Subkey(master, "token-sign")
	if err != nil {
		return nil, err
	}
	return &Sealer{encKey: enc, signKey: sign, now: time.Now}, nil
}

// SealAuthToken binds username to sessionKey.
func (s *Sealer) SealAuthToken(username string, sessionKey []byte) (protocol.SealedToken, error) {
	return s.seal(protocol.TagAuthToken, audienceAuth, username, sessionKey)
}

// OpenAuthToken returns the username and session key of an auth token.
func (s *Sealer) OpenAuthToken(t protocol.SealedToken) (string, []byte, error) {
	c, err := s.open(t, protocol.TagAuthToken, audienceAuth)
	if err != nil {
		return "", nil, err
	}
	if c.Subject == "" {
		return "", nil, common.ErrInvalidToken
	}
	return c.Subject, c.SessionKey, nil
}

// SealHostToken wraps a message service session key.
func (s *Sealer) SealHostToken(sessionKey []byte) (protocol.SealedToken, error) {
	return s.seal(protocol.TagHostToken, audienceHost, "", sessionKey)
}

// OpenHostToken returns the session key of a host token.
func (s *Sealer) OpenHostToken(t protocol.SealedToken) ([]byte, error) {
	c, err := s.open(t, protocol.TagHostToken, audienceHost)
	if err != nil {
		return nil, err
	}
	return c.SessionKey, nil
}

func (s *Sealer) seal(tag, audience, subject string, sessionKey []byte) (protocol.SealedToken, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			Audience: jwt.ClaimStrings{audience},
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
		SessionKey: sessionKey,
	})

	tokenString, err := token.SignedString(s.signKey)
	if err != nil {
		return protocol.SealedToken{}, fmt.Errorf("sign token: %w", err)
	}

	ct, iv, err := cryptox.Seal([]byte(tokenString), s.encKey)
	if err != nil {
		return protocol.SealedToken{}, fmt.Errorf("encrypt token: %w", err)
	}
	return protocol.SealedToken{Tag: tag, Ciphertext: ct, IV: iv}, nil
}

func (s *Sealer) open(t protocol.SealedToken, tag, audience string) (*Claims, error) {
	if t.Tag != tag {
		return nil, common.ErrInvalidToken
	}
	plain, err := cryptox.DecryptSymmetric(t.Ciphertext, s.encKey, t.IV)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(string(plain), claims, func(t *jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(audience))
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}
	if len(claims.SessionKey) != common.KeySize {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
