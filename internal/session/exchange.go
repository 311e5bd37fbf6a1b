// Package session turns a wire.Conn into a confidential channel. It holds the
// two handshake variants (password-authenticated with the authentication
// service, public-key-authenticated with a message service) on both the
// client and the server side, and the encrypted exchange used afterwards.
package session

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

var (
	// ErrReplay is returned when a sequence number does not increase.
	ErrReplay = errors.New("sequence number replayed")
	// ErrNotConnected is returned by a client session before Connect.
	ErrNotConnected = errors.New("session not connected")
	// ErrUntrustedHost aborts a handshake with a host that fails pinning.
	ErrUntrustedHost = errors.New("untrusted host")
	// ErrChallengeTooHard is returned for a proof-of-work above MaxChallengeBits.
	ErrChallengeTooHard = errors.New("challenge too hard")
	// ErrForeignKey is returned when an envelope is sealed or opened under a
	// session key that was not issued on this connection.
	ErrForeignKey = errors.New("session key not issued on this connection")
)

// Each direction authenticates under its own subkey so that an envelope
// cannot be reflected back to its sender.
const (
	clientMACLabel = "envelope-mac client"
	serverMACLabel = "envelope-mac server"
)

// Exchange tracks the encrypted traffic of one connection. It is bound to
// the session key agreed by the handshake on that connection and refuses any
// other key, so a token captured elsewhere cannot be replayed on a fresh
// connection. Every sealed envelope carries the next outgoing number and
// every opened one must carry a number above the last accepted. The zero
// value is unbound and rejects everything. It is not safe for concurrent
// use; a connection has a single reader and a single writer loop.
type Exchange struct {
	key       []byte
	sealLabel string
	openLabel string
	sent      uint64
	received  uint64
}

// NewClientExchange binds an exchange to key for the side that sent the
// handshake request.
func NewClientExchange(key []byte) Exchange {
	return Exchange{key: slices.Clone(key), sealLabel: clientMACLabel, openLabel: serverMACLabel}
}

// NewServerExchange binds an exchange to key for the side that issued it.
func NewServerExchange(key []byte) Exchange {
	return Exchange{key: slices.Clone(key), sealLabel: serverMACLabel, openLabel: clientMACLabel}
}

func (x *Exchange) owns(key []byte) bool {
	return len(x.key) > 0 && subtle.ConstantTimeCompare(x.key, key) == 1
}

// Seal encrypts inner under key with a fresh IV and authenticates the result.
func (x *Exchange) Seal(key []byte, inner *wire.Envelope, tok protocol.SealedToken) (*wire.Envelope, error) {
	if !x.owns(key) {
		return nil, ErrForeignKey
	}
	plain, err := wire.Marshal(inner)
	if err != nil {
		return nil, err
	}
	ct, iv, err := cryptox.Seal(plain, key)
	if err != nil {
		return nil, err
	}

	m := protocol.Encrypted{Ciphertext: ct, IV: iv, Token: tok, Seq: x.sent + 1}
	mac, err := macOf(key, x.sealLabel, m)
	if err != nil {
		return nil, err
	}
	m.MAC = mac
	x.sent = m.Seq
	return m.Envelope(), nil
}

// Open checks the key binding, sequence number and MAC of m and decrypts it.
// MAC and decryption failures are both cryptox.ErrDecrypt.
func (x *Exchange) Open(key []byte, m protocol.Encrypted) (*wire.Envelope, error) {
	if !x.owns(key) {
		return nil, ErrForeignKey
	}
	if m.Seq <= x.received {
		return nil, ErrReplay
	}
	macKey, err := cryptox.Subkey(key, x.openLabel)
	if err != nil {
		return nil, cryptox.ErrDecrypt
	}
	parts, err := m.MACInput()
	if err != nil {
		return nil, err
	}
	if !cryptox.CheckMAC(macKey, m.MAC, parts...) {
		return nil, cryptox.ErrDecrypt
	}

	plain, err := cryptox.DecryptSymmetric(m.Ciphertext, key, m.IV)
	if err != nil {
		return nil, err
	}
	inner, err := wire.Unmarshal(plain)
	if err != nil {
		return nil, fmt.Errorf("inner envelope: %w", err)
	}
	x.received = m.Seq
	return inner, nil
}

func macOf(key []byte, label string, m protocol.Encrypted) ([]byte, error) {
	macKey, err := cryptox.Subkey(key, label)
	if err != nil {
		return nil, err
	}
	parts, err := m.MACInput()
	if err != nil {
		return nil, err
	}
	return cryptox.MAC(macKey, parts...), nil
}
