// Package token implements the capability token: a signed attestation of a
// subject, its group memberships and the host session it was minted for.
package token

import (
	"crypto/rsa"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// Tag is the envelope tag of an encoded token.
const Tag = "TOKEN"

var ErrBadToken = errors.New("bad token")

// Token is held client side and presented with every message service request.
type Token struct {
	Subject   string
	Groups    []string
	HostToken []byte
	Signature []byte
}

// Issue signs subject, groups and hostToken with the authentication service's
// private key.
func Issue(subject string, groups []string, hostToken []byte, priv *rsa.PrivateKey) (*Token, error) {
	t := &Token{
		Subject:   subject,
		Groups:    slices.Clone(groups),
		HostToken: slices.Clone(hostToken),
	}
	sig, err := cryptox.Sign(t.signedBytes(), priv)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	t.Signature = sig
	return t, nil
}

// Verify recomputes the signed bytes from the token's own fields and checks
// the signature under pub.
func Verify(t *Token, pub *rsa.PublicKey) bool {
	if t == nil || len(t.Signature) == 0 {
		return false
	}
	return cryptox.Verify(t.signedBytes(), t.Signature, pub)
}

// HasGroup reports whether group is among the token's groups.
func (t *Token) HasGroup(group string) bool {
	return slices.Contains(t.Groups, group)
}

// signedBytes is subject, every group and the host token, each prefixed with
// its length so that field boundaries cannot be shifted.
func (t *Token) signedBytes() []byte {
	var b []byte
	b = appendField(b, []byte(t.Subject))
	b = binary.BigEndian.AppendUint32(b, uint32(len(t.Groups)))
	for _, g := range t.Groups {
		b = appendField(b, []byte(g))
	}
	b = appendField(b, t.HostToken)
	return b
}

func appendField(b, field []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(field)))
	return append(b, field...)
}

// Envelope encodes the token as TOKEN{subject, groups, hostToken, signature}.
func (t *Token) Envelope() *wire.Envelope {
	return wire.New(Tag,
		wire.String(t.Subject),
		wire.Strings(t.Groups),
		wire.Bytes(t.HostToken),
		wire.Bytes(t.Signature),
	)
}

// Decode parses a TOKEN envelope.
func Decode(e *wire.Envelope) (*Token, error) {
	if e == nil || e.Tag != Tag {
		return nil, fmt.Errorf("%w: not a token", wire.ErrBadEnvelope)
	}
	if err := e.Expect(4); err != nil {
		return nil, err
	}
	subject, err := e.StringAt(0)
	if err != nil {
		return nil, err
	}
	groups, err := e.StringsAt(1)
	if err != nil {
		return nil, err
	}
	host, err := e.BytesAt(2)
	if err != nil {
		return nil, err
	}
	sig, err := e.BytesAt(3)
	if err != nil {
		return nil, err
	}
	return &Token{Subject: subject, Groups: groups, HostToken: host, Signature: sig}, nil
}
