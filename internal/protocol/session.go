package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// SealedToken is an auth or host token: ciphertext only the issuing server
// can open, echoed back by the client on every request.
type SealedToken struct {
	Tag        string
	Ciphertext []byte
	IV         []byte
}

func (t SealedToken) Envelope() *wire.Envelope {
	return wire.New(t.Tag, wire.Bytes(t.Ciphertext), wire.Bytes(t.IV))
}

// Bytes returns the canonical encoding, used for host binding and MACs.
func (t SealedToken) Bytes() ([]byte, error) {
	return wire.Marshal(t.Envelope())
}

func DecodeSealedToken(e *wire.Envelope, tag string) (SealedToken, error) {
	f := read(e, tag, 2)
	t := SealedToken{Tag: tag, Ciphertext: f.bytes(0), IV: f.bytes(1)}
	return t, f.err
}

// decodeAnySealedToken accepts either token kind.
func decodeAnySealedToken(e *wire.Envelope) (SealedToken, error) {
	if e != nil && e.Tag == TagHostToken {
		return DecodeSealedToken(e, TagHostToken)
	}
	return DecodeSealedToken(e, TagAuthToken)
}

// AuthSessionRequest opens the password handshake.
type AuthSessionRequest struct {
	Username string
}

func (r AuthSessionRequest) Envelope() *wire.Envelope {
	return wire.New(TagGetSessionKey, wire.String(r.Username))
}

func DecodeAuthSessionRequest(e *wire.Envelope) (AuthSessionRequest, error) {
	f := read(e, TagGetSessionKey, 1)
	r := AuthSessionRequest{Username: f.str(0)}
	return r, f.err
}

// AuthSessionReply carries an AuthSessionGrant encrypted under the user's
// long-term key; Salt travels in clear.
type AuthSessionReply struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
}

func (r AuthSessionReply) Envelope() *wire.Envelope {
	return OK(wire.Bytes(r.Ciphertext), wire.Bytes(r.IV), wire.Bytes(r.Salt))
}

func DecodeAuthSessionReply(e *wire.Envelope) (AuthSessionReply, error) {
	f := read(e, TagOK, 3)
	r := AuthSessionReply{Ciphertext: f.bytes(0), IV: f.bytes(1), Salt: f.bytes(2)}
	return r, f.err
}

// AuthSessionGrant is the plaintext inside AuthSessionReply.
type AuthSessionGrant struct {
	SessionKey []byte
	AuthToken  SealedToken
}

func (g AuthSessionGrant) Envelope() *wire.Envelope {
	return OK(wire.Bytes(g.SessionKey), wire.Nested(g.AuthToken.Envelope()))
}

func DecodeAuthSessionGrant(e *wire.Envelope) (AuthSessionGrant, error) {
	f := read(e, TagOK, 2)
	key := f.bytes(0)
	inner := f.nested(1, TagAuthToken)
	if f.err != nil {
		return AuthSessionGrant{}, f.err
	}
	at, err := DecodeSealedToken(inner, TagAuthToken)
	return AuthSessionGrant{SessionKey: key, AuthToken: at}, err
}

// HostSessionRequest opens the public-key handshake.
type HostSessionRequest struct {
	PublicKey []byte
}

func (r HostSessionRequest) Envelope() *wire.Envelope {
	return wire.New(TagGetSessionKey, wire.Bytes(r.PublicKey))
}

func DecodeHostSessionRequest(e *wire.Envelope) (HostSessionRequest, error) {
	f := read(e, TagGetSessionKey, 1)
	r := HostSessionRequest{PublicKey: f.bytes(0)}
	return r, f.err
}

type HostSessionReply struct {
	ServerPublicKey     []byte
	EncryptedSessionKey []byte
	HostToken           SealedToken
}

func (r HostSessionReply) Envelope() *wire.Envelope {
	return OK(wire.Bytes(r.ServerPublicKey), wire.Bytes(r.EncryptedSessionKey), wire.Nested(r.HostToken.Envelope()))
}

func DecodeHostSessionReply(e *wire.Envelope) (HostSessionReply, error) {
	f := read(e, TagOK, 3)
	pub := f.bytes(0)
	enc := f.bytes(1)
	inner := f.nested(2, TagHostToken)
	if f.err != nil {
		return HostSessionReply{}, f.err
	}
	ht, err := DecodeSealedToken(inner, TagHostToken)
	return HostSessionReply{ServerPublicKey: pub, EncryptedSessionKey: enc, HostToken: ht}, err
}

// Encrypted is an ENCRYPTEDSESSION envelope: an inner envelope encrypted
// under the session key, the echoed token, a sequence number and a MAC.
type Encrypted struct {
	Ciphertext []byte
	IV         []byte
	Token      SealedToken
	Seq        uint64
	MAC        []byte
}

func (m Encrypted) Envelope() *wire.Envelope {
	e := wire.New(TagEncryptedSession, wire.Bytes(m.Ciphertext), wire.Bytes(m.IV), wire.Nested(m.Token.Envelope()))
	e.SetSeq(m.Seq)
	e.AuthTag = m.MAC
	return e
}

func DecodeEncrypted(e *wire.Envelope) (Encrypted, error) {
	f := read(e, TagEncryptedSession, 3)
	ct := f.bytes(0)
	iv := f.bytes(1)
	inner := f.any(2)
	if f.err != nil {
		return Encrypted{}, f.err
	}
	tok, err := decodeAnySealedToken(inner)
	if err != nil {
		return Encrypted{}, err
	}
	return Encrypted{Ciphertext: ct, IV: iv, Token: tok, Seq: e.Seq, MAC: e.AuthTag}, nil
}

// MACInput lists the authenticated parts: tag, sequence, ciphertext, IV and
// the encoded token.
func (m Encrypted) MACInput() ([][]byte, error) {
	tok, err := m.Token.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	seq := binary.BigEndian.AppendUint64(nil, m.Seq)
	return [][]byte{[]byte(TagEncryptedSession), seq, m.Ciphertext, m.IV, tok}, nil
}

// Challenge is the proof-of-work puzzle sent by a message service.
type Challenge struct {
	Challenge []byte
	Bits      int
}

func (c Challenge) Envelope() *wire.Envelope {
	return wire.New(TagChallenge, wire.Bytes(c.Challenge), wire.Int(int64(c.Bits)))
}

func DecodeChallenge(e *wire.Envelope) (Challenge, error) {
	f := read(e, TagChallenge, 2)
	c := Challenge{Challenge: f.bytes(0), Bits: f.int(1)}
	return c, f.err
}

// ChallengeAnswer carries the client's nonce.
type ChallengeAnswer struct {
	Nonce []byte
}

func (a ChallengeAnswer) Envelope() *wire.Envelope {
	return wire.New(TagChallenge, wire.Bytes(a.Nonce))
}

func DecodeChallengeAnswer(e *wire.Envelope) (ChallengeAnswer, error) {
	f := read(e, TagChallenge, 1)
	a := ChallengeAnswer{Nonce: f.bytes(0)}
	return a, f.err
}

// Disconnect ends a connection.
func Disconnect() *wire.Envelope {
	return wire.New(TagDisconnect)
}
