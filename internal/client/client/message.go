package client

import (
	"context"
	"crypto/rsa"

	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/session"
	"github.com/dmitrijs2005/gophgroups/internal/token"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// Plaintext is a message with its decrypted body. Err is set instead of
// Text when the body cannot be opened, e.g. for a key version the user never
// received.
type Plaintext struct {
	Message protocol.Message
	Text    []byte
	Err     error
}

// MessageClient talks to one message service on behalf of a logged-in user.
type MessageClient struct {
	host  *session.HostSession
	auth  *AuthClient
	token *token.Token
	keys  GroupKeyMap
}

func NewMessageClient(dial session.Dialer, priv *rsa.PrivateKey, verifier session.HostVerifier, auth *AuthClient) *MessageClient {
	return &MessageClient{host: session.NewHostSession(dial, priv, verifier), auth: auth}
}

// Connect opens the host session and fetches a token bound to it.
func (c *MessageClient) Connect(ctx context.Context) error {
	if err := c.host.Connect(ctx); err != nil {
		return mapError(err)
	}
	return c.Refresh(ctx)
}

// Refresh replaces the capability token and the group keys, picking up
// membership changes made since Connect.
func (c *MessageClient) Refresh(ctx context.Context) error {
	tok, err := c.auth.Token(ctx, c.host.HostToken())
	if err != nil {
		return err
	}
	keys, err := c.auth.GroupKeys(ctx)
	if err != nil {
		return err
	}
	c.token = tok
	c.keys = keys
	return nil
}

func (c *MessageClient) Close() error {
	return c.host.Disconnect()
}

// Keys returns the group keys fetched by the last Refresh.
func (c *MessageClient) Keys() GroupKeyMap {
	return c.keys
}

func (c *MessageClient) do(ctx context.Context, req protocol.Request) (*wire.Envelope, error) {
	if c.token == nil {
		return nil, ErrNotConnected
	}
	op := protocol.OperationData{Operation: req.Envelope(), Token: c.token}
	resp, err := session.Call(ctx, c.host, op.Envelope())
	return resp, mapError(err)
}

func (c *MessageClient) Channels(ctx context.Context) ([]protocol.Channel, error) {
	resp, err := c.do(ctx, protocol.GetChannels{})
	if err != nil {
		return nil, err
	}
	reply, err := protocol.DecodeChannelsReply(resp)
	if err != nil {
		return nil, err
	}
	return reply.Channels, nil
}

func (c *MessageClient) CreateChannel(ctx context.Context, group, name string) (protocol.Channel, error) {
	resp, err := c.do(ctx, protocol.CreateChannel{Group: group, Name: name})
	if err != nil {
		return protocol.Channel{}, err
	}
	reply, err := protocol.DecodeChannelReply(resp)
	return reply.Channel, err
}

func (c *MessageClient) DeleteChannel(ctx context.Context, group, name string) error {
	_, err := c.do(ctx, protocol.DeleteChannel{Group: group, Name: name})
	return err
}

// Send encrypts text under the newest key of group.
func (c *MessageClient) Send(ctx context.Context, group, channel string, text []byte) (protocol.Message, error) {
	ct, iv, version, err := c.keys.Encrypt(group, text)
	if err != nil {
		return protocol.Message{}, err
	}
	resp, err := c.do(ctx, protocol.SendMessage{Group: group, Channel: channel, Ciphertext: ct, KeyVersion: version, IV: iv})
	if err != nil {
		return protocol.Message{}, err
	}
	reply, err := protocol.DecodeMessageReply(resp)
	return reply.Message, err
}

// Edit replaces the body of m, re-encrypting under the newest key.
func (c *MessageClient) Edit(ctx context.Context, m protocol.Message, text []byte) (protocol.Message, error) {
	ct, iv, version, err := c.keys.Encrypt(m.Group, text)
	if err != nil {
		return protocol.Message{}, err
	}
	resp, err := c.do(ctx, protocol.SetMessage{Message: m, Ciphertext: ct, KeyVersion: version, IV: iv})
	if err != nil {
		return protocol.Message{}, err
	}
	reply, err := protocol.DecodeMessageReply(resp)
	return reply.Message, err
}

func (c *MessageClient) Delete(ctx context.Context, m protocol.Message) error {
	_, err := c.do(ctx, protocol.DeleteMessage{Message: m})
	return err
}

// Read returns the channel's messages in order, each decrypted with the key
// version it records.
func (c *MessageClient) Read(ctx context.Context, group, channel string) ([]Plaintext, error) {
	resp, err := c.do(ctx, protocol.ReadMessages{Group: group, Channel: channel})
	if err != nil {
		return nil, err
	}
	reply, err := protocol.DecodeReadMessagesReply(resp)
	if err != nil {
		return nil, err
	}
	out := make([]Plaintext, 0, len(reply.Messages))
	for _, m := range reply.Messages {
		text, err := c.keys.Decrypt(m.Message.Group, m.Message.KeyVersion, m.Ciphertext, m.Message.IV)
		out = append(out, Plaintext{Message: m.Message, Text: text, Err: err})
	}
	return out, nil
}

// Find looks up a message of the channel by locator.
func (c *MessageClient) Find(ctx context.Context, group, channel, locator string) (Plaintext, error) {
	msgs, err := c.Read(ctx, group, channel)
	if err != nil {
		return Plaintext{}, err
	}
	for _, m := range msgs {
		if m.Message.Locator == locator {
			return m, nil
		}
	}
	return Plaintext{}, ErrNoMessage
}
