package client

import (
	"context"

	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/session"
	"github.com/dmitrijs2005/gophgroups/internal/token"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// AuthClient runs directory operations over a password session.
type AuthClient struct {
	session  session.Session
	username string
}

func NewAuthClient(dial session.Dialer, username string, password []byte) *AuthClient {
	return &AuthClient{session: session.NewPasswordSession(dial, username, password), username: username}
}

func (c *AuthClient) Username() string {
	return c.username
}

// Connect runs the password handshake. A wrong password or an unknown user
// fails here.
func (c *AuthClient) Connect(ctx context.Context) error {
	return mapError(c.session.Connect(ctx))
}

func (c *AuthClient) Close() error {
	return c.session.Disconnect()
}

func (c *AuthClient) call(ctx context.Context, req protocol.Request) (*wire.Envelope, error) {
	resp, err := session.Call(ctx, c.session, req.Envelope())
	return resp, mapError(err)
}

// CreateUser derives the new user's key from password with a fresh salt; the
// password itself never leaves the client.
func (c *AuthClient) CreateUser(ctx context.Context, username string, password []byte) error {
	salt := cryptox.GenerateSalt()
	_, err := c.call(ctx, protocol.CreateUser{
		Username: username,
		Key:      cryptox.DeriveKey(password, salt),
		Salt:     salt,
	})
	return err
}

func (c *AuthClient) DeleteUser(ctx context.Context, username string) error {
	_, err := c.call(ctx, protocol.DeleteUser{Username: username})
	return err
}

func (c *AuthClient) CreateGroup(ctx context.Context, group string) error {
	_, err := c.call(ctx, protocol.CreateGroup{Group: group})
	return err
}

func (c *AuthClient) DeleteGroup(ctx context.Context, group string) error {
	_, err := c.call(ctx, protocol.DeleteGroup{Group: group})
	return err
}

func (c *AuthClient) AddUserToGroup(ctx context.Context, username, group string) error {
	_, err := c.call(ctx, protocol.AddUserToGroup{User: username, Group: group})
	return err
}

func (c *AuthClient) RemoveUserFromGroup(ctx context.Context, username, group string) error {
	_, err := c.call(ctx, protocol.RemoveUserFromGroup{User: username, Group: group})
	return err
}

func (c *AuthClient) ListMembers(ctx context.Context, group string) ([]string, error) {
	resp, err := c.call(ctx, protocol.ListMembers{Group: group})
	if err != nil {
		return nil, err
	}
	reply, err := protocol.DecodeMembersReply(resp)
	if err != nil {
		return nil, err
	}
	return reply.Members, nil
}

// Token asks for a capability token bound to the given host session.
func (c *AuthClient) Token(ctx context.Context, hostToken protocol.SealedToken) (*token.Token, error) {
	resp, err := c.call(ctx, protocol.GetToken{HostToken: hostToken})
	if err != nil {
		return nil, err
	}
	reply, err := protocol.DecodeTokenReply(resp)
	if err != nil {
		return nil, err
	}
	return reply.Token, nil
}

func (c *AuthClient) GroupKeys(ctx context.Context) (GroupKeyMap, error) {
	resp, err := c.call(ctx, protocol.GetGroupKeys{})
	if err != nil {
		return nil, err
	}
	reply, err := protocol.DecodeGroupKeysReply(resp)
	if err != nil {
		return nil, err
	}
	keys := make(GroupKeyMap, len(reply.Groups))
	for _, g := range reply.Groups {
		keys[g.Group] = g.Keys
	}
	return keys, nil
}
