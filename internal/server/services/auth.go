package services

import (
	"context"
	"crypto/rsa"
	"errors"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/logging"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/server/auth"
	"github.com/dmitrijs2005/gophgroups/internal/server/directory"
	"github.com/dmitrijs2005/gophgroups/internal/server/instrument"
	"github.com/dmitrijs2005/gophgroups/internal/session"
	"github.com/dmitrijs2005/gophgroups/internal/token"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

const authServiceName = "auth"

// AuthService is the authentication and directory service. It keeps no
// per-session state: the requester and session key of every encrypted
// request come from the echoed auth token.
type AuthService struct {
	dir     *directory.Store
	sealer  *auth.Sealer
	signer  *rsa.PrivateKey
	logger  logging.Logger
	metrics *instrument.Metrics
}

// NewAuthService builds the service. signer mints capability tokens; message
// services verify them with its public half.
func NewAuthService(dir *directory.Store, sealer *auth.Sealer, signer *rsa.PrivateKey, l logging.Logger, m *instrument.Metrics) *AuthService {
	return &AuthService{
		dir:     dir,
		sealer:  sealer,
		signer:  signer,
		logger:  l.With("module", "auth_service"),
		metrics: m,
	}
}

func (s *AuthService) Name() string { return authServiceName }

func (s *AuthService) Serve(ctx context.Context, conn wire.Conn, peer string) error {
	log := s.logger.With("peer", peer)
	var x session.Exchange

	for {
		e, err := recv(ctx, conn)
		if err != nil {
			return finish(err)
		}

		var reply *wire.Envelope
		switch e.Tag {
		case protocol.TagGetSessionKey:
			reply = s.handshake(ctx, log, &x, e)
		case protocol.TagEncryptedSession:
			reply = s.request(ctx, log, &x, e)
		default:
			log.Warn(ctx, "Unexpected envelope", "tag", e.Tag)
			reply = protocol.Signal(protocol.Fail)
		}

		if err := conn.Send(reply); err != nil {
			return err
		}
	}
}

// handshake answers GETSESSIONKEY with a fresh session key and auth token
// wrapped under the user's stored key.
func (s *AuthService) handshake(ctx context.Context, log logging.Logger, x *session.Exchange, e *wire.Envelope) *wire.Envelope {
	req, err := protocol.DecodeAuthSessionRequest(e)
	if err != nil {
		s.metrics.Handshake(authServiceName, protocol.FailBadEnvelope)
		return protocol.Signal(protocol.FailBadEnvelope)
	}

	userKey, salt, err := s.dir.Credentials(req.Username)
	if err != nil {
		log.Info(ctx, "Session key refused", "username", req.Username)
		s.metrics.Handshake(authServiceName, protocol.FailBadRequester)
		return protocol.Signal(protocol.FailBadRequester)
	}
	defer common.WipeByteArray(userKey)

	sessionKey := cryptox.GenerateKey()
	defer common.WipeByteArray(sessionKey)

	at, err := s.sealer.SealAuthToken(req.Username, sessionKey)
	if err != nil {
		log.Error(ctx, "Sealing auth token failed", "error", err)
		s.metrics.Handshake(authServiceName, protocol.Error)
		return protocol.Signal(protocol.Error)
	}
	reply, err := session.GrantAuthSession(userKey, salt, sessionKey, at)
	if err != nil {
		log.Error(ctx, "Building session grant failed", "error", err)
		s.metrics.Handshake(authServiceName, protocol.Error)
		return protocol.Signal(protocol.Error)
	}

	*x = session.NewServerExchange(sessionKey)
	log.Info(ctx, "Session key issued", "username", req.Username)
	s.metrics.Handshake(authServiceName, "ok")
	return reply
}

// request opens an encrypted request, dispatches it and seals the reply.
// Anything that fails before the request is authenticated is answered with
// a clear signal.
func (s *AuthService) request(ctx context.Context, log logging.Logger, x *session.Exchange, e *wire.Envelope) *wire.Envelope {
	m, err := protocol.DecodeEncrypted(e)
	if err != nil {
		return protocol.Signal(protocol.FailBadEnvelope)
	}
	if m.Token.Tag != protocol.TagAuthToken {
		return protocol.Signal(protocol.Fail)
	}
	username, key, err := s.sealer.OpenAuthToken(m.Token)
	if err != nil {
		log.Warn(ctx, "Rejected auth token")
		return protocol.Signal(protocol.Fail)
	}
	defer common.WipeByteArray(key)

	inner, err := x.Open(key, m)
	if err != nil {
		log.Warn(ctx, "Rejected encrypted request", "username", username, "error", err)
		return protocol.Signal(protocol.Fail)
	}

	reply := s.dispatch(ctx, username, inner)
	log.Info(ctx, "Request", "username", username, "operation", inner.Tag, "result", replyTag(reply))
	s.metrics.Request(authServiceName, inner.Tag, replyTag(reply))

	out, err := x.Seal(key, reply, m.Token)
	if err != nil {
		log.Error(ctx, "Sealing reply failed", "error", err)
		return protocol.Signal(protocol.Error)
	}
	return out
}

func (s *AuthService) dispatch(ctx context.Context, requester string, e *wire.Envelope) *wire.Envelope {
	switch e.Tag {
	case protocol.TagCreateUser:
		req, err := protocol.DecodeCreateUser(e)
		if err != nil {
			return badEnvelope()
		}
		return directoryReply(s.dir.CreateUser(requester, req.Username, req.Key, req.Salt))

	case protocol.TagDeleteUser:
		req, err := protocol.DecodeDeleteUser(e)
		if err != nil {
			return badEnvelope()
		}
		return directoryReply(s.dir.DeleteUser(requester, req.Username))

	case protocol.TagCreateGroup:
		req, err := protocol.DecodeCreateGroup(e)
		if err != nil {
			return badEnvelope()
		}
		return directoryReply(s.dir.CreateGroup(requester, req.Group))

	case protocol.TagDeleteGroup:
		req, err := protocol.DecodeDeleteGroup(e)
		if err != nil {
			return badEnvelope()
		}
		return directoryReply(s.dir.DeleteGroup(requester, req.Group))

	case protocol.TagAddUserToGroup:
		req, err := protocol.DecodeAddUserToGroup(e)
		if err != nil {
			return badEnvelope()
		}
		return directoryReply(s.dir.AddUserToGroup(requester, req.User, req.Group))

	case protocol.TagRemoveUser:
		req, err := protocol.DecodeRemoveUserFromGroup(e)
		if err != nil {
			return badEnvelope()
		}
		return directoryReply(s.dir.RemoveUserFromGroup(requester, req.User, req.Group))

	case protocol.TagListMembers:
		req, err := protocol.DecodeListMembers(e)
		if err != nil {
			return badEnvelope()
		}
		members, err := s.dir.ListMembers(requester, req.Group)
		if err != nil {
			return directoryReply(err)
		}
		return protocol.MembersReply{Members: members}.Envelope()

	case protocol.TagGetToken:
		return s.getToken(requester, e)

	case protocol.TagGetGroupKeys:
		if _, err := protocol.DecodeGetGroupKeys(e); err != nil {
			return badEnvelope()
		}
		keys, err := s.dir.KeysFor(requester)
		if err != nil {
			return directoryReply(err)
		}
		reply := protocol.GroupKeysReply{Groups: make([]protocol.GroupKeyList, 0, len(keys))}
		for _, g := range keys {
			reply.Groups = append(reply.Groups, protocol.GroupKeyList{Group: g.Group, Keys: g.Keys})
		}
		return reply.Envelope()
	}
	return protocol.Signal(protocol.FailBadOperation)
}

// getToken mints a capability token over the requester's current groups,
// bound to the host token of the message service session it will be used on.
func (s *AuthService) getToken(requester string, e *wire.Envelope) *wire.Envelope {
	if !s.dir.Exists(requester) {
		return protocol.Signal(protocol.FailBadRequester)
	}
	req, err := protocol.DecodeGetToken(e)
	if err != nil || len(req.HostToken.Ciphertext) == 0 || len(req.HostToken.IV) != common.IVSize {
		return protocol.Signal(protocol.FailBadHostToken)
	}
	ht, err := req.HostToken.Bytes()
	if err != nil {
		return protocol.Signal(protocol.FailBadHostToken)
	}
	groups, err := s.dir.Groups(requester)
	if err != nil {
		return directoryReply(err)
	}
	t, err := token.Issue(requester, groups, ht, s.signer)
	if err != nil {
		return protocol.Signal(protocol.Error)
	}
	return protocol.TokenReply{Token: t}.Envelope()
}

func badEnvelope() *wire.Envelope {
	return protocol.Signal(protocol.FailBadEnvelope)
}

// directoryReply turns a directory result into OK or its signal.
func directoryReply(err error) *wire.Envelope {
	if err == nil {
		return protocol.OK()
	}
	return protocol.Signal(directorySignal(err))
}

func directorySignal(err error) string {
	switch {
	case errors.Is(err, directory.ErrBadRequester):
		return protocol.FailBadRequester
	case errors.Is(err, directory.ErrUnauthorized):
		return protocol.FailUnauthorized
	case errors.Is(err, directory.ErrUserExists):
		return protocol.FailUserExists
	case errors.Is(err, directory.ErrBadUser):
		return protocol.FailBadUser
	case errors.Is(err, directory.ErrNoUser):
		return protocol.FailNoUser
	case errors.Is(err, directory.ErrGroupExists):
		return protocol.FailGroupExists
	case errors.Is(err, directory.ErrNoGroup):
		return protocol.FailNoGroup
	case errors.Is(err, directory.ErrAlreadyMember):
		return protocol.FailUserAlreadyMember
	case errors.Is(err, directory.ErrNotMember):
		return protocol.FailUserNotMember
	case errors.Is(err, directory.ErrInvalid):
		return protocol.FailBadEnvelope
	}
	return protocol.Error
}
