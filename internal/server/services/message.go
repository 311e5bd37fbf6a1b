package services

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/logging"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
	"github.com/dmitrijs2005/gophgroups/internal/server/auth"
	"github.com/dmitrijs2005/gophgroups/internal/server/channels"
	"github.com/dmitrijs2005/gophgroups/internal/server/instrument"
	"github.com/dmitrijs2005/gophgroups/internal/session"
	"github.com/dmitrijs2005/gophgroups/internal/token"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

const messageServiceName = "msg"

type MessageOptions struct {
	// PowBits is the leading-zero-bit difficulty of every challenge.
	PowBits int
	// StrictHostBinding rejects capability tokens minted for another host
	// session than the one presenting them.
	StrictHostBinding bool
}

// MessageService hosts channels and messages. It trusts capability tokens
// signed by the authentication service and never holds group keys.
type MessageService struct {
	store   *channels.Store
	sealer  *auth.Sealer
	key     *rsa.PrivateKey
	authPub *rsa.PublicKey
	opts    MessageOptions
	logger  logging.Logger
	metrics *instrument.Metrics

	newChallenge func() []byte
}

// NewMessageService builds the service. key is the host's own keypair,
// authPub the authentication service's token signing key.
func NewMessageService(store *channels.Store, sealer *auth.Sealer, key *rsa.PrivateKey, authPub *rsa.PublicKey,
	opts MessageOptions, l logging.Logger, m *instrument.Metrics) *MessageService {
	return &MessageService{
		store:        store,
		sealer:       sealer,
		key:          key,
		authPub:      authPub,
		opts:         opts,
		logger:       l.With("module", "message_service"),
		metrics:      m,
		newChallenge: cryptox.GenerateChallenge,
	}
}

func (s *MessageService) Name() string { return messageServiceName }

func (s *MessageService) Serve(ctx context.Context, conn wire.Conn, peer string) error {
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
			admitted, err := s.admit(ctx, conn)
			if err != nil {
				return finish(err)
			}
			if admitted != "" {
				reply = protocol.Signal(admitted)
				break
			}
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

func (s *MessageService) handshake(ctx context.Context, log logging.Logger, x *session.Exchange, e *wire.Envelope) *wire.Envelope {
	req, err := protocol.DecodeHostSessionRequest(e)
	if err != nil {
		s.metrics.Handshake(messageServiceName, protocol.FailBadEnvelope)
		return protocol.Signal(protocol.FailBadEnvelope)
	}

	sessionKey := cryptox.GenerateKey()
	defer common.WipeByteArray(sessionKey)

	ht, err := s.sealer.SealHostToken(sessionKey)
	if err != nil {
		log.Error(ctx, "Sealing host token failed", "error", err)
		s.metrics.Handshake(messageServiceName, protocol.Error)
		return protocol.Signal(protocol.Error)
	}
	reply, err := session.GrantHostSession(req.PublicKey, &s.key.PublicKey, sessionKey, ht)
	if err != nil {
		log.Warn(ctx, "Refused client public key")
		s.metrics.Handshake(messageServiceName, protocol.FailBadEnvelope)
		return protocol.Signal(protocol.FailBadEnvelope)
	}

	*x = session.NewServerExchange(sessionKey)
	s.metrics.Handshake(messageServiceName, "ok")
	return reply
}

// admit runs the proof-of-work gate for one request. It returns the failure
// signal to send, or "" once the client has paid. The pending request stays
// untouched until then.
func (s *MessageService) admit(ctx context.Context, conn wire.Conn) (string, error) {
	challenge := s.newChallenge()
	if err := conn.Send(protocol.Challenge{Challenge: challenge, Bits: s.opts.PowBits}.Envelope()); err != nil {
		return "", err
	}
	e, err := recv(ctx, conn)
	if err != nil {
		return "", err
	}

	signal := checkAnswer(e, challenge, s.opts.PowBits)
	result := signal
	if result == "" {
		result = "ok"
	}
	s.metrics.Challenge(result)
	return signal, nil
}

func checkAnswer(e *wire.Envelope, challenge []byte, bits int) string {
	ans, err := protocol.DecodeChallengeAnswer(e)
	if err != nil {
		return protocol.FailBadEnvelope
	}
	if len(ans.Nonce) == 0 || len(ans.Nonce) > common.MaxNonceSize {
		return protocol.FailBadBytes
	}
	if !cryptox.CheckProofOfWork(challenge, ans.Nonce, bits) {
		return protocol.FailBadHash
	}
	return ""
}

func (s *MessageService) request(ctx context.Context, log logging.Logger, x *session.Exchange, e *wire.Envelope) *wire.Envelope {
	m, err := protocol.DecodeEncrypted(e)
	if err != nil {
		return protocol.Signal(protocol.FailBadEnvelope)
	}
	if m.Token.Tag != protocol.TagHostToken {
		return protocol.Signal(protocol.Fail)
	}
	key, err := s.sealer.OpenHostToken(m.Token)
	if err != nil {
		log.Warn(ctx, "Rejected host token")
		return protocol.Signal(protocol.Fail)
	}
	defer common.WipeByteArray(key)

	inner, err := x.Open(key, m)
	if err != nil {
		log.Warn(ctx, "Rejected encrypted request", "error", err)
		return protocol.Signal(protocol.Fail)
	}

	reply, subject, op := s.authorize(m, inner)
	if reply == nil {
		p := channels.Principal{Subject: subject.Subject, Groups: subject.Groups}
		reply = s.dispatch(ctx, p, op)
	}
	log.Info(ctx, "Request", "subject", principalName(subject), "operation", replyTag(op), "result", replyTag(reply))
	s.metrics.Request(messageServiceName, replyTag(op), replyTag(reply))

	out, err := x.Seal(key, reply, m.Token)
	if err != nil {
		log.Error(ctx, "Sealing reply failed", "error", err)
		return protocol.Signal(protocol.Error)
	}
	return out
}

// authorize unpacks OPERATIONDATA and checks its capability token. A non-nil
// reply is the failure to send instead of dispatching.
func (s *MessageService) authorize(m protocol.Encrypted, inner *wire.Envelope) (*wire.Envelope, *token.Token, *wire.Envelope) {
	od, err := protocol.DecodeOperationData(inner)
	if err != nil {
		return protocol.Signal(protocol.FailBadEnvelope), nil, nil
	}
	if !token.Verify(od.Token, s.authPub) {
		return protocol.Signal(protocol.FailBadUserToken), od.Token, od.Operation
	}
	if s.opts.StrictHostBinding {
		presented, err := m.Token.Bytes()
		if err != nil || !bytes.Equal(presented, od.Token.HostToken) {
			return protocol.Signal(protocol.FailBadUserToken), od.Token, od.Operation
		}
	}
	return nil, od.Token, od.Operation
}

func (s *MessageService) dispatch(ctx context.Context, p channels.Principal, e *wire.Envelope) *wire.Envelope {
	switch e.Tag {
	case protocol.TagGetChannels:
		if _, err := protocol.DecodeGetChannels(e); err != nil {
			return badEnvelope()
		}
		list := s.store.ListChannels(p)
		reply := protocol.ChannelsReply{Channels: make([]protocol.Channel, 0, len(list))}
		for _, c := range list {
			reply.Channels = append(reply.Channels, channelOut(c))
		}
		return reply.Envelope()

	case protocol.TagCreateChannel:
		req, err := protocol.DecodeCreateChannel(e)
		if err != nil {
			return badEnvelope()
		}
		c, err := s.store.CreateChannel(p, req.Group, req.Name)
		if err != nil {
			return channelFailure(err)
		}
		return protocol.ChannelReply{Channel: channelOut(c)}.Envelope()

	case protocol.TagDeleteChannel:
		req, err := protocol.DecodeDeleteChannel(e)
		if err != nil {
			return badEnvelope()
		}
		if err := s.store.DeleteChannel(ctx, p, req.Group, req.Name); err != nil {
			return channelFailure(err)
		}
		return protocol.OK()

	case protocol.TagSendMessage:
		req, err := protocol.DecodeSendMessage(e)
		if err != nil {
			return badEnvelope()
		}
		msg, err := s.store.SendMessage(ctx, p, req.Group, req.Channel, req.Ciphertext, req.KeyVersion, req.IV)
		if err != nil {
			return channelFailure(err)
		}
		return protocol.MessageReply{Message: messageOut(msg)}.Envelope()

	case protocol.TagSetMessage:
		req, err := protocol.DecodeSetMessage(e)
		if err != nil {
			return badEnvelope()
		}
		msg, err := s.store.SetMessage(ctx, p, messageIn(req.Message), req.Ciphertext, req.KeyVersion, req.IV)
		if err != nil {
			return channelFailure(err)
		}
		return protocol.MessageReply{Message: messageOut(msg)}.Envelope()

	case protocol.TagDeleteMessage:
		req, err := protocol.DecodeDeleteMessage(e)
		if err != nil {
			return badEnvelope()
		}
		if err := s.store.DeleteMessage(ctx, p, messageIn(req.Message)); err != nil {
			return channelFailure(err)
		}
		return protocol.OK()

	case protocol.TagReadMessages:
		req, err := protocol.DecodeReadMessages(e)
		if err != nil {
			return badEnvelope()
		}
		msgs, err := s.store.ReadMessages(ctx, p, req.Group, req.Channel)
		if err != nil {
			return channelFailure(err)
		}
		reply := protocol.ReadMessagesReply{Messages: make([]protocol.MessageAndText, 0, len(msgs))}
		for _, m := range msgs {
			reply.Messages = append(reply.Messages, protocol.MessageAndText{Message: messageOut(m.Message), Ciphertext: m.Ciphertext})
		}
		return reply.Envelope()
	}
	return protocol.Signal(protocol.FailBadOperation)
}

func channelFailure(err error) *wire.Envelope {
	return protocol.Signal(channelSignal(err))
}

func channelSignal(err error) string {
	switch {
	case errors.Is(err, channels.ErrBlobNotFound):
		return protocol.ErrorBadPath
	case errors.Is(err, channels.ErrStorage):
		return protocol.ErrorIO
	case errors.Is(err, channels.ErrNoChannel):
		return protocol.FailNoChannel
	case errors.Is(err, channels.ErrChannelExists):
		return protocol.FailChannelExists
	case errors.Is(err, channels.ErrUnauthorizedGroup):
		return protocol.FailUnauthorizedGroup
	case errors.Is(err, channels.ErrUnauthorizedChannel):
		return protocol.FailUnauthorizedChannel
	case errors.Is(err, channels.ErrUnauthorizedMessage):
		return protocol.FailUnauthorizedMessage
	case errors.Is(err, channels.ErrUnauthorized):
		return protocol.FailUnauthorized
	case errors.Is(err, channels.ErrNoMessage):
		return protocol.FailBadPath
	case errors.Is(err, channels.ErrTextTooLong):
		return protocol.FailTextTooLong
	case errors.Is(err, channels.ErrInvalid):
		return protocol.FailBadEnvelope
	}
	return protocol.ErrorIO
}

func channelOut(c channels.Channel) protocol.Channel {
	return protocol.Channel{Group: c.Group, Name: c.Name, Owner: c.Owner}
}

func messageOut(m channels.Message) protocol.Message {
	return protocol.Message{
		Locator:    m.Locator,
		Owner:      m.Owner,
		Group:      m.Group,
		Channel:    m.Channel,
		KeyVersion: m.KeyVersion,
		IV:         m.IV,
		Length:     m.Length,
	}
}

func messageIn(m protocol.Message) channels.Message {
	return channels.Message{
		Locator:    m.Locator,
		Owner:      m.Owner,
		Group:      m.Group,
		Channel:    m.Channel,
		KeyVersion: m.KeyVersion,
		IV:         m.IV,
		Length:     m.Length,
	}
}

func principalName(t *token.Token) string {
	if t == nil {
		return ""
	}
	return t.Subject
}
