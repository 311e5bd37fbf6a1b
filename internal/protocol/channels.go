package protocol

import (
	"github.com/dmitrijs2005/gophgroups/internal/token"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// OperationData is the plaintext of a message service request: the
// operation itself and the capability token authorizing it.
type OperationData struct {
	Operation *wire.Envelope
	Token     *token.Token
}

func (d OperationData) Envelope() *wire.Envelope {
	return wire.New(TagOperationData, wire.Nested(d.Operation), wire.Nested(d.Token.Envelope()))
}

func DecodeOperationData(e *wire.Envelope) (OperationData, error) {
	f := read(e, TagOperationData, 2)
	op := f.any(0)
	te := f.nested(1, token.Tag)
	if f.err != nil {
		return OperationData{}, f.err
	}
	t, err := token.Decode(te)
	return OperationData{Operation: op, Token: t}, err
}

type Channel struct {
	Group string
	Name  string
	Owner string
}

func (c Channel) Envelope() *wire.Envelope {
	return wire.New(TagChannel, wire.String(c.Group), wire.String(c.Name), wire.String(c.Owner))
}

func DecodeChannel(e *wire.Envelope) (Channel, error) {
	f := read(e, TagChannel, 3)
	c := Channel{Group: f.str(0), Name: f.str(1), Owner: f.str(2)}
	return c, f.err
}

// Message describes a stored message without its body.
type Message struct {
	Locator    string
	Owner      string
	Group      string
	Channel    string
	KeyVersion int
	IV         []byte
	Length     int
}

func (m Message) Envelope() *wire.Envelope {
	return wire.New(TagMessage,
		wire.String(m.Locator),
		wire.String(m.Owner),
		wire.String(m.Group),
		wire.String(m.Channel),
		wire.Int(int64(m.KeyVersion)),
		wire.Bytes(m.IV),
		wire.Int(int64(m.Length)),
	)
}

func DecodeMessage(e *wire.Envelope) (Message, error) {
	f := read(e, TagMessage, 7)
	m := Message{
		Locator:    f.str(0),
		Owner:      f.str(1),
		Group:      f.str(2),
		Channel:    f.str(3),
		KeyVersion: f.int(4),
		IV:         f.bytes(5),
		Length:     f.int(6),
	}
	return m, f.err
}

type MessageAndText struct {
	Message    Message
	Ciphertext []byte
}

func (m MessageAndText) Envelope() *wire.Envelope {
	return wire.New(TagMessageAndText, wire.Nested(m.Message.Envelope()), wire.Bytes(m.Ciphertext))
}

func DecodeMessageAndText(e *wire.Envelope) (MessageAndText, error) {
	f := read(e, TagMessageAndText, 2)
	me := f.nested(0, TagMessage)
	ct := f.bytes(1)
	if f.err != nil {
		return MessageAndText{}, f.err
	}
	m, err := DecodeMessage(me)
	return MessageAndText{Message: m, Ciphertext: ct}, err
}

type GetChannels struct{}

func (GetChannels) Envelope() *wire.Envelope {
	return wire.New(TagGetChannels)
}

func DecodeGetChannels(e *wire.Envelope) (GetChannels, error) {
	return GetChannels{}, expect(e, TagGetChannels, 0)
}

type ChannelsReply struct {
	Channels []Channel
}

func (r ChannelsReply) Envelope() *wire.Envelope {
	out := OK()
	for _, c := range r.Channels {
		out.Add(wire.Nested(c.Envelope()))
	}
	return out
}

func DecodeChannelsReply(e *wire.Envelope) (ChannelsReply, error) {
	if err := expectTag(e, TagOK); err != nil {
		return ChannelsReply{}, err
	}
	r := ChannelsReply{Channels: make([]Channel, 0, e.Len())}
	for i := range e.Len() {
		ce, err := e.NestedTagged(i, TagChannel)
		if err != nil {
			return ChannelsReply{}, err
		}
		c, err := DecodeChannel(ce)
		if err != nil {
			return ChannelsReply{}, err
		}
		r.Channels = append(r.Channels, c)
	}
	return r, nil
}

type CreateChannel struct {
	Group string
	Name  string
}

func (r CreateChannel) Envelope() *wire.Envelope {
	return wire.New(TagCreateChannel, wire.String(r.Group), wire.String(r.Name))
}

func DecodeCreateChannel(e *wire.Envelope) (CreateChannel, error) {
	f := read(e, TagCreateChannel, 2)
	r := CreateChannel{Group: f.str(0), Name: f.str(1)}
	return r, f.err
}

type ChannelReply struct {
	Channel Channel
}

func (r ChannelReply) Envelope() *wire.Envelope {
	return OK(wire.Nested(r.Channel.Envelope()))
}

func DecodeChannelReply(e *wire.Envelope) (ChannelReply, error) {
	f := read(e, TagOK, 1)
	ce := f.nested(0, TagChannel)
	if f.err != nil {
		return ChannelReply{}, f.err
	}
	c, err := DecodeChannel(ce)
	return ChannelReply{Channel: c}, err
}

type DeleteChannel struct {
	Group string
	Name  string
}

func (r DeleteChannel) Envelope() *wire.Envelope {
	return wire.New(TagDeleteChannel, wire.String(r.Group), wire.String(r.Name))
}

func DecodeDeleteChannel(e *wire.Envelope) (DeleteChannel, error) {
	f := read(e, TagDeleteChannel, 2)
	r := DeleteChannel{Group: f.str(0), Name: f.str(1)}
	return r, f.err
}

type SendMessage struct {
	Group      string
	Channel    string
	Ciphertext []byte
	KeyVersion int
	IV         []byte
}

func (r SendMessage) Envelope() *wire.Envelope {
	return wire.New(TagSendMessage,
		wire.String(r.Group),
		wire.String(r.Channel),
		wire.Bytes(r.Ciphertext),
		wire.Int(int64(r.KeyVersion)),
		wire.Bytes(r.IV),
	)
}

func DecodeSendMessage(e *wire.Envelope) (SendMessage, error) {
	f := read(e, TagSendMessage, 5)
	r := SendMessage{
		Group:      f.str(0),
		Channel:    f.str(1),
		Ciphertext: f.bytes(2),
		KeyVersion: f.int(3),
		IV:         f.bytes(4),
	}
	return r, f.err
}

type MessageReply struct {
	Message Message
}

func (r MessageReply) Envelope() *wire.Envelope {
	return OK(wire.Nested(r.Message.Envelope()))
}

func DecodeMessageReply(e *wire.Envelope) (MessageReply, error) {
	f := read(e, TagOK, 1)
	me := f.nested(0, TagMessage)
	if f.err != nil {
		return MessageReply{}, f.err
	}
	m, err := DecodeMessage(me)
	return MessageReply{Message: m}, err
}

type SetMessage struct {
	Message    Message
	Ciphertext []byte
	KeyVersion int
	IV         []byte
}

func (r SetMessage) Envelope() *wire.Envelope {
	return wire.New(TagSetMessage,
		wire.Nested(r.Message.Envelope()),
		wire.Bytes(r.Ciphertext),
		wire.Int(int64(r.KeyVersion)),
		wire.Bytes(r.IV),
	)
}

func DecodeSetMessage(e *wire.Envelope) (SetMessage, error) {
	f := read(e, TagSetMessage, 4)
	me := f.nested(0, TagMessage)
	r := SetMessage{Ciphertext: f.bytes(1), KeyVersion: f.int(2), IV: f.bytes(3)}
	if f.err != nil {
		return SetMessage{}, f.err
	}
	m, err := DecodeMessage(me)
	r.Message = m
	return r, err
}

type DeleteMessage struct {
	Message Message
}

func (r DeleteMessage) Envelope() *wire.Envelope {
	return wire.New(TagDeleteMessage, wire.Nested(r.Message.Envelope()))
}

func DecodeDeleteMessage(e *wire.Envelope) (DeleteMessage, error) {
	f := read(e, TagDeleteMessage, 1)
	me := f.nested(0, TagMessage)
	if f.err != nil {
		return DeleteMessage{}, f.err
	}
	m, err := DecodeMessage(me)
	return DeleteMessage{Message: m}, err
}

type ReadMessages struct {
	Group   string
	Channel string
}

func (r ReadMessages) Envelope() *wire.Envelope {
	return wire.New(TagReadMessages, wire.String(r.Group), wire.String(r.Channel))
}

func DecodeReadMessages(e *wire.Envelope) (ReadMessages, error) {
	f := read(e, TagReadMessages, 2)
	r := ReadMessages{Group: f.str(0), Channel: f.str(1)}
	return r, f.err
}

type ReadMessagesReply struct {
	Messages []MessageAndText
}

func (r ReadMessagesReply) Envelope() *wire.Envelope {
	out := OK()
	for _, m := range r.Messages {
		out.Add(wire.Nested(m.Envelope()))
	}
	return out
}

func DecodeReadMessagesReply(e *wire.Envelope) (ReadMessagesReply, error) {
	if err := expectTag(e, TagOK); err != nil {
		return ReadMessagesReply{}, err
	}
	r := ReadMessagesReply{Messages: make([]MessageAndText, 0, e.Len())}
	for i := range e.Len() {
		me, err := e.NestedTagged(i, TagMessageAndText)
		if err != nil {
			return ReadMessagesReply{}, err
		}
		m, err := DecodeMessageAndText(me)
		if err != nil {
			return ReadMessagesReply{}, err
		}
		r.Messages = append(r.Messages, m)
	}
	return r, nil
}
