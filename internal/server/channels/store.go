// Package channels is the message service's channel and message index plus
// the BlobStore backends holding message bodies. The service never holds
// group keys; bodies are stored and returned exactly as the client
// encrypted them.
package channels

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Principal is who a request acts for, as attested by a capability token.
type Principal struct {
	Subject string
	Groups  []string
}

func (p Principal) InGroup(group string) bool {
	return slices.Contains(p.Groups, group)
}

type Channel struct {
	Group string
	Name  string
	Owner string
}

// Message is a stored message's metadata; the body lives in the BlobStore
// under Locator.
type Message struct {
	Locator    string
	Owner      string
	Group      string
	Channel    string
	KeyVersion int
	IV         []byte
	Length     int
}

// MessageWithText pairs a message with its stored ciphertext.
type MessageWithText struct {
	Message    Message
	Ciphertext []byte
}

type channelKey struct {
	group string
	name  string
}

type channel struct {
	owner    string
	messages []*Message
}

func (c *channel) find(locator string) int {
	return slices.IndexFunc(c.messages, func(m *Message) bool { return m.Locator == locator })
}

// Store indexes channels and their messages. Blob I/O happens under the same
// lock, so an index update and its body write are one step.
type Store struct {
	mu         sync.Mutex
	channels   map[channelKey]*channel
	blobs      BlobStore
	maxBytes   int
	newLocator func() string
}

// NewStore creates a store writing bodies to blobs. maxBytes <= 0 disables
// the size limit.
func NewStore(blobs BlobStore, maxBytes int) *Store {
	return &Store{
		channels:   make(map[channelKey]*channel),
		blobs:      blobs,
		maxBytes:   maxBytes,
		newLocator: NewLocator,
	}
}

// ListChannels returns the channels whose group p belongs to, ordered by
// group and name.
func (s *Store) ListChannels(p Principal) []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Channel
	for k, c := range s.channels {
		if p.InGroup(k.group) {
			out = append(out, Channel{Group: k.group, Name: k.name, Owner: c.owner})
		}
	}
	sortChannels(out)
	return out
}

func (s *Store) CreateChannel(p Principal, group, name string) (Channel, error) {
	if group == "" || name == "" {
		return Channel{}, ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !p.InGroup(group) {
		return Channel{}, ErrUnauthorizedGroup
	}
	k := channelKey{group, name}
	if _, ok := s.channels[k]; ok {
		return Channel{}, ErrChannelExists
	}
	s.channels[k] = &channel{owner: p.Subject}
	return Channel{Group: group, Name: name, Owner: p.Subject}, nil
}

// DeleteChannel removes a channel owned by p together with every message
// body in it.
func (s *Store) DeleteChannel(ctx context.Context, p Principal, group, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := channelKey{group, name}
	c, ok := s.channels[k]
	if !ok {
		return ErrNoChannel
	}
	if c.owner != p.Subject {
		return ErrUnauthorized
	}

	for len(c.messages) > 0 {
		m := c.messages[0]
		if err := s.blobs.Delete(ctx, m.Locator); err != nil && !errors.Is(err, ErrBlobNotFound) {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
		c.messages = c.messages[1:]
	}
	delete(s.channels, k)
	return nil
}

// SendMessage stores ciphertext as a new message owned by p.
func (s *Store) SendMessage(ctx context.Context, p Principal, group, name string, ciphertext []byte, keyVersion int, iv []byte) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[channelKey{group, name}]
	if !ok {
		return Message{}, ErrNoChannel
	}
	if !p.InGroup(group) {
		return Message{}, ErrUnauthorized
	}
	if s.tooLong(ciphertext) {
		return Message{}, ErrTextTooLong
	}

	m := &Message{
		Locator:    s.newLocator(),
		Owner:      p.Subject,
		Group:      group,
		Channel:    name,
		KeyVersion: keyVersion,
		IV:         slices.Clone(iv),
		Length:     len(ciphertext),
	}
	if err := s.blobs.Put(ctx, m.Locator, ciphertext); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	c.messages = append(c.messages, m)
	return m.clone(), nil
}

// SetMessage replaces the body, key version and IV of a message p owns.
// ref identifies the message by group, channel and locator.
func (s *Store) SetMessage(ctx context.Context, p Principal, ref Message, ciphertext []byte, keyVersion int, iv []byte) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, i, err := s.ownedMessageLocked(p, ref)
	if err != nil {
		return Message{}, err
	}
	if s.tooLong(ciphertext) {
		return Message{}, ErrTextTooLong
	}

	m := c.messages[i]
	if _, err := s.blobs.Get(ctx, m.Locator); err != nil {
		return Message{}, storageErr(err)
	}
	if err := s.blobs.Put(ctx, m.Locator, ciphertext); err != nil {
		return Message{}, storageErr(err)
	}
	m.KeyVersion = keyVersion
	m.IV = slices.Clone(iv)
	m.Length = len(ciphertext)
	return m.clone(), nil
}

// DeleteMessage removes a message p owns and its body.
func (s *Store) DeleteMessage(ctx context.Context, p Principal, ref Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, i, err := s.ownedMessageLocked(p, ref)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, c.messages[i].Locator); err != nil {
		return storageErr(err)
	}
	c.messages = slices.Delete(c.messages, i, i+1)
	return nil
}

// ReadMessages returns every message of a channel with its ciphertext.
func (s *Store) ReadMessages(ctx context.Context, p Principal, group, name string) ([]MessageWithText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[channelKey{group, name}]
	if !ok {
		return nil, ErrNoChannel
	}
	if !p.InGroup(group) {
		return nil, ErrUnauthorizedChannel
	}

	out := make([]MessageWithText, 0, len(c.messages))
	for _, m := range c.messages {
		b, err := s.blobs.Get(ctx, m.Locator)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, MessageWithText{Message: m.clone(), Ciphertext: b})
	}
	return out, nil
}

func (s *Store) ownedMessageLocked(p Principal, ref Message) (*channel, int, error) {
	c, ok := s.channels[channelKey{ref.Group, ref.Channel}]
	if !ok {
		return nil, 0, ErrNoChannel
	}
	if !p.InGroup(ref.Group) {
		return nil, 0, ErrUnauthorizedChannel
	}
	i := c.find(ref.Locator)
	if i < 0 {
		return nil, 0, ErrNoMessage
	}
	if c.messages[i].Owner != p.Subject {
		return nil, 0, ErrUnauthorizedMessage
	}
	return c, i, nil
}

func (s *Store) tooLong(b []byte) bool {
	return s.maxBytes > 0 && len(b) > s.maxBytes
}

func (m *Message) clone() Message {
	out := *m
	out.IV = slices.Clone(m.IV)
	return out
}

// storageErr keeps ErrBlobNotFound visible and marks everything as storage.
func storageErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func sortChannels(cs []Channel) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Group != cs[j].Group {
			return cs[i].Group < cs[j].Group
		}
		return cs[i].Name < cs[j].Name
	})
}
