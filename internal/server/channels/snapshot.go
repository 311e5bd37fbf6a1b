package channels

import (
	"fmt"
	"slices"
)

type ChannelRecord struct {
	Group    string
	Name     string
	Owner    string
	Messages []Message
}

// Snapshot is a consistent copy of the channel index. Bodies are not
// included; they already live in the BlobStore.
type Snapshot struct {
	Channels []ChannelRecord
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chans []Channel
	for k, c := range s.channels {
		chans = append(chans, Channel{Group: k.group, Name: k.name, Owner: c.owner})
	}
	sortChannels(chans)

	snap := Snapshot{Channels: make([]ChannelRecord, 0, len(chans))}
	for _, ch := range chans {
		c := s.channels[channelKey{ch.Group, ch.Name}]
		rec := ChannelRecord{Group: ch.Group, Name: ch.Name, Owner: ch.Owner}
		for _, m := range c.messages {
			rec.Messages = append(rec.Messages, m.clone())
		}
		snap.Channels = append(snap.Channels, rec)
	}
	return snap
}

func (s *Store) Load(snap Snapshot) error {
	chans := make(map[channelKey]*channel, len(snap.Channels))
	for _, rec := range snap.Channels {
		k := channelKey{rec.Group, rec.Name}
		if rec.Group == "" || rec.Name == "" {
			return fmt.Errorf("%w: empty channel name", ErrCorruptSnapshot)
		}
		if _, dup := chans[k]; dup {
			return fmt.Errorf("%w: duplicate channel %s/%s", ErrCorruptSnapshot, rec.Group, rec.Name)
		}
		c := &channel{owner: rec.Owner}
		for _, m := range rec.Messages {
			if m.Group != rec.Group || m.Channel != rec.Name || m.Locator == "" {
				return fmt.Errorf("%w: message %q does not belong to %s/%s", ErrCorruptSnapshot, m.Locator, rec.Group, rec.Name)
			}
			m.IV = slices.Clone(m.IV)
			c.messages = append(c.messages, &m)
		}
		chans[k] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = chans
	return nil
}
