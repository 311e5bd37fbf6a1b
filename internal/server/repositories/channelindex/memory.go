package channelindex

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/gophgroups/internal/server/channels"
)

type MemoryRepository struct {
	mu   sync.Mutex
	snap channels.Snapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(ctx context.Context, snap channels.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = clone(snap)
	return nil
}

func (r *MemoryRepository) Load(ctx context.Context) (channels.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.snap), nil
}

func clone(s channels.Snapshot) channels.Snapshot {
	var out channels.Snapshot
	for _, c := range s.Channels {
		rec := channels.ChannelRecord{Group: c.Group, Name: c.Name, Owner: c.Owner}
		for _, m := range c.Messages {
			m.IV = slices.Clone(m.IV)
			rec.Messages = append(rec.Messages, m)
		}
		out.Channels = append(out.Channels, rec)
	}
	return out
}
