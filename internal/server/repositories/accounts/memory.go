package accounts

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/gophgroups/internal/server/directory"
)

// MemoryRepository keeps the last saved snapshot in process memory. It is
// used when no database is configured.
type MemoryRepository struct {
	mu   sync.Mutex
	snap directory.Snapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(ctx context.Context, snap directory.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = clone(snap)
	return nil
}

func (r *MemoryRepository) Load(ctx context.Context) (directory.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.snap), nil
}

func clone(s directory.Snapshot) directory.Snapshot {
	var out directory.Snapshot
	for _, u := range s.Users {
		out.Users = append(out.Users, directory.UserRecord{Name: u.Name, Key: slices.Clone(u.Key), Salt: slices.Clone(u.Salt)})
	}
	for _, g := range s.Groups {
		keys := make([][]byte, len(g.Keys))
		for i, k := range g.Keys {
			keys[i] = slices.Clone(k)
		}
		out.Groups = append(out.Groups, directory.GroupRecord{
			Name:    g.Name,
			Owner:   g.Owner,
			Members: slices.Clone(g.Members),
			Keys:    keys,
		})
	}
	return out
}
