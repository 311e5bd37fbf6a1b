package directory

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
)

var ErrCorruptSnapshot = errors.New("corrupt directory snapshot")

type UserRecord struct {
	Name string
	Key  []byte
	Salt []byte
}

type GroupRecord struct {
	Name    string
	Owner   string
	Members []string
	Keys    [][]byte
}

// Snapshot is a consistent copy of the whole directory.
type Snapshot struct {
	Users  []UserRecord
	Groups []GroupRecord
}

// Snapshot copies the directory under the lock, ordered by name.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	for name, u := range s.users {
		snap.Users = append(snap.Users, UserRecord{Name: name, Key: slices.Clone(u.key), Salt: slices.Clone(u.salt)})
	}
	for name, g := range s.groups {
		snap.Groups = append(snap.Groups, GroupRecord{
			Name:    name,
			Owner:   g.owner,
			Members: slices.Clone(g.members),
			Keys:    cloneKeys(g.keys),
		})
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].Name < snap.Users[j].Name })
	sort.Slice(snap.Groups, func(i, j int) bool { return snap.Groups[i].Name < snap.Groups[j].Name })
	return snap
}

// Load replaces the directory with snap after checking its invariants.
func (s *Store) Load(snap Snapshot) error {
	users := make(map[string]*user, len(snap.Users))
	for _, u := range snap.Users {
		if u.Name == "" {
			return fmt.Errorf("%w: empty user name", ErrCorruptSnapshot)
		}
		if _, dup := users[u.Name]; dup {
			return fmt.Errorf("%w: duplicate user %q", ErrCorruptSnapshot, u.Name)
		}
		users[u.Name] = &user{key: slices.Clone(u.Key), salt: slices.Clone(u.Salt)}
	}

	groups := make(map[string]*group, len(snap.Groups))
	for _, g := range snap.Groups {
		if _, dup := groups[g.Name]; dup {
			return fmt.Errorf("%w: duplicate group %q", ErrCorruptSnapshot, g.Name)
		}
		if len(g.Keys) == 0 {
			return fmt.Errorf("%w: group %q has no keys", ErrCorruptSnapshot, g.Name)
		}
		if !slices.Contains(g.Members, g.Owner) {
			return fmt.Errorf("%w: owner of %q is not a member", ErrCorruptSnapshot, g.Name)
		}
		for _, m := range g.Members {
			if _, ok := users[m]; !ok {
				return fmt.Errorf("%w: group %q lists unknown user %q", ErrCorruptSnapshot, g.Name, m)
			}
		}
		groups[g.Name] = &group{owner: g.Owner, members: slices.Clone(g.Members), keys: cloneKeys(g.Keys)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.groups = groups
	return nil
}

// Bootstrap creates the admin user and the admin group when the directory is
// empty. It reports whether anything was created.
func (s *Store) Bootstrap(admin string, password []byte) (bool, error) {
	if admin == "" || len(password) == 0 {
		return false, ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.users) > 0 {
		return false, nil
	}

	salt := cryptox.GenerateSalt()
	s.users[admin] = &user{key: cryptox.DeriveKey(password, salt), salt: salt}
	s.groups[common.AdminGroup] = &group{
		owner:   admin,
		members: []string{admin},
		keys:    [][]byte{s.newKey()},
	}
	return true, nil
}
