// Package directory holds users, groups and the per-group key versions. All
// state sits behind one mutex so that compound updates such as "remove a
// member and rotate the key" are never observed half done.
package directory

import (
	"slices"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
)

type user struct {
	key  []byte
	salt []byte
}

type group struct {
	owner   string
	members []string
	keys    [][]byte
}

func (g *group) isMember(name string) bool {
	return slices.Contains(g.members, name)
}

// Store is the in-memory directory.
type Store struct {
	mu     sync.Mutex
	users  map[string]*user
	groups map[string]*group
	newKey func() []byte
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]*user),
		groups: make(map[string]*group),
		newKey: cryptox.GenerateKey,
	}
}

// Credentials returns the stored long-term key and salt of username.
func (s *Store) Credentials(username string) (key, salt []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return nil, nil, ErrBadRequester
	}
	return slices.Clone(u.key), slices.Clone(u.salt), nil
}

// Exists reports whether username is known.
func (s *Store) Exists(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	return ok
}

// CreateUser adds a user. The requester must belong to the admin group.
func (s *Store) CreateUser(requester, username string, key, salt []byte) error {
	if username == "" || len(key) != common.KeySize || len(salt) == 0 {
		return ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAdmin(requester); err != nil {
		return err
	}
	if _, ok := s.users[username]; ok {
		return ErrUserExists
	}
	s.users[username] = &user{key: slices.Clone(key), salt: slices.Clone(salt)}
	return nil
}

// DeleteUser removes username: its owned groups are deleted, it leaves every
// other group with a key rotation each, then the record goes.
func (s *Store) DeleteUser(requester, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAdmin(requester); err != nil {
		return err
	}
	if _, ok := s.users[username]; !ok {
		return ErrBadUser
	}

	for _, name := range s.ownedLocked(username) {
		delete(s.groups, name)
	}
	for _, name := range s.groupsOfLocked(username) {
		g := s.groups[name]
		g.members = slices.DeleteFunc(g.members, func(m string) bool { return m == username })
		s.rotateLocked(g)
	}
	delete(s.users, username)
	return nil
}

// CreateGroup makes requester owner and first member of a new group with key
// version 0.
func (s *Store) CreateGroup(requester, name string) error {
	if name == "" {
		return ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[requester]; !ok {
		return ErrBadRequester
	}
	if _, ok := s.groups[name]; ok {
		return ErrGroupExists
	}
	s.groups[name] = &group{
		owner:   requester,
		members: []string{requester},
		keys:    [][]byte{s.newKey()},
	}
	return nil
}

// DeleteGroup removes a group owned by requester.
func (s *Store) DeleteGroup(requester, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[requester]; !ok {
		return ErrBadRequester
	}
	g, ok := s.groups[name]
	if !ok || g.owner != requester {
		return ErrUnauthorized
	}
	delete(s.groups, name)
	return nil
}

// AddUserToGroup adds username to a group owned by requester. Growth does
// not rotate the key.
func (s *Store) AddUserToGroup(requester, username, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.ownedGroupLocked(requester, username, name)
	if err != nil {
		return err
	}
	if g.isMember(username) {
		return ErrAlreadyMember
	}
	g.members = append(g.members, username)
	return nil
}

// RemoveUserFromGroup removes username from a group owned by requester and
// rotates the group key. An owner removing themself deletes the group.
func (s *Store) RemoveUserFromGroup(requester, username, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.ownedGroupLocked(requester, username, name)
	if err != nil {
		return err
	}
	if !g.isMember(username) {
		return ErrNotMember
	}
	g.members = slices.DeleteFunc(g.members, func(m string) bool { return m == username })
	s.rotateLocked(g)

	if username == requester {
		delete(s.groups, name)
	}
	return nil
}

// ListMembers returns the members of a group requester belongs to.
func (s *Store) ListMembers(requester, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[requester]; !ok {
		return nil, ErrBadRequester
	}
	g, ok := s.groups[name]
	if !ok {
		return nil, ErrNoGroup
	}
	if !g.isMember(requester) {
		return nil, ErrUnauthorized
	}
	return slices.Clone(g.members), nil
}

// Groups returns the sorted names of the groups username belongs to.
func (s *Store) Groups(username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return nil, ErrBadRequester
	}
	return s.groupsOfLocked(username), nil
}

// Owner returns the owner of a group.
func (s *Store) Owner(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		return "", ErrNoGroup
	}
	return g.owner, nil
}

func (s *Store) checkAdmin(requester string) error {
	if _, ok := s.users[requester]; !ok {
		return ErrBadRequester
	}
	admin, ok := s.groups[common.AdminGroup]
	if !ok || !admin.isMember(requester) {
		return ErrUnauthorized
	}
	return nil
}

// ownedGroupLocked runs the shared membership-change checks in order:
// requester, group, target user, ownership.
func (s *Store) ownedGroupLocked(requester, username, name string) (*group, error) {
	if _, ok := s.users[requester]; !ok {
		return nil, ErrBadRequester
	}
	g, ok := s.groups[name]
	if !ok {
		return nil, ErrNoGroup
	}
	if _, ok := s.users[username]; !ok {
		return nil, ErrNoUser
	}
	if g.owner != requester {
		return nil, ErrUnauthorized
	}
	return g, nil
}

func (s *Store) groupsOfLocked(username string) []string {
	var out []string
	for name, g := range s.groups {
		if g.isMember(username) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Store) ownedLocked(username string) []string {
	var out []string
	for name, g := range s.groups {
		if g.owner == username {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
