package directory

import (
	"slices"
)

// GroupKeys is every key version of one group, index = version.
type GroupKeys struct {
	Group string
	Keys  [][]byte
}

// CurrentKey returns the newest key version of a group.
func (s *Store) CurrentKey(name string) (int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		return 0, nil, ErrNoGroup
	}
	v := len(g.keys) - 1
	return v, slices.Clone(g.keys[v]), nil
}

// KeyAt returns key version v of a group.
func (s *Store) KeyAt(name string, v int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		return nil, ErrNoGroup
	}
	if v < 0 || v >= len(g.keys) {
		return nil, ErrNoKeyVersion
	}
	return slices.Clone(g.keys[v]), nil
}

// Rotate appends a fresh key and returns its version.
func (s *Store) Rotate(name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		return 0, ErrNoGroup
	}
	return s.rotateLocked(g), nil
}

// AllKeys returns every key version of a group.
func (s *Store) AllKeys(name string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		return nil, ErrNoGroup
	}
	return cloneKeys(g.keys), nil
}

// KeysFor returns the complete key lists of every group username belongs to.
func (s *Store) KeysFor(username string) ([]GroupKeys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return nil, ErrBadRequester
	}
	names := s.groupsOfLocked(username)
	out := make([]GroupKeys, 0, len(names))
	for _, name := range names {
		out = append(out, GroupKeys{Group: name, Keys: cloneKeys(s.groups[name].keys)})
	}
	return out, nil
}

func (s *Store) rotateLocked(g *group) int {
	g.keys = append(g.keys, s.newKey())
	return len(g.keys) - 1
}

func cloneKeys(keys [][]byte) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = slices.Clone(k)
	}
	return out
}
