package client

import (
	"fmt"

	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
)

// GroupKeyMap holds every key version of each group, index = version.
type GroupKeyMap map[string][][]byte

// Latest returns the newest key of group, used for new content.
func (m GroupKeyMap) Latest(group string) (int, []byte, error) {
	keys := m[group]
	if len(keys) == 0 {
		return 0, nil, fmt.Errorf("%w %q", ErrNoGroupKey, group)
	}
	return len(keys) - 1, keys[len(keys)-1], nil
}

// At returns the key a message was encrypted with.
func (m GroupKeyMap) At(group string, version int) ([]byte, error) {
	keys := m[group]
	if version < 0 || version >= len(keys) {
		return nil, fmt.Errorf("%w %q version %d", ErrNoGroupKey, group, version)
	}
	return keys[version], nil
}

// Encrypt seals plaintext under the newest key of group.
func (m GroupKeyMap) Encrypt(group string, plaintext []byte) (ciphertext, iv []byte, version int, err error) {
	version, key, err := m.Latest(group)
	if err != nil {
		return nil, nil, 0, err
	}
	ciphertext, iv, err = cryptox.Seal(plaintext, key)
	if err != nil {
		return nil, nil, 0, err
	}
	return ciphertext, iv, version, nil
}

// Decrypt opens ciphertext with the key version recorded on the message.
func (m GroupKeyMap) Decrypt(group string, version int, ciphertext, iv []byte) ([]byte, error) {
	key, err := m.At(group, version)
	if err != nil {
		return nil, err
	}
	return cryptox.DecryptSymmetric(ciphertext, key, iv)
}
