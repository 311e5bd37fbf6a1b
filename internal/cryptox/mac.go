package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"golang.org/x/crypto/hkdf"
)

// Subkey derives a 256-bit key bound to label from key using HKDF-SHA256.
func Subkey(key []byte, label string) ([]byte, error) {
	out := make([]byte, common.KeySize)
	r := hkdf.New(sha256.New, key, nil, []byte(label))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MAC computes HMAC-SHA256 over parts, each prefixed with its length so
// that moving bytes between adjacent parts changes the tag.
func MAC(key []byte, parts ...[]byte) []byte {
	m := hmac.New(sha256.New, key)
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		m.Write(n[:])
		m.Write(p)
	}
	return m.Sum(nil)
}

// CheckMAC compares tag with MAC(key, parts...) in constant time.
func CheckMAC(key, tag []byte, parts ...[]byte) bool {
	return hmac.Equal(tag, MAC(key, parts...))
}
