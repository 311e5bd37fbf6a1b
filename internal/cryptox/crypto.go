// Package cryptox wraps the symmetric and asymmetric primitives the session
// protocol is built from: password key derivation, AES-256-CBC with a fresh
// IV per call, RSA key transport and signatures, fingerprints and the
// proof-of-work check used by the message service.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"golang.org/x/crypto/argon2"
)

var (
	// ErrDecrypt is returned for every decryption failure. It deliberately
	// does not say whether the key, the IV, the padding or the MAC was wrong.
	ErrDecrypt = errors.New("decryption failed")

	// ErrBadKey is returned when key material has the wrong size or encoding.
	ErrBadKey = errors.New("bad key")
)

// Argon2id parameters for password-derived keys.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

// DeriveKey turns a password and salt into a 256-bit symmetric key.
// The same inputs always produce the same key.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, kdfTime, kdfMemory, kdfThreads, common.KeySize)
}

// GenerateSalt returns a fresh 8-byte salt.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(common.SaltSize)
}

// GenerateIV returns a fresh 16-byte CBC initialization vector.
func GenerateIV() []byte {
	return common.GenerateRandByteArray(common.IVSize)
}

// GenerateKey returns a fresh 256-bit symmetric key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(common.KeySize)
}

// Hash is the generic one-way hash used across the protocol (SHA-256).
func Hash(data ...[]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// EncryptSymmetric encrypts plaintext with AES-256-CBC and PKCS#7 padding
// under the given key and IV. Callers that do not need to choose the IV
// should use Seal, which cannot reuse one.
func EncryptSymmetric(plaintext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, ErrBadKey
	}

	padded := pad(plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, nil
}

// DecryptSymmetric reverses EncryptSymmetric. Any failure is reported as ErrDecrypt.
func DecryptSymmetric(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecrypt
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpad(plaintext)
}

// Seal encrypts plaintext under key with a freshly generated IV and returns
// both. It is the only encryption entry point used by the session layer.
func Seal(plaintext, key []byte) (ciphertext, iv []byte, err error) {
	iv = GenerateIV()
	ciphertext, err = EncryptSymmetric(plaintext, key, iv)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, iv, nil
}

func newBlock(key []byte) (cipher.Block, error) {
	if len(key) != common.KeySize {
		return nil, ErrBadKey
	}
	return aes.NewCipher(key)
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrDecrypt
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrDecrypt
		}
	}
	return b[:len(b)-n], nil
}
