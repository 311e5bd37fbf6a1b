package cryptox

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophgroups/internal/common"
)

// File names inside a key directory.
const (
	PrivateKeyFile = "private.pem"
	PublicKeyFile  = "public.pem"
	MasterKeyFile  = "master.key"
)

// KeyMaterial is a service's long-term identity: an RSA keypair and a
// symmetric master key used only by the service itself.
type KeyMaterial struct {
	Private *rsa.PrivateKey
	Master  []byte
}

// Public returns the public half of the keypair.
func (k *KeyMaterial) Public() *rsa.PublicKey {
	return &k.Private.PublicKey
}

// LoadOrCreateKeyMaterial reads the keypair and master key from dir. When
// none of the files exist, fresh material is generated and written; created
// reports that case. A partially populated directory is an error.
func LoadOrCreateKeyMaterial(dir string) (km *KeyMaterial, created bool, err error) {
	km, err = loadKeyMaterial(dir)
	if err == nil {
		return km, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("%w: %v", common.ErrKeyMaterial, err)
	}

	priv, err := GenerateKeyPair()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", common.ErrKeyMaterial, err)
	}
	km = &KeyMaterial{Private: priv, Master: GenerateKey()}
	if err := writeKeyMaterial(dir, km); err != nil {
		return nil, false, fmt.Errorf("%w: %v", common.ErrKeyMaterial, err)
	}
	return km, true, nil
}

func loadKeyMaterial(dir string) (*KeyMaterial, error) {
	privPEM, err := os.ReadFile(filepath.Join(dir, PrivateKeyFile))
	if err != nil {
		return nil, err
	}
	master, err := os.ReadFile(filepath.Join(dir, MasterKeyFile))
	if err != nil {
		return nil, err
	}
	if len(master) != common.KeySize {
		return nil, ErrBadKey
	}

	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, ErrBadKey
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrBadKey
	}
	return &KeyMaterial{Private: priv, Master: master}, nil
}

func writeKeyMaterial(dir string, km *KeyMaterial) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(km.Private)
	if err != nil {
		return err
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(filepath.Join(dir, PrivateKeyFile), privPEM, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, MasterKeyFile), km.Master, 0o600); err != nil {
		return err
	}
	return WritePublicKeyFile(filepath.Join(dir, PublicKeyFile), km.Public())
}

// WritePublicKeyFile stores pub as a PEM-encoded PKIX key.
func WritePublicKeyFile(path string, pub *rsa.PublicKey) error {
	der, err := MarshalPublicKey(pub)
	if err != nil {
		return err
	}
	return os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o644)
}

// ReadPublicKeyFile loads a PEM-encoded PKIX RSA public key.
func ReadPublicKeyFile(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, ErrBadKey
	}
	return ParsePublicKey(block.Bytes)
}
