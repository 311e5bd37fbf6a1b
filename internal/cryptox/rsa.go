package cryptox

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// RSAKeyBits is the modulus size of every long-term keypair.
const RSAKeyBits = 2048

// GenerateKeyPair creates a new RSA keypair.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, RSAKeyBits)
}

// EncryptAsymmetric encrypts small key material under pub (RSA-OAEP/SHA-256).
func EncryptAsymmetric(keyMaterial []byte, pub *rsa.PublicKey) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, keyMaterial, nil)
}

// DecryptAsymmetric reverses EncryptAsymmetric. Failures are reported as ErrDecrypt.
func DecryptAsymmetric(ciphertext []byte, priv *rsa.PrivateKey) ([]byte, error) {
	b, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return b, nil
}

// Sign produces an RSA PKCS#1 v1.5 signature over SHA-256(data).
func Sign(data []byte, priv *rsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
}

// Verify reports whether signature is a valid Sign output for data under pub.
func Verify(data, signature []byte, pub *rsa.PublicKey) bool {
	if pub == nil {
		return false
	}
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature) == nil
}

// MarshalPublicKey encodes pub as PKIX DER, the form exchanged on the wire.
func MarshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub)
}

// ParsePublicKey decodes a PKIX DER RSA public key.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	k, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, ErrBadKey
	}
	return pub, nil
}

// Fingerprint is the base64 SHA-256 digest of the DER-encoded public key,
// compared out of band when pinning hosts.
func Fingerprint(pub *rsa.PublicKey) (string, error) {
	der, err := MarshalPublicKey(pub)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(Hash(der)), nil
}
