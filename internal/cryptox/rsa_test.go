package cryptox

import (
	"crypto/rsa"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func sharedKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := GenerateKeyPair()
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func TestAsymmetric_KeyTransport(t *testing.T) {
	priv := sharedKey(t)
	sk := GenerateKey()

	enc, err := EncryptAsymmetric(sk, &priv.PublicKey)
	require.NoError(t, err)

	dec, err := DecryptAsymmetric(enc, priv)
	require.NoError(t, err)
	assert.Equal(t, sk, dec)

	enc[0] ^= 0xff
	_, err = DecryptAsymmetric(enc, priv)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestSignVerify(t *testing.T) {
	priv := sharedKey(t)
	data := []byte("alice|G1|host")

	sig, err := Sign(data, priv)
	require.NoError(t, err)

	assert.True(t, Verify(data, sig, &priv.PublicKey))
	assert.False(t, Verify([]byte("alice|G2|host"), sig, &priv.PublicKey))
	assert.False(t, Verify(data, sig, nil))
}

func TestFingerprint_StableAndParseable(t *testing.T) {
	priv := sharedKey(t)

	fp1, err := Fingerprint(&priv.PublicKey)
	require.NoError(t, err)
	fp2, err := Fingerprint(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)

	der, err := MarshalPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pub, err := ParsePublicKey(der)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))

	_, err = ParsePublicKey([]byte("garbage"))
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestLoadOrCreateKeyMaterial(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	km1, created, err := LoadOrCreateKeyMaterial(dir)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, km1.Master, 32)

	km2, created, err := LoadOrCreateKeyMaterial(dir)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, km1.Master, km2.Master)
	assert.True(t, km1.Private.Equal(km2.Private))

	pub, err := ReadPublicKeyFile(filepath.Join(dir, PublicKeyFile))
	require.NoError(t, err)
	assert.True(t, pub.Equal(km1.Public()))
}
