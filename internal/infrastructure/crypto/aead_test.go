package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte { return bytes.Repeat([]byte{b}, KeySize) }

func TestSealReveal(t *testing.T) {
	a, err := New(testKey(1))
	require.NoError(t, err)

	sealed, err := a.Seal("hunter2")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "hunter2")

	got, err := a.Reveal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	plain, err := a.Reveal("not sealed")
	require.NoError(t, err)
	assert.Equal(t, "not sealed", plain)
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	a, err := New(testKey(1))
	require.NoError(t, err)

	x, _ := a.EncryptToString("same")
	y, _ := a.EncryptToString("same")
	assert.NotEqual(t, x, y)
}

func TestDecryptRejectsWrongKeyAndGarbage(t *testing.T) {
	a, _ := New(testKey(1))
	b, _ := New(testKey(2))
	ct, err := a.EncryptToString("secret")
	require.NoError(t, err)

	_, err = b.DecryptString(ct)
	assert.ErrorIs(t, err, ErrCiphertext)
	_, err = a.DecryptString("!!!")
	assert.ErrorIs(t, err, ErrCiphertext)
	_, err = a.DecryptString("AAAA")
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)
}

func TestDeriveKey(t *testing.T) {
	master := testKey(7)
	a, err := DeriveKey(master, "session-hash", 32)
	require.NoError(t, err)
	b, err := DeriveKey(master, "session-block", 32)
	require.NoError(t, err)
	again, _ := DeriveKey(master, "session-hash", 32)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)

	_, err = DeriveKey(nil, "x", 32)
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(k)
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)
}
