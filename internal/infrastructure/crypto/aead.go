package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// SealedPrefix marks a value in a target file that must be decrypted before use.
const SealedPrefix = "enc:"

// KeySize is the master key length in bytes.
const KeySize = chacha20poly1305.KeySize

var ErrCiphertext = errors.New("malformed ciphertext")

// AEAD encrypts short secrets with XChaCha20-Poly1305. Output is
// base64(nonce || ciphertext).
type AEAD struct{ aead cipher.AEAD }

func New(key []byte) (*AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes (got %d)", KeySize, len(key))
	}
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &AEAD{aead: a}, nil
}

func (a *AEAD) EncryptToString(plaintext string) (string, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := a.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.RawStdEncoding.EncodeToString(append(nonce, ct...)), nil
}

func (a *AEAD) DecryptString(ciphertextB64 string) (string, error) {
	buf, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(ciphertextB64))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	ns := a.aead.NonceSize()
	if len(buf) < ns {
		return "", fmt.Errorf("%w: too short", ErrCiphertext)
	}
	pt, err := a.aead.Open(nil, buf[:ns], buf[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return string(pt), nil
}

// Seal returns "enc:<ciphertext>".
func (a *AEAD) Seal(plaintext string) (string, error) {
	ct, err := a.EncryptToString(plaintext)
	if err != nil {
		return "", err
	}
	return SealedPrefix + ct, nil
}

// Reveal decrypts a sealed value and passes anything else through unchanged.
func (a *AEAD) Reveal(v string) (string, error) {
	if !IsSealed(v) {
		return v, nil
	}
	return a.DecryptString(strings.TrimPrefix(v, SealedPrefix))
}

func IsSealed(v string) bool { return strings.HasPrefix(v, SealedPrefix) }

// DeriveKey expands the master key into an independent n-byte key for purpose.
func DeriveKey(master []byte, purpose string, n int) ([]byte, error) {
	if len(master) == 0 {
		return nil, errors.New("master key is empty")
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte("tockbook/"+purpose)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateKey returns a fresh master key, base64 encoded.
func GenerateKey() (string, error) {
	k := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}
