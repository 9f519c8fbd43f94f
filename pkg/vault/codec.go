package vault

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/forest6511/muxpass/pkg/crypto"
)

// Codec encrypts and decrypts individual password fields.
//
// Encryption is non-deterministic: every call embeds a fresh random nonce, so
// two encryptions of the same password never produce the same ciphertext.
type Codec struct {
	key []byte
}

// NewCodec returns a Codec using key. The key is copied.
func NewCodec(key []byte) *Codec {
	return &Codec{key: bytes.Clone(key)}
}

// Encrypt encrypts a plaintext password of any length, including empty.
func (c *Codec) Encrypt(plaintext string) ([]byte, error) {
	blob, err := crypto.Seal(c.key, []byte(plaintext))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	return blob, nil
}

// Decrypt returns the plaintext for ciphertext. It never returns a partial or
// default value: malformed, foreign-key, or tampered input fails with
// ErrDecryption.
func (c *Codec) Decrypt(ciphertext []byte) (string, error) {
	plaintext, err := crypto.Open(c.key, ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	defer crypto.SecureWipe(plaintext)
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecryption)
	}
	return string(plaintext), nil
}

// PlaintextLen returns the password length in bytes without decrypting.
// It returns -1 for a ciphertext too short to be valid.
func (c *Codec) PlaintextLen(ciphertext []byte) int {
	return crypto.SealedLen(ciphertext)
}

// Close wipes the key held by the codec.
func (c *Codec) Close() {
	crypto.SecureWipe(c.key)
}
