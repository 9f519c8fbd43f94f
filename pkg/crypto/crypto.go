// Package crypto provides cryptographic primitives for muxpass.
//
// This package implements AES-256-GCM authenticated encryption and the
// Argon2id digest used to hold the session PIN in memory.
//
// # Security Features
//
//   - AES-256-GCM authenticated encryption
//   - Fresh random nonce on every call, stored in front of the ciphertext
//   - Argon2id PIN digests compared in constant time
//   - Secure memory wiping for sensitive data
//
// # Example Usage
//
//	key, err := crypto.GenerateKey()
//
//	// Seal a password (nonce is prepended to the result)
//	blob, err := crypto.Seal(key, []byte("s3cr3t!"))
//
//	// Open it again; tampering yields ErrDecryptionFailed
//	plaintext, err := crypto.Open(key, blob)
//
//	crypto.SecureWipe(key)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/argon2"
)

const (
	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12

	// TagLength is the length of the GCM authentication tag in bytes.
	TagLength = 16

	// Overhead is the number of bytes Seal adds to a plaintext.
	Overhead = NonceLength + TagLength

	// PINSaltLength is the length of the per-PIN random salt.
	PINSaltLength = 16
)

// Argon2id parameters for PIN digests. A PIN is checked interactively on every
// unlock, so these are lighter than a master-password KDF.
const (
	pinArgon2Time    = 1
	pinArgon2Memory  = 16 * 1024
	pinArgon2Threads = 1
	pinDigestLength  = 32
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidNonceLength indicates the nonce is not 12 bytes.
	ErrInvalidNonceLength = errors.New("crypto: invalid nonce length, must be 12 bytes")

	// ErrDecryptionFailed indicates decryption or authentication tag verification failed.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")

	// ErrCiphertextTooShort indicates the ciphertext is shorter than nonce plus tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
)

// GenerateKey returns a new random 32-byte key from crypto/rand.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt encrypts plaintext using AES-256-GCM authenticated encryption.
//
// A cryptographically secure random 12-byte nonce is generated for every
// call, so encrypting the same plaintext twice never yields the same output.
// The authentication tag is appended to the ciphertext.
func Encrypt(key, plaintext []byte) (ciphertext []byte, nonce []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt verifies the authentication tag and decrypts ciphertext.
//
// Returns ErrInvalidKeyLength, ErrInvalidNonceLength, ErrCiphertextTooShort,
// or ErrDecryptionFailed.
func Decrypt(key, ciphertext, nonce []byte) (plaintext []byte, err error) {
	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonceLength
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	plaintext, err = gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext||tag as one blob.
func Seal(key, plaintext []byte) ([]byte, error) {
	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}
	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	return append(blob, ciphertext...), nil
}

// Open reverses Seal.
func Open(key, blob []byte) ([]byte, error) {
	if len(blob) < Overhead {
		return nil, ErrCiphertextTooShort
	}
	return Decrypt(key, blob[NonceLength:], blob[:NonceLength])
}

// SealedLen reports the plaintext length of a blob produced by Seal without
// decrypting it. It returns -1 when the blob is too short to be valid.
func SealedLen(blob []byte) int {
	if len(blob) < Overhead {
		return -1
	}
	return len(blob) - Overhead
}

// NewPINSalt returns a random salt for DerivePINDigest.
func NewPINSalt() ([]byte, error) {
	salt := make([]byte, PINSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// DerivePINDigest derives an Argon2id digest of pin under salt.
func DerivePINDigest(pin, salt []byte) []byte {
	return argon2.IDKey(pin, salt, pinArgon2Time, pinArgon2Memory, pinArgon2Threads, pinDigestLength)
}

// EqualDigest compares two digests in constant time.
func EqualDigest(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive keeps b "in use" after the loop so the writes stay.
	runtime.KeepAlive(b)
}
