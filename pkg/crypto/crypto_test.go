package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, key, KeyLength)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("s3cr3t!")},
		{"delimiter-like", []byte("a,b,c\nd\r\n,,")},
		{"unicode", []byte("пароль-密码-🔑")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x00}},
		{"large", bytes.Repeat([]byte("x"), 64*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, nonce, err := Encrypt(key, tt.plaintext)
			require.NoError(t, err)
			assert.Len(t, nonce, NonceLength)
			assert.Len(t, ciphertext, len(tt.plaintext)+TagLength)

			got, err := Decrypt(key, ciphertext, nonce)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.plaintext, got), "round trip mismatch")
		})
	}
}

func TestEncryptInvalidKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 24, 31, 33, 48} {
		_, _, err := Encrypt(make([]byte, n), []byte("data"))
		assert.ErrorIs(t, err, ErrInvalidKeyLength, "key length %d", n)

		_, err = Seal(make([]byte, n), []byte("data"))
		assert.ErrorIs(t, err, ErrInvalidKeyLength, "key length %d", n)
	}
}

func TestDecryptErrors(t *testing.T) {
	key := testKey(t)
	ciphertext, nonce, err := Encrypt(key, []byte("secret"))
	require.NoError(t, err)

	_, err = Decrypt(key, ciphertext, nonce[:8])
	assert.ErrorIs(t, err, ErrInvalidNonceLength)

	_, err = Decrypt(key[:16], ciphertext, nonce)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = Decrypt(key, ciphertext[:TagLength-1], nonce)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	otherKey := testKey(t)
	_, err = Decrypt(otherKey, ciphertext, nonce)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSealOpen(t *testing.T) {
	key := testKey(t)

	blob, err := Seal(key, []byte("hunter2"))
	require.NoError(t, err)
	assert.Len(t, blob, len("hunter2")+Overhead)
	assert.Equal(t, len("hunter2"), SealedLen(blob))

	got, err := Open(key, blob)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(got))
}

func TestSealIsNonDeterministic(t *testing.T) {
	key := testKey(t)

	a, err := Seal(key, []byte("same input"))
	require.NoError(t, err)
	b, err := Seal(key, []byte("same input"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a[:NonceLength], b[:NonceLength])
}

func TestOpenDetectsEveryFlippedByte(t *testing.T) {
	key := testKey(t)
	blob, err := Seal(key, []byte("tamper me"))
	require.NoError(t, err)

	for i := range blob {
		tampered := bytes.Clone(blob)
		tampered[i] ^= 0x01

		_, err := Open(key, tampered)
		require.Error(t, err, "byte %d", i)
		assert.True(t, errors.Is(err, ErrDecryptionFailed), "byte %d: %v", i, err)
	}
}

func TestOpenTooShort(t *testing.T) {
	key := testKey(t)
	_, err := Open(key, make([]byte, Overhead-1))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
	assert.Equal(t, -1, SealedLen(make([]byte, Overhead-1)))
}

func TestPINDigest(t *testing.T) {
	salt, err := NewPINSalt()
	require.NoError(t, err)
	require.Len(t, salt, PINSaltLength)

	d1 := DerivePINDigest([]byte("1234"), salt)
	d2 := DerivePINDigest([]byte("1234"), salt)
	d3 := DerivePINDigest([]byte("0000"), salt)

	assert.True(t, EqualDigest(d1, d2))
	assert.False(t, EqualDigest(d1, d3))

	otherSalt, err := NewPINSalt()
	require.NoError(t, err)
	assert.False(t, EqualDigest(d1, DerivePINDigest([]byte("1234"), otherSalt)))
}

func TestSecureWipe(t *testing.T) {
	data := []byte("sensitive key material")
	SecureWipe(data)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d not wiped: %x", i, b)
		}
	}

	// Must not panic.
	SecureWipe(nil)
	SecureWipe([]byte{})
}

func BenchmarkSeal(b *testing.B) {
	key, err := GenerateKey()
	if err != nil {
		b.Fatal(err)
	}
	data := make([]byte, 1024)

	b.ReportAllocs()
	b.SetBytes(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Seal(key, data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDerivePINDigest(b *testing.B) {
	salt := make([]byte, PINSaltLength)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		DerivePINDigest([]byte("1234"), salt)
	}
}
