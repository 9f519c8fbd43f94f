package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/muxpass/pkg/crypto"
	"github.com/forest6511/muxpass/pkg/vault"
)

var testPassphrase = []byte("correct horse battery staple")

// fastParams keeps Argon2id cheap in tests.
func fastParams(t *testing.T) KDFParams {
	t.Helper()
	return KDFParams{
		Salt:        bytes.Repeat([]byte{7}, SaltLength),
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
	}
}

func testPayload(t *testing.T) (*Payload, *vault.Codec) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	codec := vault.NewCodec(key)

	var records []vault.Record
	for _, c := range []struct{ name, link, pw string }{
		{"GitHub", "https://github.com", "gh-pass"},
		{"Mail", "", "mail-pass"},
		{"GitHub", "https://github.com", "second"},
	} {
		rec, err := vault.NewRecord(codec, c.name, c.link, c.pw)
		require.NoError(t, err)
		records = append(records, rec)
	}
	return NewPayload(key, records), codec
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload, codec := testPayload(t)

	data, err := encode(payload, testPassphrase, fastParams(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, MagicNumber[:]))

	header, got, err := Decode(data, testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, header.Version)
	assert.Equal(t, 3, header.CredentialCount)
	assert.Equal(t, checksumAlgo, header.ChecksumAlgo)
	assert.Equal(t, payload.Key, got.Key)

	records := got.Records()
	require.Len(t, records, 3)
	for i, rec := range payload.Records() {
		assert.True(t, rec.Equal(records[i]))
	}

	pw, err := codec.Decrypt(records[2].Ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "second", pw)
}

func TestDecodeWrongPassphrase(t *testing.T) {
	payload, _ := testPayload(t)
	data, err := encode(payload, testPassphrase, fastParams(t))
	require.NoError(t, err)

	_, _, err = Decode(data, []byte("wrong"))
	assert.ErrorIs(t, err, ErrIntegrityFailed)
}

func TestDecodeDetectsTampering(t *testing.T) {
	payload, _ := testPayload(t)
	data, err := encode(payload, testPassphrase, fastParams(t))
	require.NoError(t, err)

	t.Run("payload", func(t *testing.T) {
		tampered := bytes.Clone(data)
		tampered[len(tampered)-HMACLength-1] ^= 0xFF
		_, _, err := Decode(tampered, testPassphrase)
		assert.ErrorIs(t, err, ErrIntegrityFailed)
	})

	t.Run("header", func(t *testing.T) {
		tampered := bytes.Replace(data, []byte(`"credential_count":3`), []byte(`"credential_count":4`), 1)
		require.NotEqual(t, data, tampered)
		_, _, err := Decode(tampered, testPassphrase)
		assert.ErrorIs(t, err, ErrIntegrityFailed)
	})

	t.Run("truncated", func(t *testing.T) {
		headerEnd := len(data) - HMACLength - 40
		_, _, err := Decode(data[:headerEnd], testPassphrase)
		assert.Error(t, err)
	})
}

func TestDecodeInvalidMagic(t *testing.T) {
	_, _, err := Decode([]byte("NOT_A_BACKUP_FILE_AT_ALL"), testPassphrase)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestReadHeaderRejectsNewerVersion(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteHeader(&buf, &Header{Version: FormatVersion + 1})
	require.NoError(t, err)

	_, _, err = ReadHeader(&buf)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDeriveKeys(t *testing.T) {
	p := fastParams(t)

	enc, mac, err := DeriveKeys(testPassphrase, p)
	require.NoError(t, err)
	assert.Len(t, enc, crypto.KeyLength)
	assert.Len(t, mac, crypto.KeyLength)
	assert.NotEqual(t, enc, mac)

	enc2, _, err := DeriveKeys(testPassphrase, p)
	require.NoError(t, err)
	assert.Equal(t, enc, enc2)

	_, _, err = DeriveKeys(nil, p)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)

	p.Memory = maxMemory + 1
	_, _, err = DeriveKeys(testPassphrase, p)
	assert.ErrorIs(t, err, ErrInvalidKDFParams)
}

func TestNewKDFParams(t *testing.T) {
	a, err := NewKDFParams()
	require.NoError(t, err)
	b, err := NewKDFParams()
	require.NoError(t, err)

	assert.Len(t, a.Salt, SaltLength)
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NoError(t, a.validate())
}

func TestWriteFileReadFile(t *testing.T) {
	if testing.Short() {
		t.Skip("default Argon2id parameters are slow")
	}
	payload, _ := testPayload(t)
	path := filepath.Join(t.TempDir(), "muxpass.bkp")

	header, err := WriteFile(path, payload, testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, 3, header.CredentialCount)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(vault.FileMode), info.Mode().Perm())
	}

	_, got, err := ReadFile(path, testPassphrase)
	require.NoError(t, err)
	assert.Len(t, got.Credentials, 3)
}

func TestPayloadWipe(t *testing.T) {
	payload, _ := testPayload(t)
	payload.Wipe()
	assert.Equal(t, make([]byte, crypto.KeyLength), payload.Key)
}
