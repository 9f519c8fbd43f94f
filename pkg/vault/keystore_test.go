package vault

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/muxpass/pkg/crypto"
)

func TestLoadOrCreateKey_CreateAndReuse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret.key")

	k1, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, k1, crypto.KeyLength)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(FileMode), info.Mode().Perm())
	}

	k2, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "existing key must be returned unchanged")
}

func TestLoadOrCreateKey_ConcurrentCreatorsAgree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.key")

	const n = 8
	keys := make([][]byte, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], errs[i] = LoadOrCreateKey(path)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, keys[i], crypto.KeyLength)
		assert.Equal(t, keys[0], keys[i])
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "secret.key", entries[0].Name())
}

func TestLinkNewKeyKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.key")
	existing := bytes.Repeat([]byte{1}, crypto.KeyLength)
	require.NoError(t, os.WriteFile(path, existing, FileMode))

	created, err := linkNewKey(path, bytes.Repeat([]byte{2}, crypto.KeyLength))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, existing, got)
}

func TestLoadOrCreateKey_ReturnsExistingBytesVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.key")
	raw := []byte("not-a-32-byte-key")
	require.NoError(t, os.WriteFile(path, raw, FileMode))

	key, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, raw, key)

	// The malformed key surfaces at encryption time, not load time.
	_, err = NewCodec(key).Encrypt("pw")
	assert.ErrorIs(t, err, ErrEncryption)
}

func TestLoadOrCreateKey_UnreadablePath(t *testing.T) {
	// A directory where the key file should be cannot be read as a file.
	path := t.TempDir()

	_, err := LoadOrCreateKey(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
}

func TestLoadOrCreateKey_UnwritableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0500))
	t.Cleanup(func() { _ = os.Chmod(dir, DirMode) })

	_, err := LoadOrCreateKey(filepath.Join(dir, "secret.key"))
	assert.ErrorIs(t, err, ErrIO)
}

func TestWriteKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret.key")

	old, err := LoadOrCreateKey(path)
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, WriteKey(path, key))

	got, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.NotEqual(t, old, got)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(FileMode), info.Mode().Perm())
	}
}

func TestWriteKeyRejectsShortKey(t *testing.T) {
	err := WriteKey(filepath.Join(t.TempDir(), "secret.key"), []byte("short"))
	assert.ErrorIs(t, err, ErrEncryption)
}
