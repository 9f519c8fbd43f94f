package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/forest6511/muxpass/pkg/crypto"
)

// File permissions for everything the vault writes.
const (
	FileMode = 0600 // Owner read/write only
	DirMode  = 0700 // Owner read/write/execute only
)

// LoadOrCreateKey returns the encryption key stored at path.
//
// An existing key file is returned verbatim; its length and format are not
// checked here; a malformed key surfaces as ErrEncryption/ErrDecryption from
// the Codec. When no file exists, a new random key is written to a temp file
// and hard-linked into place, so the key file appears complete or not at all
// and a concurrent creator never sees a partial key. Any failure wraps ErrIO
// and is fatal to the caller: the store cannot be used without a key.
//
// Replacing the key file makes every existing record permanently
// undecryptable; there is no rotation path.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, ioError("read key file", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, ioError("create key directory", err)
	}

	key, err = crypto.GenerateKey()
	if err != nil {
		return nil, ioError("generate key", err)
	}

	created, err := linkNewKey(path, key)
	if err != nil {
		crypto.SecureWipe(key)
		return nil, err
	}
	if !created {
		// Another process won the race; its key is complete.
		crypto.SecureWipe(key)
		return LoadOrCreateKey(path)
	}
	return key, nil
}

// linkNewKey writes key to a temp file beside path and links it to path.
// os.Link fails rather than replace an existing file. It reports false when
// path already exists.
func linkNewKey(path string, key []byte) (bool, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return false, ioError("create temp key file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(key); err != nil {
		tmp.Close()
		return false, ioError("write key file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, ioError("sync key file", err)
	}
	if err := tmp.Close(); err != nil {
		return false, ioError("close key file", err)
	}
	if err := os.Chmod(tmpPath, FileMode); err != nil {
		return false, ioError("chmod key file", err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, ioError("link key file", err)
	}
	return true, nil
}

// WriteKey replaces the key file at path with key, as restoring a backup
// does. Records sealed under the previous key become undecryptable.
func WriteKey(path string, key []byte) error {
	if len(key) != crypto.KeyLength {
		return fmt.Errorf("%w: key is %d bytes", ErrEncryption, len(key))
	}
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return ioError("create key directory", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(key)); err != nil {
		return ioError("write key file", err)
	}
	if err := os.Chmod(path, FileMode); err != nil {
		return ioError("chmod key file", err)
	}
	return nil
}
