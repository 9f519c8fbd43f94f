// Package backup writes and reads passphrase-protected copies of a
// credential store.
//
// File layout:
//
//	magic (8) | header length (4, big-endian) | header JSON | sealed payload | HMAC-SHA256 (32)
//
// The payload holds the store key and every record with its ciphertext
// untouched, so a backup taken from one backend restores into either.
// Argon2id turns the passphrase into a master key; HKDF splits it into the
// AES-256-GCM payload key and the HMAC key. The HMAC covers the header and
// the sealed payload and is checked before anything is decrypted.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"

	"github.com/forest6511/muxpass/pkg/crypto"
	"github.com/forest6511/muxpass/pkg/vault"
)

// MaxFileSize bounds the backup file read into memory.
const MaxFileSize = 100 * 1024 * 1024

// NewPayload builds a payload from the store key and records.
func NewPayload(key []byte, records []vault.Record) *Payload {
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{Name: r.Name, Link: r.Link, Ciphertext: r.Ciphertext}
	}
	return &Payload{Key: key, Credentials: entries}
}

// Records converts the payload entries back to vault records.
func (p *Payload) Records() []vault.Record {
	records := make([]vault.Record, len(p.Credentials))
	for i, e := range p.Credentials {
		records[i] = vault.Record{Name: e.Name, Link: e.Link, Ciphertext: e.Ciphertext}
	}
	return records
}

// Wipe zeroes the key held by the payload.
func (p *Payload) Wipe() {
	crypto.SecureWipe(p.Key)
}

// Encode serialises and encrypts payload under passphrase.
func Encode(payload *Payload, passphrase []byte) ([]byte, error) {
	params, err := NewKDFParams()
	if err != nil {
		return nil, err
	}
	return encode(payload, passphrase, params)
}

func encode(payload *Payload, passphrase []byte, params KDFParams) ([]byte, error) {
	encKey, macKey, err := DeriveKeys(passphrase, params)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	defer crypto.SecureWipe(plaintext)

	sealed, err := crypto.Seal(encKey, plaintext)
	if err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}

	header := &Header{
		Version:         FormatVersion,
		CreatedAt:       time.Now().UTC(),
		CredentialCount: len(payload.Credentials),
		KDFParams:       params,
		ChecksumAlgo:    checksumAlgo,
	}

	var buf bytes.Buffer
	headerJSON, err := WriteHeader(&buf, header)
	if err != nil {
		return nil, err
	}
	buf.Write(sealed)
	buf.Write(computeHMAC(macKey, headerJSON, sealed))
	return buf.Bytes(), nil
}

// Decode verifies and decrypts a backup.
func Decode(data, passphrase []byte) (*Header, *Payload, error) {
	r := bytes.NewReader(data)
	header, headerJSON, err := ReadHeader(r)
	if err != nil {
		return nil, nil, err
	}

	rest := data[len(data)-r.Len():]
	if len(rest) < crypto.Overhead+HMACLength {
		return nil, nil, ErrTruncated
	}
	sealed := rest[:len(rest)-HMACLength]
	mac := rest[len(rest)-HMACLength:]

	encKey, macKey, err := DeriveKeys(passphrase, header.KDFParams)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	if !crypto.EqualDigest(computeHMAC(macKey, headerJSON, sealed), mac) {
		return nil, nil, ErrIntegrityFailed
	}

	plaintext, err := crypto.Open(encKey, sealed)
	if err != nil {
		return nil, nil, ErrDecryptionFailed
	}
	defer crypto.SecureWipe(plaintext)

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if len(payload.Key) != crypto.KeyLength {
		return nil, nil, fmt.Errorf("%w: key is %d bytes", ErrDecryptionFailed, len(payload.Key))
	}
	return header, &payload, nil
}

// WriteFile encodes payload and replaces path atomically with mode 0600.
func WriteFile(path string, payload *Payload, passphrase []byte) (*Header, error) {
	data, err := Encode(payload, passphrase)
	if err != nil {
		return nil, err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Chmod(path, vault.FileMode); err != nil {
		return nil, fmt.Errorf("failed to set backup permissions: %w", err)
	}
	header, _, err := ReadHeader(bytes.NewReader(data))
	return header, err
}

// ReadFile reads, verifies and decrypts the backup at path.
func ReadFile(path string, passphrase []byte) (*Header, *Payload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access backup: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, nil, fmt.Errorf("backup too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read backup: %w", err)
	}
	return Decode(data, passphrase)
}
