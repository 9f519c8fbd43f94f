package backup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// MagicNumber opens every backup file.
var MagicNumber = [8]byte{'M', 'U', 'X', 'P', '_', 'B', 'K', 'P'}

// FormatVersion is the current backup format version.
const FormatVersion = 1

const maxHeaderLen = 64 * 1024

// KDFParams holds the Argon2id parameters used to derive the backup keys.
type KDFParams struct {
	Salt        []byte `json:"salt"`
	Memory      uint32 `json:"memory"`     // KiB
	Iterations  uint32 `json:"iterations"` // time cost
	Parallelism uint8  `json:"parallelism"`
}

// Header is stored in clear text in front of the encrypted payload. It is
// covered by the trailing HMAC.
type Header struct {
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	CredentialCount int       `json:"credential_count"`
	KDFParams       KDFParams `json:"kdf_params"`
	ChecksumAlgo    string    `json:"checksum_algorithm"`
}

// Entry is one stored credential. Ciphertext is kept sealed under Payload.Key.
type Entry struct {
	Name       string `json:"name"`
	Link       string `json:"link,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
}

// Payload is the encrypted part of a backup: the store key and every record
// as it was stored.
type Payload struct {
	Key         []byte  `json:"key"`
	Credentials []Entry `json:"credentials"`
}

// WriteHeader writes the magic number, header length and header JSON.
func WriteHeader(w io.Writer, header *Header) ([]byte, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	if _, err := w.Write(MagicNumber[:]); err != nil {
		return nil, fmt.Errorf("failed to write magic number: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(headerJSON))); err != nil {
		return nil, fmt.Errorf("failed to write header length: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return headerJSON, nil
}

// ReadHeader reads and checks the magic number and header. It also returns
// the raw header JSON for HMAC verification.
func ReadHeader(r io.Reader) (*Header, []byte, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, nil, fmt.Errorf("failed to read magic number: %w", err)
	}
	if magic != MagicNumber {
		return nil, nil, ErrInvalidMagic
	}

	var headerLen uint32
	if err := binary.Read(r, binary.BigEndian, &headerLen); err != nil {
		return nil, nil, fmt.Errorf("failed to read header length: %w", err)
	}
	if headerLen > maxHeaderLen {
		return nil, nil, fmt.Errorf("header too large: %d bytes", headerLen)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal header: %w", err)
	}
	if header.Version > FormatVersion {
		return nil, nil, fmt.Errorf("%w: got %d, max supported %d",
			ErrUnsupportedVersion, header.Version, FormatVersion)
	}
	return &header, headerJSON, nil
}
