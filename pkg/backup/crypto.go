package backup

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/forest6511/muxpass/pkg/crypto"
)

const (
	// SaltLength is the length of the backup salt in bytes.
	SaltLength = 32

	// HMACLength is the length of the trailing HMAC-SHA256.
	HMACLength = sha256.Size

	checksumAlgo = "hmac-sha256"
)

// Argon2id defaults for new backups.
const (
	defaultMemory      = 64 * 1024
	defaultIterations  = 3
	defaultParallelism = 4

	maxMemory     = 1024 * 1024
	maxIterations = 64
)

const (
	hkdfInfoEncryption = "muxpass-backup-encryption"
	hkdfInfoMAC        = "muxpass-backup-mac"
)

// NewKDFParams returns default parameters with a fresh random salt.
func NewKDFParams() (KDFParams, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return KDFParams{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	return KDFParams{
		Salt:        salt,
		Memory:      defaultMemory,
		Iterations:  defaultIterations,
		Parallelism: defaultParallelism,
	}, nil
}

func (p KDFParams) validate() error {
	if len(p.Salt) < 16 ||
		p.Memory == 0 || p.Memory > maxMemory ||
		p.Iterations == 0 || p.Iterations > maxIterations ||
		p.Parallelism == 0 {
		return ErrInvalidKDFParams
	}
	return nil
}

// DeriveKeys derives independent encryption and MAC keys from passphrase.
func DeriveKeys(passphrase []byte, p KDFParams) (encKey, macKey []byte, err error) {
	if len(passphrase) == 0 {
		return nil, nil, ErrEmptyPassphrase
	}
	if err := p.validate(); err != nil {
		return nil, nil, err
	}

	master := argon2.IDKey(passphrase, p.Salt, p.Iterations, p.Memory, p.Parallelism, crypto.KeyLength)
	defer crypto.SecureWipe(master)

	encKey, err = deriveHKDF(master, hkdfInfoEncryption)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	macKey, err = deriveHKDF(master, hkdfInfoMAC)
	if err != nil {
		crypto.SecureWipe(encKey)
		return nil, nil, fmt.Errorf("failed to derive MAC key: %w", err)
	}
	return encKey, macKey, nil
}

func deriveHKDF(secret []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	key := make([]byte, crypto.KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func computeHMAC(key []byte, parts ...[]byte) []byte {
	h := hmac.New(sha256.New, key)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
