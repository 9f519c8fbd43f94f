package backup

import "errors"

var (
	// ErrInvalidMagic indicates the file does not start with the backup magic number.
	ErrInvalidMagic = errors.New("invalid backup file: magic number mismatch")

	// ErrUnsupportedVersion indicates the backup format version is newer than this build.
	ErrUnsupportedVersion = errors.New("unsupported backup format version")

	// ErrIntegrityFailed indicates the HMAC did not match: wrong passphrase or a modified file.
	ErrIntegrityFailed = errors.New("backup integrity check failed: wrong passphrase or corrupted file")

	// ErrDecryptionFailed indicates the payload could not be decrypted.
	ErrDecryptionFailed = errors.New("backup decryption failed")

	// ErrInvalidKDFParams indicates the header carries unusable KDF parameters.
	ErrInvalidKDFParams = errors.New("invalid backup KDF parameters")

	// ErrEmptyPassphrase indicates an empty passphrase was provided.
	ErrEmptyPassphrase = errors.New("passphrase cannot be empty")

	// ErrTruncated indicates the file ends before the HMAC.
	ErrTruncated = errors.New("backup file truncated")
)
