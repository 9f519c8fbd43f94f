package vault

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by this package wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	// ErrIO covers key and store read/write failures.
	ErrIO = errors.New("vault: i/o error")

	// ErrEncryption indicates a password could not be encrypted, usually
	// because the key is malformed.
	ErrEncryption = errors.New("vault: encryption failed")

	// ErrDecryption indicates a ciphertext was malformed, produced under a
	// different key, or tampered with.
	ErrDecryption = errors.New("vault: decryption failed")

	// ErrParse indicates a malformed line in the persisted store.
	ErrParse = errors.New("vault: malformed record")

	// ErrValidation indicates missing required fields or forbidden characters.
	ErrValidation = errors.New("vault: validation failed")

	// ErrNotFound indicates the target record no longer exists.
	ErrNotFound = errors.New("vault: record not found")
)

// Validation errors.
var (
	ErrNameRequired     = fmt.Errorf("%w: name is required", ErrValidation)
	ErrPasswordRequired = fmt.Errorf("%w: password is required", ErrValidation)
	ErrNameTooLong      = fmt.Errorf("%w: name too long", ErrValidation)
	ErrLinkTooLong      = fmt.Errorf("%w: link too long", ErrValidation)
	ErrForbiddenChar    = fmt.Errorf("%w: field contains a forbidden character", ErrValidation)
	ErrNoChanges        = fmt.Errorf("%w: no changes made", ErrValidation)
)

// ParseError reports a malformed line in the flat-file store.
type ParseError struct {
	Line   int    // 1-based line number
	Reason string // what was wrong with the line
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vault: malformed record on line %d: %s", e.Line, e.Reason)
}

// Unwrap lets errors.Is(err, ErrParse) match.
func (e *ParseError) Unwrap() error {
	return ErrParse
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
