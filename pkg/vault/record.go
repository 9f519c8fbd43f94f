package vault

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Input validation limits.
const (
	MaxNameLength = 256  // Maximum name length in bytes
	MaxLinkLength = 2048 // Maximum link length (RFC 3986 practical limit)
)

// Delimiter separates fields in the flat-file store.
const Delimiter = ','

// forbiddenChars may not appear in a name or link: the flat-file format has
// no escaping, so these would split a record.
const forbiddenChars = ",\r\n"

// Record is one stored credential. Names are not unique.
type Record struct {
	Name       string // user-chosen, non-empty
	Link       string // optional
	Ciphertext []byte // sealed password, never plaintext
}

// Equal reports structural equality on all three fields. Update and Remove
// identify their target this way, so two identical records are
// indistinguishable and the first one in store order is the one affected.
func (r Record) Equal(other Record) bool {
	return r.Name == other.Name &&
		r.Link == other.Link &&
		bytes.Equal(r.Ciphertext, other.Ciphertext)
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Ciphertext = bytes.Clone(r.Ciphertext)
	return r
}

// NormalizeName returns name in Unicode NFC so visually identical names
// compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// ValidateFields checks a name/link pair before it is written.
func ValidateFields(name, link string) error {
	if name == "" {
		return ErrNameRequired
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrNameTooLong, len(name), MaxNameLength)
	}
	if len(link) > MaxLinkLength {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrLinkTooLong, len(link), MaxLinkLength)
	}
	if i := strings.IndexAny(name, forbiddenChars); i >= 0 {
		return fmt.Errorf("%w: name contains %q", ErrForbiddenChar, name[i])
	}
	if i := strings.IndexAny(link, forbiddenChars); i >= 0 {
		return fmt.Errorf("%w: link contains %q", ErrForbiddenChar, link[i])
	}
	return nil
}

// validateStored checks only what the line format needs: a name and no
// separator characters. Length limits apply when a record is created or
// edited, so anything Load returns can be saved back.
func validateStored(name, link string) error {
	if name == "" {
		return ErrNameRequired
	}
	if i := strings.IndexAny(name, forbiddenChars); i >= 0 {
		return fmt.Errorf("%w: name contains %q", ErrForbiddenChar, name[i])
	}
	if i := strings.IndexAny(link, forbiddenChars); i >= 0 {
		return fmt.Errorf("%w: link contains %q", ErrForbiddenChar, link[i])
	}
	return nil
}

// NewRecord validates the fields and encrypts password with codec.
func NewRecord(codec *Codec, name, link, password string) (Record, error) {
	name = NormalizeName(name)
	link = norm.NFC.String(link)

	if err := ValidateFields(name, link); err != nil {
		return Record{}, err
	}
	if password == "" {
		return Record{}, ErrPasswordRequired
	}

	ciphertext, err := codec.Encrypt(password)
	if err != nil {
		return Record{}, err
	}
	return Record{Name: name, Link: link, Ciphertext: ciphertext}, nil
}

// indexOf returns the position of the first record equal to target, or -1.
func indexOf(records []Record, target Record) int {
	for i, r := range records {
		if r.Equal(target) {
			return i
		}
	}
	return -1
}
