// Package importer reads credential exports from other password managers.
//
// Supported sources:
//   - Bitwarden unencrypted JSON export (login items)
//   - LastPass CSV export
//   - 1Password CSV export
//
// Each parser yields name, link and password triples. Names and links are
// cleaned so they fit the store's line format; items without a password are
// skipped.
package importer

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/forest6511/muxpass/pkg/vault"
)

// Source identifies an export format.
type Source string

const (
	SourceBitwarden   Source = "bitwarden"
	SourceLastPass    Source = "lastpass"
	SourceOnePassword Source = "1password"
)

// ErrUnknownSource is returned by GetParser for an unsupported source.
var ErrUnknownSource = errors.New("importer: unknown source")

// ImportedCredential is one credential read from an export.
type ImportedCredential struct {
	Name     string
	Link     string
	Password string
}

// SkippedItem records an export entry that produced no credential.
type SkippedItem struct {
	OriginalName string
	Reason       string
}

// Result holds the outcome of parsing one export.
type Result struct {
	Credentials []ImportedCredential
	Warnings    []string
	Skipped     []SkippedItem
}

func newResult() *Result {
	return &Result{
		Credentials: make([]ImportedCredential, 0),
		Warnings:    make([]string, 0),
		Skipped:     make([]SkippedItem, 0),
	}
}

// Parser parses one export format.
type Parser interface {
	Parse(data []byte) (*Result, error)
	Source() Source
}

// GetParser returns the parser for source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	case SourceOnePassword:
		return &OnePasswordParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
}

// ValidSources lists the supported sources.
func ValidSources() []Source {
	return []Source{SourceBitwarden, SourceLastPass, SourceOnePassword}
}

// SanitizeName makes name storable: forbidden separators become spaces,
// surrounding whitespace is trimmed, the result is NFC-normalised and cut to
// vault.MaxNameLength bytes on a rune boundary.
func SanitizeName(name string) string {
	name = replaceForbidden(name)
	name = strings.TrimSpace(vault.NormalizeName(name))
	return truncate(name, vault.MaxNameLength)
}

// SanitizeLink strips forbidden separators from link. Links longer than
// vault.MaxLinkLength are dropped rather than cut.
func SanitizeLink(link string) (string, bool) {
	link = strings.TrimSpace(replaceForbidden(link))
	if len(link) > vault.MaxLinkLength {
		return "", false
	}
	return link, true
}

// FallbackName derives a name from link's hostname, or "imported_N" when
// link has none.
func FallbackName(link string, n int) string {
	if host := hostname(link); host != "" {
		return host
	}
	return fmt.Sprintf("imported_%d", n)
}

// DecodeHTMLEntities decodes entities such as &amp; that some exports
// leave in text fields.
func DecodeHTMLEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return html.UnescapeString(s)
}

// IsBlank reports whether s is empty or only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// build turns the raw fields of one export item into a credential, or
// returns a skip reason. counter numbers fallback names.
func build(rawName, rawLink, password string, counter *int) (ImportedCredential, []string, string) {
	var warnings []string

	if password == "" {
		return ImportedCredential{}, nil, "no password"
	}

	link, ok := SanitizeLink(rawLink)
	if !ok {
		warnings = append(warnings, "link too long, dropped")
	}

	name := SanitizeName(rawName)
	if name == "" {
		name = FallbackName(link, *counter)
		*counter++
		warnings = append(warnings, fmt.Sprintf("empty name, using %q", name))
	} else if name != strings.TrimSpace(rawName) {
		warnings = append(warnings, fmt.Sprintf("name changed to %q", name))
	}

	return ImportedCredential{Name: name, Link: link, Password: password}, warnings, ""
}

func replaceForbidden(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '\r', '\n':
			return ' '
		}
		return r
	}, s)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func hostname(link string) string {
	if link == "" {
		return ""
	}
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
