// Package cli provides shared helpers for the muxpass commands.
package cli

import (
	"fmt"
	"path"
	"strings"

	"github.com/forest6511/muxpass/pkg/vault"
)

// HasGlob reports whether pattern contains glob metacharacters.
func HasGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// Match selects items by name. A pattern with glob characters (*?[) is
// matched with path.Match; anything else must equal a name exactly. The
// pattern is NFC-normalised first, as stored names are. Items are returned
// in their original order, duplicates included, since identical names may
// still differ in link or password.
func Match[T any](pattern string, items []T, name func(T) string) ([]T, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}

	pattern = vault.NormalizeName(pattern)
	glob := HasGlob(pattern)

	var matches []T
	for _, item := range items {
		n := name(item)
		if glob {
			ok, err := path.Match(pattern, n)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		} else if n != pattern {
			continue
		}
		matches = append(matches, item)
	}

	if len(matches) == 0 {
		if glob {
			return nil, fmt.Errorf("%w: no credentials match pattern '%s'", vault.ErrNotFound, pattern)
		}
		return nil, fmt.Errorf("%w: credential '%s'", vault.ErrNotFound, pattern)
	}
	return matches, nil
}

// MatchRecords is Match over stored records.
func MatchRecords(pattern string, records []vault.Record) ([]vault.Record, error) {
	return Match(pattern, records, func(r vault.Record) string { return r.Name })
}

// Mask renders a password of n bytes as asterisks, capped so that very
// long passwords do not wrap the terminal.
func Mask(n int) string {
	const maxMask = 16
	switch {
	case n <= 0:
		return ""
	case n > maxMask:
		return strings.Repeat("*", maxMask) + "+"
	default:
		return strings.Repeat("*", n)
	}
}
