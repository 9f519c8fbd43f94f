package importer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/muxpass/pkg/vault"
)

func TestGetParser(t *testing.T) {
	for _, src := range ValidSources() {
		p, err := GetParser(src)
		require.NoError(t, err)
		assert.Equal(t, src, p.Source())
	}

	_, err := GetParser("keepass")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"GitHub", "GitHub"},
		{"  padded  ", "padded"},
		{"a,b", "a b"},
		{"line\nbreak\r", "line break"},
		{"cafe\u0301", "caf\u00e9"},
		{",\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SanitizeName(tt.in)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.NoError(t, vault.ValidateFields(got, ""))
			}
		})
	}
}

func TestSanitizeNameTruncatesOnRuneBoundary(t *testing.T) {
	name := strings.Repeat("\u00e9", vault.MaxNameLength) // two bytes each
	got := SanitizeName(name)
	assert.LessOrEqual(t, len(got), vault.MaxNameLength)
	assert.True(t, strings.HasPrefix(name, got))
	assert.True(t, utf8.ValidString(got))
}

func TestSanitizeLink(t *testing.T) {
	link, ok := SanitizeLink("https://example.com/a,b")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/a b", link)

	_, ok = SanitizeLink("https://example.com/" + strings.Repeat("a", vault.MaxLinkLength))
	assert.False(t, ok)
}

func TestFallbackName(t *testing.T) {
	assert.Equal(t, "example.com", FallbackName("https://www.example.com/login", 1))
	assert.Equal(t, "mail.example.org", FallbackName("mail.example.org", 1))
	assert.Equal(t, "imported_3", FallbackName("", 3))
}

func TestDecodeHTMLEntities(t *testing.T) {
	assert.Equal(t, "Tom & Jerry", DecodeHTMLEntities("Tom &amp; Jerry"))
	assert.Equal(t, `"quoted"`, DecodeHTMLEntities("&quot;quoted&quot;"))
	assert.Equal(t, "plain", DecodeHTMLEntities("plain"))
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank(" \t\n"))
	assert.False(t, IsBlank(" x "))
}
