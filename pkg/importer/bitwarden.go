package importer

import (
	"encoding/json"
	"errors"
	"fmt"
)

// BitwardenParser parses unencrypted Bitwarden JSON exports.
type BitwardenParser struct{}

// Bitwarden item types.
const (
	bwTypeLogin      = 1
	bwTypeSecureNote = 2
	bwTypeCard       = 3
	bwTypeIdentity   = 4
)

type bitwardenExport struct {
	Encrypted bool            `json:"encrypted"`
	Items     []bitwardenItem `json:"items"`
}

type bitwardenItem struct {
	ID    string          `json:"id"`
	Type  int             `json:"type"`
	Name  string          `json:"name"`
	Login *bitwardenLogin `json:"login,omitempty"`
}

type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris,omitempty"`
	Password string         `json:"password,omitempty"`
}

type bitwardenURI struct {
	URI string `json:"uri"`
}

// Source returns SourceBitwarden.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden JSON data. Only login items become credentials;
// the first URI is used as the link.
func (p *BitwardenParser) Parse(data []byte) (*Result, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden JSON: %w", err)
	}
	if export.Encrypted {
		return nil, errors.New("encrypted Bitwarden exports are not supported; export as unencrypted JSON")
	}

	result := newResult()
	counter := 1
	for i, item := range export.Items {
		if item.Type != bwTypeLogin || item.Login == nil {
			result.Skipped = append(result.Skipped, SkippedItem{
				OriginalName: item.Name,
				Reason:       fmt.Sprintf("unsupported item type: %s", bitwardenTypeName(item.Type)),
			})
			continue
		}

		var link string
		if len(item.Login.URIs) > 0 {
			link = item.Login.URIs[0].URI
		}

		cred, warns, reason := build(item.Name, link, item.Login.Password, &counter)
		for _, w := range warns {
			result.Warnings = append(result.Warnings, fmt.Sprintf("item %d (%s): %s", i+1, item.Name, w))
		}
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: reason})
			continue
		}
		result.Credentials = append(result.Credentials, cred)
	}
	return result, nil
}

func bitwardenTypeName(t int) string {
	switch t {
	case bwTypeLogin:
		return "login"
	case bwTypeSecureNote:
		return "secure note"
	case bwTypeCard:
		return "card"
	case bwTypeIdentity:
		return "identity"
	default:
		return fmt.Sprintf("type %d", t)
	}
}
