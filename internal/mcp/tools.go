package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/forest6511/muxpass/internal/app"
	"github.com/forest6511/muxpass/internal/cli"
	"github.com/forest6511/muxpass/pkg/vault"
)

// CredentialListInput represents input for credential_list tool.
type CredentialListInput struct {
	Pattern string `json:"pattern,omitempty"`
}

// CredentialListOutput represents output for credential_list tool.
type CredentialListOutput struct {
	Credentials []CredentialInfo `json:"credentials"`
}

// CredentialInfo describes a credential without its password.
type CredentialInfo struct {
	Name           string `json:"name"`
	Link           string `json:"link,omitempty"`
	PasswordLength int    `json:"password_length"`
	Masked         string `json:"masked"`
	Unreadable     bool   `json:"unreadable,omitempty"`
}

// CredentialExistsInput represents input for credential_exists tool.
type CredentialExistsInput struct {
	Name string `json:"name"`
}

// CredentialExistsOutput represents output for credential_exists tool.
type CredentialExistsOutput struct {
	Exists bool     `json:"exists"`
	Name   string   `json:"name"`
	Count  int      `json:"count"`
	Links  []string `json:"links,omitempty"`
}

// LockStatusInput represents input for lock_status tool.
type LockStatusInput struct{}

// LockStatusOutput represents output for lock_status tool.
type LockStatusOutput struct {
	Locked        bool `json:"locked"`
	PINConfigured bool `json:"pin_configured"`
}

// handleCredentialList handles the credential_list tool call.
func (s *Server) handleCredentialList(_ context.Context, _ *mcp.CallToolRequest, input CredentialListInput) (*mcp.CallToolResult, CredentialListOutput, error) {
	creds, err := s.svc.ListCredentials()
	if err != nil {
		return nil, CredentialListOutput{}, fmt.Errorf("failed to list credentials: %w", err)
	}

	if input.Pattern != "" {
		creds, err = cli.Match(input.Pattern, creds, func(c app.Credential) string { return c.Name })
		if err != nil {
			if errors.Is(err, vault.ErrNotFound) {
				return nil, CredentialListOutput{Credentials: []CredentialInfo{}}, nil
			}
			return nil, CredentialListOutput{}, err
		}
	}

	output := CredentialListOutput{
		Credentials: make([]CredentialInfo, 0, len(creds)),
	}
	for _, c := range creds {
		output.Credentials = append(output.Credentials, CredentialInfo{
			Name:           c.Name,
			Link:           c.Link,
			PasswordLength: c.MaskedLength,
			Masked:         cli.Mask(c.MaskedLength),
			Unreadable:     c.Unreadable,
		})
	}

	s.logger.Debug("credential_list", zap.Int("count", len(output.Credentials)))
	return nil, output, nil
}

// handleCredentialExists handles the credential_exists tool call.
func (s *Server) handleCredentialExists(_ context.Context, _ *mcp.CallToolRequest, input CredentialExistsInput) (*mcp.CallToolResult, CredentialExistsOutput, error) {
	if input.Name == "" {
		return nil, CredentialExistsOutput{}, errors.New("name is required")
	}

	creds, err := s.svc.ListCredentials()
	if err != nil {
		return nil, CredentialExistsOutput{}, fmt.Errorf("failed to list credentials: %w", err)
	}

	name := vault.NormalizeName(input.Name)
	output := CredentialExistsOutput{Name: name}
	for _, c := range creds {
		if c.Name != name {
			continue
		}
		output.Count++
		if c.Link != "" {
			output.Links = append(output.Links, c.Link)
		}
	}
	output.Exists = output.Count > 0

	return nil, output, nil
}

// handleLockStatus handles the lock_status tool call.
func (s *Server) handleLockStatus(_ context.Context, _ *mcp.CallToolRequest, _ LockStatusInput) (*mcp.CallToolResult, LockStatusOutput, error) {
	return nil, LockStatusOutput{
		Locked:        s.svc.IsLocked(),
		PINConfigured: s.svc.HasPIN(),
	}, nil
}
