package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/muxpass/internal/app"
	"github.com/forest6511/muxpass/pkg/importer"
)

// maxImportFileSize bounds the export file read into memory.
const maxImportFileSize = 50 * 1024 * 1024

var (
	importFrom   string
	importDryRun bool
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importFrom, "from", "", "Import source: bitwarden, lastpass, 1password (required)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without saving")
	_ = importCmd.MarkFlagRequired("from")
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import credentials from another password manager",
	Long: `Import credentials from an unencrypted export of another password manager.

Supported sources:
  bitwarden   JSON export (login items only)
  lastpass    CSV export (secure notes are skipped)
  1password   CSV export

Only the name, link and password of each item are imported. Commas and line
breaks in names and links are replaced with spaces. Imported credentials are
appended; existing ones are never overwritten.

Delete the export file once the import has finished.`,
	Example: `  muxpass import --from bitwarden bitwarden_export.json
  muxpass import --from lastpass lastpass.csv --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
	},
}

func runImport(out, errOut io.Writer, path string) error {
	parser, err := importer.GetParser(importer.Source(strings.ToLower(importFrom)))
	if err != nil {
		return fmt.Errorf("invalid --from value '%s': must be one of %v", importFrom, importer.ValidSources())
	}

	data, err := readImportFile(path)
	if err != nil {
		return err
	}

	result, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s file: %w", importFrom, err)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(errOut, "Warning: %s\n", w)
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(errOut, "Skipped: %s (%s)\n", s.OriginalName, s.Reason)
	}

	if len(result.Credentials) == 0 {
		fmt.Fprintln(out, "No credentials found in file")
		return nil
	}

	if importDryRun {
		fmt.Fprintf(out, "Would import %d credentials:\n", len(result.Credentials))
		for _, c := range result.Credentials {
			fmt.Fprintf(out, "  %s\t%s\n", c.Name, c.Link)
		}
		return nil
	}

	s, err := openService()
	if err != nil {
		return err
	}
	n, err := importCredentials(s, result.Credentials)
	fmt.Fprintf(out, "Imported %d of %d credentials\n", n, len(result.Credentials))
	return err
}

// importCredentials adds creds in order and stops at the first failure.
func importCredentials(s *app.Service, creds []importer.ImportedCredential) (int, error) {
	for i, c := range creds {
		if _, _, err := s.AddCredential(c.Name, c.Link, c.Password); err != nil {
			return i, fmt.Errorf("failed to import '%s': %w", c.Name, err)
		}
	}
	return len(creds), nil
}

func readImportFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxImportFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxImportFileSize)
	}
	return os.ReadFile(path)
}
