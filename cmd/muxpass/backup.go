package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/forest6511/muxpass/pkg/backup"
	"github.com/forest6511/muxpass/pkg/crypto"
	"github.com/forest6511/muxpass/pkg/vault"
)

// minPassphraseLength applies to new backups only.
const minPassphraseLength = 8

var (
	restoreForce      bool
	restoreVerifyOnly bool
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "Replace an existing key and store")
	restoreCmd.Flags().BoolVar(&restoreVerifyOnly, "verify-only", false, "Check the backup without restoring it")
}

var backupCmd = &cobra.Command{
	Use:   "backup <file>",
	Short: "Write a passphrase-protected backup of the key and all credentials",
	Long: `Write the encryption key and every stored credential to a single file
protected by a passphrase (Argon2id, AES-256-GCM, HMAC-SHA256).

The backup does not depend on the storage backend: a backup of a flat-file
store can be restored into SQLite and the other way round.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openService()
		if err != nil {
			return err
		}
		records, err := s.Snapshot()
		if err != nil {
			return err
		}
		key, err := vault.LoadOrCreateKey(cfg.KeyPath())
		if err != nil {
			return err
		}
		payload := backup.NewPayload(key, records)
		defer payload.Wipe()

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(passphrase)

		header, err := backup.WriteFile(args[0], payload, passphrase)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d credentials to %s\n", header.CredentialCount, args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore the key and credentials from a backup",
	Long: `Restore the encryption key and credentials from a file written by
'muxpass backup'. The restored credentials are written to the configured
backend.

An existing key is never replaced without --force. With --force the current
key and every stored credential are discarded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readSecret("Backup passphrase: ")
		if err != nil {
			return err
		}
		pp := []byte(passphrase)
		defer crypto.SecureWipe(pp)

		header, payload, err := backup.ReadFile(args[0], pp)
		if err != nil {
			return err
		}
		defer payload.Wipe()

		out := cmd.OutOrStdout()
		if restoreVerifyOnly {
			fmt.Fprintf(out, "Backup OK: version %d, created %s, %d credentials\n",
				header.Version, header.CreatedAt.Local().Format("2006-01-02 15:04:05"), header.CredentialCount)
			return nil
		}

		if err := checkRestoreTarget(cfg.KeyPath()); err != nil {
			return err
		}
		s, err := openService()
		if err != nil {
			return err
		}
		if err := s.Restore(payload.Key, payload.Records()); err != nil {
			return fmt.Errorf("restore failed, existing key and credentials kept: %w", err)
		}
		fmt.Fprintf(out, "Restored %d credentials\n", len(payload.Credentials))
		return nil
	},
}

// checkRestoreTarget refuses to overwrite an existing key unless forced.
func checkRestoreTarget(keyPath string) error {
	_, err := os.Stat(keyPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("failed to access key file: %w", err)
	case !restoreForce:
		return fmt.Errorf("a key already exists at %s; use --force to replace it and all stored credentials", keyPath)
	default:
		return nil
	}
}

func readNewPassphrase() ([]byte, error) {
	first, err := readSecret("Backup passphrase: ")
	if err != nil {
		return nil, err
	}
	if len(first) < minPassphraseLength {
		return nil, fmt.Errorf("passphrase must be at least %d characters", minPassphraseLength)
	}
	second, err := readSecret("Confirm passphrase: ")
	if err != nil {
		return nil, err
	}
	if first != second {
		return nil, errors.New("passphrases do not match")
	}
	return []byte(first), nil
}
