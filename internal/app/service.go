// Package app is the capability surface that presentation layers call into.
//
// Service checks the session lock before every credential operation, so a
// front end only has to forward user intent and render results.
package app

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/muxpass/pkg/security"
	"github.com/forest6511/muxpass/pkg/session"
	"github.com/forest6511/muxpass/pkg/vault"
)

// Guarded action names, as passed to session.Lock.Guard.
const (
	ActionList     = "list"
	ActionReveal   = "reveal"
	ActionAdd      = "add"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionSetPIN   = "configure_pin"
	ActionClearPIN = "clear_pin"
	ActionBackup   = "backup"
	ActionRestore  = "restore"
)

// Credential is the masked listing view of a stored record. Record is the
// identity to pass back to Reveal, UpdateCredential and DeleteCredential.
// Unreadable marks a ciphertext too short to hold any password; its
// MaskedLength is 0.
type Credential struct {
	Name         string
	Link         string
	MaskedLength int
	Unreadable   bool
	Record       vault.Record
}

// Update holds the fields to change. Nil fields are left as they are.
type Update struct {
	Name     *string
	Link     *string
	Password *string
}

// Service ties the repository to the session lock.
type Service struct {
	repo    *vault.Repository
	lock    *session.Lock
	logger  *zap.Logger
	keyPath string // set by Open; needed for Restore
}

// NewService returns a Service. It takes ownership of repo and lock.
func NewService(repo *vault.Repository, lock *session.Lock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, lock: lock, logger: logger}
}

// ListCredentials returns every credential with its password masked.
func (s *Service) ListCredentials() ([]Credential, error) {
	if err := s.lock.Guard(ActionList); err != nil {
		return nil, err
	}

	records, err := s.repo.List()
	if err != nil {
		return nil, err
	}

	codec := s.repo.Codec()
	out := make([]Credential, 0, len(records))
	for _, rec := range records {
		n := codec.PlaintextLen(rec.Ciphertext)
		out = append(out, Credential{
			Name:         rec.Name,
			Link:         rec.Link,
			MaskedLength: max(n, 0),
			Unreadable:   n < 0,
			Record:       rec,
		})
	}
	return out, nil
}

// Reveal decrypts the password of rec.
func (s *Service) Reveal(rec vault.Record) (string, error) {
	if err := s.lock.Guard(ActionReveal); err != nil {
		return "", err
	}
	return s.repo.Reveal(rec)
}

// AddCredential stores a new credential. The strength report is advisory;
// weak passwords are stored all the same.
func (s *Service) AddCredential(name, link, password string) (vault.Record, security.Report, error) {
	if err := s.lock.Guard(ActionAdd); err != nil {
		return vault.Record{}, security.Report{}, err
	}

	rec, err := s.repo.Create(name, link, password)
	if err != nil {
		return vault.Record{}, security.Report{}, err
	}
	return rec, security.Evaluate(password), nil
}

// UpdateCredential applies u to the record identified by old and returns
// the stored result. An update that changes nothing returns
// vault.ErrNoChanges; a record that has since disappeared returns
// vault.ErrNotFound.
func (s *Service) UpdateCredential(old vault.Record, u Update) (vault.Record, error) {
	if err := s.lock.Guard(ActionUpdate); err != nil {
		return vault.Record{}, err
	}

	updated, err := s.apply(old, u)
	if err != nil {
		return vault.Record{}, err
	}
	if err := s.repo.Update(old, updated); err != nil {
		return vault.Record{}, err
	}
	return updated, nil
}

func (s *Service) apply(old vault.Record, u Update) (vault.Record, error) {
	updated := old.Clone()
	changed := false

	if u.Name != nil {
		if name := vault.NormalizeName(*u.Name); name != old.Name {
			updated.Name = name
			changed = true
		}
	}
	if u.Link != nil {
		if link := norm.NFC.String(*u.Link); link != old.Link {
			updated.Link = link
			changed = true
		}
	}
	if err := vault.ValidateFields(updated.Name, updated.Link); err != nil {
		return vault.Record{}, err
	}

	if u.Password != nil {
		if *u.Password == "" {
			return vault.Record{}, vault.ErrPasswordRequired
		}
		ciphertext, err := s.repo.Codec().Encrypt(*u.Password)
		if err != nil {
			return vault.Record{}, err
		}
		updated.Ciphertext = ciphertext
		changed = true
	}

	if !changed {
		return vault.Record{}, vault.ErrNoChanges
	}
	return updated, nil
}

// DeleteCredential removes the record identified by rec.
func (s *Service) DeleteCredential(rec vault.Record) error {
	if err := s.lock.Guard(ActionDelete); err != nil {
		return err
	}
	return s.repo.Remove(rec)
}

// Snapshot returns every stored record, still sealed, for a backup.
func (s *Service) Snapshot() ([]vault.Record, error) {
	if err := s.lock.Guard(ActionBackup); err != nil {
		return nil, err
	}
	return s.repo.List()
}

// Restore replaces the key file and every record with a backup's contents.
// The records must be sealed under key; on any failure the previous key
// and records are kept.
func (s *Service) Restore(key []byte, records []vault.Record) error {
	if err := s.lock.Guard(ActionRestore); err != nil {
		return err
	}
	if s.keyPath == "" {
		return fmt.Errorf("%w: key file location unknown", vault.ErrIO)
	}
	return s.repo.Restore(s.keyPath, key, records)
}

// ConfigurePIN sets or replaces the PIN.
func (s *Service) ConfigurePIN(pin string) error {
	if err := s.lock.Guard(ActionSetPIN); err != nil {
		return err
	}
	return s.lock.ConfigurePIN(pin)
}

// ClearPIN disables the PIN and with it automatic locking.
func (s *Service) ClearPIN() error {
	if err := s.lock.Guard(ActionClearPIN); err != nil {
		return err
	}
	s.lock.ClearPIN()
	return nil
}

// SubmitPIN unlocks the session.
func (s *Service) SubmitPIN(pin string) error {
	return s.lock.SubmitPIN(pin)
}

// LockNow locks the session if a PIN is configured.
func (s *Service) LockNow() {
	s.lock.LockNow()
}

// IsLocked reports whether credential operations are currently refused.
func (s *Service) IsLocked() bool {
	return s.lock.IsLocked()
}

// HasPIN reports whether a PIN is configured.
func (s *Service) HasPIN() bool {
	return s.lock.HasPIN()
}

// NotifyActivity records a user interaction.
func (s *Service) NotifyActivity() {
	s.lock.NotifyActivity()
}

// Close stops the session timer, wipes the key and closes the store.
func (s *Service) Close() error {
	s.lock.Close()
	return s.repo.Close()
}
