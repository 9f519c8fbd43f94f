package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/forest6511/muxpass/pkg/crypto"
)

// Repository loads, mutates and saves the credential set.
//
// Every mutation is list, change in memory, save the whole set. The sequence
// runs under an in-process mutex and, when configured, an advisory file lock,
// so concurrent callers cannot lose each other's updates.
type Repository struct {
	store    Store
	codec    *Codec
	lockPath string
	logger   *zap.Logger
	mu       sync.Mutex
}

// Option configures a Repository.
type Option func(*Repository)

// WithLockFile makes mutations also hold an exclusive lock on path, for
// stores shared between processes.
func WithLockFile(path string) Option {
	return func(r *Repository) { r.lockPath = path }
}

// WithLogger sets the repository logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// NewRepository returns a repository over store, sealing passwords with codec.
func NewRepository(store Store, codec *Codec, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		codec:  codec,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Codec returns the codec used for password fields.
func (r *Repository) Codec() *Codec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codec
}

// List re-reads the store and returns every record in stored order.
func (r *Repository) List() ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Load()
}

// Save replaces the stored set with records.
func (r *Repository) Save(records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lockStore()
	if err != nil {
		return err
	}
	defer unlock()

	return r.store.Save(records)
}

// Add appends rec.
func (r *Repository) Add(rec Record) error {
	err := r.transact(func(records []Record) ([]Record, error) {
		return append(records, rec.Clone()), nil
	})
	if err == nil {
		r.logger.Info("credential added", zap.String("name", rec.Name))
	}
	return err
}

// Create encrypts password and appends a new record.
func (r *Repository) Create(name, link, password string) (Record, error) {
	rec, err := NewRecord(r.Codec(), name, link, password)
	if err != nil {
		return Record{}, err
	}
	if err := r.Add(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Update replaces the first record structurally equal to old with updated.
// Returns ErrNotFound when no such record exists any more.
func (r *Repository) Update(old, updated Record) error {
	err := r.transact(func(records []Record) ([]Record, error) {
		i := indexOf(records, old)
		if i < 0 {
			return nil, ErrNotFound
		}
		records[i] = updated.Clone()
		return records, nil
	})
	if err == nil {
		r.logger.Info("credential updated",
			zap.String("name", old.Name),
			zap.String("new_name", updated.Name))
	}
	return err
}

// Remove deletes the first record structurally equal to rec.
// Returns ErrNotFound when no such record exists any more.
func (r *Repository) Remove(rec Record) error {
	err := r.transact(func(records []Record) ([]Record, error) {
		i := indexOf(records, rec)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(records[:i], records[i+1:]...), nil
	})
	if err == nil {
		r.logger.Info("credential removed", zap.String("name", rec.Name))
	}
	return err
}

// Reveal decrypts the password of rec.
func (r *Repository) Reveal(rec Record) (string, error) {
	plaintext, err := r.Codec().Decrypt(rec.Ciphertext)
	if err != nil {
		r.logger.Warn("credential failed to decrypt", zap.String("name", rec.Name), zap.Error(err))
		return "", err
	}
	return plaintext, nil
}

// Restore swaps in key, written to keyPath, and replaces every record, all
// under the store lock. Each record must be storable and decrypt under key;
// otherwise nothing is changed. If the store write fails the previous key
// file is put back, so key and records never disagree.
func (r *Repository) Restore(keyPath string, key []byte, records []Record) error {
	codec := NewCodec(key)
	if err := checkSealedUnder(codec, records); err != nil {
		codec.Close()
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lockStore()
	if err != nil {
		codec.Close()
		return err
	}
	defer unlock()

	previous, readErr := os.ReadFile(keyPath)
	if readErr != nil && !errors.Is(readErr, fs.ErrNotExist) {
		codec.Close()
		return ioError("read key file", readErr)
	}
	defer crypto.SecureWipe(previous)

	if err := WriteKey(keyPath, key); err != nil {
		codec.Close()
		return err
	}
	if err := r.store.Save(records); err != nil {
		if rbErr := rollbackKey(keyPath, previous, readErr == nil); rbErr != nil {
			r.logger.Error("failed to put back previous key", zap.Error(rbErr))
		}
		codec.Close()
		return err
	}

	// The previous codec stays usable by callers that already hold it.
	r.codec = codec
	r.logger.Info("store restored", zap.Int("count", len(records)))
	return nil
}

func checkSealedUnder(codec *Codec, records []Record) error {
	for i, rec := range records {
		if err := validateStored(rec.Name, rec.Link); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := codec.Decrypt(rec.Ciphertext); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func rollbackKey(keyPath string, previous []byte, existed bool) error {
	if !existed {
		return os.Remove(keyPath)
	}
	return atomic.WriteFile(keyPath, bytes.NewReader(previous))
}

// Close closes the underlying store and wipes the key.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codec.Close()
	return r.store.Close()
}

// transact runs one load-mutate-save cycle while holding both locks.
func (r *Repository) transact(mutate func([]Record) ([]Record, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lockStore()
	if err != nil {
		return err
	}
	defer unlock()

	records, err := r.store.Load()
	if err != nil {
		return err
	}
	records, err = mutate(records)
	if err != nil {
		return err
	}
	return r.store.Save(records)
}

// lockStore takes the cross-process lock, if configured. Callers hold r.mu.
func (r *Repository) lockStore() (func(), error) {
	if r.lockPath == "" {
		return func() {}, nil
	}
	lock, err := acquireFileLock(r.lockPath)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := lock.release(); err != nil {
			r.logger.Warn("failed to release store lock", zap.Error(err))
		}
	}, nil
}
