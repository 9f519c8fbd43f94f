package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/muxpass/pkg/crypto"
)

func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	dir := t.TempDir()
	store := NewFlatFile(filepath.Join(dir, "passwords.csv"))
	repo := NewRepository(store, testCodec(t), WithLockFile(filepath.Join(dir, "muxpass.lock")))
	return repo, dir
}

func TestRepository_AddListDeleteScenario(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := repo.Create("github", "https://github.com", "s3cr3t!")
	require.NoError(t, err)

	records, err := repo.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "github", records[0].Name)
	assert.Equal(t, "https://github.com", records[0].Link)

	pw, err := repo.Reveal(records[0])
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t!", pw)

	require.NoError(t, repo.Remove(records[0]))

	records, err = repo.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRepository_PreservesInsertionOrder(t *testing.T) {
	repo, _ := newTestRepository(t)

	names := []string{"zeta", "alpha", "mid", "alpha"}
	for _, n := range names {
		_, err := repo.Create(n, "", "pw-"+n)
		require.NoError(t, err)
	}

	records, err := repo.List()
	require.NoError(t, err)
	require.Len(t, records, len(names))
	for i, n := range names {
		assert.Equal(t, n, records[i].Name)
	}
}

func TestRepository_Update(t *testing.T) {
	repo, _ := newTestRepository(t)

	first, err := repo.Create("a", "", "one")
	require.NoError(t, err)
	second, err := repo.Create("b", "", "two")
	require.NoError(t, err)

	updated, err := NewRecord(repo.Codec(), "a2", "https://a.test", "uno")
	require.NoError(t, err)
	require.NoError(t, repo.Update(first, updated))

	records, err := repo.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, updated.Equal(records[0]), "updated record keeps its position")
	assert.True(t, second.Equal(records[1]))

	pw, err := repo.Reveal(records[0])
	require.NoError(t, err)
	assert.Equal(t, "uno", pw)
}

func TestRepository_UpdateRemoveNotFound(t *testing.T) {
	repo, _ := newTestRepository(t)

	rec, err := repo.Create("a", "", "one")
	require.NoError(t, err)
	require.NoError(t, repo.Remove(rec))

	assert.ErrorIs(t, repo.Remove(rec), ErrNotFound)
	assert.ErrorIs(t, repo.Update(rec, rec), ErrNotFound)
}

func TestRepository_IdenticalRecordsRemoveFirstOnly(t *testing.T) {
	repo, _ := newTestRepository(t)

	rec, err := NewRecord(repo.Codec(), "dup", "", "pw")
	require.NoError(t, err)
	require.NoError(t, repo.Add(rec))
	require.NoError(t, repo.Add(rec))

	require.NoError(t, repo.Remove(rec))

	records, err := repo.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, rec.Equal(records[0]))
}

func TestRepository_SaveReplacesSet(t *testing.T) {
	repo, _ := newTestRepository(t)
	want := sampleRecords(t, repo.Codec())

	require.NoError(t, repo.Save(want))

	got, err := repo.List()
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]))
	}
}

func TestRepository_SaveRecoversCorruptStore(t *testing.T) {
	repo, dir := newTestRepository(t)
	path := filepath.Join(dir, "passwords.csv")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), FileMode))

	_, err := repo.List()
	require.ErrorIs(t, err, ErrParse)

	// Mutations that need a load fail too...
	_, err = repo.Create("a", "", "pw")
	assert.ErrorIs(t, err, ErrParse)

	// ...but a full Save still overwrites the file.
	require.NoError(t, repo.Save(nil))
	records, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRepository_RevealFailsOnCorruptCiphertext(t *testing.T) {
	repo, _ := newTestRepository(t)
	rec, err := repo.Create("a", "", "pw")
	require.NoError(t, err)

	rec.Ciphertext[len(rec.Ciphertext)-1] ^= 0xff
	pw, err := repo.Reveal(rec)
	assert.ErrorIs(t, err, ErrDecryption)
	assert.Empty(t, pw)
}

func TestRepository_ConcurrentAddsAreNotLost(t *testing.T) {
	repo, _ := newTestRepository(t)

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := repo.Create(fmt.Sprintf("w%d-%d", w, i), "", "pw"); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, records, workers*perWorker)
}

func TestRepository_ConcurrentRepositoriesShareLockFile(t *testing.T) {
	dir := t.TempDir()
	c := testCodec(t)
	newRepo := func() *Repository {
		return NewRepository(
			NewFlatFile(filepath.Join(dir, "passwords.csv")),
			c,
			WithLockFile(filepath.Join(dir, "muxpass.lock")),
		)
	}
	a, b := newRepo(), newRepo()

	var wg sync.WaitGroup
	for i, repo := range []*Repository{a, b} {
		wg.Add(1)
		go func(i int, repo *Repository) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := repo.Create(fmt.Sprintf("r%d-%d", i, j), "", "pw")
				assert.NoError(t, err)
			}
		}(i, repo)
	}
	wg.Wait()

	records, err := a.List()
	require.NoError(t, err)
	assert.Len(t, records, 40)
}

// saveFailingStore loads normally but refuses every Save.
type saveFailingStore struct {
	Store
}

func (saveFailingStore) Save([]Record) error {
	return ioError("write store", os.ErrPermission)
}

func sealedUnderNewKey(t *testing.T) ([]byte, []Record) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	c := NewCodec(key)
	rec, err := NewRecord(c, "restored", "https://r.test", "from-backup")
	require.NoError(t, err)
	return key, []Record{rec}
}

func TestRepository_Restore(t *testing.T) {
	repo, dir := newTestRepository(t)
	keyPath := filepath.Join(dir, "secret.key")
	_, err := LoadOrCreateKey(keyPath)
	require.NoError(t, err)
	_, err = repo.Create("old", "", "pw")
	require.NoError(t, err)

	key, records := sealedUnderNewKey(t)
	require.NoError(t, repo.Restore(keyPath, key, records))

	onDisk, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, key, onDisk)

	got, err := repo.List()
	require.NoError(t, err)
	require.Len(t, got, 1)
	pw, err := repo.Reveal(got[0])
	require.NoError(t, err)
	assert.Equal(t, "from-backup", pw)
}

func TestRepository_RestoreRejectsForeignRecords(t *testing.T) {
	repo, dir := newTestRepository(t)
	keyPath := filepath.Join(dir, "secret.key")
	before, err := LoadOrCreateKey(keyPath)
	require.NoError(t, err)

	key, _ := sealedUnderNewKey(t)
	_, foreign := sealedUnderNewKey(t)
	err = repo.Restore(keyPath, key, foreign)
	assert.ErrorIs(t, err, ErrDecryption)

	onDisk, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, before, onDisk, "key must not change")
}

func TestRepository_RestorePutsKeyBackWhenSaveFails(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "secret.key")
	before, err := LoadOrCreateKey(keyPath)
	require.NoError(t, err)

	store := saveFailingStore{NewFlatFile(filepath.Join(dir, "passwords.csv"))}
	repo := NewRepository(store, NewCodec(before), WithLockFile(filepath.Join(dir, "muxpass.lock")))

	key, records := sealedUnderNewKey(t)
	err = repo.Restore(keyPath, key, records)
	assert.ErrorIs(t, err, ErrIO)

	onDisk, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, before, onDisk)

	// Without a previous key the new one is removed again.
	fresh := filepath.Join(dir, "fresh.key")
	err = repo.Restore(fresh, key, records)
	assert.ErrorIs(t, err, ErrIO)
	assert.NoFileExists(t, fresh)
}
