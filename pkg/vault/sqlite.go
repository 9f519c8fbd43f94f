package vault

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps records in a single SQLite table. It offers the same
// whole-set semantics as FlatFile: Save replaces every row in one
// transaction and Load returns rows in saved order.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// embedded schema migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, ioError("create store directory", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ioError("open database", err)
	}
	// Single writer avoids "database is locked" between our own connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ioError("ping database", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, ioError("migrate database", err)
	}
	if err := os.Chmod(path, FileMode); err != nil {
		db.Close()
		return nil, ioError("set database permissions", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load returns every row ordered by position.
func (s *SQLiteStore) Load() ([]Record, error) {
	rows, err := s.db.Query(`SELECT name, link, ciphertext FROM credentials ORDER BY position`)
	if err != nil {
		return nil, ioError("query credentials", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Name, &r.Link, &r.Ciphertext); err != nil {
			return nil, ioError("scan credential", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("iterate credentials", err)
	}
	return records, nil
}

// Save replaces every row inside one transaction.
func (s *SQLiteStore) Save(records []Record) error {
	for i, r := range records {
		if err := validateStored(r.Name, r.Link); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return ioError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM credentials`); err != nil {
		return ioError("clear credentials", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO credentials (position, name, link, ciphertext) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return ioError("prepare insert", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.Exec(i, r.Name, r.Link, r.Ciphertext); err != nil {
			return ioError("insert credential", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ioError("commit transaction", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
