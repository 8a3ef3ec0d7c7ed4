// Package sqlite backs the document store with an embedded SQLite database.
// It plays the role of the managed document collections: typed reads and
// writes plus a change feed that notifies live-sync subscribers after every
// committed write.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/xuanvinh/partsbin/internal/docstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db   *sql.DB
	feed *docstore.Feed

	// now and newID are replaceable in tests for deterministic ordering.
	now   func() time.Time
	newID func() string
}

func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path)
	return open(dsn)
}

var testSeq atomic.Int64

// OpenForTesting opens a uniquely named in-memory database so parallel tests
// do not share state.
func OpenForTesting() (*Store, error) {
	dsn := fmt.Sprintf("file:partsbin_test_%d?mode=memory&cache=shared", testSeq.Add(1))
	s, err := open(dsn)
	if err != nil {
		return nil, err
	}
	// A named in-memory database lives only while a connection holds it open.
	s.db.SetMaxIdleConns(1)
	return s, nil
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:    db,
		feed:  docstore.NewFeed(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Feed returns the change feed for live-sync subscriptions.
func (s *Store) Feed() *docstore.Feed {
	return s.feed
}

func (s *Store) Close() error {
	return s.db.Close()
}
