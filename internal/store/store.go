package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store owns the SQLite connection and hands out repositories.
type Store struct {
	db  *sql.DB
	drv *entsql.Driver
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates missing tables.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serialises transactions, which is what makes the
	// read-modify-write updates atomic. It also keeps ":memory:" databases
	// alive across calls.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{db: db, drv: entsql.OpenDB(dialect.SQLite, db)}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// ScheduleRepo returns a ScheduleRepo backed by this store.
func (s *Store) ScheduleRepo() ScheduleRepo {
	return &scheduleRepo{s: s}
}

// QuestionRepo returns a QuestionRepo backed by this store.
func (s *Store) QuestionRepo() QuestionRepo {
	return &questionRepo{s: s}
}

// ConfusionRepo returns a ConfusionRepo backed by this store.
func (s *Store) ConfusionRepo() ConfusionRepo {
	return &confusionRepo{s: s}
}

// ConceptRepo returns a ConceptRepo backed by this store.
func (s *Store) ConceptRepo() ConceptRepo {
	return &conceptRepo{s: s}
}

// SessionRepo returns a SessionRepo backed by this store.
func (s *Store) SessionRepo() SessionRepo {
	return &sessionRepo{s: s}
}

// PackageRepo returns a PackageRepo backed by this store.
func (s *Store) PackageRepo() PackageRepo {
	return &packageRepo{s: s}
}

// withTx runs fn inside a transaction. fn must only use tx.
func (s *Store) withTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. RUBYQUIZ_DB environment variable
// 2. $XDG_DATA_HOME/rubyquiz/rubyquiz.db
// 3. ~/.local/share/rubyquiz/rubyquiz.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("RUBYQUIZ_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "rubyquiz", "rubyquiz.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Times are stored as Unix milliseconds; zero means unset.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
