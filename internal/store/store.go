// Package store persists opportunities, profiles, matches, and scraper runs
// in SQLite. The (source, external_id) unique index is the enforcement point
// for upsert idempotence; embeddings live in a column next to their record
// and are ranked in process unless the sqlite-vec extension is compiled in.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// sqliteTimeFormat is fixed-width UTC so stored timestamps sort and compare
// lexicographically in SQL.
const sqliteTimeFormat = "2006-01-02 15:04:05.000"

// Store is the shared record store. Safe for concurrent use; writes
// serialize on the single connection.
type Store struct {
	db   *sql.DB
	log  *zap.Logger
	path string

	mu  sync.RWMutex
	vec bool // sqlite-vec extension available

	// now is swappable in tests that pin the clock.
	now func() time.Time
}

// Open initializes the database at path, creating directories and schema
// as needed.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		// NORMAL is safe under WAL and much faster than FULL.
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, log: log, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s.detectVecExtension()
	if s.vec {
		if err := s.initVecIndex(); err != nil {
			log.Warn("vec index unavailable, falling back to in-process ranking", zap.Error(err))
			s.vec = false
		} else {
			log.Info("sqlite-vec extension detected, ANN index enabled")
		}
	}

	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// VecEnabled reports whether the sqlite-vec ANN index is in use.
func (s *Store) VecEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vec
}

func (s *Store) detectVecExtension() {
	var version string
	if err := s.db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		s.vec = false
		return
	}
	s.vec = true
	s.log.Debug("sqlite-vec present", zap.String("version", version))
}

// isUniqueViolation matches the constraint error text both SQLite drivers
// emit.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeFormat)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTimeFormat, s, time.UTC)
	if err != nil {
		// Older rows may carry RFC3339.
		if rt, rerr := time.Parse(time.RFC3339Nano, s); rerr == nil {
			return rt.UTC(), nil
		}
		return time.Time{}, err
	}
	return t, nil
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// Maintenance runs the periodic housekeeping pass: deactivate records whose
// deadline has passed, then reclaim space.
func (s *Store) Maintenance(ctx context.Context) (expired int64, err error) {
	expired, err = s.ExpireDeadlines(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.log.Debug("wal checkpoint failed", zap.Error(err))
	}
	return expired, nil
}
