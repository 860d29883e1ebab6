// Package cachestore persists never-return verdicts between checker
// runs. The engine recomputes everything it needs; the store only
// short-circuits the analysis of callees whose declarations have not
// changed, keyed by a caller-supplied stable key (the CLI uses the
// engine's CalleeKey: the callee expression, its rendered declared
// type, and an await marker for awaited calls).
package cachestore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS noreturn (
	callee_key TEXT PRIMARY KEY,
	verdict    INTEGER NOT NULL,
	stamp      INTEGER NOT NULL
);`

// Store is a sqlite-backed verdict cache. Safe for use from a single
// goroutine, like the engine it serves.
type Store struct {
	db *sql.DB
}

// Open creates or opens a store at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveVerdict records one callee's never-return verdict.
func (s *Store) SaveVerdict(calleeKey string, noReturn bool) error {
	verdict := 0
	if noReturn {
		verdict = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO noreturn (callee_key, verdict, stamp) VALUES (?, ?, ?)
		 ON CONFLICT(callee_key) DO UPDATE SET verdict = excluded.verdict, stamp = excluded.stamp`,
		calleeKey, verdict, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving verdict for %s: %w", calleeKey, err)
	}
	return nil
}

// LoadVerdict reads one callee's verdict; ok is false on a cache miss.
func (s *Store) LoadVerdict(calleeKey string) (noReturn, ok bool, err error) {
	var verdict int
	row := s.db.QueryRow(`SELECT verdict FROM noreturn WHERE callee_key = ?`, calleeKey)
	switch err := row.Scan(&verdict); err {
	case nil:
		return verdict != 0, true, nil
	case sql.ErrNoRows:
		return false, false, nil
	default:
		return false, false, fmt.Errorf("loading verdict for %s: %w", calleeKey, err)
	}
}

// LoadAll returns every stored verdict, for warming an engine's cache
// in one pass at startup.
func (s *Store) LoadAll() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT callee_key, verdict FROM noreturn`)
	if err != nil {
		return nil, fmt.Errorf("loading verdicts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var key string
		var verdict int
		if err := rows.Scan(&key, &verdict); err != nil {
			return nil, fmt.Errorf("scanning verdict: %w", err)
		}
		out[key] = verdict != 0
	}
	return out, rows.Err()
}

// Prune removes verdicts older than maxAge.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	result, err := s.db.Exec(`DELETE FROM noreturn WHERE stamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return result.RowsAffected()
}
