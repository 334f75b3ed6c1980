// Package storage holds the persisted inverted index: one row per word with
// the ordered list of urls containing it, serialized as a JSON array.
//
// A Store wraps a single *sql.DB opened for the lifetime of the process so
// lookups reuse pooled connections instead of dialing the database per query.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/sift/pkg/db"
	"github.com/rubiojr/sift/pkg/log"
)

// ErrNotFound is returned by Lookup when the word has no index entry.
var ErrNotFound = errors.New("word not indexed")

type Store struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// Stats summarizes the contents of the index.
type Stats struct {
	Words      int        `json:"words"`
	URLRefs    int        `json:"url_refs"`
	Malformed  int        `json:"malformed"`
	LastImport *time.Time `json:"last_import,omitempty"`
}

// Open opens (creating if needed) the index database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	s, err := OpenWithoutMigrations(path)
	if err != nil {
		return nil, err
	}

	if err := db.InitializeDatabase(s.db); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// OpenWithoutMigrations opens the index database leaving the schema as is.
// `sift migrate` uses it to report and apply migrations itself.
func OpenWithoutMigrations(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -16000", // 16MB cache
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	return &Store{db: conn, path: path, logger: log.ForService("storage")}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying database handle, used by migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the urls stored for word, in stored order. The key must
// match exactly. Malformed stored data is reported as a decode error.
func (s *Store) Lookup(ctx context.Context, word string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT urls FROM word_index WHERE word = ?", word).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying word %q: %w", word, err)
	}

	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil, fmt.Errorf("decoding urls for %q: %w", word, err)
	}
	return urls, nil
}

// Put stores urls for word, replacing any previous entry.
func (s *Store) Put(ctx context.Context, word string, urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("encoding urls for %q: %w", word, err)
	}
	_, err = s.db.ExecContext(ctx, "INSERT OR REPLACE INTO word_index (word, urls) VALUES (?, ?)", word, string(data))
	if err != nil {
		return fmt.Errorf("storing word %q: %w", word, err)
	}
	return nil
}

// Import loads a prebuilt index from r, a JSON object mapping words to url
// arrays, in one transaction. Existing words are replaced. It returns the
// number of words written.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	var entries map[string][]string
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decoding index: %w", err)
	}

	words := make([]string, 0, len(entries))
	for word := range entries {
		words = append(words, word)
	}
	sort.Strings(words)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				s.logger.Warnf("failed to rollback import: %v", err)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO word_index (word, urls) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, word := range words {
		urls := entries[word]
		if urls == nil {
			urls = []string{}
		}
		data, err := json.Marshal(urls)
		if err != nil {
			return 0, fmt.Errorf("encoding urls for %q: %w", word, err)
		}
		if _, err := stmt.ExecContext(ctx, word, string(data)); err != nil {
			return 0, fmt.Errorf("storing word %q: %w", word, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO index_metadata (key, value, updated_at)
		VALUES ('last_import', ?, ?)
	`, time.Now().UTC().Format(time.RFC3339), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("recording import time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	committed = true

	s.logger.Infof("imported %d words into %s", len(words), s.path)
	return len(words), nil
}

// Stats counts indexed words, url references and rows whose urls column is
// not a valid JSON array.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN json_valid(urls) THEN
				CASE WHEN json_type(urls) = 'array' THEN json_array_length(urls) ELSE 0 END
			ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN json_valid(urls) THEN
				CASE WHEN json_type(urls) = 'array' THEN 0 ELSE 1 END
			ELSE 1 END), 0)
		FROM word_index
	`).Scan(&stats.Words, &stats.URLRefs, &stats.Malformed)
	if err != nil {
		return nil, fmt.Errorf("counting words: %w", err)
	}

	var lastImport string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM index_metadata WHERE key = 'last_import'").Scan(&lastImport)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("reading last import time: %w", err)
	default:
		if t, err := time.Parse(time.RFC3339, lastImport); err == nil {
			stats.LastImport = &t
		}
	}

	return stats, nil
}
