package storage

import (
	"context"
	"fmt"
	"strings"
)

// Optimize runs PRAGMA optimize.
func (s *Store) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("running PRAGMA optimize: %w", err)
	}
	return nil
}

// Analyze refreshes query planner statistics.
func (s *Store) Analyze(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("running ANALYZE: %w", err)
	}
	return nil
}

// Vacuum rebuilds the database file, reclaiming free pages.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("running VACUUM: %w", err)
	}
	return nil
}

// WALCheckpoint flushes the write ahead log into the main database file.
func (s *Store) WALCheckpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("running WAL checkpoint: %w", err)
	}
	return nil
}

// IntegrityCheck returns the problems reported by PRAGMA integrity_check,
// or nil when the database is healthy.
func (s *Store) IntegrityCheck(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("running integrity check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scanning integrity check: %w", err)
		}
		if !strings.EqualFold(line, "ok") {
			problems = append(problems, line)
		}
	}
	return problems, rows.Err()
}
