//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, rec SnapshotRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO snapshots (burst_number, captured_at, area_count, neuron_count, payload)
		VALUES (?, ?, ?, ?, ?)
	`, rec.BurstNumber, rec.CapturedAt.UnixNano(), rec.AreaCount, rec.NeuronCount, rec.Payload)
	return err
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (SnapshotRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return SnapshotRecord{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT burst_number, captured_at, area_count, neuron_count, payload
		FROM snapshots ORDER BY id DESC LIMIT 1
	`)
	rec, err := scanSnapshot(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SnapshotRecord{}, false, nil
		}
		return SnapshotRecord{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT burst_number, captured_at, area_count, neuron_count, payload
		FROM snapshots ORDER BY id DESC
	`
	var rows *sql.Rows
	if limit > 0 {
		rows, err = db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Prune(ctx context.Context, keep int) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}

	_, err = db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY id DESC LIMIT ?
		)
	`, keep)
	return err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func scanSnapshot(scan func(dest ...any) error) (SnapshotRecord, error) {
	var rec SnapshotRecord
	var capturedAt int64
	if err := scan(&rec.BurstNumber, &capturedAt, &rec.AreaCount, &rec.NeuronCount, &rec.Payload); err != nil {
		return SnapshotRecord{}, err
	}
	rec.CapturedAt = unixNano(capturedAt)
	return rec, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			burst_number INTEGER NOT NULL,
			captured_at INTEGER NOT NULL,
			area_count INTEGER NOT NULL,
			neuron_count INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_burst ON snapshots(burst_number);
	`)
	return err
}
