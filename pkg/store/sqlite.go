package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"hexentour/pkg/db"
)

// Store defines the repository interface.
type Store interface {
	StateStore
	SnapshotStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		slog.Warn("Store: Failed to read state", "key", key, "error", err)
		return "", false
	}
	return val.String, val.Valid
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now().UTC())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}

// --- Snapshots ---

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, rec *SnapshotRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `INSERT OR REPLACE INTO snapshots (id, station_id, path, mime, size, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, rec.ID, rec.StationID, rec.Path, rec.MIME, rec.Size, rec.CreatedAt.UTC())
	return err
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, station_id, path, mime, size, created_at FROM snapshots WHERE id = ?`, id)
	rec, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	return rec, err
}

// ListSnapshots returns snapshots newest first. An empty stationID lists all.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, stationID string) ([]*SnapshotRecord, error) {
	query := `SELECT id, station_id, path, mime, size, created_at FROM snapshots`
	var args []any
	if stationID != "" {
		query += ` WHERE station_id = ?`
		args = append(args, stationID)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var stationID, mime sql.NullString
	var size sql.NullInt64
	if err := row.Scan(&rec.ID, &stationID, &rec.Path, &mime, &size, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.StationID = stationID.String
	rec.MIME = mime.String
	rec.Size = size.Int64
	return &rec, nil
}
