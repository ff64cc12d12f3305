package store

import (
	"context"
	"time"
)

// StateStore handles persistent key/value application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// SnapshotRecord is the index entry of a captured AR snapshot.
type SnapshotRecord struct {
	ID        string
	StationID string
	Path      string
	MIME      string
	Size      int64
	CreatedAt time.Time
}

// SnapshotStore indexes snapshot files written to disk.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, rec *SnapshotRecord) error
	GetSnapshot(ctx context.Context, id string) (*SnapshotRecord, error)
	ListSnapshots(ctx context.Context, stationID string) ([]*SnapshotRecord, error)
}
