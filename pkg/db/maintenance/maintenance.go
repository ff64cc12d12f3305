package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"hexentour/pkg/db"
	"hexentour/pkg/persist"
	"hexentour/pkg/store"
)

// Options controls startup maintenance.
type Options struct {
	// SnapshotMaxAge removes snapshots older than this. Zero keeps all.
	SnapshotMaxAge time.Duration
	// ResumeKey is the audio resume record checked for validity.
	ResumeKey string
}

// Run executes all maintenance tasks. Failures are logged, never returned,
// so a damaged database cannot block startup.
func Run(ctx context.Context, s store.StateStore, d *db.DB, opts Options) {
	slog.Info("Starting database maintenance...")

	if opts.SnapshotMaxAge > 0 {
		n, err := pruneSnapshots(d, opts.SnapshotMaxAge)
		if err != nil {
			slog.Error("Snapshot pruning failed", "error", err)
		} else {
			slog.Info("Snapshot pruning completed", "removed", n)
		}
	}

	dropInvalidResume(ctx, s, opts.ResumeKey)
}

func pruneSnapshots(d *db.DB, maxAge time.Duration) (int, error) {
	paths, err := d.PruneSnapshots(maxAge)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove snapshot file", "path", p, "error", err)
		}
	}
	return len(paths), nil
}

// dropInvalidResume clears a resume record that no longer decodes.
func dropInvalidResume(ctx context.Context, s store.StateStore, key string) {
	r := persist.NewResumeStore(s, key)
	if _, found := s.GetState(ctx, r.Key()); !found {
		return
	}
	if _, ok := r.Load(ctx); !ok {
		slog.Info("Dropping unreadable audio resume record")
		r.Clear(ctx)
	}
}
