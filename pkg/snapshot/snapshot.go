// Package snapshot stores images captured by the AR surface.
package snapshot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"hexentour/pkg/metrics"
	"hexentour/pkg/station"
	"hexentour/pkg/store"
)

var (
	ErrEmpty    = errors.New("empty snapshot")
	ErrBadData  = errors.New("malformed snapshot data")
	ErrNotFound = errors.New("snapshot not found")
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Store writes snapshot files to a directory and indexes them.
type Store struct {
	dir     string
	index   store.SnapshotStore
	metrics *metrics.Metrics

	mu      sync.Mutex
	entropy *rand.Rand
	now     func() time.Time
}

// NewStore creates dir if needed.
func NewStore(dir string, index store.SnapshotStore, m *metrics.Metrics) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{
		dir:     dir,
		index:   index,
		metrics: m,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}, nil
}

func (s *Store) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// Save decodes an onSnapshotCaptured payload and stores it for stationID.
func (s *Store) Save(ctx context.Context, stationID station.ID, payload json.RawMessage) (*store.SnapshotRecord, error) {
	data, mimeType, err := Decode(payload)
	if err != nil {
		s.metrics.Snapshot(false)
		return nil, err
	}

	now := s.now()
	id := s.newID(now)
	ext, ok := extensions[mimeType]
	if !ok {
		ext = ".bin"
	}
	path := filepath.Join(s.dir, id+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.metrics.Snapshot(false)
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	rec := &store.SnapshotRecord{
		ID:        id,
		StationID: string(stationID),
		Path:      path,
		MIME:      mimeType,
		Size:      int64(len(data)),
		CreatedAt: now,
	}
	if err := s.index.SaveSnapshot(ctx, rec); err != nil {
		_ = os.Remove(path)
		s.metrics.Snapshot(false)
		return nil, fmt.Errorf("index snapshot: %w", err)
	}

	s.metrics.Snapshot(true)
	slog.Info("Snapshot: Saved", "id", id, "station", stationID, "mime", mimeType, "bytes", len(data))
	return rec, nil
}

// List returns snapshots newest first, optionally for one station.
func (s *Store) List(ctx context.Context, stationID station.ID) ([]*store.SnapshotRecord, error) {
	return s.index.ListSnapshots(ctx, string(stationID))
}

// Open returns the record and an open file for id. The caller closes it.
func (s *Store) Open(ctx context.Context, id string) (*store.SnapshotRecord, *os.File, error) {
	rec, err := s.index.GetSnapshot(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f, err := os.Open(rec.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, nil, err
	}
	return rec, f, nil
}

// Decode accepts a JSON string holding a data URL or bare base64.
func Decode(payload json.RawMessage) ([]byte, string, error) {
	var text string
	if err := json.Unmarshal(payload, &text); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadData, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", ErrEmpty
	}

	if !strings.HasPrefix(text, "data:") {
		data, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrBadData, err)
		}
		return data, http.DetectContentType(data), nil
	}

	meta, body, ok := strings.Cut(strings.TrimPrefix(text, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: data url without payload", ErrBadData)
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")

	var data []byte
	if isBase64 {
		d, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrBadData, err)
		}
		data = d
	} else {
		d, err := url.PathUnescape(body)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrBadData, err)
		}
		data = []byte(d)
	}
	if len(data) == 0 {
		return nil, "", ErrEmpty
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
