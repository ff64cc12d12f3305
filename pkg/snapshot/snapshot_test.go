package snapshot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hexentour/pkg/db"
	"hexentour/pkg/store"
)

// 1x1 transparent png.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func jsonString(t *testing.T, s string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return b
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	d, err := db.Init(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	s, err := NewStore(filepath.Join(dir, "snapshots"), store.NewSQLiteStore(d), nil)
	require.NoError(t, err)
	return s
}

func TestDecode(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(pngPixel)
	tests := []struct {
		name     string
		payload  string
		wantMIME string
		wantErr  error
	}{
		{"data url", "data:image/png;base64," + b64, "image/png", nil},
		{"data url without mime", "data:;base64," + b64, "image/png", nil},
		{"bare base64", b64, "image/png", nil},
		{"plain data url", "data:text/plain,hallo%20welt", "text/plain", nil},
		{"empty", "  ", "", ErrEmpty},
		{"bad base64", "data:image/png;base64,@@@", "", ErrBadData},
		{"no comma", "data:image/png;base64", "", ErrBadData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mimeType, err := Decode(jsonString(t, tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, mimeType)
			assert.NotEmpty(t, data)
		})
	}

	_, _, err := Decode(json.RawMessage(`{"data":1}`))
	assert.ErrorIs(t, err, ErrBadData)
}

func TestSaveListOpen(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	payload := jsonString(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngPixel))

	first, err := s.Save(ctx, "s02", payload)
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(first.Path))
	assert.Len(t, first.ID, 26)

	// ULIDs sort by time; force the second into a later millisecond.
	s.now = func() time.Time { return time.Now().Add(time.Second) }
	second, err := s.Save(ctx, "s03", payload)
	require.NoError(t, err)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	only, err := s.List(ctx, "s02")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, first.ID, only[0].ID)

	rec, f, err := s.Open(ctx, first.ID)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, data)
	assert.Equal(t, int64(len(pngPixel)), rec.Size)
	assert.Equal(t, "image/png", rec.MIME)
}

func TestOpenMissing(t *testing.T) {
	s := setupStore(t)
	_, _, err := s.Open(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsBadPayload(t *testing.T) {
	s := setupStore(t)
	_, err := s.Save(context.Background(), "s02", jsonString(t, ""))
	assert.ErrorIs(t, err, ErrEmpty)

	all, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}
