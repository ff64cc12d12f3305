package persist

import (
	"context"
	"encoding/json"
	"log/slog"

	"hexentour/pkg/station"
	"hexentour/pkg/store"
)

// DefaultResumeKey is the storage key of the audio resume record.
const DefaultResumeKey = "hexentanzplatz_audio_v1"

// AudioResume lets a reload continue station audio where it left off.
type AudioResume struct {
	StationID   station.ID `json:"stationId"`
	CurrentTime float64    `json:"currentTime"`
	Playing     bool       `json:"playing"`
}

// ResumeStore keeps the audio resume record apart from tour progress.
type ResumeStore struct {
	st  store.StateStore
	key string
}

// NewResumeStore creates a resume store under key.
func NewResumeStore(st store.StateStore, key string) *ResumeStore {
	if key == "" {
		key = DefaultResumeKey
	}
	return &ResumeStore{st: st, key: key}
}

// Key returns the storage key.
func (r *ResumeStore) Key() string { return r.key }

func (r *ResumeStore) Save(ctx context.Context, rec AudioResume) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.st.SetState(ctx, r.key, string(data)); err != nil {
		slog.Debug("Persist: Failed to save audio position", "error", err)
	}
}

func (r *ResumeStore) Load(ctx context.Context) (AudioResume, bool) {
	raw, found := r.st.GetState(ctx, r.key)
	if !found {
		return AudioResume{}, false
	}
	var rec AudioResume
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || !rec.StationID.Valid() || rec.CurrentTime < 0 {
		return AudioResume{}, false
	}
	return rec, true
}

func (r *ResumeStore) Clear(ctx context.Context) {
	if err := r.st.DeleteState(ctx, r.key); err != nil {
		slog.Debug("Persist: Failed to clear audio position", "error", err)
	}
}
