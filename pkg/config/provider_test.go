package config

import (
	"context"
	"testing"
)

// MockStateStore implements store.StateStore for testing.
type MockStateStore struct {
	data map[string]string
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockStateStore) SetState(ctx context.Context, key, val string) error {
	m.data[key] = val
	return nil
}

func (m *MockStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestUnifiedProvider(t *testing.T) {
	ctx := context.Background()
	st := NewMockStateStore()
	p := NewProvider(DefaultConfig(), st)

	if got := p.WordsPerSecond(ctx); got != 2.5 {
		t.Errorf("WordsPerSecond() = %v, want default 2.5", got)
	}
	if got := p.ArrivalRadius(ctx); got != 25 {
		t.Errorf("ArrivalRadius() = %v, want default 25", got)
	}

	if err := p.Set(ctx, KeyWordsPerSecond, "3"); err != nil {
		t.Fatal(err)
	}
	if err := p.Set(ctx, KeyVolume, "0"); err != nil {
		t.Fatal(err)
	}
	if got := p.WordsPerSecond(ctx); got != 3 {
		t.Errorf("WordsPerSecond() = %v, want override 3", got)
	}
	if got := p.Volume(ctx); got != 0 {
		t.Errorf("Volume() = %v, want override 0", got)
	}

	// A corrupt stored value falls back to the base config.
	st.data[KeyCaptionWidth] = "wide"
	if got := p.CaptionWidth(ctx); got != 600 {
		t.Errorf("CaptionWidth() = %v, want fallback 600", got)
	}

	if err := p.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if got := p.WordsPerSecond(ctx); got != 2.5 {
		t.Errorf("after Reset WordsPerSecond() = %v", got)
	}
}

func TestUnifiedProvider_SetRejects(t *testing.T) {
	p := NewProvider(DefaultConfig(), NewMockStateStore())
	tests := []struct{ key, val string }{
		{"units", "1"},
		{KeyCaptionWidth, "abc"},
		{KeyCaptionWidth, "0"},
		{KeyVolume, "-1"},
	}
	for _, tt := range tests {
		if err := p.Set(context.Background(), tt.key, tt.val); err == nil {
			t.Errorf("Set(%q, %q) succeeded", tt.key, tt.val)
		}
	}
}
