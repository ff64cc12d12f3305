package config

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"hexentour/pkg/store"
)

// Provider gives access to settings that may be changed at runtime.
type Provider interface {
	Volume(ctx context.Context) float64
	WordsPerSecond(ctx context.Context) float64
	CaptionWidth(ctx context.Context) float64
	ArrivalRadius(ctx context.Context) float64

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) Volume(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyVolume, p.base.Playback.Volume)
}

func (p *UnifiedProvider) WordsPerSecond(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyWordsPerSecond, p.base.Playback.WordsPerSecond)
}

func (p *UnifiedProvider) CaptionWidth(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyCaptionWidth, p.base.Caption.DefaultWidth)
}

func (p *UnifiedProvider) ArrivalRadius(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyArrivalRadius, float64(p.base.Geo.ArrivalRadius))
}

// Set stores a runtime override after checking it is a positive number
// (volume may be zero).
func (p *UnifiedProvider) Set(ctx context.Context, key, val string) error {
	if !slices.Contains(RuntimeKeys, key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	if f < 0 || (f == 0 && key != KeyVolume) {
		return fmt.Errorf("setting %s out of range: %v", key, f)
	}
	return p.store.SetState(ctx, key, val)
}

// Reset drops all runtime overrides.
func (p *UnifiedProvider) Reset(ctx context.Context) error {
	for _, k := range RuntimeKeys {
		if err := p.store.DeleteState(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// --- Helpers ---

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}
