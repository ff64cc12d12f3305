package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "hexentour.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address != "localhost:3000" {
					t.Errorf("expected default address, got %q", cfg.Server.Address)
				}
				if time.Duration(cfg.Bridge.ReadyTimeout) != 3*time.Second {
					t.Errorf("expected 3s ready timeout, got %v", time.Duration(cfg.Bridge.ReadyTimeout))
				}
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "progress_key: hexentanzplatz_progress_v1") {
					t.Error("config file missing storage defaults")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				doc := "bridge:\n  echo_window: 250ms\nsnapshot:\n  max_age: 2w\ngeo:\n  arrival_radius: 0.04km\n"
				if err := os.WriteFile(configPath, []byte(doc), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if time.Duration(cfg.Bridge.EchoWindow) != 250*time.Millisecond {
					t.Errorf("expected 250ms echo window, got %v", time.Duration(cfg.Bridge.EchoWindow))
				}
				if time.Duration(cfg.Snapshot.MaxAge) != 2*Week {
					t.Errorf("expected 2w max age, got %v", time.Duration(cfg.Snapshot.MaxAge))
				}
				if float64(cfg.Geo.ArrivalRadius) != 40 {
					t.Errorf("expected 40m radius, got %v", cfg.Geo.ArrivalRadius)
				}
				if cfg.Caption.FontSize != 16 {
					t.Errorf("unset values keep defaults, got font size %v", cfg.Caption.FontSize)
				}
			},
		},
		{
			name: "NegativeDuration",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("screen:\n  sync_delay: -1s\n"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "BadFontSize",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("caption:\n  font_size: 0\n"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "BrokenYAML",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("server: [\n"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := GenerateDefault(path); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	if cfg.Snapshot.MaxAge != def.Snapshot.MaxAge || cfg.Geo.ArrivalRadius != def.Geo.ArrivalRadius {
		t.Errorf("round trip changed values: %+v %+v", cfg.Snapshot, cfg.Geo)
	}
	if cfg.Playback.PositionTolerance != def.Playback.PositionTolerance {
		t.Errorf("position tolerance = %v", time.Duration(cfg.Playback.PositionTolerance))
	}
}

func TestValidateSameKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.AudioKey = cfg.Storage.ProgressKey
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for identical storage keys")
	}
}

func TestEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("HEXENTOUR_ADDR=0.0.0.0:9000\nHEXENTOUR_DB=/tmp/from-dotenv.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDB, "/tmp/from-env.db")

	env, err := Env(dotenv)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	ApplyEnv(cfg, env)

	if cfg.Server.Address != "0.0.0.0:9000" {
		t.Errorf("address = %q, want value from .env", cfg.Server.Address)
	}
	if cfg.DB.Path != "/tmp/from-env.db" {
		t.Errorf("db path = %q, process env must win", cfg.DB.Path)
	}

	if _, err := Env(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing dotenv must be ignored: %v", err)
	}
}
