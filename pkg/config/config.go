package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Storage  StorageConfig  `yaml:"storage"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Playback PlaybackConfig `yaml:"playback"`
	Caption  CaptionConfig  `yaml:"caption"`
	Screen   ScreenConfig   `yaml:"screen"`
	Geo      GeoConfig      `yaml:"geo"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	// Origin is the page origin accepted for AR frame messages. Empty
	// derives it from the request host.
	Origin string `yaml:"origin"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig points at an external station catalog. Empty uses the
// built-in one.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig names the local storage keys.
type StorageConfig struct {
	ProgressKey string `yaml:"progress_key"`
	AudioKey    string `yaml:"audio_key"`
}

// BridgeConfig holds AR bridge settings.
type BridgeConfig struct {
	EchoWindow   Duration `yaml:"echo_window"`
	ReadyTimeout Duration `yaml:"ready_timeout"`
}

// PlaybackConfig holds local audio and sync settings.
type PlaybackConfig struct {
	AudioDir          string   `yaml:"audio_dir"`
	Tick              Duration `yaml:"tick"`
	PositionTolerance Duration `yaml:"position_tolerance"`
	DurationTolerance Duration `yaml:"duration_tolerance"`
	WordsPerSecond    float64  `yaml:"words_per_second"`
	Volume            float64  `yaml:"volume"`
}

// CaptionConfig holds the caption box geometry in CSS pixels.
type CaptionConfig struct {
	FontSize     float64 `yaml:"font_size"`
	Padding      float64 `yaml:"padding"`
	DefaultWidth float64 `yaml:"default_width"`
}

// ScreenConfig holds route sync settings.
type ScreenConfig struct {
	SyncDelay Duration `yaml:"sync_delay"`
}

// GeoConfig holds GPS arrival settings.
type GeoConfig struct {
	ArrivalRadius   Distance `yaml:"arrival_radius"`
	AreaPath        string   `yaml:"area_path"`
	SmoothingWindow int      `yaml:"smoothing_window"`
}

// SnapshotConfig holds AR snapshot storage settings.
type SnapshotConfig struct {
	Dir    string   `yaml:"dir"`
	MaxAge Duration `yaml:"max_age"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:3000",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/hexentour.db",
		},
		Storage: StorageConfig{
			ProgressKey: "hexentanzplatz_progress_v1",
			AudioKey:    "hexentanzplatz_audio_v1",
		},
		Bridge: BridgeConfig{
			EchoWindow:   Duration(100 * time.Millisecond),
			ReadyTimeout: Duration(3 * time.Second),
		},
		Playback: PlaybackConfig{
			AudioDir:          "./data/audio",
			Tick:              Duration(250 * time.Millisecond),
			PositionTolerance: Duration(500 * time.Millisecond),
			DurationTolerance: Duration(100 * time.Millisecond),
			WordsPerSecond:    2.5,
			Volume:            1.0,
		},
		Caption: CaptionConfig{
			FontSize:     16,
			Padding:      48,
			DefaultWidth: 600,
		},
		Screen: ScreenConfig{
			SyncDelay: Duration(150 * time.Millisecond),
		},
		Geo: GeoConfig{
			ArrivalRadius:   25,
			SmoothingWindow: 3,
		},
		Snapshot: SnapshotConfig{
			Dir:    "./data/snapshots",
			MaxAge: Duration(30 * Day),
		},
	}
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	var errs []error
	durations := map[string]Duration{
		"bridge.echo_window":          c.Bridge.EchoWindow,
		"bridge.ready_timeout":        c.Bridge.ReadyTimeout,
		"playback.tick":               c.Playback.Tick,
		"playback.position_tolerance": c.Playback.PositionTolerance,
		"playback.duration_tolerance": c.Playback.DurationTolerance,
		"screen.sync_delay":           c.Screen.SyncDelay,
		"snapshot.max_age":            c.Snapshot.MaxAge,
	}
	for name, d := range durations {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.Playback.WordsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("playback.words_per_second must be positive"))
	}
	if c.Playback.Volume < 0 {
		errs = append(errs, fmt.Errorf("playback.volume must not be negative"))
	}
	if c.Caption.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("caption.font_size must be positive"))
	}
	if c.Caption.DefaultWidth <= 0 {
		errs = append(errs, fmt.Errorf("caption.default_width must be positive"))
	}
	if c.Geo.ArrivalRadius <= 0 {
		errs = append(errs, fmt.Errorf("geo.arrival_radius must be positive"))
	}
	if !keyPattern.MatchString(c.Storage.ProgressKey) || !keyPattern.MatchString(c.Storage.AudioKey) {
		errs = append(errs, fmt.Errorf("storage keys must match %s", keyPattern))
	}
	if c.Storage.ProgressKey == c.Storage.AudioKey {
		errs = append(errs, fmt.Errorf("storage.progress_key and storage.audio_key must differ"))
	}
	return errors.Join(errs...)
}

var keyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Load reads the config at path, creating it with defaults on first run.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as yaml with a short header.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Hexentour Configuration
# -----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters, also unitless), km (kilometers)
# Environment overrides: HEXENTOUR_ADDR, HEXENTOUR_DB (also read from .env)

`)
	data = append(header, data...)

	reOrigin := regexp.MustCompile(`(?m)^(\s+)origin:`)
	data = reOrigin.ReplaceAll(data, []byte("${1}# Empty derives the origin from the request host\n${1}origin:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault writes the default config unless path exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
