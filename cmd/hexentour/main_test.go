package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hexentour/pkg/db"
	"hexentour/pkg/store"
)

// writeConfig creates a config with every path below a temp dir.
func writeConfig(t *testing.T) (*rootOptions, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
server:
    address: localhost:0
log:
    server:
        path: %[1]s/logs/server.log
        level: debug
    requests:
        path: %[1]s/logs/requests.log
        level: info
    events:
        path: %[1]s/logs/events.log
        level: info
db:
    path: %[1]s/tour.db
playback:
    audio_dir: %[1]s/audio
snapshot:
    dir: %[1]s/snapshots
`, filepath.ToSlash(dir))
	path := filepath.Join(dir, "hexentour.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &rootOptions{configPath: path, envPath: filepath.Join(dir, ".env")}, dir
}

func TestRun(t *testing.T) {
	opts, _ := writeConfig(t)

	// A short deadline verifies the startup sequence, then shuts down.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCatalogCmd(t *testing.T) {
	opts, _ := writeConfig(t)

	out, err := execute(t, "catalog", "--config", opts.configPath, "--env", opts.envPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, out, "s01")
	assert.Contains(t, out, "s25")
}

func TestCatalogCmd_CheckAudioFailsWithoutFiles(t *testing.T) {
	opts, _ := writeConfig(t)

	_, err := execute(t, "catalog", "--check-audio", "--config", opts.configPath, "--env", opts.envPath)
	assert.Error(t, err)
}

func TestInitConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "hexentour.yaml")

	out, err := execute(t, "init-config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hexentanzplatz_progress_v1")
}

func TestResetCmd(t *testing.T) {
	opts, dir := writeConfig(t)
	ctx := context.Background()

	d, err := db.Init(filepath.Join(dir, "tour.db"))
	require.NoError(t, err)
	st := store.NewSQLiteStore(d)
	require.NoError(t, st.SetState(ctx, "hexentanzplatz_progress_v1", `{"state":{"unlocked":true}}`))
	require.NoError(t, st.SetState(ctx, "hexentanzplatz_audio_v1", `{"src":"/audio/AR_02_03.mp3"}`))
	require.NoError(t, d.Close())

	out, err := execute(t, "reset", "--config", opts.configPath, "--env", opts.envPath)
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	d, err = db.Init(filepath.Join(dir, "tour.db"))
	require.NoError(t, err)
	defer d.Close()
	st = store.NewSQLiteStore(d)
	_, found := st.GetState(ctx, "hexentanzplatz_progress_v1")
	assert.False(t, found)
	_, found = st.GetState(ctx, "hexentanzplatz_audio_v1")
	assert.False(t, found)
}

func TestEnvOverride(t *testing.T) {
	opts, dir := writeConfig(t)
	require.NoError(t, os.WriteFile(opts.envPath, []byte("HEXENTOUR_ADDR=localhost:4111\n"), 0o644))
	t.Setenv("HEXENTOUR_DB", filepath.Join(dir, "other.db"))

	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "localhost:4111", cfg.Server.Address)
	assert.Equal(t, filepath.Join(dir, "other.db"), cfg.DB.Path)
}
