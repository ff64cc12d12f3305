package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hexentour/pkg/audio"
	"hexentour/pkg/station"
	"hexentour/pkg/store"
)

const probeKey = "probe_roundtrip"

// Storage writes, reads back and deletes a key.
func Storage(st store.StateStore) Probe {
	return Probe{
		Name:     "Storage",
		Critical: true,
		Check: func(ctx context.Context) error {
			if err := st.SetState(ctx, probeKey, "ok"); err != nil {
				return err
			}
			v, found := st.GetState(ctx, probeKey)
			if !found || v != "ok" {
				return errors.New("value not read back")
			}
			return st.DeleteState(ctx, probeKey)
		},
	}
}

// WritableDir checks that dir exists or can be created and accepts files.
func WritableDir(name, dir string) Probe {
	return Probe{
		Name:     name,
		Critical: true,
		Check: func(ctx context.Context) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".probe-*")
			if err != nil {
				return err
			}
			name := f.Name()
			f.Close()
			return os.Remove(name)
		},
	}
}

// Catalog checks that the catalog has stations.
func Catalog(cat *station.Catalog) Probe {
	return Probe{
		Name:     "Catalog",
		Critical: true,
		Check: func(ctx context.Context) error {
			if cat == nil || cat.Len() == 0 {
				return errors.New("no stations")
			}
			return nil
		},
	}
}

// AudioAssets decodes the dialog audio of every station below baseDir.
// Missing audio degrades playback but does not block the tour.
func AudioAssets(cat *station.Catalog, baseDir string) Probe {
	return Probe{
		Name:    "Audio Assets",
		Timeout: 30 * DefaultTimeout,
		Check: func(ctx context.Context) error {
			var errs []error
			for _, s := range cat.Stations() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if s.DialogAudio == "" {
					continue
				}
				path, err := audio.Resolve(baseDir, s.DialogAudio)
				if err == nil {
					_, err = audio.Probe(path)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %s: %w", s.ID, filepath.Base(s.DialogAudio), err))
				}
			}
			return errors.Join(errs...)
		},
	}
}
