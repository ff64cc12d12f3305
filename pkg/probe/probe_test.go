package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hexentour/pkg/db"
	"hexentour/pkg/station"
	"hexentour/pkg/store"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{
			Name: "Success Probe",
			Check: func(ctx context.Context) error {
				return nil
			},
			Critical: true,
		},
		{
			Name: "Failure Probe (Non-Critical)",
			Check: func(ctx context.Context) error {
				return errors.New("minor issue")
			},
			Critical: false,
		},
	}

	results := Run(context.Background(), probes)

	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}

	if results[0].Error != nil {
		t.Errorf("Expected success probe to pass, got error: %v", results[0].Error)
	}

	if results[1].Error == nil {
		t.Error("Expected failure probe to fail, got nil")
	}
}

func TestAnalyzeResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{
			name: "All Pass",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: true}, Error: nil},
			},
			wantErr: false,
		},
		{
			name: "Critical Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: true}, Error: errors.New("fail")},
			},
			wantErr: true,
		},
		{
			name: "Non-Critical Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: false}, Error: errors.New("fail")},
			},
			wantErr: false,
		},
		{
			name: "Mixed Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: false}, Error: errors.New("fail")},
				{Probe: Probe{Name: "P2", Critical: true}, Error: errors.New("fail")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AnalyzeResults(tt.results)
			if (err != nil) != tt.wantErr {
				t.Errorf("AnalyzeResults() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRun_TimeoutApplied(t *testing.T) {
	results := Run(context.Background(), []Probe{{
		Name:    "Slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})
	if !errors.Is(results[0].Error, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", results[0].Error)
	}
}

func TestStorage(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "probe.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	st := store.NewSQLiteStore(d)

	p := Storage(st)
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("Storage probe failed: %v", err)
	}
	if _, found := st.GetState(context.Background(), probeKey); found {
		t.Error("Probe key was left behind")
	}
}

func TestWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	if err := WritableDir("Snapshots", dir).Check(context.Background()); err != nil {
		t.Fatalf("WritableDir failed: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected empty dir after probe, got %d entries", len(entries))
	}
}

func TestCatalog(t *testing.T) {
	if err := Catalog(station.Default()).Check(context.Background()); err != nil {
		t.Errorf("Default catalog failed: %v", err)
	}
	if err := Catalog(nil).Check(context.Background()); err == nil {
		t.Error("Expected nil catalog to fail")
	}
}

func TestAudioAssets_MissingFilesReported(t *testing.T) {
	p := AudioAssets(station.Default(), t.TempDir())
	if p.Critical {
		t.Error("Audio probe must not block startup")
	}
	if err := p.Check(context.Background()); err == nil {
		t.Error("Expected missing audio to be reported")
	}
}
