package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hephy-dd/table-control/pkg/types"
	"github.com/hephy-dd/table-control/pkg/utils/ptr"
)

func TestFileDefaults(t *testing.T) {
	f := NewFileFromConfig(&RawFileConfig{}, "")

	if got := f.Backend(); got != "simulator" {
		t.Fatalf("expected default backend simulator, got %q", got)
	}
	if !f.SCPIEnabled() {
		t.Fatalf("expected SCPI enabled by default")
	}
	if got := f.SCPIAddr(); got != "localhost:4000" {
		t.Fatalf("expected default SCPI addr localhost:4000, got %q", got)
	}
	if f.LegacyEnabled() {
		t.Fatalf("expected legacy disabled by default")
	}
	if got := f.LegacyAddr(); got != "localhost:6345" {
		t.Fatalf("expected default legacy addr localhost:6345, got %q", got)
	}
	if got := f.PollInterval(); got != 500*time.Millisecond {
		t.Fatalf("expected default poll interval 500ms, got %s", got)
	}
	if got := f.LockTimeout(); got != time.Minute {
		t.Fatalf("expected default lock timeout 1m, got %s", got)
	}
	if got := f.ErrorStackCap(); got != 0 {
		t.Fatalf("expected unbounded error stack by default, got %d", got)
	}
	if _, ok := f.ZLimit(); ok {
		t.Fatalf("expected no z limit by default")
	}
	if got := f.CalibrationCron(); got != "" {
		t.Fatalf("expected no calibration cron by default, got %q", got)
	}

	limits := f.Limits()
	if limits.Z.Max != 100 {
		t.Fatalf("expected default Z max 100, got %v", limits.Z.Max)
	}
}

func TestFileOverrides(t *testing.T) {
	f := NewFileFromConfig(&RawFileConfig{
		Backend:   ptr.To("corvus"),
		Resources: &[]string{"localhost:23"},
		SCPI: &RawSocketConfig{
			Port: ptr.To(5025),
		},
		PollIntervalMS: ptr.To(100),
		ZLimit:         ptr.To(25.0),
	}, "")

	if got := f.Backend(); got != "corvus" {
		t.Fatalf("expected backend corvus, got %q", got)
	}
	if got := f.Resources(); len(got) != 1 || got[0] != "localhost:23" {
		t.Fatalf("unexpected resources %v", got)
	}
	// Partially configured sockets keep defaults for the other fields.
	if got := f.SCPIAddr(); got != "localhost:5025" {
		t.Fatalf("expected SCPI addr localhost:5025, got %q", got)
	}
	if !f.SCPIEnabled() {
		t.Fatalf("expected SCPI to stay enabled")
	}
	if got := f.PollInterval(); got != 100*time.Millisecond {
		t.Fatalf("expected poll interval 100ms, got %s", got)
	}
	z, ok := f.ZLimit()
	if !ok || z != 25.0 {
		t.Fatalf("expected z limit 25, got %v ok=%v", z, ok)
	}
}

func TestFileLoadMissingFileUsesDefaults(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("NewFile returned error: %v", err)
	}

	if got := f.Backend(); got != "simulator" {
		t.Fatalf("expected default backend, got %q", got)
	}
}

func TestFileSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	f := NewFileFromConfig(&RawFileConfig{
		Backend:        ptr.To("hydra2x"),
		Resources:      &[]string{"localhost:4001", "localhost:4002"},
		LockTimeoutSec: ptr.To(120),
		Limits: &types.Limits{
			X: types.AxisLimits{Min: 0, Max: 200},
			Y: types.AxisLimits{Min: 0, Max: 200},
			Z: types.AxisLimits{Min: 0, Max: 50},
		},
	}, path)

	if err := f.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile returned error: %v", err)
	}

	if got := loaded.Backend(); got != "hydra2x" {
		t.Fatalf("expected backend hydra2x, got %q", got)
	}
	if got := loaded.Resources(); len(got) != 2 {
		t.Fatalf("expected 2 resources, got %v", got)
	}
	if got := loaded.LockTimeout(); got != 2*time.Minute {
		t.Fatalf("expected lock timeout 2m, got %s", got)
	}
	if got := loaded.Limits(); got.Z.Max != 50 {
		t.Fatalf("expected Z max 50, got %v", got.Z.Max)
	}
}

func TestFileLoadEmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(" \n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile returned error: %v", err)
	}
	if got := f.Backend(); got != "simulator" {
		t.Fatalf("expected default backend, got %q", got)
	}
}
