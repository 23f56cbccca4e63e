package kaleido

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Enabled {
		t.Error("mirror should be off by default")
	}
	if s.Segments != 6 || s.RotationSpeed != 0.2 || s.SnapshotInterval != 900*time.Millisecond || !s.AutoCadence {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.MirrorOpacity != 0.75 {
		t.Errorf("MirrorOpacity = %v, want 0.75", s.MirrorOpacity)
	}
}

func TestNormalize(t *testing.T) {
	s := EffectSettings{
		Segments:         7,
		RotationDegrees:  math.NaN(),
		RotationSpeed:    math.Inf(1),
		HueShiftDegrees:  -30,
		SnapshotInterval: 10 * time.Millisecond,
		MirrorOpacity:    4,
	}.Normalize()

	if s.Segments != 6 {
		t.Errorf("Segments = %d, want 6", s.Segments)
	}
	if s.RotationDegrees != 0 || s.RotationSpeed != 0 {
		t.Errorf("non-finite rotation not zeroed: %v, %v", s.RotationDegrees, s.RotationSpeed)
	}
	if s.HueShiftDegrees != 330 {
		t.Errorf("HueShiftDegrees = %v, want 330", s.HueShiftDegrees)
	}
	if s.SnapshotInterval != MinManualInterval {
		t.Errorf("SnapshotInterval = %v, want %v", s.SnapshotInterval, MinManualInterval)
	}
	if s.MirrorOpacity != 1 {
		t.Errorf("MirrorOpacity = %v, want 1", s.MirrorOpacity)
	}
}

func TestNormalizeHue(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{370, 10},
		{-10, 350},
		{-720, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := NormalizeHue(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeHue(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRotationAt(t *testing.T) {
	s := DefaultSettings()
	s.RotationDegrees = 10
	s.RotationSpeed = 0.2

	if got := s.RotationAt(0); got != 10 {
		t.Errorf("RotationAt(0) = %v", got)
	}
	if got := s.RotationAt(10 * time.Second); math.Abs(got-12) > 1e-9 {
		t.Errorf("RotationAt(10s) = %v, want 12", got)
	}
	// The logical angle keeps growing; the lens normalizes it.
	if got := s.RotationAt(10 * time.Hour); got <= 360 {
		t.Errorf("RotationAt(10h) = %v, want unbounded growth", got)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
effect:
  enabled: true
  segments: 9
  rotation_speed: 1.5
  hue_shift_degrees: 400
  snapshot_interval: 600ms
  auto_cadence: false
export:
  pixel_ratio: 3
  watermark: example.art
debug: geometry
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if !cfg.Effect.Enabled || cfg.Effect.Segments != 8 || cfg.Effect.RotationSpeed != 1.5 {
		t.Errorf("effect = %+v", cfg.Effect)
	}
	if cfg.Effect.HueShiftDegrees != 40 {
		t.Errorf("HueShiftDegrees = %v, want 40", cfg.Effect.HueShiftDegrees)
	}
	if cfg.Effect.SnapshotInterval != 600*time.Millisecond || cfg.Effect.AutoCadence {
		t.Errorf("cadence = %v auto=%v", cfg.Effect.SnapshotInterval, cfg.Effect.AutoCadence)
	}
	if cfg.Effect.MirrorOpacity != 0.75 {
		t.Errorf("MirrorOpacity = %v, want default 0.75", cfg.Effect.MirrorOpacity)
	}
	if cfg.Export.PixelRatio != 3 || cfg.Export.Padding != DefaultExportPadding {
		t.Errorf("export = %+v", cfg.Export)
	}
	if cfg.Export.FilenamePrefix != DefaultFilenamePrefix {
		t.Errorf("FilenamePrefix = %q", cfg.Export.FilenamePrefix)
	}
	if cfg.Debug != "geometry" {
		t.Errorf("Debug = %q", cfg.Debug)
	}

	opts := cfg.ExportOptions()
	if opts.PixelRatio != 3 || opts.Watermark != "example.art" {
		t.Errorf("ExportOptions = %+v", opts)
	}
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig(nil): %v", err)
	}
	if !cfg.Effect.AutoCadence || cfg.Effect.Segments != 6 {
		t.Errorf("defaults not applied: %+v", cfg.Effect)
	}
	if cfg.Export.PixelRatio != DefaultExportPixelRatio {
		t.Errorf("PixelRatio = %v", cfg.Export.PixelRatio)
	}
}

func TestParseConfigClampsPixelRatio(t *testing.T) {
	cfg, err := ParseConfig([]byte("export:\n  pixel_ratio: 100000\n"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Export.PixelRatio != MaxExportPixelRatio {
		t.Errorf("PixelRatio = %v, want %v", cfg.Export.PixelRatio, MaxExportPixelRatio)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	if _, err := ParseConfig([]byte("effect: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kaleido.yaml")
	if err := os.WriteFile(path, []byte("effect:\n  segments: 12\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Effect.Segments != 12 {
		t.Errorf("Segments = %d, want 12", cfg.Effect.Segments)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
