package kaleido

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Cadence limits for snapshot capture.
const (
	// MinManualInterval floors a fixed snapshot interval to bound capture overhead.
	MinManualInterval = 250 * time.Millisecond

	// MinAutoInterval and MaxAutoInterval clamp the adaptive interval.
	MinAutoInterval = 280 * time.Millisecond
	MaxAutoInterval = 1400 * time.Millisecond

	// DefaultSnapshotInterval is both the manual default and the adaptive base.
	DefaultSnapshotInterval = 900 * time.Millisecond
)

// EffectSettings are the user-adjustable kaleidoscope parameters. The UI
// layer owns them; the core reads a copy per frame or per export call and
// normalizes it defensively.
type EffectSettings struct {
	// Enabled turns the mirror effect on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Segments is the requested wedge count (clamped to an even value in [2,24]).
	Segments int `yaml:"segments" json:"segments"`

	// RotationDegrees is a fixed rotation offset. Export uses it as-is.
	RotationDegrees float64 `yaml:"rotation_degrees" json:"rotationDegrees"`

	// RotationSpeed is the preview rotation speed in degrees per second.
	RotationSpeed float64 `yaml:"rotation_speed" json:"rotationSpeed"`

	// HueShiftDegrees rotates hue, normalized into [0, 360).
	HueShiftDegrees float64 `yaml:"hue_shift_degrees" json:"hueShiftDegrees"`

	// SnapshotInterval is the manual capture cadence.
	SnapshotInterval time.Duration `yaml:"snapshot_interval" json:"snapshotInterval"`

	// AutoCadence derives the capture interval from canvas area and segments.
	AutoCadence bool `yaml:"auto_cadence" json:"autoCadence"`

	// MirrorOpacity is the opacity of the mirror layer over the base drawing.
	MirrorOpacity float64 `yaml:"mirror_opacity" json:"mirrorOpacity"`
}

// DefaultSettings returns the settings a fresh drawing starts with.
func DefaultSettings() EffectSettings {
	return EffectSettings{
		Enabled:          false,
		Segments:         6,
		RotationSpeed:    0.2,
		SnapshotInterval: DefaultSnapshotInterval,
		AutoCadence:      true,
		MirrorOpacity:    0.75,
	}
}

// Normalize returns a copy with every field clamped into its valid range.
// Callers are not trusted: non-finite numbers become zero.
func (s EffectSettings) Normalize() EffectSettings {
	s.Segments = ClampSegments(s.Segments)
	s.RotationDegrees = finite(s.RotationDegrees)
	s.RotationSpeed = finite(s.RotationSpeed)
	s.HueShiftDegrees = NormalizeHue(s.HueShiftDegrees)
	if s.SnapshotInterval < MinManualInterval {
		s.SnapshotInterval = MinManualInterval
	}
	s.MirrorOpacity = clampFloat(finite(s.MirrorOpacity), 0, 1)
	return s
}

// NormalizeHue reduces a hue rotation into [0, 360).
func NormalizeHue(deg float64) float64 {
	deg = finite(deg)
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// RotationAt returns the logical rotation angle in degrees after elapsed
// animation time. The value grows without bound; the lens reduces it.
func (s EffectSettings) RotationAt(elapsed time.Duration) float64 {
	return s.RotationDegrees + s.RotationSpeed*elapsed.Seconds()
}

// Lens returns the lens geometry for an output of the given pixel size at
// the given rotation.
func (s EffectSettings) Lens(width, height int, rotationDegrees float64) Lens {
	return NewLens(LensParameters{
		Width:           width,
		Height:          height,
		Segments:        s.Segments,
		RotationDegrees: rotationDegrees,
	})
}

// Config is the on-disk configuration shared by the CLI and the service.
type Config struct {
	Effect EffectSettings `yaml:"effect"`
	Export ExportConfig   `yaml:"export"`
	Debug  string         `yaml:"debug"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	PixelRatio     float64 `yaml:"pixel_ratio"`
	Padding        float64 `yaml:"padding"`
	FilenamePrefix string  `yaml:"filename_prefix"`
	Watermark      string  `yaml:"watermark"`
	Dir            string  `yaml:"dir"`
}

func (c *Config) defaults() {
	if c.Effect.Segments == 0 {
		c.Effect.Segments = 6
	}
	if c.Effect.SnapshotInterval <= 0 {
		c.Effect.SnapshotInterval = DefaultSnapshotInterval
	}
	if c.Effect.MirrorOpacity <= 0 {
		c.Effect.MirrorOpacity = 0.75
	}
	if c.Export.PixelRatio <= 0 {
		c.Export.PixelRatio = DefaultExportPixelRatio
	}
	c.Export.PixelRatio = min(c.Export.PixelRatio, MaxExportPixelRatio)
	if c.Export.Padding <= 0 {
		c.Export.Padding = DefaultExportPadding
	}
	if c.Export.FilenamePrefix == "" {
		c.Export.FilenamePrefix = DefaultFilenamePrefix
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "."
	}
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{Effect: DefaultSettings()}
	cfg.defaults()
	return cfg
}

// ParseConfig decodes YAML configuration and applies defaults.
// Auto cadence is on unless the document sets it explicitly.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{Effect: DefaultSettings()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("kaleido: parse config: %w", err)
	}
	cfg.defaults()
	cfg.Effect = cfg.Effect.Normalize()
	return cfg, nil
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, fmt.Errorf("kaleido: read config: %w", err)
	}
	return ParseConfig(data)
}

// ExportOptions converts the export section into ExportOptions.
func (c *Config) ExportOptions() ExportOptions {
	return ExportOptions{
		PixelRatio:     c.Export.PixelRatio,
		Padding:        c.Export.Padding,
		FilenamePrefix: c.Export.FilenamePrefix,
		Watermark:      c.Export.Watermark,
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
