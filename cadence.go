package kaleido

import (
	"math"
	"time"
)

// referenceArea is the canvas area (1920×1080) at which the adaptive
// interval equals its base before the segment factor.
const referenceArea = 1920 * 1080

// SnapshotInterval returns how long the sampler waits between captures for a
// canvas of width×height.
//
// With AutoCadence the interval is
//
//	900ms × clamp(area/(1920×1080), 0.5, 1.5) × max(0.7, 1.4 − segments×0.05)
//
// clamped to [280ms, 1400ms]: larger canvases cost more to sample, and more
// segments make each update visually smaller. segments is the clamped, even
// count the lens draws. Otherwise the fixed
// SnapshotInterval is used, floored at 250ms.
func SnapshotInterval(s EffectSettings, width, height int) time.Duration {
	if !s.AutoCadence {
		if s.SnapshotInterval < MinManualInterval {
			return MinManualInterval
		}
		return s.SnapshotInterval
	}

	area := float64(width) * float64(height)
	areaFactor := clampFloat(area/referenceArea, 0.5, 1.5)
	segmentFactor := math.Max(0.7, 1.4-float64(ClampSegments(s.Segments))*0.05)
	ms := float64(DefaultSnapshotInterval/time.Millisecond) * areaFactor * segmentFactor
	ms = clampFloat(ms, float64(MinAutoInterval/time.Millisecond), float64(MaxAutoInterval/time.Millisecond))
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}
