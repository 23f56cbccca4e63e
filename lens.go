package kaleido

import "math"

// Segment count limits. The count is always even so that every mirrored
// sector has an unmirrored partner.
const (
	MinSegments = 2
	MaxSegments = 24
)

const twoPi = 2 * math.Pi

// LensParameters is the input to the lens model.
type LensParameters struct {
	// Width and Height are the output dimensions in device pixels.
	Width, Height int

	// Segments is the requested number of angular wedges.
	// It is clamped to [MinSegments, MaxSegments] and rounded down to even.
	Segments int

	// RotationDegrees is an unconstrained rotation angle. Continuous
	// animation feeds a monotonically increasing value here.
	RotationDegrees float64
}

// Lens is the angular geometry derived from LensParameters.
// It is a value type; recompute it every frame rather than mutating it.
type Lens struct {
	Width, Height int

	// Segments is the clamped, even wedge count.
	Segments int

	// SegmentAngle is 2π / Segments.
	SegmentAngle float64

	// SectorStart is the rotation reduced into [0, 2π).
	SectorStart float64

	// SectorEnd is SectorStart + SegmentAngle.
	SectorEnd float64

	// Rotation is the normalized rotation in radians.
	Rotation float64

	// CenterX and CenterY are the geometric centre of the output.
	CenterX, CenterY float64
}

// ClampSegments clamps n to [MinSegments, MaxSegments] and rounds it down to
// the nearest even number.
func ClampSegments(n int) int {
	if n < MinSegments {
		n = MinSegments
	}
	if n > MaxSegments {
		n = MaxSegments
	}
	return n &^ 1
}

// NormalizeRadians reduces an angle into [0, 2π). Non-finite input yields 0.
func NormalizeRadians(rad float64) float64 {
	if math.IsNaN(rad) || math.IsInf(rad, 0) {
		return 0
	}
	r := math.Mod(rad, twoPi)
	if r < 0 {
		r += twoPi
	}
	// math.Mod of a tiny negative value plus 2π can round up to exactly 2π.
	if r >= twoPi {
		r = 0
	}
	return r
}

// NewLens computes the lens geometry for p. It has no side effects, so the
// preview loop and the exporter get identical geometry for identical input.
func NewLens(p LensParameters) Lens {
	segments := ClampSegments(p.Segments)
	angle := twoPi / float64(segments)
	start := NormalizeRadians(p.RotationDegrees * math.Pi / 180)
	return Lens{
		Width:        p.Width,
		Height:       p.Height,
		Segments:     segments,
		SegmentAngle: angle,
		SectorStart:  start,
		SectorEnd:    start + angle,
		Rotation:     start,
		CenterX:      float64(p.Width) / 2,
		CenterY:      float64(p.Height) / 2,
	}
}

// Fold maps an output polar angle theta (radians, relative to the centre)
// to its sector index k in [0, Segments) and the angle sampled in the source
// snapshot: the local angle within the sector, reflected for odd sectors.
func (l Lens) Fold(theta float64) (local float64, k int) {
	t := NormalizeRadians(theta + l.Rotation)
	k = int(t / l.SegmentAngle)
	if k >= l.Segments {
		k = l.Segments - 1
	}
	local = math.Min(math.Max(t-float64(k)*l.SegmentAngle, 0), l.SegmentAngle)
	if l.Mirrored(k) {
		local = l.SegmentAngle - local
	}
	return local, k
}

// SectorIndex returns the sector containing the output polar angle theta.
func (l Lens) SectorIndex(theta float64) int {
	_, k := l.Fold(theta)
	return k
}

// Mirrored reports whether sector index k is reflected. Odd sectors are.
func (l Lens) Mirrored(k int) bool {
	return k&1 == 1
}

// WedgeBounds returns the output angle range [from, to) covered by wedge i.
func (l Lens) WedgeBounds(i int) (from, to float64) {
	from = float64(i)*l.SegmentAngle - l.Rotation
	return from, from + l.SegmentAngle
}
