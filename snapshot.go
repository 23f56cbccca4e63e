package kaleido

import (
	"errors"
	"math"
	"time"

	"github.com/gogpu/gg"
)

// ErrSurfaceUnavailable is returned by surfaces that cannot be rasterized
// right now (for example, nothing has been drawn yet).
var ErrSurfaceUnavailable = errors.New("kaleido: drawing surface unavailable")

// ErrNoSnapshot is returned when a renderer is asked to draw before any
// snapshot has been delivered.
var ErrNoSnapshot = errors.New("kaleido: no snapshot available")

// Bounds is an axis-aligned rectangle in canvas (CSS pixel) coordinates.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Empty reports whether the bounds enclose no area.
func (b Bounds) Empty() bool {
	return !(b.MaxX > b.MinX && b.MaxY > b.MinY)
}

// Union returns the smallest bounds containing both b and o.
// An empty operand is ignored.
func (b Bounds) Union(o Bounds) Bounds {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Surface is the live drawing collaborator. The core never mutates it.
type Surface interface {
	// Size returns the canvas dimensions in CSS pixels.
	Size() (width, height int)

	// Rasterize renders the current content into a new pixmap of
	// ceil(width×pixelRatio) × ceil(height×pixelRatio) pixels. The returned
	// pixmap is owned by the caller and not affected by later edits.
	Rasterize(pixelRatio float64) (*gg.Pixmap, error)

	// ContentBounds reports the bounding box of the drawn content in canvas
	// coordinates. ok is false when the surface cannot tell.
	ContentBounds() (b Bounds, ok bool)
}

// Snapshot is an immutable rasterized capture of a surface.
type Snapshot struct {
	// Image holds straight-alpha RGBA pixels. Never modify it.
	Image *gg.Pixmap

	// CapturedAt is the capture time.
	CapturedAt time.Time

	// Seq increases by one for every capture made by the same sampler.
	Seq uint64
}

// Size returns the snapshot dimensions in pixels.
func (s *Snapshot) Size() (width, height int) {
	if s == nil || s.Image == nil {
		return 0, 0
	}
	return s.Image.Width(), s.Image.Height()
}

// NewSnapshot wraps an already rasterized image.
func NewSnapshot(img *gg.Pixmap, at time.Time, seq uint64) *Snapshot {
	return &Snapshot{Image: img, CapturedAt: at, Seq: seq}
}

// scaledSize returns ceil(v×ratio), at least 1.
func scaledSize(v int, ratio float64) int {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		ratio = 1
	}
	n := int(math.Ceil(float64(v) * ratio))
	if n < 1 {
		n = 1
	}
	return n
}
