package kaleido

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gg"
)

// Renderer errors.
var (
	// ErrInvalidTarget is returned for a render target without area.
	ErrInvalidTarget = errors.New("kaleido: invalid render target")

	// ErrNotInitialized is returned when rendering before Initialize.
	ErrNotInitialized = errors.New("kaleido: renderer not initialized")

	// ErrRendererDisposed is returned when using a disposed renderer.
	ErrRendererDisposed = errors.New("kaleido: renderer disposed")

	// ErrRendererFailed is returned by a renderer stuck in the Failed state.
	ErrRendererFailed = errors.New("kaleido: renderer failed")

	// ErrShaderCompile wraps shader program compilation failures.
	ErrShaderCompile = errors.New("kaleido: shader compilation failed")
)

// RendererState is the lifecycle state of a MirrorRenderer.
//
//	Uninitialized -> Ready -> Rendering -> ... -> Disposed
//	Uninitialized -> Failed (initialization error; the caller falls back)
type RendererState int

const (
	StateUninitialized RendererState = iota
	StateReady
	StateRendering
	StateDisposed
	StateFailed
)

// String returns the state name.
func (s RendererState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateRendering:
		return "Rendering"
	case StateDisposed:
		return "Disposed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("RendererState(%d)", int(s))
	}
}

// RenderTarget describes the output surface of a renderer.
type RenderTarget struct {
	// Width and Height are in CSS pixels.
	Width, Height int

	// PixelRatio is the device pixel ratio. Values <= 0 mean 1.
	PixelRatio float64
}

// PixelSize returns the backing buffer size in device pixels.
func (t RenderTarget) PixelSize() (width, height int) {
	return scaledSize(t.Width, t.PixelRatio), scaledSize(t.Height, t.PixelRatio)
}

// Validate reports ErrInvalidTarget for a target without area.
func (t RenderTarget) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidTarget, t.Width, t.Height)
	}
	if math.IsNaN(t.PixelRatio) || math.IsInf(t.PixelRatio, 0) {
		return fmt.Errorf("%w: pixel ratio %v", ErrInvalidTarget, t.PixelRatio)
	}
	return nil
}

// Frame carries the per-frame parameters. Renderers recompute the lens from
// it with their own output size, so preview and export share one geometry
// rule.
type Frame struct {
	Segments        int
	RotationDegrees float64

	// SingleSector renders only the primary, unmirrored wedge. It is a
	// diagnostic aid and off by default.
	SingleSector bool
}

// MirrorRenderer renders the kaleidoscope of the latest snapshot into an
// output pixmap.
//
// Implementations are not safe for concurrent use: one goroutine (the
// preview loop or an export call) owns a renderer for its whole life.
type MirrorRenderer interface {
	// Name identifies the implementation ("shader", "raster").
	Name() string

	// State reports the lifecycle state.
	State() RendererState

	// Initialize allocates resources for target. An error leaves the
	// renderer in StateFailed.
	Initialize(target RenderTarget) error

	// Resize releases the output buffers and recreates them for target.
	Resize(target RenderTarget) error

	// SetSnapshot hands over a new snapshot. Passing the snapshot already
	// held is a no-op.
	SetSnapshot(snap *Snapshot)

	// RenderFrame draws one frame and returns the output pixmap, which the
	// renderer owns and overwrites on the next call.
	RenderFrame(frame Frame) (*gg.Pixmap, error)

	// Dispose releases all resources. It is idempotent.
	Dispose()
}

// frameLens computes the lens for an output pixmap of w×h.
func frameLens(f Frame, w, h int) Lens {
	return NewLens(LensParameters{
		Width:           w,
		Height:          h,
		Segments:        f.Segments,
		RotationDegrees: f.RotationDegrees,
	})
}
