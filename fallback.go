package kaleido

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"

	"github.com/gogpu/kaleido/internal/blend"
	"github.com/gogpu/kaleido/internal/parallel"
	"github.com/gogpu/kaleido/internal/texel"
)

// RasterRenderer draws the kaleidoscope with gg on the CPU: one clipped,
// transformed copy of the source per wedge. It works everywhere and is the
// permanent fallback when the shader path is unavailable.
//
// Each wedge is rasterized as an anti-aliased gg mask, minus the coverage
// already claimed by earlier wedges, so seams are neither doubled nor left
// open. Inside a wedge the source is drawn through an affine transform that
// rotates wedge i back onto the primary sector and, for odd i, reflects it.
type RasterRenderer struct {
	state  RendererState
	target RenderTarget
	tex    SourceTexture

	out     *gg.Pixmap
	ctx     *gg.Context
	claimed []uint8
	accum   []float32
	pool    *parallel.WorkerPool
}

// NewRasterRenderer returns an uninitialized raster renderer.
func NewRasterRenderer() *RasterRenderer {
	return &RasterRenderer{pool: parallel.Shared()}
}

// Name returns "raster".
func (r *RasterRenderer) Name() string { return "raster" }

// State reports the lifecycle state.
func (r *RasterRenderer) State() RendererState { return r.state }

// Target returns the current render target.
func (r *RasterRenderer) Target() RenderTarget { return r.target }

// Texture exposes the source texture state.
func (r *RasterRenderer) Texture() *SourceTexture { return &r.tex }

// Initialize allocates the output buffers.
func (r *RasterRenderer) Initialize(target RenderTarget) error {
	if r.state == StateDisposed {
		return ErrRendererDisposed
	}
	if err := target.Validate(); err != nil {
		r.state = StateFailed
		return err
	}
	r.allocate(target)
	r.state = StateReady
	return nil
}

// Resize recreates the output buffers for target.
func (r *RasterRenderer) Resize(target RenderTarget) error {
	if r.state == StateDisposed {
		return ErrRendererDisposed
	}
	if err := target.Validate(); err != nil {
		return err
	}
	r.allocate(target)
	if r.state == StateUninitialized {
		r.state = StateReady
	}
	return nil
}

func (r *RasterRenderer) allocate(target RenderTarget) {
	w, h := target.PixelSize()
	r.target = target
	r.out = gg.NewPixmap(w, h)
	r.ctx = gg.NewContext(w, h)
	r.claimed = make([]uint8, w*h)
	r.accum = make([]float32, w*h*4)
}

// SetSnapshot queues snap for upload before the next frame.
func (r *RasterRenderer) SetSnapshot(snap *Snapshot) {
	r.tex.MarkDirty(snap)
}

// RenderFrame draws all wedges, or only the primary one for SingleSector.
func (r *RasterRenderer) RenderFrame(f Frame) (*gg.Pixmap, error) {
	switch r.state {
	case StateDisposed:
		return nil, ErrRendererDisposed
	case StateUninitialized:
		return nil, ErrNotInitialized
	case StateFailed:
		return nil, ErrRendererFailed
	}

	if err := r.tex.Sync(CopyUpload); err != nil {
		return nil, err
	}
	src := r.tex.Pixels()
	if src == nil {
		return nil, ErrNoSnapshot
	}

	r.state = StateRendering
	defer func() { r.state = StateReady }()

	w, h := r.out.Width(), r.out.Height()
	lens := frameLens(f, w, h)
	sampler := texel.New(src)

	clear(r.claimed)
	clear(r.accum)

	wedges := lens.Segments
	if f.SingleSector {
		wedges = 1
	}
	for i := range wedges {
		mask := r.wedgeMask(lens, i)
		toSource := wedgeTransform(lens, i, src.Width(), src.Height()).Invert()
		parallel.Rows(r.pool, h, func(y0, y1 int) {
			r.drawWedgeRows(mask, toSource, sampler, w, y0, y1)
		})
	}

	r.resolve()
	return r.out, nil
}

// Dispose releases all buffers.
func (r *RasterRenderer) Dispose() {
	if r.state == StateDisposed {
		return
	}
	r.tex.Release()
	r.out, r.ctx, r.claimed, r.accum = nil, nil, nil, nil
	r.state = StateDisposed
}

// wedgeMask rasterizes wedge i as a pie slice large enough to cover the
// whole output.
func (r *RasterRenderer) wedgeMask(lens Lens, i int) *gg.Mask {
	from, to := lens.WedgeBounds(i)
	radius := math.Hypot(float64(lens.Width), float64(lens.Height))/2 + 2

	r.ctx.ClearPath()
	r.ctx.MoveTo(lens.CenterX, lens.CenterY)
	r.ctx.LineTo(lens.CenterX+radius*math.Cos(from), lens.CenterY+radius*math.Sin(from))
	r.ctx.DrawArc(lens.CenterX, lens.CenterY, radius, from, to)
	r.ctx.ClosePath()
	mask := r.ctx.AsMask()
	r.ctx.ClearPath()
	return mask
}

// drawWedgeRows samples the source for the rows [y0, y1) of one wedge.
func (r *RasterRenderer) drawWedgeRows(mask *gg.Mask, toSource gg.Matrix, s texel.Sampler, w, y0, y1 int) {
	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			cov := blend.MinCoverage(mask.At(x, y), blend.Remaining(r.claimed[i]))
			if cov == 0 {
				continue
			}
			r.claimed[i] = blend.AddClamp(r.claimed[i], cov)

			p := toSource.TransformPoint(gg.Pt(float64(x)+0.5, float64(y)+0.5))
			c, ok := s.Bilinear(p.X, p.Y)
			if !ok || c[3] == 0 {
				continue
			}
			a := float32(blend.MulDiv255(c[3], cov))
			acc := r.accum[i*4 : i*4+4]
			acc[0] += float32(c[0]) * a
			acc[1] += float32(c[1]) * a
			acc[2] += float32(c[2]) * a
			acc[3] += a
		}
	}
}

// resolve converts the premultiplied accumulator into straight-alpha bytes.
func (r *RasterRenderer) resolve() {
	data := r.out.Data()
	for i := 0; i < len(data); i += 4 {
		a := r.accum[i+3]
		if a <= 0 {
			data[i], data[i+1], data[i+2], data[i+3] = 0, 0, 0, 0
			continue
		}
		data[i+0] = toByte(r.accum[i+0] / a)
		data[i+1] = toByte(r.accum[i+1] / a)
		data[i+2] = toByte(r.accum[i+2] / a)
		data[i+3] = toByte(a)
	}
}

// wedgeTransform returns the draw transform that places the source image in
// wedge i of the output: the source is centered, scaled so its height matches
// the output height, rotated onto the wedge and mirrored for odd wedges.
//
// Composed right to left, as a canvas would apply them:
//
//	translate(output center) · rotate · [flip y] · scale(1/s) · translate(−source center)
func wedgeTransform(lens Lens, i, srcW, srcH int) gg.Matrix {
	s := float64(srcH) / float64(lens.Height)

	var orient gg.Matrix
	if lens.Mirrored(i) {
		// Output angle φ maps to source angle (i+1)·seg − rot − φ, an
		// involution, so the draw transform equals its own inverse.
		c := float64(i+1)*lens.SegmentAngle - lens.Rotation
		orient = gg.Rotate(c).Multiply(gg.Scale(1, -1))
	} else {
		orient = gg.Rotate(float64(i)*lens.SegmentAngle - lens.Rotation)
	}

	return gg.Translate(lens.CenterX, lens.CenterY).
		Multiply(orient).
		Multiply(gg.Scale(1/s, 1/s)).
		Multiply(gg.Translate(-float64(srcW)/2, -float64(srcH)/2))
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// String describes the renderer for logs.
func (r *RasterRenderer) String() string {
	w, h := r.target.PixelSize()
	return fmt.Sprintf("raster(%dx%d, %s)", w, h, r.state)
}
