package shader

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/kaleido"
	"github.com/gogpu/kaleido/internal/parallel"
	"github.com/gogpu/kaleido/internal/texel"
)

// Options configures a shader Renderer.
type Options struct {
	// Device and Queue, when both set, run the program as a render pipeline
	// on the device and read each frame back. When nil, fs_main is evaluated
	// on the CPU.
	Device hal.Device
	Queue  hal.Queue

	// Compile overrides the WGSL compiler. nil uses naga.
	Compile CompileFunc

	// Pool runs fragment rows on the CPU path. nil uses the shared pool.
	Pool *parallel.WorkerPool
}

// Renderer is the shader mirror renderer. It compiles the kaleidoscope
// program at Initialize. With a HAL device it draws a fullscreen triangle
// through vs_main/fs_main into an offscreen target and copies the pixels
// back; without one it evaluates fs_main for every output pixel, one row
// band per worker, following the WGSL line for line.
type Renderer struct {
	opts Options

	state   kaleido.RendererState
	target  kaleido.RenderTarget
	program *Program
	gpu     gpuPipeline
	tex     kaleido.SourceTexture
	out     *gg.Pixmap
}

// New returns an uninitialized shader renderer.
func New(opts Options) *Renderer {
	if opts.Pool == nil {
		opts.Pool = parallel.Shared()
	}
	return &Renderer{
		opts: opts,
		gpu:  gpuPipeline{device: opts.Device, queue: opts.Queue},
	}
}

// Name returns "shader".
func (r *Renderer) Name() string { return "shader" }

// State reports the lifecycle state.
func (r *Renderer) State() kaleido.RendererState { return r.state }

// Target returns the current render target.
func (r *Renderer) Target() kaleido.RenderTarget { return r.target }

// Texture exposes the source texture state.
func (r *Renderer) Texture() *kaleido.SourceTexture { return &r.tex }

// Program returns the compiled program, or nil before Initialize.
func (r *Renderer) Program() *Program { return r.program }

// Initialize compiles the program and allocates the output. Any failure
// leaves the renderer in StateFailed with nothing allocated.
func (r *Renderer) Initialize(target kaleido.RenderTarget) error {
	if r.state == kaleido.StateDisposed {
		return kaleido.ErrRendererDisposed
	}
	if err := target.Validate(); err != nil {
		r.state = kaleido.StateFailed
		return err
	}

	var err error
	if r.opts.Compile != nil {
		r.program, err = CompileProgram(r.opts.Compile)
	} else {
		r.program, err = compileDefault()
	}
	if err != nil {
		r.state = kaleido.StateFailed
		return err
	}

	if r.onDevice() {
		w, h := target.PixelSize()
		if err := r.gpu.create(r.program); err != nil {
			r.fail()
			return fmt.Errorf("shader: %w", err)
		}
		if err := r.gpu.resizeTarget(w, h); err != nil {
			r.fail()
			return fmt.Errorf("shader: %w", err)
		}
	}

	r.allocate(target)
	r.state = kaleido.StateReady
	kaleido.Logger().Debug("shader: program ready",
		"words", len(r.program.SPIRV), "hal", r.onDevice())
	return nil
}

// Resize recreates the output pixmap and render target.
func (r *Renderer) Resize(target kaleido.RenderTarget) error {
	switch r.state {
	case kaleido.StateDisposed:
		return kaleido.ErrRendererDisposed
	case kaleido.StateFailed:
		return kaleido.ErrRendererFailed
	case kaleido.StateUninitialized:
		return r.Initialize(target)
	}
	if err := target.Validate(); err != nil {
		return err
	}
	if r.onDevice() {
		w, h := target.PixelSize()
		if err := r.gpu.resizeTarget(w, h); err != nil {
			r.fail()
			return fmt.Errorf("shader: %w", err)
		}
	}
	r.allocate(target)
	return nil
}

func (r *Renderer) allocate(target kaleido.RenderTarget) {
	w, h := target.PixelSize()
	r.target = target
	r.out = gg.NewPixmap(w, h)
}

// SetSnapshot queues snap for upload before the next frame.
func (r *Renderer) SetSnapshot(snap *kaleido.Snapshot) {
	r.tex.MarkDirty(snap)
}

// RenderFrame uploads a pending snapshot and runs the fragment program. A
// device failure leaves the renderer in StateFailed so the mirror falls
// back to raster.
func (r *Renderer) RenderFrame(f kaleido.Frame) (*gg.Pixmap, error) {
	switch r.state {
	case kaleido.StateDisposed:
		return nil, kaleido.ErrRendererDisposed
	case kaleido.StateUninitialized:
		return nil, kaleido.ErrNotInitialized
	case kaleido.StateFailed:
		return nil, kaleido.ErrRendererFailed
	}

	if err := r.tex.Sync(r.upload); err != nil {
		r.fail()
		return nil, err
	}
	src := r.tex.Pixels()
	if src == nil {
		return nil, kaleido.ErrNoSnapshot
	}

	r.state = kaleido.StateRendering
	defer func() {
		if r.state == kaleido.StateRendering {
			r.state = kaleido.StateReady
		}
	}()

	w, h := r.out.Width(), r.out.Height()
	u := newUniforms(f, w, h, src.Width(), src.Height())
	if r.onDevice() {
		if err := r.gpu.draw(&u, r.out.Data()); err != nil {
			r.fail()
			return nil, fmt.Errorf("%w: %w", kaleido.ErrRendererFailed, err)
		}
		return r.out, nil
	}

	sampler := texel.New(src)
	data := r.out.Data()

	parallel.Rows(r.opts.Pool, h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := data[y*w*4 : (y+1)*w*4]
			for x := 0; x < w; x++ {
				c := u.fragment(sampler, float64(x)+0.5, float64(y)+0.5)
				copy(row[x*4:x*4+4], c[:])
			}
		}
	})
	return r.out, nil
}

// Dispose releases the program, textures and output.
func (r *Renderer) Dispose() {
	if r.state == kaleido.StateDisposed {
		return
	}
	r.gpu.destroy()
	r.tex.Release()
	r.program = nil
	r.out = nil
	r.state = kaleido.StateDisposed
}

func (r *Renderer) fail() {
	r.gpu.destroy()
	r.out = nil
	r.state = kaleido.StateFailed
}

// onDevice reports whether frames are drawn on a HAL device.
func (r *Renderer) onDevice() bool {
	return r.gpu.device != nil && r.gpu.queue != nil
}

// upload copies the snapshot into the texture and, with a device, into the
// GPU source texture.
func (r *Renderer) upload(dst *gg.Pixmap, snap *kaleido.Snapshot) error {
	if err := kaleido.CopyUpload(dst, snap); err != nil {
		return err
	}
	if !r.onDevice() {
		return nil
	}
	return r.gpu.upload(dst.Data(), dst.Width(), dst.Height())
}

// uniforms mirrors the WGSL Uniforms block.
type uniforms struct {
	lens         kaleido.Lens
	srcW, srcH   float64
	scale        float64
	singleSector bool
}

func newUniforms(f kaleido.Frame, w, h, srcW, srcH int) uniforms {
	lens := kaleido.NewLens(kaleido.LensParameters{
		Width:           w,
		Height:          h,
		Segments:        f.Segments,
		RotationDegrees: f.RotationDegrees,
	})
	return uniforms{
		lens:         lens,
		srcW:         float64(srcW),
		srcH:         float64(srcH),
		scale:        float64(srcH) / float64(h),
		singleSector: f.SingleSector,
	}
}

// fragment is fs_main for the fragment centred at (px, py).
func (u *uniforms) fragment(s texel.Sampler, px, py float64) [4]uint8 {
	dx, dy := px-u.lens.CenterX, py-u.lens.CenterY
	r := math.Hypot(dx, dy)

	local, k := u.lens.Fold(math.Atan2(dy, dx))
	if u.singleSector && k != 0 {
		return [4]uint8{}
	}

	sx := u.srcW/2 + u.scale*r*math.Cos(local)
	sy := u.srcH/2 + u.scale*r*math.Sin(local)
	c, _ := s.Bilinear(sx, sy)
	return c
}
