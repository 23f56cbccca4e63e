package kaleido

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gogpu/gg"

	"github.com/gogpu/kaleido/internal/blend"
)

// DefaultFrameRate is the preview animation rate.
const DefaultFrameRate = 60

// ErrPreviewClosed is returned by Start after Close.
var ErrPreviewClosed = errors.New("kaleido: preview closed")

// FrameInfo describes a presented preview frame.
type FrameInfo struct {
	// Generation numbers the loop run that produced the frame, starting at 1.
	Generation uint64

	// Seq counts frames within one loop generation, starting at 1.
	Seq uint64

	// RotationDegrees is the logical (unreduced) angle the frame used.
	RotationDegrees float64

	// Lens is the geometry the frame was rendered with.
	Lens Lens

	// SnapshotSeq is the Seq of the snapshot that was mirrored.
	SnapshotSeq uint64

	// Backend names the renderer that produced the frame.
	Backend string

	// MirrorOpacity is the opacity the presenter should draw the frame at.
	MirrorOpacity float64
}

// Presenter displays preview frames. The pixmap is only valid for the
// duration of the call.
type Presenter interface {
	Present(frame *gg.Pixmap, info FrameInfo) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(frame *gg.Pixmap, info FrameInfo) error

// Present calls f.
func (f PresenterFunc) Present(frame *gg.Pixmap, info FrameInfo) error {
	return f(frame, info)
}

// LatestFrame is a Presenter that keeps a copy of the most recent frame.
// It is safe for concurrent use.
type LatestFrame struct {
	mu    sync.Mutex
	frame *gg.Pixmap
	info  FrameInfo
}

// Present stores a copy of frame.
func (l *LatestFrame) Present(frame *gg.Pixmap, info FrameInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frame == nil || l.frame.Width() != frame.Width() || l.frame.Height() != frame.Height() {
		l.frame = gg.NewPixmap(frame.Width(), frame.Height())
	}
	copy(l.frame.Data(), frame.Data())
	l.info = info
	return nil
}

// Frame returns a copy of the latest frame, or nil before the first one.
func (l *LatestFrame) Frame() (*gg.Pixmap, FrameInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frame == nil {
		return nil, FrameInfo{}
	}
	return clonePixmap(l.frame), l.info
}

// Compose returns a copy of base, hue-rotated by hueDegrees, with layer
// screened over it at opacity, as the preview overlay appears on screen.
// layer is centred on base and is expected to carry the same hue already.
func Compose(base, layer *gg.Pixmap, opacity, hueDegrees float64) *gg.Pixmap {
	out := clonePixmap(base)
	HueRotate(out, hueDegrees)
	if layer == nil {
		return out
	}
	dx := (base.Width() - layer.Width()) / 2
	dy := (base.Height() - layer.Height()) / 2
	blend.Composite(out, layer, dx, dy, blend.ModeScreen, opacity)
	return out
}

// PreviewOption configures a Preview.
type PreviewOption func(*previewOptions)

type previewOptions struct {
	frameRate int
	now       func() time.Time
	mirror    []MirrorOption
	debug     DebugFlags
}

// WithFrameRate sets the animation rate in frames per second.
func WithFrameRate(fps int) PreviewOption {
	return func(o *previewOptions) {
		o.frameRate = fps
	}
}

// WithPreviewClock overrides the animation clock.
func WithPreviewClock(now func() time.Time) PreviewOption {
	return func(o *previewOptions) {
		o.now = now
	}
}

// WithMirrorOptions configures the Mirror each loop generation creates.
func WithMirrorOptions(opts ...MirrorOption) PreviewOption {
	return func(o *previewOptions) {
		o.mirror = opts
	}
}

// WithDebugFlags enables preview diagnostics.
func WithDebugFlags(f DebugFlags) PreviewOption {
	return func(o *previewOptions) {
		o.debug = f
	}
}

// Preview runs the animated mirror overlay.
//
// Each Start begins a new loop generation that owns its own renderer. Stop
// cancels the generation and returns only after its renderer is disposed,
// so two generations never hold GPU resources at the same time. A loop also
// ends by itself when the settings disable the effect.
type Preview struct {
	settings  SettingsSource
	latest    func() *Snapshot
	presenter Presenter
	opts      previewOptions

	// lifecycle serializes Start, Stop, Resize and Close.
	lifecycle sync.Mutex

	mu      sync.Mutex
	target  RenderTarget
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	running bool
	gens    uint64
}

// NewPreview creates a stopped preview. latest returns the most recent
// snapshot (usually Sampler.Latest) and may return nil.
func NewPreview(settings SettingsSource, latest func() *Snapshot, presenter Presenter, opts ...PreviewOption) *Preview {
	o := previewOptions{frameRate: DefaultFrameRate, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.frameRate <= 0 {
		o.frameRate = DefaultFrameRate
	}
	if o.now == nil {
		o.now = time.Now
	}
	return &Preview{
		settings:  settings,
		latest:    latest,
		presenter: presenter,
		opts:      o,
	}
}

// Running reports whether a loop generation is active.
func (p *Preview) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Target returns the current render target.
func (p *Preview) Target() RenderTarget {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// Start begins a new loop generation at target, stopping any previous one.
func (p *Preview) Start(target RenderTarget) error {
	if err := target.Validate(); err != nil {
		return err
	}
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	return p.start(target)
}

func (p *Preview) start(target RenderTarget) error {
	p.stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPreviewClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.target, p.cancel, p.done, p.running = target, cancel, done, true
	p.gens++

	go p.loop(ctx, target, done, p.gens)
	Logger().Info("kaleido: preview started", "width", target.Width, "height", target.Height)
	return nil
}

// Stop ends the current generation and waits for it to release its
// renderer. It is a no-op when nothing is running.
func (p *Preview) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.stop()
}

func (p *Preview) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	Logger().Info("kaleido: preview stopped")
}

// Resize restarts the loop at the new target. A stopped preview only
// records the target.
func (p *Preview) Resize(target RenderTarget) error {
	if err := target.Validate(); err != nil {
		return err
	}
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	active := p.cancel != nil
	if !active {
		p.target = target
	}
	p.mu.Unlock()

	if !active {
		return nil
	}
	return p.start(target)
}

// Close stops the preview permanently.
func (p *Preview) Close() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.stop()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Preview) loop(ctx context.Context, target RenderTarget, done chan struct{}, id uint64) {
	m := NewMirror(p.opts.mirror...)
	defer func() {
		m.Dispose()
		p.mu.Lock()
		if p.done == done || p.done == nil {
			p.running = false
		}
		p.mu.Unlock()
		close(done)
	}()

	if err := m.Initialize(target); err != nil {
		Logger().Warn("kaleido: preview renderer init failed", "error", err)
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(p.opts.frameRate))
	defer ticker.Stop()

	g := generation{id: id, preview: p, mirror: m, start: p.opts.now()}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !g.frame() {
				return
			}
		}
	}
}

// generation is the state of one loop run.
type generation struct {
	id      uint64
	preview *Preview
	mirror  *Mirror
	start   time.Time
	snap    *Snapshot
	seq     uint64
}

// frame renders and presents one frame. It returns false when the effect
// has been disabled and the loop should end.
func (g *generation) frame() bool {
	p := g.preview
	s := p.settings().Normalize()
	if !s.Enabled {
		return false
	}

	if snap := p.latest(); snap != nil && snap != g.snap {
		g.snap = snap
		g.mirror.SetSnapshot(snap)
	}
	if g.snap == nil {
		return true
	}

	rotation := s.RotationAt(p.opts.now().Sub(g.start))
	out, err := g.mirror.RenderFrame(Frame{
		Segments:        s.Segments,
		RotationDegrees: rotation,
		SingleSector:    p.opts.debug.PreviewSector,
	})
	if err != nil {
		Logger().Warn("kaleido: preview frame failed", "error", err)
		return true
	}
	HueRotate(out, s.HueShiftDegrees)

	g.seq++
	w, h := out.Width(), out.Height()
	lens := s.Lens(w, h, rotation)
	if p.opts.debug.Geometry {
		logGeometry(lens, rotation, g.mirror.Name())
	}

	info := FrameInfo{
		Generation:      g.id,
		Seq:             g.seq,
		RotationDegrees: rotation,
		Lens:            lens,
		SnapshotSeq:     g.snap.Seq,
		Backend:         g.mirror.Name(),
		MirrorOpacity:   s.MirrorOpacity,
	}
	if err := p.presenter.Present(out, info); err != nil {
		Logger().Warn("kaleido: present failed", "error", err)
	}
	return true
}
