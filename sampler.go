package kaleido

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SettingsSource returns the current effect settings. It is called for
// every cadence decision and every frame, and must return a value copy.
type SettingsSource func() EffectSettings

// StaticSettings returns a SettingsSource that always yields s.
func StaticSettings(s EffectSettings) SettingsSource {
	return func() EffectSettings { return s }
}

// SamplerOption configures a Sampler.
type SamplerOption func(*samplerOptions)

type samplerOptions struct {
	visible    func() bool
	now        func() time.Time
	onSnapshot func(*Snapshot)
	pixelRatio float64
}

// WithVisibility installs a visibility probe. Scheduled captures are skipped
// while it reports false (a background tab); the preview then keeps showing
// the last snapshot.
func WithVisibility(fn func() bool) SamplerOption {
	return func(o *samplerOptions) {
		o.visible = fn
	}
}

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) SamplerOption {
	return func(o *samplerOptions) {
		o.now = now
	}
}

// WithSnapshotHandler registers fn to be called after every successful
// capture, on the capturing goroutine.
func WithSnapshotHandler(fn func(*Snapshot)) SamplerOption {
	return func(o *samplerOptions) {
		o.onSnapshot = fn
	}
}

// WithCapturePixelRatio sets the rasterization pixel ratio for captures.
// The default is 1, matching the on-screen canvas.
func WithCapturePixelRatio(ratio float64) SamplerOption {
	return func(o *samplerOptions) {
		o.pixelRatio = ratio
	}
}

// Sampler periodically rasterizes a Surface into Snapshots.
//
// Sampler is safe for concurrent use: Run executes on one goroutine while
// Latest and ForceRefresh may be called from any other.
type Sampler struct {
	surface  Surface
	settings SettingsSource
	opts     samplerOptions

	captureMu sync.Mutex
	latest    atomic.Pointer[Snapshot]
	seq       atomic.Uint64
	failures  atomic.Uint64
	force     chan struct{}
}

// NewSampler creates a sampler for surface. settings is read fresh on every
// cycle so cadence changes take effect on the next tick.
func NewSampler(surface Surface, settings SettingsSource, opts ...SamplerOption) *Sampler {
	o := samplerOptions{
		visible:    func() bool { return true },
		now:        time.Now,
		pixelRatio: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if settings == nil {
		settings = StaticSettings(DefaultSettings())
	}
	return &Sampler{
		surface:  surface,
		settings: settings,
		opts:     o,
		force:    make(chan struct{}, 1),
	}
}

// Latest returns the most recent snapshot, or nil before the first capture.
func (s *Sampler) Latest() *Snapshot {
	return s.latest.Load()
}

// Failures returns how many captures have failed so far.
func (s *Sampler) Failures() uint64 {
	return s.failures.Load()
}

// Interval returns the current capture interval.
func (s *Sampler) Interval() time.Duration {
	w, h := s.surface.Size()
	return SnapshotInterval(s.settings(), w, h)
}

// Tick performs one scheduled capture. It is skipped while the document is
// hidden. Failures are logged and counted, never returned: the next tick
// simply tries again.
func (s *Sampler) Tick() (*Snapshot, bool) {
	if !s.opts.visible() {
		return nil, false
	}
	snap, err := s.capture()
	if err != nil {
		return nil, false
	}
	return snap, true
}

// ForceRefresh captures immediately, bypassing the interval timer and the
// visibility check, and restarts the running timer. Use it before an export
// so the result reflects the very latest edits.
func (s *Sampler) ForceRefresh() (*Snapshot, error) {
	snap, err := s.capture()
	select {
	case s.force <- struct{}{}:
	default:
	}
	return snap, err
}

// Run captures once immediately and then on every interval until ctx is
// done. It returns nil on cancellation.
func (s *Sampler) Run(ctx context.Context) error {
	s.Tick()

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.force:
			timer.Reset(s.Interval())
		case <-timer.C:
			s.Tick()
			timer.Reset(s.Interval())
		}
	}
}

// capture rasterizes the surface and publishes the snapshot.
func (s *Sampler) capture() (snap *Snapshot, err error) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kaleido: snapshot capture panicked: %v", r)
		}
		if err != nil {
			snap = nil
			s.failures.Add(1)
			Logger().Warn("kaleido: snapshot capture failed", "err", err)
		}
	}()

	img, err := s.surface.Rasterize(s.opts.pixelRatio)
	if err != nil {
		return nil, fmt.Errorf("kaleido: capture: %w", err)
	}
	if img == nil {
		return nil, ErrSurfaceUnavailable
	}

	snap = NewSnapshot(img, s.opts.now(), s.seq.Add(1))
	s.latest.Store(snap)
	if s.opts.onSnapshot != nil {
		s.opts.onSnapshot(snap)
	}
	return snap, nil
}
