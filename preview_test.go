package kaleido

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gg"
)

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	var calls atomic.Int64
	base := time.Unix(1000, 0)
	return func() time.Time {
		return base.Add(time.Duration(calls.Add(1)-1) * step)
	}
}

type frameRecord struct {
	w, h int
	info FrameInfo
}

func collectFrames(n int) (Presenter, <-chan frameRecord) {
	ch := make(chan frameRecord, n)
	return PresenterFunc(func(frame *gg.Pixmap, info FrameInfo) error {
		select {
		case ch <- frameRecord{w: frame.Width(), h: frame.Height(), info: info}:
		default:
		}
		return nil
	}), ch
}

func nextFrame(t *testing.T, ch <-chan frameRecord) frameRecord {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("no preview frame")
		return frameRecord{}
	}
}

type lockedSettings struct {
	mu sync.Mutex
	s  EffectSettings
}

func (l *lockedSettings) get() EffectSettings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s
}

func (l *lockedSettings) update(fn func(*EffectSettings)) {
	l.mu.Lock()
	fn(&l.s)
	l.mu.Unlock()
}

func enabledSettings() *lockedSettings {
	s := DefaultSettings()
	s.Enabled = true
	s.RotationSpeed = 90
	return &lockedSettings{s: s}
}

func TestPreviewRotationGrowsWithoutReset(t *testing.T) {
	settings := enabledSettings()
	snap := gradientSnapshot(16, 16)
	presenter, frames := collectFrames(64)

	p := NewPreview(settings.get, func() *Snapshot { return snap }, presenter,
		WithFrameRate(500),
		WithPreviewClock(steppingClock(time.Second)),
		WithMirrorOptions(WithForceFallback(true)),
	)
	defer p.Close()

	if err := p.Start(RenderTarget{Width: 16, Height: 16}); err != nil {
		t.Fatal(err)
	}

	prev := -1.0
	for i := 0; i < 6; i++ {
		f := nextFrame(t, frames)
		if f.info.RotationDegrees <= prev {
			t.Fatalf("rotation went from %v to %v", prev, f.info.RotationDegrees)
		}
		prev = f.info.RotationDegrees
		if f.info.Backend != "raster" || f.info.SnapshotSeq != 1 {
			t.Errorf("frame info = %+v", f.info)
		}
		if f.info.Lens.Rotation < 0 || f.info.Lens.Rotation >= twoPi {
			t.Errorf("lens rotation %v not normalized", f.info.Lens.Rotation)
		}
	}
	// Six one-second steps at 90°/s pass a full turn.
	if prev <= 360 {
		t.Errorf("logical rotation = %v, want > 360", prev)
	}

	p.Stop()
	if p.Running() {
		t.Error("Running() after Stop")
	}
}

func TestPreviewWaitsForSnapshot(t *testing.T) {
	settings := enabledSettings()
	var latest atomic.Pointer[Snapshot]
	presenter, frames := collectFrames(4)

	p := NewPreview(settings.get, latest.Load, presenter,
		WithFrameRate(500),
		WithMirrorOptions(WithForceFallback(true)),
	)
	defer p.Close()
	if err := p.Start(RenderTarget{Width: 8, Height: 8}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-frames:
		t.Fatal("frame presented before any snapshot")
	case <-time.After(50 * time.Millisecond):
	}

	latest.Store(gradientSnapshot(8, 8))
	if f := nextFrame(t, frames); f.w != 8 || f.h != 8 {
		t.Errorf("frame %dx%d", f.w, f.h)
	}
}

func TestPreviewResize(t *testing.T) {
	settings := enabledSettings()
	snap := gradientSnapshot(12, 12)
	presenter, frames := collectFrames(256)

	p := NewPreview(settings.get, func() *Snapshot { return snap }, presenter,
		WithFrameRate(500),
		WithMirrorOptions(WithForceFallback(true)),
	)
	defer p.Close()

	// Resizing a stopped preview only records the target.
	if err := p.Resize(RenderTarget{Width: 4, Height: 4}); err != nil || p.Running() {
		t.Fatalf("Resize while stopped: %v running=%v", err, p.Running())
	}

	if err := p.Start(RenderTarget{Width: 12, Height: 12}); err != nil {
		t.Fatal(err)
	}
	nextFrame(t, frames)

	if err := p.Resize(RenderTarget{Width: 20, Height: 10}); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case f := <-frames:
			if f.w == 20 && f.h == 10 {
				if f.info.Generation != 2 {
					t.Errorf("generation = %d, want 2", f.info.Generation)
				}
				return
			}
		case <-deadline:
			t.Fatal("no frame at the new size")
		}
	}
}

func TestPreviewStopsWhenDisabled(t *testing.T) {
	settings := enabledSettings()
	snap := gradientSnapshot(8, 8)
	presenter, frames := collectFrames(256)

	p := NewPreview(settings.get, func() *Snapshot { return snap }, presenter,
		WithFrameRate(500),
		WithMirrorOptions(WithForceFallback(true)),
	)
	defer p.Close()
	if err := p.Start(RenderTarget{Width: 8, Height: 8}); err != nil {
		t.Fatal(err)
	}
	nextFrame(t, frames)

	settings.update(func(s *EffectSettings) { s.Enabled = false })
	deadline := time.Now().Add(5 * time.Second)
	for p.Running() {
		if time.Now().After(deadline) {
			t.Fatal("loop kept running after the effect was disabled")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPreviewSingleSector(t *testing.T) {
	settings := enabledSettings()
	snap := gradientSnapshot(32, 32)
	latest := &LatestFrame{}

	p := NewPreview(settings.get, func() *Snapshot { return snap }, latest,
		WithFrameRate(500),
		WithPreviewClock(func() time.Time { return time.Unix(0, 0) }),
		WithMirrorOptions(WithForceFallback(true)),
		WithDebugFlags(DebugFlags{PreviewSector: true}),
	)
	defer p.Close()
	if err := p.Start(RenderTarget{Width: 32, Height: 32}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var frame *gg.Pixmap
	for frame == nil {
		if time.Now().After(deadline) {
			t.Fatal("no frame")
		}
		time.Sleep(time.Millisecond)
		frame, _ = latest.Frame()
	}
	p.Stop()

	// Only the primary wedge (first sector, below-right of centre) is drawn.
	if pixelAt(frame, 28, 20)[3] == 0 {
		t.Error("primary sector is empty")
	}
	if pixelAt(frame, 4, 4)[3] != 0 {
		t.Error("pixels outside the primary sector were drawn")
	}
}

func TestPreviewLifecycle(t *testing.T) {
	p := NewPreview(enabledSettings().get, func() *Snapshot { return nil }, &LatestFrame{})

	if err := p.Start(RenderTarget{}); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Start(empty) = %v", err)
	}
	p.Stop()

	if err := p.Start(RenderTarget{Width: 2, Height: 2}); err != nil {
		t.Fatal(err)
	}
	if !p.Running() || p.Target().Width != 2 {
		t.Error("preview not running after Start")
	}
	p.Close()
	if p.Running() {
		t.Error("Running() after Close")
	}
	if err := p.Start(RenderTarget{Width: 2, Height: 2}); !errors.Is(err, ErrPreviewClosed) {
		t.Errorf("Start after Close = %v", err)
	}
}

func TestPreviewConcurrentStartKeepsOneGeneration(t *testing.T) {
	settings := enabledSettings()
	snap := gradientSnapshot(8, 8)

	var presented atomic.Int64
	gens := make(map[uint64]bool)
	var gensMu sync.Mutex
	presenter := PresenterFunc(func(_ *gg.Pixmap, info FrameInfo) error {
		presented.Add(1)
		gensMu.Lock()
		gens[info.Generation] = true
		gensMu.Unlock()
		return nil
	})

	p := NewPreview(settings.get, func() *Snapshot { return snap }, presenter,
		WithFrameRate(1000),
		WithMirrorOptions(WithForceFallback(true)),
	)
	defer p.Close()

	const starters = 16
	var wg sync.WaitGroup
	for range starters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Start(RenderTarget{Width: 8, Height: 8}); err != nil {
				t.Errorf("Start: %v", err)
			}
		}()
	}
	wg.Wait()

	// Let the surviving generation present, then stop it.
	deadline := time.Now().Add(5 * time.Second)
	for presented.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	p.Stop()
	if p.Running() {
		t.Fatal("Running() after Stop")
	}

	// A generation orphaned by a racing Start would keep presenting.
	after := presented.Load()
	time.Sleep(50 * time.Millisecond)
	if got := presented.Load(); got != after {
		t.Errorf("%d frames presented after Stop returned", got-after)
	}

	gensMu.Lock()
	defer gensMu.Unlock()
	for id := range gens {
		if id == 0 || id > starters {
			t.Errorf("frame from generation %d, want 1..%d", id, starters)
		}
	}
}

func TestLatestFrame(t *testing.T) {
	var l LatestFrame
	if f, _ := l.Frame(); f != nil {
		t.Fatal("Frame() before Present should be nil")
	}
	src := gradientPixmap(3, 2)
	if err := l.Present(src, FrameInfo{Seq: 7}); err != nil {
		t.Fatal(err)
	}
	src.Clear(gg.Transparent)

	f, info := l.Frame()
	if info.Seq != 7 || pixelAt(f, 2, 1) != pixelAt(gradientPixmap(3, 2), 2, 1) {
		t.Error("LatestFrame did not keep its own copy")
	}
}

func TestCompose(t *testing.T) {
	base := gg.NewPixmap(4, 4)
	base.Clear(gg.RGBA{R: 0.2, G: 0.2, B: 0.2, A: 1})
	layer := gg.NewPixmap(2, 2)
	layer.Clear(gg.RGBA{R: 1, G: 1, B: 1, A: 1})

	out := Compose(base, layer, 1, 0)
	if got := pixelAt(out, 1, 1); got[0] != 255 {
		t.Errorf("screened white = %v, want white", got)
	}
	if got := pixelAt(out, 0, 0); got != pixelAt(base, 0, 0) {
		t.Errorf("outside the layer = %v, want base", got)
	}
	if pixelAt(base, 1, 1)[0] == 255 {
		t.Error("Compose modified base")
	}
	if got := Compose(base, nil, 1, 0); pixelAt(got, 2, 2) != pixelAt(base, 2, 2) {
		t.Error("nil layer should copy base")
	}
}

func TestComposeRotatesBaseHue(t *testing.T) {
	base := gg.NewPixmap(4, 4)
	base.Clear(gg.RGBA{R: 0.8, G: 0.1, B: 0.1, A: 1})

	want := clonePixmap(base)
	HueRotate(want, 180)

	before := pixelAt(base, 1, 1)
	out := Compose(base, nil, 0.75, 180)
	if got := pixelAt(out, 1, 1); got != pixelAt(want, 1, 1) {
		t.Errorf("hued base = %v, want %v", got, pixelAt(want, 1, 1))
	}
	if pixelAt(out, 1, 1) == pixelAt(base, 1, 1) {
		t.Error("hue rotation left the base unchanged")
	}
	if pixelAt(base, 1, 1) != before {
		t.Error("Compose modified base")
	}
}
