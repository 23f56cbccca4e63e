package shader

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/kaleido"
	"github.com/gogpu/kaleido/internal/texel"
)

func TestRendererLifecycle(t *testing.T) {
	r := New(Options{Compile: fakeCompile})
	if r.State() != kaleido.StateUninitialized {
		t.Fatalf("initial state = %v", r.State())
	}
	if _, err := r.RenderFrame(kaleido.Frame{Segments: 6}); !errors.Is(err, kaleido.ErrNotInitialized) {
		t.Errorf("RenderFrame before Initialize: err = %v", err)
	}

	if err := r.Initialize(kaleido.RenderTarget{Width: 32, Height: 16, PixelRatio: 2}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if r.State() != kaleido.StateReady {
		t.Errorf("state after Initialize = %v, want Ready", r.State())
	}

	if _, err := r.RenderFrame(kaleido.Frame{Segments: 6}); !errors.Is(err, kaleido.ErrNoSnapshot) {
		t.Errorf("RenderFrame without snapshot: err = %v, want ErrNoSnapshot", err)
	}

	r.SetSnapshot(patternSnapshot(32, 16))
	out, err := r.RenderFrame(kaleido.Frame{Segments: 6})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if out.Width() != 64 || out.Height() != 32 {
		t.Errorf("output = %dx%d, want 64x32 (pixel ratio 2)", out.Width(), out.Height())
	}
	if r.State() != kaleido.StateReady {
		t.Errorf("state after frame = %v, want Ready", r.State())
	}

	r.Dispose()
	r.Dispose()
	if r.State() != kaleido.StateDisposed {
		t.Errorf("state after Dispose = %v", r.State())
	}
	if _, err := r.RenderFrame(kaleido.Frame{Segments: 6}); !errors.Is(err, kaleido.ErrRendererDisposed) {
		t.Errorf("RenderFrame after Dispose: err = %v", err)
	}
	if err := r.Initialize(kaleido.RenderTarget{Width: 1, Height: 1}); !errors.Is(err, kaleido.ErrRendererDisposed) {
		t.Errorf("Initialize after Dispose: err = %v", err)
	}
}

func TestRendererInitializeFailure(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		target kaleido.RenderTarget
		want   error
	}{
		{"compile error", Options{Compile: failingCompile}, kaleido.RenderTarget{Width: 8, Height: 8}, kaleido.ErrShaderCompile},
		{"empty target", Options{Compile: fakeCompile}, kaleido.RenderTarget{}, kaleido.ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.opts)
			err := r.Initialize(tt.target)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if r.State() != kaleido.StateFailed {
				t.Errorf("state = %v, want Failed", r.State())
			}
			if _, err := r.RenderFrame(kaleido.Frame{Segments: 6}); !errors.Is(err, kaleido.ErrRendererFailed) {
				t.Errorf("RenderFrame: err = %v, want ErrRendererFailed", err)
			}
		})
	}
}

func TestTextureUploadedOncePerSnapshot(t *testing.T) {
	r := newTestRenderer(t, 16, 16)
	snap := patternSnapshot(16, 16)

	r.SetSnapshot(snap)
	if r.Texture().State() != kaleido.TextureDirty {
		t.Errorf("texture state after SetSnapshot = %v, want Dirty", r.Texture().State())
	}
	for range 5 {
		if _, err := r.RenderFrame(kaleido.Frame{Segments: 6, RotationDegrees: 10}); err != nil {
			t.Fatalf("RenderFrame: %v", err)
		}
		r.SetSnapshot(snap)
	}
	if got := r.Texture().Uploads(); got != 1 {
		t.Errorf("uploads = %d, want 1", got)
	}
	if r.Texture().State() != kaleido.TextureClean {
		t.Errorf("texture state = %v, want Clean", r.Texture().State())
	}

	r.SetSnapshot(patternSnapshot(16, 16))
	if _, err := r.RenderFrame(kaleido.Frame{Segments: 6}); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if got := r.Texture().Uploads(); got != 2 {
		t.Errorf("uploads after new snapshot = %d, want 2", got)
	}
}

func TestResizeRecreatesOutput(t *testing.T) {
	r := newTestRenderer(t, 16, 16)
	r.SetSnapshot(patternSnapshot(16, 16))

	if err := r.Resize(kaleido.RenderTarget{Width: 40, Height: 20, PixelRatio: 1}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	out, err := r.RenderFrame(kaleido.Frame{Segments: 8})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if out.Width() != 40 || out.Height() != 20 {
		t.Errorf("output = %dx%d, want 40x20", out.Width(), out.Height())
	}
	if err := r.Resize(kaleido.RenderTarget{}); !errors.Is(err, kaleido.ErrInvalidTarget) {
		t.Errorf("Resize to empty: err = %v", err)
	}
}

func TestTransparentOutsideSource(t *testing.T) {
	// A wide output over a square source: the corners map beyond the
	// source edge.
	r := newTestRenderer(t, 96, 32)
	r.SetSnapshot(patternSnapshot(32, 32))

	out, err := r.RenderFrame(kaleido.Frame{Segments: 6})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}

	for _, pt := range [][2]int{{0, 0}, {95, 0}, {0, 31}, {95, 31}} {
		if c := pixelAt(out, pt[0], pt[1]); c[3] != 0 {
			t.Errorf("corner %v = %v, want transparent", pt, c)
		}
	}
	if c := pixelAt(out, 48, 16); c[3] != 255 {
		t.Errorf("centre = %v, want opaque", c)
	}
}

func TestFourSegmentsMirrorAcrossAxes(t *testing.T) {
	const w, h = 40, 40
	r := newTestRenderer(t, w, h)
	r.SetSnapshot(patternSnapshot(w, h))

	out, err := r.RenderFrame(kaleido.Frame{Segments: 4})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := pixelAt(out, x, y)
			if m := pixelAt(out, w-1-x, y); !closeColors(c, m, 2) {
				t.Fatalf("(%d,%d)=%v but horizontal mirror %v", x, y, c, m)
			}
			if m := pixelAt(out, x, h-1-y); !closeColors(c, m, 2) {
				t.Fatalf("(%d,%d)=%v but vertical mirror %v", x, y, c, m)
			}
		}
	}
}

func TestSixSegmentSymmetry(t *testing.T) {
	const w, h = 120, 120
	src := patternSnapshot(w, h)
	s := texel.New(src.Image)

	for _, rot := range []float64{0, 17, 245.5} {
		u := newUniforms(kaleido.Frame{Segments: 6, RotationDegrees: rot}, w, h, w, h)
		seg := u.lens.SegmentAngle
		at := func(phi, radius float64) [4]uint8 {
			return u.fragment(s, u.lens.CenterX+radius*math.Cos(phi), u.lens.CenterY+radius*math.Sin(phi))
		}

		for _, radius := range []float64{5, 20, 45} {
			for phi := 0.05; phi < 2*math.Pi; phi += 0.37 {
				base := at(phi, radius)

				// Rotating by two sectors repeats the pattern.
				if c := at(phi+2*seg, radius); !closeColors(base, c, 1) {
					t.Errorf("rot=%v r=%v φ=%.2f: %v vs %v two sectors on", rot, radius, phi, base, c)
				}

				// Reflecting across the boundary ahead of φ repeats it too.
				_, to := u.lens.WedgeBounds(u.lens.SectorIndex(phi))
				mirrored := 2*to - phi
				if c := at(mirrored, radius); !closeColors(base, c, 1) {
					t.Errorf("rot=%v r=%v φ=%.2f: %v vs mirrored %v", rot, radius, phi, base, c)
				}
			}
		}
	}
}

func TestSingleSector(t *testing.T) {
	const w, h = 48, 48
	full := newTestRenderer(t, w, h)
	single := newTestRenderer(t, w, h)
	snap := patternSnapshot(w, h)
	full.SetSnapshot(snap)
	single.SetSnapshot(snap)

	frame := kaleido.Frame{Segments: 6, RotationDegrees: 30}
	a, err := full.RenderFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	frame.SingleSector = true
	b, err := single.RenderFrame(frame)
	if err != nil {
		t.Fatal(err)
	}

	lens := kaleido.NewLens(kaleido.LensParameters{Width: w, Height: h, Segments: 6, RotationDegrees: 30})
	drawn := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			theta := math.Atan2(float64(y)+0.5-lens.CenterY, float64(x)+0.5-lens.CenterX)
			got := pixelAt(b, x, y)
			if lens.SectorIndex(theta) != 0 {
				if got[3] != 0 {
					t.Fatalf("(%d,%d) outside the primary sector = %v, want transparent", x, y, got)
				}
				continue
			}
			if want := pixelAt(a, x, y); got != want {
				t.Fatalf("(%d,%d) = %v, full render %v", x, y, got, want)
			}
			drawn++
		}
	}
	if drawn == 0 {
		t.Error("primary sector is empty")
	}
}

func TestDeterministicOutput(t *testing.T) {
	a := newTestRenderer(t, 30, 20)
	b := newTestRenderer(t, 30, 20)
	snap := patternSnapshot(30, 20)
	a.SetSnapshot(snap)
	b.SetSnapshot(snap)

	frame := kaleido.Frame{Segments: 10, RotationDegrees: 1234.5}
	pa, err := a.RenderFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	pb, err := b.RenderFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range pa.Data() {
		if pb.Data()[i] != v {
			t.Fatalf("byte %d differs: %d vs %d", i, v, pb.Data()[i])
		}
	}
}
