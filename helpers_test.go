package kaleido

import (
	"errors"
	"sync"
	"time"

	"github.com/gogpu/gg"
)

// gradientPixmap returns an opaque, smooth, asymmetric gradient.
func gradientPixmap(w, h int) *gg.Pixmap {
	pm := gg.NewPixmap(w, h)
	data := pm.Data()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			data[i+0] = uint8(x * 255 / w)
			data[i+1] = uint8(y * 255 / h)
			data[i+2] = 128
			data[i+3] = 255
		}
	}
	return pm
}

func gradientSnapshot(w, h int) *Snapshot {
	return NewSnapshot(gradientPixmap(w, h), time.Unix(0, 0), 1)
}

func pixelAt(pm *gg.Pixmap, x, y int) [4]uint8 {
	i := (y*pm.Width() + x) * 4
	d := pm.Data()
	return [4]uint8{d[i], d[i+1], d[i+2], d[i+3]}
}

func closeColors(a, b [4]uint8, tol int) bool {
	for c := 0; c < 4; c++ {
		d := int(a[c]) - int(b[c])
		if d < -tol || d > tol {
			return false
		}
	}
	return true
}

var errRasterize = errors.New("canvas tainted")

// fakeSurface is a Surface whose rasterization can be made to fail.
type fakeSurface struct {
	mu      sync.Mutex
	w, h    int
	fail    bool
	calls   int
	bounds  Bounds
	hasBBox bool
}

func newFakeSurface(w, h int) *fakeSurface {
	return &fakeSurface{w: w, h: h}
}

func (s *fakeSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h
}

func (s *fakeSurface) Rasterize(ratio float64) (*gg.Pixmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return nil, errRasterize
	}
	return gradientPixmap(scaledSize(s.w, ratio), scaledSize(s.h, ratio)), nil
}

func (s *fakeSurface) ContentBounds() (Bounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds, s.hasBBox
}

func (s *fakeSurface) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *fakeSurface) rasterizeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
