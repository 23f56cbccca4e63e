package shader

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gg"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/kaleido"
)

// fakeCompile stands in for naga so renderer tests do not depend on the
// compiler's feature coverage.
func fakeCompile(string) ([]byte, error) {
	return []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}, nil
}

var errNoGPU = errors.New("no compatible adapter")

func failingCompile(string) ([]byte, error) {
	return nil, errNoGPU
}

// patternSnapshot returns an opaque, smooth, asymmetric gradient.
func patternSnapshot(w, h int) *kaleido.Snapshot {
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
	return kaleido.NewSnapshot(pm, time.Unix(0, 0), 1)
}

func newTestRenderer(t *testing.T, w, h int) *Renderer {
	t.Helper()
	r := New(Options{Compile: fakeCompile})
	if err := r.Initialize(kaleido.RenderTarget{Width: w, Height: h, PixelRatio: 1}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(r.Dispose)
	return r
}

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
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
