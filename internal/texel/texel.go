// Package texel samples gg pixmaps the way a GPU samples a texture with
// linear filtering and clamp-to-edge addressing.
package texel

import (
	"math"

	"github.com/gogpu/gg"
)

// Sampler reads straight-alpha RGBA pixels from a pixmap.
// The zero value samples nothing.
type Sampler struct {
	data []uint8
	w, h int
}

// New returns a sampler over pm. pm must not be modified while sampling.
func New(pm *gg.Pixmap) Sampler {
	if pm == nil {
		return Sampler{}
	}
	return Sampler{data: pm.Data(), w: pm.Width(), h: pm.Height()}
}

// Size returns the sampled image size.
func (s Sampler) Size() (width, height int) {
	return s.w, s.h
}

// Contains reports whether (x, y) lies on the image, edges included.
func (s Sampler) Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= float64(s.w) && y <= float64(s.h)
}

// Bilinear samples at continuous pixel coordinates; pixel (i, j) covers
// [i, i+1) × [j, j+1) and its center is (i+0.5, j+0.5). Neighbors are
// weighted in premultiplied space so transparent texels do not bleed their
// color. Points off the image return a transparent texel and false.
func (s Sampler) Bilinear(x, y float64) ([4]uint8, bool) {
	if s.w == 0 || s.h == 0 || !s.Contains(x, y) {
		return [4]uint8{}, false
	}

	fx, fy := x-0.5, y-0.5
	x0, y0 := math.Floor(fx), math.Floor(fy)
	tx, ty := fx-x0, fy-y0

	ix0 := clampIndex(int(x0), s.w)
	ix1 := clampIndex(int(x0)+1, s.w)
	iy0 := clampIndex(int(y0), s.h)
	iy1 := clampIndex(int(y0)+1, s.h)

	var r, g, b, a float64
	accumulate := func(ix, iy int, weight float64) {
		if weight == 0 {
			return
		}
		i := (iy*s.w + ix) * 4
		pa := float64(s.data[i+3]) * weight
		if pa == 0 {
			return
		}
		r += float64(s.data[i+0]) * pa
		g += float64(s.data[i+1]) * pa
		b += float64(s.data[i+2]) * pa
		a += pa
	}
	accumulate(ix0, iy0, (1-tx)*(1-ty))
	accumulate(ix1, iy0, tx*(1-ty))
	accumulate(ix0, iy1, (1-tx)*ty)
	accumulate(ix1, iy1, tx*ty)

	if a <= 0 {
		return [4]uint8{}, true
	}
	return [4]uint8{
		round8(r / a),
		round8(g / a),
		round8(b / a),
		round8(a),
	}, true
}

// Nearest returns the texel containing (x, y).
func (s Sampler) Nearest(x, y float64) ([4]uint8, bool) {
	if s.w == 0 || s.h == 0 || !s.Contains(x, y) {
		return [4]uint8{}, false
	}
	ix := clampIndex(int(x), s.w)
	iy := clampIndex(int(y), s.h)
	i := (iy*s.w + ix) * 4
	return [4]uint8{s.data[i], s.data[i+1], s.data[i+2], s.data[i+3]}, true
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func round8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
