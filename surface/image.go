// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/gogpu/kaleido"
)

// Image is a fixed raster surface. Its CSS size equals the image size;
// rasterizing at other ratios resamples with Catmull-Rom.
type Image struct {
	src     *image.NRGBA
	bounds  kaleido.Bounds
	hasBBox bool
}

var _ kaleido.Surface = (*Image)(nil)

// NewImage copies img into a new surface.
func NewImage(img image.Image) *Image {
	b := img.Bounds()
	src := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(src, image.Point{}, img, b, draw.Src, nil)

	s := &Image{src: src}
	s.bounds, s.hasBBox = opaqueBounds(src)
	return s
}

// DecodePNG reads a PNG into a surface.
func DecodePNG(r io.Reader) (*Image, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("surface: decode png: %w", err)
	}
	return NewImage(img), nil
}

// LoadPNG reads a PNG file into a surface.
func LoadPNG(path string) (*Image, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, fmt.Errorf("surface: %w", err)
	}
	defer f.Close()
	return DecodePNG(f)
}

// Size returns the image size.
func (s *Image) Size() (width, height int) {
	b := s.src.Bounds()
	return b.Dx(), b.Dy()
}

// ContentBounds returns the bounding box of non-transparent pixels.
func (s *Image) ContentBounds() (kaleido.Bounds, bool) {
	return s.bounds, s.hasBBox
}

// Rasterize returns a copy of the image scaled by pixelRatio.
func (s *Image) Rasterize(pixelRatio float64) (*gg.Pixmap, error) {
	if pixelRatio <= 0 || math.IsNaN(pixelRatio) || math.IsInf(pixelRatio, 0) {
		pixelRatio = 1
	}
	w, h := s.Size()
	pw, ph := scaled(w, pixelRatio), scaled(h, pixelRatio)

	pm := gg.NewPixmap(pw, ph)
	dst := &image.NRGBA{Pix: pm.Data(), Stride: pw * 4, Rect: image.Rect(0, 0, pw, ph)}
	if pw == w && ph == h {
		copy(dst.Pix, s.src.Pix)
	} else {
		draw.CatmullRom.Scale(dst, dst.Rect, s.src, s.src.Rect, draw.Src, nil)
	}
	return pm, nil
}

func opaqueBounds(img *image.NRGBA) (kaleido.Bounds, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, -1, -1
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			if row[x*4+3] == 0 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < 0 {
		return kaleido.Bounds{}, false
	}
	return kaleido.Bounds{
		MinX: float64(minX), MinY: float64(minY),
		MaxX: float64(maxX + 1), MaxY: float64(maxY + 1),
	}, true
}
