package blend

import "github.com/gogpu/gg"

// Composite draws src onto dst with its top-left corner at (dx, dy). Pixels
// outside dst are clipped. Both pixmaps hold straight-alpha RGBA bytes.
func Composite(dst, src *gg.Pixmap, dx, dy int, mode Mode, opacity float64) {
	if dst == nil || src == nil || opacity <= 0 {
		return
	}

	x0, y0 := max(dx, 0), max(dy, 0)
	x1 := min(dx+src.Width(), dst.Width())
	y1 := min(dy+src.Height(), dst.Height())
	if x0 >= x1 || y0 >= y1 {
		return
	}

	sd, dd := src.Data(), dst.Data()
	sw, dw := src.Width(), dst.Width()

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			si := ((y-dy)*sw + (x - dx)) * 4
			if sd[si+3] == 0 {
				continue
			}
			di := (y*dw + x) * 4
			out := Blend(fromBytes(sd[si:si+4]), fromBytes(dd[di:di+4]), mode, opacity)
			toBytes(dd[di:di+4], out)
		}
	}
}

func fromBytes(p []byte) gg.RGBA {
	return gg.RGBA{
		R: float64(p[0]) / 255,
		G: float64(p[1]) / 255,
		B: float64(p[2]) / 255,
		A: float64(p[3]) / 255,
	}
}

func toBytes(p []byte, c gg.RGBA) {
	p[0] = unit(c.R)
	p[1] = unit(c.G)
	p[2] = unit(c.B)
	p[3] = unit(c.A)
}

func unit(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}
