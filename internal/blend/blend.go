// Package blend provides color blending operations on straight-alpha colors
// and pixmaps.
package blend

import "github.com/gogpu/gg"

// Mode represents a blending mode.
type Mode int

const (
	// ModeSourceOver is the default alpha blending mode.
	ModeSourceOver Mode = iota
	// ModeScreen lightens the destination: 1 − (1−s)(1−d).
	ModeScreen
	// ModeSourceCopy replaces the destination with the source.
	ModeSourceCopy
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSourceOver:
		return "source-over"
	case ModeScreen:
		return "screen"
	case ModeSourceCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// Blend composites src over dst with the given mode. opacity scales the
// source alpha and is clamped to [0, 1].
func Blend(src, dst gg.RGBA, mode Mode, opacity float64) gg.RGBA {
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	src.A *= opacity

	switch mode {
	case ModeSourceCopy:
		return src
	case ModeScreen:
		return separable(src, dst, screen)
	default:
		return sourceOver(src, dst)
	}
}

// sourceOver blends source over destination using alpha compositing.
func sourceOver(src, dst gg.RGBA) gg.RGBA {
	srcA := src.A
	dstA := dst.A
	invSrcA := 1.0 - srcA

	outA := srcA + dstA*invSrcA
	if outA == 0 {
		return gg.Transparent
	}

	return gg.RGBA{
		R: (src.R*srcA + dst.R*dstA*invSrcA) / outA,
		G: (src.G*srcA + dst.G*dstA*invSrcA) / outA,
		B: (src.B*srcA + dst.B*dstA*invSrcA) / outA,
		A: outA,
	}
}

func screen(s, d float64) float64 {
	return s + d - s*d
}

// separable applies a separable blend function followed by source-over
// compositing:
//
//	co = αs(1−αb)Cs + αsαb·B(Cb, Cs) + (1−αs)αb·Cb
//	αo = αs + αb(1−αs)
func separable(src, dst gg.RGBA, fn func(s, d float64) float64) gg.RGBA {
	as, ab := src.A, dst.A
	outA := as + ab*(1-as)
	if outA == 0 {
		return gg.Transparent
	}
	mix := func(s, d float64) float64 {
		return (as*(1-ab)*s + as*ab*fn(s, d) + (1-as)*ab*d) / outA
	}
	return gg.RGBA{
		R: mix(src.R, dst.R),
		G: mix(src.G, dst.G),
		B: mix(src.B, dst.B),
		A: outA,
	}
}
