package blend

import (
	"math"
	"testing"

	"github.com/gogpu/gg"
)

const epsilon = 1e-9

func colorsEqual(a, b gg.RGBA) bool {
	return math.Abs(a.R-b.R) < epsilon &&
		math.Abs(a.G-b.G) < epsilon &&
		math.Abs(a.B-b.B) < epsilon &&
		math.Abs(a.A-b.A) < epsilon
}

func TestBlend(t *testing.T) {
	red := gg.RGBA{R: 1, A: 1}
	blue := gg.RGBA{B: 1, A: 1}
	gray := gg.RGBA{R: 0.5, G: 0.5, B: 0.5, A: 1}

	tests := []struct {
		name    string
		src     gg.RGBA
		dst     gg.RGBA
		mode    Mode
		opacity float64
		want    gg.RGBA
	}{
		{"opaque source-over", red, blue, ModeSourceOver, 1, red},
		{"transparent source", gg.Transparent, blue, ModeSourceOver, 1, blue},
		{"zero opacity", red, blue, ModeSourceOver, 0, blue},
		{"half opacity", red, blue, ModeSourceOver, 0.5, gg.RGBA{R: 0.5, B: 0.5, A: 1}},
		{"screen gray on gray", gray, gray, ModeScreen, 1, gg.RGBA{R: 0.75, G: 0.75, B: 0.75, A: 1}},
		{"screen red on blue", red, blue, ModeScreen, 1, gg.RGBA{R: 1, B: 1, A: 1}},
		{"screen over nothing", red, gg.Transparent, ModeScreen, 1, red},
		{"copy", red, blue, ModeSourceCopy, 1, red},
		{"opacity clamped", red, blue, ModeSourceOver, 3, red},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Blend(tt.src, tt.dst, tt.mode, tt.opacity)
			if !colorsEqual(got, tt.want) {
				t.Errorf("Blend() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScreenNeverDarkens(t *testing.T) {
	for _, s := range []float64{0, 0.2, 0.5, 0.9, 1} {
		for _, d := range []float64{0, 0.3, 0.6, 1} {
			got := Blend(gg.RGBA{R: s, G: s, B: s, A: 1}, gg.RGBA{R: d, G: d, B: d, A: 1}, ModeScreen, 0.75)
			if got.R+epsilon < d {
				t.Errorf("screen(%v over %v) = %v, darker than destination", s, d, got.R)
			}
		}
	}
}

func TestComposite(t *testing.T) {
	dst := gg.NewPixmap(4, 4)
	dst.Clear(gg.RGBA{R: 0.5, G: 0.5, B: 0.5, A: 1})

	src := gg.NewPixmap(2, 2)
	src.Clear(gg.RGBA{R: 1, G: 1, B: 1, A: 1})

	// Placed partly off the destination's right and bottom edges.
	Composite(dst, src, 3, 3, ModeScreen, 1)

	if got := dst.GetPixel(3, 3); !colorsEqual(got, gg.RGBA{R: 1, G: 1, B: 1, A: 1}) {
		t.Errorf("covered pixel = %+v, want white", got)
	}
	if got := dst.GetPixel(2, 2); math.Abs(got.R-0.5) > 1.0/255 {
		t.Errorf("uncovered pixel = %+v, want unchanged gray", got)
	}
}

func TestCompositeNil(t *testing.T) {
	Composite(nil, gg.NewPixmap(1, 1), 0, 0, ModeSourceOver, 1)
	Composite(gg.NewPixmap(1, 1), nil, 0, 0, ModeSourceOver, 1)
}

func TestModeString(t *testing.T) {
	if ModeScreen.String() != "screen" {
		t.Errorf("ModeScreen.String() = %q", ModeScreen.String())
	}
	if Mode(99).String() != "unknown" {
		t.Errorf("Mode(99).String() = %q", Mode(99).String())
	}
}
