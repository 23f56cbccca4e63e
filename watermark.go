package kaleido

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// watermarkColor is black at 30% alpha.
var watermarkColor = color.NRGBA{A: 77}

var (
	watermarkOnce sync.Once
	watermarkFont *opentype.Font
	watermarkErr  error
)

func loadWatermarkFont() (*opentype.Font, error) {
	watermarkOnce.Do(func() {
		watermarkFont, watermarkErr = opentype.Parse(goregular.TTF)
	})
	return watermarkFont, watermarkErr
}

// watermarkSize returns the font size in pixels for an image width.
func watermarkSize(width int) float64 {
	return math.Max(16, float64(width)/40)
}

// drawWatermark draws text right- and bottom-aligned, inset by one font
// size from the bottom-right corner.
func drawWatermark(pm *gg.Pixmap, text string) error {
	f, err := loadWatermarkFont()
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}

	size := watermarkSize(pm.Width())
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return fmt.Errorf("new face: %w", err)
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  nrgbaView(pm),
		Src:  image.NewUniform(watermarkColor),
		Face: face,
	}
	inset := fixed.Int26_6(size * 64)
	advance := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: fixed.I(pm.Width()) - inset - advance,
		Y: fixed.I(pm.Height()) - inset - face.Metrics().Descent,
	}
	d.DrawString(text)
	return nil
}
