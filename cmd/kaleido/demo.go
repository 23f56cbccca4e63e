package main

import (
	"math"

	"github.com/gogpu/kaleido/surface"
)

// demoCanvas builds the drawing used when neither -in nor -scene is given:
// overlapping circles, a rounded panel, a fan of rotated squares and a star.
func demoCanvas(w, h int) (*surface.Canvas, error) {
	c := surface.NewCanvas(w, h)
	if err := c.SetBackground("#1a2a4a"); err != nil {
		return nil, err
	}

	sx, sy := float64(w)/800, float64(h)/600
	shapes := []surface.Shape{
		{Kind: surface.KindCircle, X: 150 * sx, Y: 150 * sy, Radius: 60 * sx, Fill: "#ff4d4dcc"},
		{Kind: surface.KindCircle, X: 200 * sx, Y: 150 * sy, Radius: 60 * sx, Fill: "#4dff4dcc"},
		{Kind: surface.KindCircle, X: 175 * sx, Y: 200 * sy, Radius: 60 * sx, Fill: "#4d4dffcc"},
		{
			Kind: surface.KindRect, X: 350 * sx, Y: 100 * sy, Width: 120 * sx, Height: 80 * sy, Radius: 15 * sx,
			Fill: "#ffcc00", Stroke: "#ffffff", StrokeWidth: 4,
		},
	}

	for i := 0; i < 8; i++ {
		shapes = append(shapes, surface.Shape{
			Kind:     surface.KindRect,
			X:        600 * sx,
			Y:        150 * sy,
			Width:    60 * sx,
			Height:   60 * sy,
			Rotation: float64(i) * 45,
			Fill:     fanColors[i],
			Opacity:  0.8,
		})
	}

	shapes = append(shapes, surface.Shape{
		Kind:   surface.KindPath,
		X:      550 * sx,
		Y:      400 * sy,
		Points: star(5, 60*sx, 30*sx),
		Closed: true,
		Fill:   "#ffff00",
	})

	for _, s := range shapes {
		if _, err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// fanColors step the hue by 45° at 80% saturation and 60% lightness.
var fanColors = [8]string{
	"#eb4747", "#ebc247", "#99eb47", "#47eb70",
	"#47ebeb", "#4770eb", "#9947eb", "#eb47c2",
}

func star(points int, outer, inner float64) []surface.Point {
	out := make([]surface.Point, 0, points*2)
	for i := 0; i < points*2; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := float64(i)*math.Pi/float64(points) - math.Pi/2
		out = append(out, surface.Point{X: r * math.Cos(a), Y: r * math.Sin(a)})
	}
	return out
}
