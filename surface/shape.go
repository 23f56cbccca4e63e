// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gg"

	"github.com/gogpu/kaleido"
)

// ErrInvalidShape is returned for shapes that cannot be drawn.
var ErrInvalidShape = errors.New("surface: invalid shape")

// Kind identifies a shape type.
type Kind string

// Shape kinds.
const (
	KindRect    Kind = "rect"
	KindCircle  Kind = "circle"
	KindEllipse Kind = "ellipse"
	KindPolygon Kind = "polygon"
	KindLine    Kind = "line"
	KindPath    Kind = "path"
)

// Point is a position relative to a shape's origin.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Shape is one drawn element. Positions are in canvas (CSS pixel)
// coordinates.
//
// The origin (X, Y) is the top-left corner for rectangles and the centre for
// circles, ellipses and polygons. Lines and paths place their points relative
// to it. Rotation turns the shape about its origin.
type Shape struct {
	ID   string `yaml:"id,omitempty" json:"id,omitempty"`
	Kind Kind   `yaml:"kind" json:"kind"`

	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`

	// Width and Height size rectangles and ellipses.
	Width  float64 `yaml:"width,omitempty" json:"width,omitempty"`
	Height float64 `yaml:"height,omitempty" json:"height,omitempty"`

	// Radius sizes circles and polygons, and rounds rectangle corners.
	Radius float64 `yaml:"radius,omitempty" json:"radius,omitempty"`

	// Sides is the polygon side count.
	Sides int `yaml:"sides,omitempty" json:"sides,omitempty"`

	// Points holds line and path vertices.
	Points []Point `yaml:"points,omitempty" json:"points,omitempty"`

	// Closed closes a path.
	Closed bool `yaml:"closed,omitempty" json:"closed,omitempty"`

	// Rotation is in degrees, clockwise on screen.
	Rotation float64 `yaml:"rotation,omitempty" json:"rotation,omitempty"`

	// Fill and Stroke are hex colors ("#rgb", "#rgba", "#rrggbb",
	// "#rrggbbaa"). Empty means none.
	Fill        string  `yaml:"fill,omitempty" json:"fill,omitempty"`
	Stroke      string  `yaml:"stroke,omitempty" json:"stroke,omitempty"`
	StrokeWidth float64 `yaml:"stroke_width,omitempty" json:"strokeWidth,omitempty"`

	// Opacity scales both colors. Zero means fully opaque.
	Opacity float64 `yaml:"opacity,omitempty" json:"opacity,omitempty"`
}

// Validate reports whether the shape can be drawn.
func (s Shape) Validate() error {
	for _, v := range []float64{s.X, s.Y, s.Width, s.Height, s.Radius, s.Rotation, s.StrokeWidth, s.Opacity} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidShape)
		}
	}

	switch s.Kind {
	case KindRect, KindEllipse:
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("%w: %s needs a positive width and height", ErrInvalidShape, s.Kind)
		}
	case KindCircle:
		if s.Radius <= 0 {
			return fmt.Errorf("%w: circle needs a positive radius", ErrInvalidShape)
		}
	case KindPolygon:
		if s.Radius <= 0 || s.Sides < 3 {
			return fmt.Errorf("%w: polygon needs a positive radius and at least 3 sides", ErrInvalidShape)
		}
	case KindLine, KindPath:
		if len(s.Points) < 2 {
			return fmt.Errorf("%w: %s needs at least 2 points", ErrInvalidShape, s.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidShape, s.Kind)
	}

	if s.Fill == "" && s.Stroke == "" {
		return fmt.Errorf("%w: neither fill nor stroke", ErrInvalidShape)
	}
	for _, c := range []string{s.Fill, s.Stroke} {
		if c != "" && !validHex(c) {
			return fmt.Errorf("%w: bad color %q", ErrInvalidShape, c)
		}
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		return fmt.Errorf("%w: opacity %v outside [0,1]", ErrInvalidShape, s.Opacity)
	}
	return nil
}

// Bounds returns the axis-aligned canvas bounds of the shape including its
// stroke.
func (s Shape) Bounds() kaleido.Bounds {
	x0, y0, x1, y1 := s.localBox()
	pad := s.strokeWidth() / 2
	x0, y0, x1, y1 = x0-pad, y0-pad, x1+pad, y1+pad

	m := s.transform()
	b := kaleido.Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, p := range [4][2]float64{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
		tp := m.TransformPoint(gg.Pt(p[0], p[1]))
		b.MinX = math.Min(b.MinX, tp.X)
		b.MinY = math.Min(b.MinY, tp.Y)
		b.MaxX = math.Max(b.MaxX, tp.X)
		b.MaxY = math.Max(b.MaxY, tp.Y)
	}
	return b
}

func (s Shape) localBox() (x0, y0, x1, y1 float64) {
	switch s.Kind {
	case KindRect:
		return 0, 0, s.Width, s.Height
	case KindEllipse:
		return -s.Width / 2, -s.Height / 2, s.Width / 2, s.Height / 2
	case KindCircle, KindPolygon:
		return -s.Radius, -s.Radius, s.Radius, s.Radius
	}
	if len(s.Points) == 0 {
		return 0, 0, 0, 0
	}
	x0, y0 = s.Points[0].X, s.Points[0].Y
	x1, y1 = x0, y0
	for _, p := range s.Points[1:] {
		x0, y0 = math.Min(x0, p.X), math.Min(y0, p.Y)
		x1, y1 = math.Max(x1, p.X), math.Max(y1, p.Y)
	}
	return x0, y0, x1, y1
}

func (s Shape) transform() gg.Matrix {
	return gg.Translate(s.X, s.Y).Multiply(gg.Rotate(s.Rotation * math.Pi / 180))
}

func (s Shape) strokeWidth() float64 {
	if s.Stroke == "" {
		return 0
	}
	if s.StrokeWidth <= 0 {
		return 1
	}
	return s.StrokeWidth
}

func (s Shape) color(hex string) gg.RGBA {
	c := gg.Hex(hex)
	if s.Opacity > 0 {
		c.A *= s.Opacity
	}
	return c
}

// draw renders the shape into dc. dc's transform maps canvas coordinates to
// device pixels.
func (s Shape) draw(dc *gg.Context) error {
	dc.Push()
	defer dc.Pop()

	dc.Translate(s.X, s.Y)
	dc.Rotate(s.Rotation * math.Pi / 180)
	dc.ClearPath()
	s.buildPath(dc)

	if s.Fill != "" && s.Kind != KindLine {
		dc.SetFillBrush(gg.Solid(s.color(s.Fill)))
		if err := dc.FillPreserve(); err != nil {
			return fmt.Errorf("fill %s: %w", s.Kind, err)
		}
	}
	if s.Stroke != "" {
		dc.SetStrokeBrush(gg.Solid(s.color(s.Stroke)))
		dc.SetLineWidth(s.strokeWidth())
		if err := dc.StrokePreserve(); err != nil {
			return fmt.Errorf("stroke %s: %w", s.Kind, err)
		}
	}
	dc.ClearPath()
	return nil
}

func (s Shape) buildPath(dc *gg.Context) {
	switch s.Kind {
	case KindRect:
		if s.Radius > 0 {
			dc.DrawRoundedRectangle(0, 0, s.Width, s.Height, s.Radius)
		} else {
			dc.DrawRectangle(0, 0, s.Width, s.Height)
		}
	case KindCircle:
		dc.DrawCircle(0, 0, s.Radius)
	case KindEllipse:
		dc.DrawEllipse(0, 0, s.Width/2, s.Height/2)
	case KindPolygon:
		dc.DrawRegularPolygon(s.Sides, 0, 0, s.Radius, -math.Pi/2)
	case KindLine, KindPath:
		dc.MoveTo(s.Points[0].X, s.Points[0].Y)
		for _, p := range s.Points[1:] {
			dc.LineTo(p.X, p.Y)
		}
		if s.Kind == KindPath && s.Closed {
			dc.ClosePath()
		}
	}
}

func validHex(s string) bool {
	if s != "" && s[0] == '#' {
		s = s[1:]
	}
	switch len(s) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
