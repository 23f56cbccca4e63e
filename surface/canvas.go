// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/gogpu/gg"

	"github.com/gogpu/kaleido"
)

// Canvas is a mutable shape composition. It implements kaleido.Surface and
// is safe for concurrent use.
type Canvas struct {
	mu         sync.RWMutex
	width      int
	height     int
	background string
	shapes     []Shape
	nextID     int
	version    uint64
}

var _ kaleido.Surface = (*Canvas)(nil)

// NewCanvas creates an empty, transparent canvas. Non-positive sizes are
// raised to 1.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{width: max(width, 1), height: max(height, 1)}
}

// Size returns the canvas size in CSS pixels.
func (c *Canvas) Size() (width, height int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

// SetSize changes the canvas size. Shapes keep their coordinates.
func (c *Canvas) SetSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = max(width, 1), max(height, 1)
	c.version++
}

// Background returns the background color, empty for transparent.
func (c *Canvas) Background() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.background
}

// SetBackground sets the background color. Empty means transparent.
func (c *Canvas) SetBackground(hex string) error {
	if hex != "" && !validHex(hex) {
		return fmt.Errorf("surface: bad background color %q", hex)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.background = hex
	c.version++
	return nil
}

// Add validates s and appends it on top. A missing ID is generated. The
// stored shape is returned.
func (c *Canvas) Add(s Shape) (Shape, error) {
	if err := s.Validate(); err != nil {
		return Shape{}, err
	}
	s.Points = slices.Clone(s.Points)

	c.mu.Lock()
	defer c.mu.Unlock()
	if s.ID == "" {
		c.nextID++
		s.ID = "shape-" + strconv.Itoa(c.nextID)
	}
	c.shapes = append(c.shapes, s)
	c.version++
	return s, nil
}

// Remove deletes the shape with the given ID.
func (c *Canvas) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.shapes, func(s Shape) bool { return s.ID == id })
	if i < 0 {
		return false
	}
	c.shapes = slices.Concat(c.shapes[:i], c.shapes[i+1:])
	c.version++
	return true
}

// Clear removes every shape.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shapes = nil
	c.version++
}

// Shapes returns a copy of the shapes, bottom first.
func (c *Canvas) Shapes() []Shape {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Shape, len(c.shapes))
	for i, s := range c.shapes {
		s.Points = slices.Clone(s.Points)
		out[i] = s
	}
	return out
}

// Len returns the number of shapes.
func (c *Canvas) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shapes)
}

// Version increases on every edit.
func (c *Canvas) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// ContentBounds returns the union of all shape bounds. ok is false for an
// empty canvas.
func (c *Canvas) ContentBounds() (kaleido.Bounds, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var b kaleido.Bounds
	for _, s := range c.shapes {
		b = b.Union(s.Bounds())
	}
	return b, !b.Empty()
}

// Rasterize renders the canvas at pixelRatio. The result is a new pixmap of
// ceil(width×ratio) × ceil(height×ratio) pixels.
func (c *Canvas) Rasterize(pixelRatio float64) (*gg.Pixmap, error) {
	if pixelRatio <= 0 || math.IsNaN(pixelRatio) || math.IsInf(pixelRatio, 0) {
		pixelRatio = 1
	}

	c.mu.RLock()
	w, h := c.width, c.height
	bg := c.background
	shapes := c.shapes
	c.mu.RUnlock()

	pw, ph := scaled(w, pixelRatio), scaled(h, pixelRatio)
	pm := gg.NewPixmap(pw, ph)
	dc := gg.NewContext(pw, ph, gg.WithPixmap(pm))
	defer dc.Close()

	if bg != "" {
		dc.ClearWithColor(gg.Hex(bg))
	}
	dc.Scale(pixelRatio, pixelRatio)

	// Edits never write below len(shapes): Remove copies, Add appends.
	for _, s := range shapes {
		if err := s.draw(dc); err != nil {
			return nil, err
		}
	}
	if err := dc.FlushGPU(); err != nil {
		return nil, fmt.Errorf("surface: flush: %w", err)
	}
	return pm, nil
}

func scaled(v int, ratio float64) int {
	return max(int(math.Ceil(float64(v)*ratio)), 1)
}
