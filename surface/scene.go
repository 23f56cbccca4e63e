// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scene is the YAML form of a Canvas.
type Scene struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Background string  `yaml:"background,omitempty"`
	Shapes     []Shape `yaml:"shapes"`
}

func (s *Scene) defaults() {
	if s.Width <= 0 {
		s.Width = 800
	}
	if s.Height <= 0 {
		s.Height = 600
	}
}

// ParseScene decodes a YAML scene.
func ParseScene(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("surface: parse scene: %w", err)
	}
	s.defaults()
	return &s, nil
}

// LoadScene reads a YAML scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, fmt.Errorf("surface: read scene: %w", err)
	}
	return ParseScene(data)
}

// Canvas builds a canvas holding the scene's shapes. The first invalid shape
// aborts with its index.
func (s *Scene) Canvas() (*Canvas, error) {
	c := NewCanvas(s.Width, s.Height)
	if err := c.SetBackground(s.Background); err != nil {
		return nil, err
	}
	for i, shape := range s.Shapes {
		if _, err := c.Add(shape); err != nil {
			return nil, fmt.Errorf("surface: shape %d: %w", i, err)
		}
	}
	return c, nil
}

// Marshal encodes the canvas as a YAML scene.
func (c *Canvas) Marshal() ([]byte, error) {
	w, h := c.Size()
	return yaml.Marshal(&Scene{
		Width:      w,
		Height:     h,
		Background: c.Background(),
		Shapes:     c.Shapes(),
	})
}
