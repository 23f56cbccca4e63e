// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides drawing surfaces that the kaleidoscope pipeline
// samples and exports.
//
// A surface is the live drawing the mirror effect reads from. The package
// offers two implementations of [kaleido.Surface]:
//
//   - Canvas: a mutable composition of vector shapes rendered with gg
//   - Image: a fixed raster image, resampled on demand
//
// # Canvas
//
// Canvas is safe for concurrent use. Editors add and remove shapes while the
// sampler and exporter rasterize it:
//
//	c := surface.NewCanvas(800, 600)
//	c.SetBackground("#ffffff")
//	_ = c.Add(surface.Shape{Kind: surface.KindCircle, X: 400, Y: 300, Radius: 80, Fill: "#e63946"})
//
//	pm, err := c.Rasterize(2) // 1600×1200
//
// # Scenes
//
// A scene file describes a canvas in YAML:
//
//	width: 800
//	height: 600
//	background: "#fff"
//	shapes:
//	  - kind: rect
//	    x: 100
//	    y: 100
//	    width: 200
//	    height: 120
//	    rotation: 15
//	    fill: "#457b9d"
//
// Load it with [LoadScene] and build a Canvas with [Scene.Canvas].
package surface
