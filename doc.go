// Package kaleido renders a radially mirrored, rotating kaleidoscope from a
// rasterized snapshot of freeform 2D content.
//
// # Overview
//
// kaleido is the rendering and export core of a drawing application's
// "Canvas Mode". A live drawing surface is sampled into still snapshots, a
// mirror renderer reflects one angular sector around the canvas centre to
// fill the full disc, and an exporter produces a single deterministic,
// higher-resolution PNG of the composite.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/kaleido"
//	    _ "github.com/gogpu/kaleido/shader" // enables the shader path
//	)
//
//	settings := kaleido.DefaultSettings()
//	settings.Enabled = true
//	settings.Segments = 8
//
//	res, err := kaleido.NewExporter().Export(ctx, surf, settings, kaleido.ExportOptions{})
//	if err != nil {
//	    log.Println(kaleido.UserMessage(err))
//	}
//
// # Renderers
//
// Two implementations of [MirrorRenderer] produce equivalent output:
//
//   - the shader path (package shader) compiles a WGSL fragment program with
//     naga and evaluates it per output pixel;
//   - the raster fallback path clips each wedge with gg coverage masks and
//     draws the transformed snapshot into it.
//
// The shader path is registered by importing package shader. When it is not
// registered, or when it fails to initialize, [NewMirror] transparently and
// permanently switches that instance to the fallback path.
//
// # Sampling, preview and export
//
// A [Sampler] rasterizes a [Surface] on an adaptive cadence
// ([SnapshotInterval]) and publishes each capture as an immutable [Snapshot].
// [Preview] runs the animation loop: every tick it reads the settings, feeds
// the newest snapshot to its renderer and hands the frame to a [Presenter].
// [Compose] screens a frame over the base drawing.
//
// [Exporter] captures a fresh snapshot at a higher pixel ratio, pads it so
// the rotated content fits, mirrors it and encodes a PNG. Failures are
// wrapped in [ErrExportFailed]; show [UserMessage] to the user.
//
// Package surface provides a shape canvas and a PNG-backed surface.
//
// # Geometry
//
// Angles are in radians, measured from the positive X axis with Y pointing
// down (screen coordinates). Sector index k covers [k·α, (k+1)·α) after the
// rotation offset is added, where α = 2π/segments. Odd sectors are mirrored.
package kaleido
