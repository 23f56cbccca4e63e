// Command kaleido renders a kaleidoscope export of a drawing.
//
// The drawing comes from a PNG (-in), a YAML scene (-scene) or, by default,
// a built-in demo scene. Settings load from -config and are overridden by
// explicitly set flags.
//
//	kaleido -scene art.yaml -segments 8 -rotation 15 -hue 40 -out art.png
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gogpu/kaleido"
	_ "github.com/gogpu/kaleido/shader"
	"github.com/gogpu/kaleido/surface"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stderr); err != nil {
		log.Fatalf("kaleido: %v", err)
	}
}

type options struct {
	in, scene, config, out, watermark, debug string
	segments                                 int
	rotation, hue, ratio                     float64
	mirror, fallback                         bool
	width, height                            int
}

func parseFlags(args []string, stderr io.Writer) (*options, map[string]bool, error) {
	fs := flag.NewFlagSet("kaleido", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.in, "in", "", "input PNG")
	fs.StringVar(&o.scene, "scene", "", "input YAML scene")
	fs.StringVar(&o.config, "config", "", "YAML settings file")
	fs.StringVar(&o.out, "out", "", "output PNG (default <prefix>-<millis>.png in the export dir)")
	fs.StringVar(&o.watermark, "watermark", "", "watermark text")
	fs.StringVar(&o.debug, "debug", "", "debug flags: geometry")
	fs.IntVar(&o.segments, "segments", 6, "mirror segments (even, 2-24)")
	fs.Float64Var(&o.rotation, "rotation", 0, "rotation in degrees")
	fs.Float64Var(&o.hue, "hue", 0, "hue shift in degrees")
	fs.Float64Var(&o.ratio, "ratio", kaleido.DefaultExportPixelRatio, "export pixel ratio")
	fs.BoolVar(&o.mirror, "mirror", true, "apply the mirror effect")
	fs.BoolVar(&o.fallback, "fallback", false, "force the raster renderer")
	fs.IntVar(&o.width, "width", 800, "demo scene width")
	fs.IntVar(&o.height, "height", 600, "demo scene height")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	o, set, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg := kaleido.DefaultConfig()
	if o.config != "" {
		if cfg, err = kaleido.LoadConfigFile(o.config); err != nil {
			return err
		}
	}

	debug := kaleido.ParseDebugList(cfg.Debug).Merge(kaleido.ParseDebugList(o.debug))
	level := slog.LevelWarn
	if debug.Geometry {
		level = slog.LevelDebug
	}
	kaleido.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	settings := cfg.Effect
	if o.config == "" || set["mirror"] {
		settings.Enabled = o.mirror
	}
	if set["segments"] {
		settings.Segments = o.segments
	}
	if set["rotation"] {
		settings.RotationDegrees = o.rotation
	}
	if set["hue"] {
		settings.HueShiftDegrees = o.hue
	}

	exportOpts := cfg.ExportOptions()
	if set["ratio"] {
		exportOpts.PixelRatio = o.ratio
	}
	if set["watermark"] {
		exportOpts.Watermark = o.watermark
	}

	src, err := openSurface(o)
	if err != nil {
		return err
	}

	exporter := kaleido.NewExporter(kaleido.WithForceFallback(o.fallback))
	res, err := exporter.Export(ctx, src, settings, exportOpts)
	if err != nil {
		return err
	}

	dir := cfg.Export.Dir
	if o.out != "" {
		dir, res.Filename = filepath.Dir(o.out), filepath.Base(o.out)
	}
	dl := kaleido.DirDownloader{Dir: dir}
	if err := dl.Download(ctx, res); err != nil {
		return err
	}

	w, h := res.Size()
	backend := res.Backend
	if backend == "" {
		backend = "none"
	}
	log.Printf("Export saved to %s (%dx%d, renderer %s)", dl.Path(res), w, h, backend)
	return nil
}

func openSurface(o *options) (kaleido.Surface, error) {
	switch {
	case o.in != "" && o.scene != "":
		return nil, fmt.Errorf("-in and -scene are mutually exclusive")
	case o.in != "":
		return surface.LoadPNG(o.in)
	case o.scene != "":
		scene, err := surface.LoadScene(o.scene)
		if err != nil {
			return nil, err
		}
		return scene.Canvas()
	default:
		return demoCanvas(o.width, o.height)
	}
}
