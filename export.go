package kaleido

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/gogpu/kaleido/internal/blend"
	"github.com/gogpu/kaleido/internal/filter"
)

// Export defaults.
const (
	// DefaultExportPixelRatio doubles the canvas resolution.
	DefaultExportPixelRatio = 2.0

	// DefaultExportPadding grows the mirrored canvas past the content radius
	// so the outermost wedges are not clipped.
	DefaultExportPadding = 1.1

	// DefaultFilenamePrefix prefixes generated export filenames.
	DefaultFilenamePrefix = "kaleido-canvas"

	// MaxExportPixelRatio is the largest accepted capture multiplier.
	MaxExportPixelRatio = 8.0

	// MaxExportSide bounds the width and height of the exported image.
	MaxExportSide = 16384

	// MaxExportPixels bounds the exported image area.
	MaxExportPixels = 1 << 26
)

var (
	// ErrExportFailed wraps every export error.
	ErrExportFailed = errors.New("kaleido: export failed")

	// ErrExportTooLarge reports a pixel ratio or output size over the
	// export limits. It is detected before any pixels are allocated.
	ErrExportTooLarge = errors.New("kaleido: export too large")
)

const exportFailedMessage = "Export failed, please try again."

// UserMessage returns the text shown to the user for a failed export.
// Causes are logged, never shown.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return exportFailedMessage
}

// ExportOptions controls a single export.
type ExportOptions struct {
	// PixelRatio is the capture resolution multiplier. Zero means
	// DefaultExportPixelRatio; values above MaxExportPixelRatio are rejected.
	PixelRatio float64

	// Padding scales the content radius when sizing the mirrored canvas.
	// Zero means DefaultExportPadding.
	Padding float64

	// Filename overrides the generated filename.
	Filename string

	// FilenamePrefix is used for generated filenames.
	FilenamePrefix string

	// Watermark is drawn in the bottom-right corner when non-empty.
	Watermark string

	// Now supplies the filename timestamp. It never affects pixels.
	Now func() time.Time
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.PixelRatio <= 0 || math.IsNaN(o.PixelRatio) || math.IsInf(o.PixelRatio, 0) {
		o.PixelRatio = DefaultExportPixelRatio
	}
	if o.Padding <= 0 || math.IsNaN(o.Padding) || math.IsInf(o.Padding, 0) {
		o.Padding = DefaultExportPadding
	}
	if o.FilenamePrefix == "" {
		o.FilenamePrefix = DefaultFilenamePrefix
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o ExportOptions) validate() error {
	if o.PixelRatio > MaxExportPixelRatio {
		return fmt.Errorf("%w: pixel ratio %g exceeds %g", ErrExportTooLarge, o.PixelRatio, MaxExportPixelRatio)
	}
	return nil
}

// checkExportSize rejects a w x h output over MaxExportSide or
// MaxExportPixels.
func checkExportSize(w, h float64) error {
	if w > MaxExportSide || h > MaxExportSide || w*h > MaxExportPixels {
		return fmt.Errorf("%w: %.0fx%.0f exceeds %dx%d or %d pixels",
			ErrExportTooLarge, w, h, MaxExportSide, MaxExportSide, MaxExportPixels)
	}
	return nil
}

// ExportResult is a finished export.
type ExportResult struct {
	// Image holds the final straight-alpha pixels.
	Image *gg.Pixmap

	// Filename is the suggested download name.
	Filename string

	// Backend names the mirror renderer used, empty when the mirror was off.
	Backend string

	// PNG is the encoded image.
	PNG []byte
}

// Size returns the exported image size in pixels.
func (r *ExportResult) Size() (width, height int) {
	return r.Image.Width(), r.Image.Height()
}

// WriteTo writes the PNG bytes to w.
func (r *ExportResult) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.PNG)
	return int64(n), err
}

// ExportFilename returns "<prefix>-<unix millis>.png".
func ExportFilename(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = DefaultFilenamePrefix
	}
	return prefix + "-" + strconv.FormatInt(at.UnixMilli(), 10) + ".png"
}

// Exporter renders full-resolution exports. The zero value uses the
// registered shader backend with the raster fallback.
type Exporter struct {
	mirrorOpts []MirrorOption
}

// NewExporter returns an Exporter whose mirror is configured by opts.
func NewExporter(opts ...MirrorOption) *Exporter {
	return &Exporter{mirrorOpts: opts}
}

// Export captures surface and produces a PNG. The rotation comes from
// settings.RotationDegrees, so the same input always yields the same pixels.
// Export mutates neither the surface nor any renderer shared with a preview.
func (e *Exporter) Export(ctx context.Context, surface Surface, settings EffectSettings, opts ExportOptions) (*ExportResult, error) {
	opts = opts.withDefaults()
	err := opts.validate()
	var res *ExportResult
	if err == nil {
		res, err = e.export(ctx, surface, settings.Normalize(), opts)
	}
	if err != nil {
		Logger().Warn("kaleido: export failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return res, nil
}

func (e *Exporter) export(ctx context.Context, surface Surface, settings EffectSettings, opts ExportOptions) (*ExportResult, error) {
	if surface == nil {
		return nil, ErrSurfaceUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cw, ch := surface.Size()
	if err := checkExportSize(math.Ceil(float64(cw)*opts.PixelRatio), math.Ceil(float64(ch)*opts.PixelRatio)); err != nil {
		return nil, err
	}

	base, err := rasterize(surface, opts.PixelRatio)
	if err != nil {
		return nil, err
	}

	res := &ExportResult{}
	var out *gg.Pixmap
	if !settings.Enabled {
		out = base
		HueRotate(out, settings.HueShiftDegrees)
	} else {
		out, res.Backend, err = e.mirrorExport(ctx, surface, base, settings, opts)
		if err != nil {
			return nil, err
		}
	}

	if opts.Watermark != "" {
		if err := drawWatermark(out, opts.Watermark); err != nil {
			return nil, fmt.Errorf("watermark: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgbaView(out)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	res.Image = out
	res.PNG = buf.Bytes()
	res.Filename = opts.Filename
	if res.Filename == "" {
		res.Filename = ExportFilename(opts.FilenamePrefix, opts.Now())
	}

	w, h := out.Width(), out.Height()
	Logger().Debug("kaleido: export done", "width", w, "height", h, "backend", res.Backend)
	return res, nil
}

func (e *Exporter) mirrorExport(ctx context.Context, surface Surface, base *gg.Pixmap, settings EffectSettings, opts ExportOptions) (*gg.Pixmap, string, error) {
	cw, ch := surface.Size()
	radius := contentRadius(surface, cw, ch)
	side := math.Ceil(2 * radius * opts.Padding * opts.PixelRatio)
	fw, fh := math.Max(side, float64(base.Width())), math.Max(side, float64(base.Height()))
	if err := checkExportSize(fw, fh); err != nil {
		return nil, "", err
	}
	pw, ph := int(fw), int(fh)

	// The hue applies to the base as well as the mirrored layer.
	padded := gg.NewPixmap(pw, ph)
	centerOnto(padded, base)
	HueRotate(padded, settings.HueShiftDegrees)
	source := clonePixmap(padded)

	m := NewMirror(e.mirrorOpts...)
	defer m.Dispose()

	m.SetSnapshot(NewSnapshot(source, time.Time{}, 0))
	if err := m.Initialize(RenderTarget{Width: pw, Height: ph, PixelRatio: 1}); err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	layer, err := m.RenderFrame(Frame{
		Segments:        settings.Segments,
		RotationDegrees: settings.RotationDegrees,
	})
	if err != nil {
		return nil, "", err
	}

	blend.Composite(padded, layer, 0, 0, blend.ModeScreen, settings.MirrorOpacity)
	return padded, m.Name(), nil
}

// contentRadius is the distance from the canvas centre to the farthest
// corner of the content bounds, or half the canvas diagonal when the
// surface cannot report bounds.
func contentRadius(surface Surface, w, h int) float64 {
	cx, cy := float64(w)/2, float64(h)/2
	b, ok := surface.ContentBounds()
	if !ok || b.Empty() {
		return math.Hypot(float64(w), float64(h)) / 2
	}
	r := 0.0
	for _, p := range [4][2]float64{
		{b.MinX, b.MinY}, {b.MaxX, b.MinY},
		{b.MinX, b.MaxY}, {b.MaxX, b.MaxY},
	} {
		r = math.Max(r, math.Hypot(p[0]-cx, p[1]-cy))
	}
	return r
}

func rasterize(surface Surface, ratio float64) (pm *gg.Pixmap, err error) {
	defer func() {
		if r := recover(); r != nil {
			pm, err = nil, fmt.Errorf("%w: rasterize panicked: %v", ErrSurfaceUnavailable, r)
		}
	}()
	pm, err = surface.Rasterize(ratio)
	if err != nil {
		return nil, err
	}
	if pm == nil {
		return nil, ErrSurfaceUnavailable
	}
	return pm, nil
}

// nrgbaView shares pm's bytes as an image.NRGBA. gg.Pixmap stores straight
// alpha, which ToImage would misreport as premultiplied.
func nrgbaView(pm *gg.Pixmap) *image.NRGBA {
	w, h := pm.Width(), pm.Height()
	return &image.NRGBA{
		Pix:    pm.Data(),
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
}

// centerOnto copies src into the middle of dst.
func centerOnto(dst, src *gg.Pixmap) {
	off := image.Pt((dst.Width()-src.Width())/2, (dst.Height()-src.Height())/2)
	sv := nrgbaView(src)
	draw.Copy(nrgbaView(dst), off, sv, sv.Bounds(), draw.Src, nil)
}

func clonePixmap(pm *gg.Pixmap) *gg.Pixmap {
	out := gg.NewPixmap(pm.Width(), pm.Height())
	copy(out.Data(), pm.Data())
	return out
}

// HueRotate rotates the hue of every pixel of pm in place.
func HueRotate(pm *gg.Pixmap, degrees float64) {
	m := filter.HueRotate(degrees)
	if m.IsIdentity() {
		return
	}
	m.Apply(pm)
}

// Downloader delivers a finished export.
type Downloader interface {
	Download(ctx context.Context, res *ExportResult) error
}

// DirDownloader saves exports into a directory. The file appears under its
// final name only once fully written.
type DirDownloader struct {
	Dir string
}

// Path returns where res would be saved.
func (d DirDownloader) Path(res *ExportResult) string {
	return filepath.Join(d.Dir, filepath.Base(res.Filename))
}

// Download writes res to Dir/res.Filename.
func (d DirDownloader) Download(ctx context.Context, res *ExportResult) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, ".kaleido-export-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			err = fmt.Errorf("%w: %w", ErrExportFailed, err)
		}
	}()

	if _, err = res.WriteTo(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, filepath.Base(res.Filename)))
}
