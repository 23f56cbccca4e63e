package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/gogpu/kaleido"
	"github.com/gogpu/kaleido/internal/cache"
	"github.com/gogpu/kaleido/surface"
)

// maxThumbWidth bounds the ?w= preview scaling parameter.
const maxThumbWidth = 4096

// previewCacheSize is the number of encoded previews kept for polling
// clients.
const previewCacheSize = 16

// previewKey identifies one encoded preview. Sector previews are rendered
// on demand and never cached.
type previewKey struct {
	snapshot   uint64
	generation uint64
	frame      uint64
	enabled    bool
	opacity    float64
	hue        float64
	width      int
}

// settingsStore holds the live effect settings.
type settingsStore struct {
	mu sync.RWMutex
	s  kaleido.EffectSettings
}

func (st *settingsStore) Get() kaleido.EffectSettings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

func (st *settingsStore) Set(s kaleido.EffectSettings) kaleido.EffectSettings {
	s = s.Normalize()
	st.mu.Lock()
	st.s = s
	st.mu.Unlock()
	return s
}

// server wires a canvas to the sampler, the preview loop and the exporter.
type server struct {
	logger   *slog.Logger
	canvas   *surface.Canvas
	settings *settingsStore
	export   kaleido.ExportOptions
	debug    kaleido.DebugFlags
	mirror   []kaleido.MirrorOption

	sampler  *kaleido.Sampler
	frames   *kaleido.LatestFrame
	preview  *kaleido.Preview
	exporter *kaleido.Exporter
	previews *cache.Cache[previewKey, []byte]
	started  time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func newServer(logger *slog.Logger, cfg *kaleido.Config, canvas *surface.Canvas, mirror ...kaleido.MirrorOption) *server {
	s := &server{
		logger:   logger,
		canvas:   canvas,
		settings: &settingsStore{},
		export:   cfg.ExportOptions(),
		debug:    kaleido.ParseDebugList(cfg.Debug),
		mirror:   mirror,
		frames:   &kaleido.LatestFrame{},
		exporter: kaleido.NewExporter(mirror...),
		previews: cache.New[previewKey, []byte](previewCacheSize),
		started:  time.Now(),
	}
	s.settings.Set(cfg.Effect)
	s.sampler = kaleido.NewSampler(canvas, s.settings.Get)
	s.preview = kaleido.NewPreview(s.settings.Get, s.sampler.Latest, s.frames,
		kaleido.WithMirrorOptions(mirror...),
		kaleido.WithDebugFlags(s.debug),
	)
	return s
}

// start runs the sampler and, when the effect is on, the preview loop.
func (s *server) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.sampler.Run(ctx); err != nil {
			s.logger.Error("sampler stopped", "error", err)
		}
	}()
	s.syncPreview()
}

func (s *server) close() {
	s.preview.Close()
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *server) target() kaleido.RenderTarget {
	w, h := s.canvas.Size()
	return kaleido.RenderTarget{Width: w, Height: h, PixelRatio: 1}
}

// syncPreview starts or stops the loop to match the settings.
func (s *server) syncPreview() {
	if !s.settings.Get().Enabled {
		s.preview.Stop()
		return
	}
	if s.preview.Running() {
		return
	}
	if err := s.preview.Start(s.target()); err != nil {
		s.logger.Warn("preview start failed", "error", err)
	}
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/preview.png", s.handlePreview)
	r.Get("/settings", s.handleGetSettings)
	r.Put("/settings", s.handlePutSettings)
	r.Route("/shapes", func(r chi.Router) {
		r.Get("/", s.handleListShapes)
		r.Post("/", s.handleAddShape)
		r.Delete("/{id}", s.handleDeleteShape)
	})
	r.Post("/export", s.handleExport)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, info := s.frames.Frame()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"shapes":   s.canvas.Len(),
		"preview":  s.preview.Running(),
		"renderer": info.Backend,
		"failures": s.sampler.Failures(),
		"cache":    s.previews.Stats().HitRate(),
	})
}

func (s *server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Get())
}

// handlePutSettings merges the JSON body into the current settings.
func (s *server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	next := s.settings.Get()
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	next = s.settings.Set(next)
	s.syncPreview()
	writeJSON(w, http.StatusOK, next)
}

func (s *server) handleListShapes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.canvas.Shapes())
}

func (s *server) handleAddShape(w http.ResponseWriter, r *http.Request) {
	var shape surface.Shape
	if err := json.NewDecoder(r.Body).Decode(&shape); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stored, err := s.canvas.Add(shape)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.refresh()
	writeJSON(w, http.StatusCreated, stored)
}

func (s *server) handleDeleteShape(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.canvas.Remove(id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("shape %q not found", id))
		return
	}
	s.refresh()
	w.WriteHeader(http.StatusNoContent)
}

// refresh captures right away so edits show without waiting a cadence tick.
func (s *server) refresh() {
	if _, err := s.sampler.ForceRefresh(); err != nil {
		s.logger.Warn("snapshot refresh failed", "error", err)
	}
}

// handlePreview returns the base drawing with the latest mirror frame
// screened over it. previewSector=1 renders the primary wedge on demand;
// w scales the result down to a thumbnail.
func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	snap := s.sampler.Latest()
	if snap == nil {
		var err error
		if snap, err = s.sampler.ForceRefresh(); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}

	settings := s.settings.Get()
	flags := s.debug.Merge(kaleido.ParseDebugFlags(r.URL.RawQuery))
	thumb, _ := strconv.Atoi(r.URL.Query().Get("w"))

	var (
		layer *gg.Pixmap
		info  kaleido.FrameInfo
	)
	if settings.Enabled {
		if flags.PreviewSector {
			var err error
			if layer, err = s.renderSector(snap, settings); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
		} else {
			layer, info = s.frames.Frame()
		}
	}

	encode := func() []byte {
		out := kaleido.Compose(snap.Image, layer, settings.MirrorOpacity, settings.HueShiftDegrees)
		var buf bytes.Buffer
		if err := png.Encode(&buf, scaleToWidth(out, thumb)); err != nil {
			s.logger.Warn("preview encode failed", "error", err)
			return nil
		}
		return buf.Bytes()
	}

	var body []byte
	if flags.PreviewSector {
		body = encode()
	} else {
		key := previewKey{
			snapshot:   snap.Seq,
			generation: info.Generation,
			frame:      info.Seq,
			enabled:    settings.Enabled,
			opacity:    settings.MirrorOpacity,
			hue:        settings.HueShiftDegrees,
			width:      thumb,
		}
		body = s.previews.GetOrCreate(key, encode)
	}
	if body == nil {
		s.previews.Clear()
		writeError(w, http.StatusInternalServerError, errors.New("preview encode failed"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

// scaleToWidth returns pm as an image, scaled down to width when width is
// a valid thumbnail size.
func scaleToWidth(pm *gg.Pixmap, width int) image.Image {
	img := &image.NRGBA{Pix: pm.Data(), Stride: pm.Width() * 4, Rect: image.Rect(0, 0, pm.Width(), pm.Height())}
	if width <= 0 || width >= pm.Width() || width > maxThumbWidth {
		return img
	}
	th := max(pm.Height()*width/pm.Width(), 1)
	thumb := image.NewNRGBA(image.Rect(0, 0, width, th))
	draw.ApproxBiLinear.Scale(thumb, thumb.Rect, img, img.Bounds(), draw.Src, nil)
	return thumb
}

func (s *server) renderSector(snap *kaleido.Snapshot, settings kaleido.EffectSettings) (*gg.Pixmap, error) {
	m := kaleido.NewMirror(s.mirror...)
	defer m.Dispose()
	m.SetSnapshot(snap)
	sw, sh := snap.Size()
	if err := m.Initialize(kaleido.RenderTarget{Width: sw, Height: sh, PixelRatio: 1}); err != nil {
		return nil, err
	}
	out, err := m.RenderFrame(kaleido.Frame{
		Segments:        settings.Segments,
		RotationDegrees: settings.RotationAt(time.Since(s.started)),
		SingleSector:    true,
	})
	if err != nil {
		return nil, err
	}
	kaleido.HueRotate(out, settings.HueShiftDegrees)
	return out, nil
}

// exportRequest overrides export options for one call.
type exportRequest struct {
	PixelRatio float64 `json:"pixelRatio"`
	Watermark  *string `json:"watermark"`
	Filename   string  `json:"filename"`
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	// An empty body keeps the configured options.
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opts := s.export
	if req.PixelRatio > 0 {
		opts.PixelRatio = req.PixelRatio
	}
	if req.Watermark != nil {
		opts.Watermark = *req.Watermark
	}
	opts.Filename = req.Filename

	res, err := s.exporter.Export(r.Context(), s.canvas, s.settings.Get(), opts)
	if err != nil {
		s.logger.Warn("export failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		code := http.StatusInternalServerError
		if errors.Is(err, kaleido.ErrExportTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		writeError(w, code, errors.New(kaleido.UserMessage(err)))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PNG)))
	if _, err := res.WriteTo(w); err != nil {
		s.logger.Warn("export write failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
