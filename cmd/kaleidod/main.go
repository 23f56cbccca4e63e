// Command kaleidod serves a live kaleidoscope canvas over HTTP.
//
// Routes:
//
//	GET    /healthz       liveness and renderer status
//	GET    /preview.png   current drawing with the mirror overlay (?previewSector=1, ?w=)
//	GET    /settings      effect settings as JSON
//	PUT    /settings      merge JSON into the effect settings
//	GET    /shapes        list shapes
//	POST   /shapes        add a shape
//	DELETE /shapes/{id}   remove a shape
//	POST   /export        download a full-resolution PNG
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/kaleido"
	_ "github.com/gogpu/kaleido/shader"
	"github.com/gogpu/kaleido/surface"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "listen address")
		config    = flag.String("config", "", "YAML settings file")
		scene     = flag.String("scene", "", "initial YAML scene")
		width     = flag.Int("width", 800, "canvas width when no scene is given")
		height    = flag.Int("height", 600, "canvas height when no scene is given")
		fallback  = flag.Bool("fallback", false, "force the raster renderer")
		debugList = flag.String("debug", "", "debug flags: geometry,sector")
	)
	flag.Parse()

	cfg := kaleido.DefaultConfig()
	if *config != "" {
		var err error
		if cfg, err = kaleido.LoadConfigFile(*config); err != nil {
			log.Fatalf("kaleidod: %v", err)
		}
	}
	if *debugList != "" {
		cfg.Debug = *debugList
	}

	level := slog.LevelInfo
	if kaleido.ParseDebugList(cfg.Debug).Geometry {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	kaleido.SetLogger(logger)

	canvas := surface.NewCanvas(*width, *height)
	if *scene != "" {
		sc, err := surface.LoadScene(*scene)
		if err != nil {
			log.Fatalf("kaleidod: %v", err)
		}
		if canvas, err = sc.Canvas(); err != nil {
			log.Fatalf("kaleidod: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(logger, cfg, canvas, kaleido.WithForceFallback(*fallback))
	srv.start(ctx)
	defer srv.close()

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("kaleidod listening", "addr", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
	}
}
