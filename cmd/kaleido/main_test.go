package main

import (
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/kaleido"
)

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestRunScene(t *testing.T) {
	t.Cleanup(func() { kaleido.SetLogger(nil) })
	dir := t.TempDir()
	scene := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(scene, []byte(`
width: 40
height: 20
shapes:
  - kind: rect
    x: 0
    y: 0
    width: 40
    height: 20
    fill: "#336699"
`), 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.png")

	err := run(context.Background(), []string{
		"-scene", scene, "-out", out, "-ratio", "1", "-fallback", "-segments", "8", "-watermark", "x",
	}, io.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Content fills the canvas: ceil(2 × hypot(20,10) × 1.1) = 50.
	if w, h := decodeSize(t, out); w != 50 || h != 50 {
		t.Errorf("output %dx%d, want 50x50", w, h)
	}
}

func TestRunDemoWithoutMirror(t *testing.T) {
	t.Cleanup(func() { kaleido.SetLogger(nil) })
	out := filepath.Join(t.TempDir(), "demo.png")
	err := run(context.Background(), []string{
		"-width", "80", "-height", "60", "-ratio", "1", "-mirror=false", "-out", out,
	}, io.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if w, h := decodeSize(t, out); w != 80 || h != 60 {
		t.Errorf("output %dx%d, want 80x60", w, h)
	}
}

func TestRunConfig(t *testing.T) {
	t.Cleanup(func() { kaleido.SetLogger(nil) })
	dir := t.TempDir()
	cfg := filepath.Join(dir, "kaleido.yaml")
	if err := os.WriteFile(cfg, []byte("effect:\n  enabled: false\nexport:\n  pixel_ratio: 1\n  dir: "+dir+"\n  filename_prefix: cfg\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := run(context.Background(), []string{"-config", cfg, "-width", "10", "-height", "10"}, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "cfg-*.png"))
	if len(matches) != 1 {
		t.Fatalf("exports in dir = %v", matches)
	}
	if w, h := decodeSize(t, matches[0]); w != 10 || h != 10 {
		t.Errorf("output %dx%d, want 10x10 with the mirror off", w, h)
	}
}

func TestRunErrors(t *testing.T) {
	t.Cleanup(func() { kaleido.SetLogger(nil) })
	if err := run(context.Background(), []string{"-in", "a.png", "-scene", "b.yaml"}, io.Discard); err == nil {
		t.Error("-in with -scene accepted")
	}
	if err := run(context.Background(), []string{"-in", filepath.Join(t.TempDir(), "missing.png")}, io.Discard); err == nil {
		t.Error("missing input accepted")
	}
	if err := run(context.Background(), []string{"-bogus"}, io.Discard); err == nil {
		t.Error("unknown flag accepted")
	}
}
