package kaleido

import (
	"sync"

	"github.com/gogpu/gg"
)

// RendererFactory creates a fresh, uninitialized MirrorRenderer.
type RendererFactory func() MirrorRenderer

var (
	backendMu      sync.RWMutex
	backendName    string
	backendFactory RendererFactory
)

// RegisterShaderBackend registers the preferred (shader) renderer.
//
// Only one backend can be registered; later calls replace earlier ones.
// Typical usage is a blank import of the backend package:
//
//	import _ "github.com/gogpu/kaleido/shader"
//
// Passing a nil factory unregisters the backend.
func RegisterShaderBackend(name string, factory RendererFactory) {
	backendMu.Lock()
	defer backendMu.Unlock()
	if factory == nil {
		backendName, backendFactory = "", nil
		return
	}
	backendName, backendFactory = name, factory
}

// ShaderBackend returns the registered backend, or a nil factory if none.
func ShaderBackend() (name string, factory RendererFactory) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendName, backendFactory
}

// MirrorOption configures NewMirror.
type MirrorOption func(*mirrorOptions)

type mirrorOptions struct {
	factory       RendererFactory
	forceFallback bool
}

// WithPreferredRenderer overrides the registered shader backend for one
// Mirror. Mostly useful in tests.
func WithPreferredRenderer(factory RendererFactory) MirrorOption {
	return func(o *mirrorOptions) {
		o.factory = factory
	}
}

// WithForceFallback skips the shader path entirely.
func WithForceFallback(force bool) MirrorOption {
	return func(o *mirrorOptions) {
		o.forceFallback = force
	}
}

// Mirror is the MirrorRenderer used by the preview and the exporter. It
// probes the preferred backend once, at Initialize, and permanently switches
// to the raster fallback if that backend is missing or fails. Call sites
// never check capabilities themselves.
type Mirror struct {
	opts     mirrorOptions
	active   MirrorRenderer
	snapshot *Snapshot
	fellBack bool
	disposed bool
}

// NewMirror returns an uninitialized Mirror.
func NewMirror(opts ...MirrorOption) *Mirror {
	var o mirrorOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		_, o.factory = ShaderBackend()
	}
	return &Mirror{opts: o}
}

// Name returns the name of the active implementation.
func (m *Mirror) Name() string {
	if m.active == nil {
		return "mirror"
	}
	return m.active.Name()
}

// State reports the active implementation's state.
func (m *Mirror) State() RendererState {
	if m.disposed {
		return StateDisposed
	}
	if m.active == nil {
		return StateUninitialized
	}
	return m.active.State()
}

// FellBack reports whether the shader path was rejected for this instance.
func (m *Mirror) FellBack() bool {
	return m.fellBack
}

// Initialize selects and initializes the implementation for target.
func (m *Mirror) Initialize(target RenderTarget) error {
	if m.disposed {
		return ErrRendererDisposed
	}
	if err := target.Validate(); err != nil {
		return err
	}
	if m.active != nil {
		m.active.Dispose()
		m.active = nil
	}

	if m.opts.factory != nil && !m.opts.forceFallback && !m.fellBack {
		r := m.opts.factory()
		err := r.Initialize(target)
		if err == nil {
			m.active = r
			Logger().Info("kaleido: mirror renderer ready", "backend", r.Name())
			m.handOver()
			return nil
		}
		r.Dispose()
		m.fellBack = true
		Logger().Warn("kaleido: shader path unavailable, using raster fallback",
			"backend", r.Name(), "err", err)
	}

	return m.useFallback(target)
}

// Resize recreates the output buffers of the active implementation.
func (m *Mirror) Resize(target RenderTarget) error {
	if m.disposed {
		return ErrRendererDisposed
	}
	if m.active == nil {
		return m.Initialize(target)
	}
	return m.active.Resize(target)
}

// SetSnapshot forwards the snapshot and remembers it for a later switch.
func (m *Mirror) SetSnapshot(snap *Snapshot) {
	m.snapshot = snap
	if m.active != nil {
		m.active.SetSnapshot(snap)
	}
}

// RenderFrame renders with the active implementation. If the shader path
// enters StateFailed mid-run, the frame is retried on the fallback path and
// the switch is permanent.
func (m *Mirror) RenderFrame(f Frame) (*gg.Pixmap, error) {
	if m.disposed {
		return nil, ErrRendererDisposed
	}
	if m.active == nil {
		return nil, ErrNotInitialized
	}
	out, err := m.active.RenderFrame(f)
	if err == nil || m.fellBack || m.active.State() != StateFailed {
		return out, err
	}

	Logger().Warn("kaleido: shader path failed while rendering, using raster fallback", "err", err)
	target := m.targetOf(m.active)
	m.active.Dispose()
	m.active = nil
	m.fellBack = true
	if ferr := m.useFallback(target); ferr != nil {
		return nil, ferr
	}
	return m.active.RenderFrame(f)
}

// Dispose releases the active implementation.
func (m *Mirror) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	if m.active != nil {
		m.active.Dispose()
		m.active = nil
	}
	m.snapshot = nil
}

func (m *Mirror) useFallback(target RenderTarget) error {
	fb := NewRasterRenderer()
	if err := fb.Initialize(target); err != nil {
		return err
	}
	m.active = fb
	Logger().Info("kaleido: mirror renderer ready", "backend", fb.Name())
	m.handOver()
	return nil
}

func (m *Mirror) handOver() {
	if m.snapshot != nil {
		m.active.SetSnapshot(m.snapshot)
	}
}

// targetReporter is implemented by renderers that remember their target.
type targetReporter interface {
	Target() RenderTarget
}

func (m *Mirror) targetOf(r MirrorRenderer) RenderTarget {
	if tr, ok := r.(targetReporter); ok {
		return tr.Target()
	}
	return RenderTarget{}
}
