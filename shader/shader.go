// Package shader registers the shader mirror renderer as the preferred
// kaleido backend.
//
// Import it for its side effect:
//
//	import _ "github.com/gogpu/kaleido/shader"
//
// If the program fails to compile on this platform, kaleido.Mirror logs a
// warning and permanently uses the raster fallback instead.
//
// By default fs_main is evaluated on the CPU. To draw frames on a HAL
// device instead, register it again with that device and its queue:
//
//	shader.Register(shader.Options{Device: device, Queue: queue})
package shader

import (
	"github.com/gogpu/kaleido"
)

// BackendName is the name the renderer registers under.
const BackendName = "shader"

func init() {
	Register(Options{})
}

// Register installs a factory creating renderers with opts as the shader
// backend, replacing any earlier registration.
func Register(opts Options) {
	kaleido.RegisterShaderBackend(BackendName, func() kaleido.MirrorRenderer {
		return New(opts)
	})
}
