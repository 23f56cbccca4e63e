package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// uniformSize is the byte size of the WGSL Uniforms block: two vec4<f32>.
const uniformSize = 32

// copyRowAlignment is the required BytesPerRow alignment for texture to
// buffer copies.
const copyRowAlignment = 256

// gpuPipeline draws fs_main into an offscreen target on a HAL device and
// reads the result back.
//
// Long-lived objects (module, layouts, pipeline, sampler, uniform buffer)
// are created once. The source texture follows the snapshot size, the
// target and staging buffer follow the output size, and the bind group is
// rebuilt whenever the source view changes.
type gpuPipeline struct {
	device hal.Device
	queue  hal.Queue

	module         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.RenderPipeline
	sampler        hal.Sampler
	uniforms       hal.Buffer

	source     hal.Texture
	sourceView hal.TextureView
	srcW, srcH uint32

	target     hal.Texture
	targetView hal.TextureView
	staging    hal.Buffer
	dstW, dstH uint32
	stride     uint32

	bindGroup hal.BindGroup

	// premul is the upload scratch buffer.
	premul []byte
	draws  uint64
}

// ready reports whether the pipeline objects exist.
func (g *gpuPipeline) ready() bool {
	return g.pipeline != nil
}

// create builds the shader module, layouts, pipeline, sampler and uniform
// buffer from p.
func (g *gpuPipeline) create(p *Program) error {
	var err error
	g.module, err = g.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "kaleidoscope",
		Source: hal.ShaderSource{SPIRV: p.SPIRV},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	g.bindLayout, err = g.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "kaleidoscope_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	g.pipelineLayout, err = g.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "kaleidoscope_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{g.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	g.pipeline, err = g.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "kaleidoscope_pipeline",
		Layout: g.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     g.module,
			EntryPoint: "vs_main",
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Fragment: &hal.FragmentState{
			Module:     g.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    gputypes.TextureFormatRGBA8Unorm,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create render pipeline: %w", err)
	}

	g.sampler, err = g.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "kaleidoscope_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}

	g.uniforms, err = g.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "kaleidoscope_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	return nil
}

// resizeTarget (re)creates the render target, its view and the staging
// buffer for a width x height output.
func (g *gpuPipeline) resizeTarget(width, height int) error {
	w, h := uint32(width), uint32(height)
	if g.target != nil && g.dstW == w && g.dstH == h {
		return nil
	}
	g.destroyTarget()

	tex, err := g.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "kaleidoscope_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create target texture: %w", err)
	}
	g.target = tex

	g.targetView, err = g.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "kaleidoscope_target_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create target view: %w", err)
	}

	stride := alignedStride(w)
	g.staging, err = g.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "kaleidoscope_staging",
		Size:  uint64(stride) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	g.dstW, g.dstH, g.stride = w, h, stride
	return nil
}

// upload premultiplies the straight-alpha texels in data and writes them
// into the source texture, recreating it when the snapshot size changed.
func (g *gpuPipeline) upload(data []byte, width, height int) error {
	w, h := uint32(width), uint32(height)
	if g.source == nil || g.srcW != w || g.srcH != h {
		g.destroySource()
		tex, err := g.device.CreateTexture(&hal.TextureDescriptor{
			Label:         "kaleidoscope_source",
			Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        gputypes.TextureFormatRGBA8Unorm,
			Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create source texture: %w", err)
		}
		g.source = tex
		g.sourceView, err = g.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         "kaleidoscope_source_view",
			Format:        gputypes.TextureFormatRGBA8Unorm,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			return fmt.Errorf("create source view: %w", err)
		}
		g.srcW, g.srcH = w, h
	}

	if cap(g.premul) < len(data) {
		g.premul = make([]byte, len(data))
	}
	g.premul = g.premul[:len(data)]
	premultiply(g.premul, data)

	err := g.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: g.source, MipLevel: 0},
		g.premul,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("write source texture: %w", err)
	}
	return nil
}

// ensureBindGroup creates the bind group for the current source view.
func (g *gpuPipeline) ensureBindGroup() error {
	if g.bindGroup != nil {
		return nil
	}
	bg, err := g.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "kaleidoscope_bind_group",
		Layout: g.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: g.uniforms.NativeHandle(), Size: uniformSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: g.sourceView.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: g.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	g.bindGroup = bg
	return nil
}

// draw renders one frame with u and unpremultiplies the result into dst,
// which must hold dstW x dstH straight-alpha RGBA texels.
func (g *gpuPipeline) draw(u *uniforms, dst []byte) error {
	if g.source == nil {
		return errors.New("draw before upload")
	}
	if err := g.ensureBindGroup(); err != nil {
		return err
	}
	if err := g.queue.WriteBuffer(g.uniforms, 0, u.bytes()); err != nil {
		return fmt.Errorf("write uniforms: %w", err)
	}

	encoder, err := g.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "kaleidoscope_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("kaleidoscope"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "kaleidoscope_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       g.targetView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(g.pipeline)
	rp.SetBindGroup(0, g.bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: g.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(g.target, g.staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: g.stride, RowsPerImage: g.dstH},
		TextureBase:  hal.ImageCopyTexture{Texture: g.target, MipLevel: 0},
		Size:         hal.Extent3D{Width: g.dstW, Height: g.dstH, DepthOrArrayLayers: 1},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer g.device.FreeCommandBuffer(cmdBuf)

	if _, err := g.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := g.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}

	size := uint64(g.stride) * uint64(g.dstH)
	m, err := g.device.MapBuffer(g.staging, 0, size)
	if err != nil {
		return fmt.Errorf("map staging buffer: %w", err)
	}
	mapped := unsafe.Slice((*byte)(m.Ptr), size)
	rowBytes := int(g.dstW) * 4
	for y := 0; y < int(g.dstH); y++ {
		src := mapped[y*int(g.stride) : y*int(g.stride)+rowBytes]
		unpremultiply(dst[y*rowBytes:(y+1)*rowBytes], src)
	}
	if err := g.device.UnmapBuffer(g.staging); err != nil {
		return fmt.Errorf("unmap staging buffer: %w", err)
	}
	g.draws++
	return nil
}

func (g *gpuPipeline) destroySource() {
	if g.bindGroup != nil {
		g.device.DestroyBindGroup(g.bindGroup)
		g.bindGroup = nil
	}
	if g.sourceView != nil {
		g.device.DestroyTextureView(g.sourceView)
		g.sourceView = nil
	}
	if g.source != nil {
		g.device.DestroyTexture(g.source)
		g.source = nil
	}
	g.srcW, g.srcH = 0, 0
}

func (g *gpuPipeline) destroyTarget() {
	if g.staging != nil {
		g.device.DestroyBuffer(g.staging)
		g.staging = nil
	}
	if g.targetView != nil {
		g.device.DestroyTextureView(g.targetView)
		g.targetView = nil
	}
	if g.target != nil {
		g.device.DestroyTexture(g.target)
		g.target = nil
	}
	g.dstW, g.dstH, g.stride = 0, 0, 0
}

// destroy releases every HAL object in reverse creation order.
func (g *gpuPipeline) destroy() {
	if g.device == nil {
		return
	}
	g.destroySource()
	g.destroyTarget()
	if g.uniforms != nil {
		g.device.DestroyBuffer(g.uniforms)
		g.uniforms = nil
	}
	if g.sampler != nil {
		g.device.DestroySampler(g.sampler)
		g.sampler = nil
	}
	if g.pipeline != nil {
		g.device.DestroyRenderPipeline(g.pipeline)
		g.pipeline = nil
	}
	if g.pipelineLayout != nil {
		g.device.DestroyPipelineLayout(g.pipelineLayout)
		g.pipelineLayout = nil
	}
	if g.bindLayout != nil {
		g.device.DestroyBindGroupLayout(g.bindLayout)
		g.bindLayout = nil
	}
	if g.module != nil {
		g.device.DestroyShaderModule(g.module)
		g.module = nil
	}
	g.premul = nil
}

// alignedStride rounds a row of w RGBA texels up to copyRowAlignment.
func alignedStride(w uint32) uint32 {
	return (w*4 + copyRowAlignment - 1) &^ (copyRowAlignment - 1)
}

// bytes encodes u as the WGSL Uniforms block.
func (u *uniforms) bytes() []byte {
	single := float32(0)
	if u.singleSector {
		single = 1
	}
	vals := [8]float32{
		float32(u.lens.Width), float32(u.lens.Height), float32(u.srcW), float32(u.srcH),
		float32(u.lens.SegmentAngle), float32(u.lens.Rotation), float32(u.lens.Segments), single,
	}
	buf := make([]byte, uniformSize)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func premultiply(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		a := uint32(src[i+3])
		dst[i+0] = uint8((uint32(src[i+0])*a + 127) / 255)
		dst[i+1] = uint8((uint32(src[i+1])*a + 127) / 255)
		dst[i+2] = uint8((uint32(src[i+2])*a + 127) / 255)
		dst[i+3] = uint8(a)
	}
}

func unpremultiply(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		a := uint32(src[i+3])
		if a == 0 {
			dst[i+0], dst[i+1], dst[i+2], dst[i+3] = 0, 0, 0, 0
			continue
		}
		dst[i+0] = uint8(min((uint32(src[i+0])*255+a/2)/a, 255))
		dst[i+1] = uint8(min((uint32(src[i+1])*255+a/2)/a, 255))
		dst[i+2] = uint8(min((uint32(src[i+2])*255+a/2)/a, 255))
		dst[i+3] = uint8(a)
	}
}
