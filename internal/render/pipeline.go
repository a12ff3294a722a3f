// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// cellBytes is the byte size of one intensity cell. Samples are 16-bit
// but stored one per u32 cell so the resolve shader indexes the storage
// buffer without sub-word addressing.
const cellBytes = 4

// quadVertexStride is the byte stride per composite quad vertex:
// position (vec2<f32>) + tex_coord (vec2<f32>) = 16 bytes.
const quadVertexStride = 16

// quadVertexCount is the vertex count of the composite triangle strip.
const quadVertexCount = 4

// Config describes the GPU pipeline dimensions and palette.
type Config struct {
	// Width and Height are the history strip dimensions in cells.
	Width  int
	Height int

	// ViewportWidth and ViewportHeight size the offscreen composite
	// target and the readback frame.
	ViewportWidth  int
	ViewportHeight int

	// Gradient is the palette as tightly packed R,G,B,A bytes. The entry
	// count is len(Gradient)/4.
	Gradient []byte
}

func (c Config) gradientSize() int { return len(c.Gradient) / 4 }

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("render: invalid strip %dx%d", c.Width, c.Height)
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("render: invalid viewport %dx%d", c.ViewportWidth, c.ViewportHeight)
	}
	if c.gradientSize() == 0 || len(c.Gradient)%4 != 0 {
		return fmt.Errorf("render: invalid gradient length %d", len(c.Gradient))
	}
	return nil
}

// Pipeline owns the GPU resources of the waterfall renderer.
//
// Resource lifecycle:
//
//	NewPipeline     compiles shaders, creates pipelines, layouts, the
//	                sampler, all buffers and textures, and both resolve
//	                bind groups. Nothing is created lazily afterwards.
//	Begin..Present  encode one tick into a single command stream.
//	Close           destroys everything in reverse creation order.
//
// The intensity history lives in a ping-pong pair of storage buffers.
// The buffer at index cur is current: it receives the fresh row and is
// read by the resolve dispatch; the scroll copy writes the shifted
// history into the other buffer. Present swaps the indices only after a
// successful submit, so a failed tick leaves the pair consistent.
type Pipeline struct {
	ctx *gpuContext
	cfg Config

	// Immutable pipeline bundle.
	resolveShader     hal.ShaderModule
	compositeShader   hal.ShaderModule
	resolveLayout     hal.BindGroupLayout
	compositeLayout   hal.BindGroupLayout
	resolvePipeLayout hal.PipelineLayout
	compositePipeLyt  hal.PipelineLayout
	resolvePipeline   hal.ComputePipeline
	compositePipeline hal.RenderPipeline
	sampler           hal.Sampler

	// Intensity ping-pong pair and its static bind groups, one per role
	// assignment.
	intensity [2]hal.Buffer
	resolveBG [2]hal.BindGroup
	cur       int

	configBuf hal.Buffer
	vertexBuf hal.Buffer

	gradientTex  hal.Texture
	gradientView hal.TextureView
	stripTex     hal.Texture
	stripView    hal.TextureView
	targetTex    hal.Texture
	targetView   hal.TextureView

	compositeBG hal.BindGroup

	// Per-tick encoding state.
	encoder  hal.CommandEncoder
	encoding bool
	scrolled bool

	// Surface mode: when set, the composite pass renders here instead of
	// the offscreen target and Present skips the readback.
	surfaceView hal.TextureView

	quad       [4]float32 // u0, v0, u1, v1
	quadDirty  bool
	rowScratch []byte

	closed bool
}

// NewPipeline opens a standalone Vulkan device and builds the pipeline
// on it.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ctx, err := openStandalone()
	if err != nil {
		return nil, err
	}
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		ctx.close()
		return nil, err
	}
	return p, nil
}

// NewPipelineWithProvider builds the pipeline on a device shared by an
// external gpucontext provider.
func NewPipelineWithProvider(provider gpucontext.DeviceProvider, cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ctx, err := fromProvider(provider)
	if err != nil {
		return nil, err
	}
	return newPipeline(ctx, cfg)
}

func newPipeline(ctx *gpuContext, cfg Config) (*Pipeline, error) {
	p := &Pipeline{
		ctx:        ctx,
		cfg:        cfg,
		rowScratch: make([]byte, cfg.Width*cellBytes),
		quad:       [4]float32{0, 0, 1, 1},
		quadDirty:  true,
	}
	if err := p.createPipelines(); err != nil {
		p.destroyResources()
		return nil, err
	}
	if err := p.createResources(); err != nil {
		p.destroyResources()
		return nil, err
	}
	slogger().Debug("render: pipeline ready",
		"strip", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight),
		"gradient_size", cfg.gradientSize())
	return p, nil
}

// createPipelines compiles both shaders and creates the compute and
// render pipelines with their layouts and the strip sampler.
func (p *Pipeline) createPipelines() error {
	device := p.ctx.device

	resolveShader, err := compileShader(device, "waterfall_resolve", resolveShaderSource)
	if err != nil {
		return err
	}
	p.resolveShader = resolveShader

	compositeShader, err := compileShader(device, "waterfall_composite", compositeShaderSource)
	if err != nil {
		return err
	}
	p.compositeShader = compositeShader

	// Resolve bind group layout:
	//   Binding 0: Config (uniform buffer)
	//   Binding 1: intensity plane (read-only storage)
	//   Binding 2: gradient palette (texture_2d)
	//   Binding 3: color strip (storage texture, write)
	resolveLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "waterfall_resolve_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageCompute,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageCompute,
				StorageTexture: &gputypes.StorageTextureBindingLayout{
					Access:        gputypes.StorageTextureAccessWriteOnly,
					Format:        gputypes.TextureFormatRGBA8Unorm,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create resolve layout: %w", err)
	}
	p.resolveLayout = resolveLayout

	resolvePipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "waterfall_resolve_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.resolveLayout},
	})
	if err != nil {
		return fmt.Errorf("create resolve pipeline layout: %w", err)
	}
	p.resolvePipeLayout = resolvePipeLayout

	resolvePipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "waterfall_resolve",
		Layout: p.resolvePipeLayout,
		Compute: hal.ComputeState{
			Module:     p.resolveShader,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("create resolve pipeline: %w", err)
	}
	p.resolvePipeline = resolvePipeline

	// Composite bind group layout:
	//   Binding 0: color strip (texture_2d)
	//   Binding 1: sampler
	compositeLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "waterfall_composite_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create composite layout: %w", err)
	}
	p.compositeLayout = compositeLayout

	compositePipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "waterfall_composite_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.compositeLayout},
	})
	if err != nil {
		return fmt.Errorf("create composite pipeline layout: %w", err)
	}
	p.compositePipeLyt = compositePipeLayout

	// Nearest sampling keeps cell edges crisp when the window is zoomed.
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "waterfall_strip_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("create strip sampler: %w", err)
	}
	p.sampler = sampler

	compositePipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "waterfall_composite",
		Layout: p.compositePipeLyt,
		Vertex: hal.VertexState{
			Module:     p.compositeShader,
			EntryPoint: "vs_main",
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.compositeShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatBGRA8Unorm,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create composite pipeline: %w", err)
	}
	p.compositePipeline = compositePipeline

	return nil
}

// quadVertexLayout returns the vertex buffer layout of the composite quad.
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}, // tex_coord
			},
		},
	}
}

// createResources allocates the buffers and textures, zero-fills the
// intensity pair, uploads the gradient palette and builds the static
// bind groups.
func (p *Pipeline) createResources() error {
	device := p.ctx.device
	queue := p.ctx.queue

	planeSize := uint64(p.cfg.Width) * uint64(p.cfg.Height) * cellBytes
	zeros := make([]byte, planeSize)
	for i := range p.intensity {
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("waterfall_intensity_%d", i),
			Size:  planeSize,
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create intensity buffer %d: %w", i, err)
		}
		p.intensity[i] = buf
		// Zero-fill so the first frames show empty history, not
		// uninitialized memory.
		queue.WriteBuffer(buf, 0, zeros)
	}

	configBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "waterfall_config",
		Size:  configUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create config buffer: %w", err)
	}
	p.configBuf = configBuf
	queue.WriteBuffer(configBuf, 0, makeConfigUniform(p.cfg))

	vertexBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "waterfall_quad_verts",
		Size:  quadVertexCount * quadVertexStride,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create vertex buffer: %w", err)
	}
	p.vertexBuf = vertexBuf

	if err := p.createTextures(); err != nil {
		return err
	}
	return p.createBindGroups()
}

func (p *Pipeline) createTextures() error {
	device := p.ctx.device
	queue := p.ctx.queue
	gradSize := p.cfg.gradientSize()

	gradientTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "waterfall_gradient",
		Size:          hal.Extent3D{Width: uint32(gradSize), Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create gradient texture: %w", err)
	}
	p.gradientTex = gradientTex

	queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  p.gradientTex,
			MipLevel: 0,
		},
		p.cfg.Gradient,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(gradSize * 4),
			RowsPerImage: 1,
		},
		&hal.Extent3D{Width: uint32(gradSize), Height: 1, DepthOrArrayLayers: 1},
	)

	gradientView, err := device.CreateTextureView(p.gradientTex, &hal.TextureViewDescriptor{
		Label:         "waterfall_gradient_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create gradient view: %w", err)
	}
	p.gradientView = gradientView

	stripTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: "waterfall_strip",
		Size: hal.Extent3D{
			Width:              uint32(p.cfg.Width),
			Height:             uint32(p.cfg.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageStorageBinding | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("create strip texture: %w", err)
	}
	p.stripTex = stripTex

	stripView, err := device.CreateTextureView(p.stripTex, &hal.TextureViewDescriptor{
		Label:         "waterfall_strip_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create strip view: %w", err)
	}
	p.stripView = stripView

	targetTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: "waterfall_target",
		Size: hal.Extent3D{
			Width:              uint32(p.cfg.ViewportWidth),
			Height:             uint32(p.cfg.ViewportHeight),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create target texture: %w", err)
	}
	p.targetTex = targetTex

	targetView, err := device.CreateTextureView(p.targetTex, &hal.TextureViewDescriptor{
		Label: "waterfall_target_view",
	})
	if err != nil {
		return fmt.Errorf("create target view: %w", err)
	}
	p.targetView = targetView

	return nil
}

func (p *Pipeline) createBindGroups() error {
	device := p.ctx.device

	// One resolve bind group per intensity role assignment, so the
	// per-tick dispatch just selects by index instead of rebuilding
	// bind groups.
	for i := range p.intensity {
		bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  fmt.Sprintf("waterfall_resolve_bg_%d", i),
			Layout: p.resolveLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: p.configBuf.NativeHandle(), Offset: 0, Size: 0,
				}},
				{Binding: 1, Resource: gputypes.BufferBinding{
					Buffer: p.intensity[i].NativeHandle(), Offset: 0, Size: 0,
				}},
				{Binding: 2, Resource: gputypes.TextureViewBinding{
					TextureView: p.gradientView.NativeHandle(),
				}},
				{Binding: 3, Resource: gputypes.TextureViewBinding{
					TextureView: p.stripView.NativeHandle(),
				}},
			},
		})
		if err != nil {
			return fmt.Errorf("create resolve bind group %d: %w", i, err)
		}
		p.resolveBG[i] = bg
	}

	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "waterfall_composite_bg",
		Layout: p.compositeLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{
				TextureView: p.stripView.NativeHandle(),
			}},
			{Binding: 1, Resource: gputypes.SamplerBinding{
				Sampler: p.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create composite bind group: %w", err)
	}
	p.compositeBG = bg

	return nil
}

// SetSurfaceView switches the composite pass to render into an external
// surface texture view of the viewport size. Present then submits without
// a readback; presentation is the surface owner's responsibility. Pass
// nil to return to offscreen readback.
func (p *Pipeline) SetSurfaceView(view hal.TextureView) {
	p.surfaceView = view
}

// Close destroys all GPU resources. Safe to call more than once.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.closed = true
	if p.encoding {
		p.Abandon()
	}
	p.destroyResources()
	p.ctx.close()
	slogger().Debug("render: pipeline closed")
}

// destroyResources releases everything in reverse creation order. Nil
// fields are skipped so it doubles as partial-init cleanup.
func (p *Pipeline) destroyResources() {
	device := p.ctx.device
	if device == nil {
		return
	}
	if p.compositeBG != nil {
		device.DestroyBindGroup(p.compositeBG)
		p.compositeBG = nil
	}
	for i, bg := range p.resolveBG {
		if bg != nil {
			device.DestroyBindGroup(bg)
			p.resolveBG[i] = nil
		}
	}
	if p.targetView != nil {
		device.DestroyTextureView(p.targetView)
		p.targetView = nil
	}
	if p.targetTex != nil {
		device.DestroyTexture(p.targetTex)
		p.targetTex = nil
	}
	if p.stripView != nil {
		device.DestroyTextureView(p.stripView)
		p.stripView = nil
	}
	if p.stripTex != nil {
		device.DestroyTexture(p.stripTex)
		p.stripTex = nil
	}
	if p.gradientView != nil {
		device.DestroyTextureView(p.gradientView)
		p.gradientView = nil
	}
	if p.gradientTex != nil {
		device.DestroyTexture(p.gradientTex)
		p.gradientTex = nil
	}
	if p.vertexBuf != nil {
		device.DestroyBuffer(p.vertexBuf)
		p.vertexBuf = nil
	}
	if p.configBuf != nil {
		device.DestroyBuffer(p.configBuf)
		p.configBuf = nil
	}
	for i, buf := range p.intensity {
		if buf != nil {
			device.DestroyBuffer(buf)
			p.intensity[i] = nil
		}
	}
	if p.compositePipeline != nil {
		device.DestroyRenderPipeline(p.compositePipeline)
		p.compositePipeline = nil
	}
	if p.sampler != nil {
		device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.compositePipeLyt != nil {
		device.DestroyPipelineLayout(p.compositePipeLyt)
		p.compositePipeLyt = nil
	}
	if p.compositeLayout != nil {
		device.DestroyBindGroupLayout(p.compositeLayout)
		p.compositeLayout = nil
	}
	if p.resolvePipeline != nil {
		device.DestroyComputePipeline(p.resolvePipeline)
		p.resolvePipeline = nil
	}
	if p.resolvePipeLayout != nil {
		device.DestroyPipelineLayout(p.resolvePipeLayout)
		p.resolvePipeLayout = nil
	}
	if p.resolveLayout != nil {
		device.DestroyBindGroupLayout(p.resolveLayout)
		p.resolveLayout = nil
	}
	if p.compositeShader != nil {
		device.DestroyShaderModule(p.compositeShader)
		p.compositeShader = nil
	}
	if p.resolveShader != nil {
		device.DestroyShaderModule(p.resolveShader)
		p.resolveShader = nil
	}
}
