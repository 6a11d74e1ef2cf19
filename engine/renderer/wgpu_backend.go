package renderer

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/framegraph"
)

// instanceStride is the byte size of one collector.Instance record:
// 16 world floats plus the material index padded to 16 bytes.
const instanceStride = 16*4 + 4*4

// editorWGSL is the instanced editor-view shader: vertex pulls the
// world matrix from the instance buffer, fragment outputs the material
// base color channel only. Full shading is out of scope; this surface
// exists so the editor has depth-correct geometry on screen.
const editorWGSL = `
struct CameraUniform {
    view_proj: mat4x4f,
};
@group(0) @binding(0) var<uniform> camera: CameraUniform;

struct VertexIn {
    @location(0) position: vec3f,
    @location(1) normal: vec3f,
    @location(2) uv: vec2f,
    @location(3) world0: vec4f,
    @location(4) world1: vec4f,
    @location(5) world2: vec4f,
    @location(6) world3: vec4f,
    @location(7) material: u32,
};

struct VertexOut {
    @builtin(position) clip: vec4f,
    @location(0) normal: vec3f,
};

@vertex
fn vs_main(in: VertexIn) -> VertexOut {
    let world = mat4x4f(in.world0, in.world1, in.world2, in.world3);
    var out: VertexOut;
    out.clip = camera.view_proj * world * vec4f(in.position, 1.0);
    out.normal = (world * vec4f(in.normal, 0.0)).xyz;
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4f {
    let light = normalize(vec3f(0.4, 0.8, 0.4));
    let diffuse = max(dot(normalize(in.normal), light), 0.15);
    return vec4f(vec3f(diffuse), 1.0);
}
`

type wgpuBackend struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	pipeline         *wgpu.RenderPipeline
	uniformBuffer    *wgpu.Buffer
	uniformBindGroup *wgpu.BindGroup

	// Frame state shared by the passes recorded between AcquireFrame
	// and SubmitFrame.
	frameEncoder *wgpu.CommandEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ Backend = &wgpuBackend{}

// NewWGPUBackend creates the production backend over the given surface.
// Panics on instance, adapter or device failure: without a GPU there is
// nothing the editor can do.
//
// Parameters:
//   - surfaceDescriptor: the window system surface to render to.
//   - forceFallbackAdapter: request a software adapter.
//
// Returns:
//   - Backend: the GPU backend.
func NewWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) Backend {
	runtime.LockOSThread()
	b := &wgpuBackend{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		panic(err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		panic(err)
	}
	b.device = device
	b.queue = device.GetQueue()

	return b
}

func (b *wgpuBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if b.pipeline == nil {
		if err := b.initPipeline(); err != nil {
			return fmt.Errorf("init editor pipeline: %w", err)
		}
	}
	return nil
}

func (b *wgpuBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeMailbox:
		b.presentMode = wgpu.PresentModeMailbox
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuBackend) SurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceFormat
}

func (b *wgpuBackend) AcquireFrame() (*wgpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Backpressure: the previous frame must present before the next one
	// acquires, otherwise wgpu reports the image as already acquired.
	if b.frameSurface != nil {
		return nil, fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, err
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view
	return view, nil
}

func (b *wgpuBackend) SubmitFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return fmt.Errorf("no frame encoder; AcquireFrame was not called")
	}

	commandBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	if err != nil {
		return err
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder != nil {
		// Frame was aborted before submit; drop the recorded commands.
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}

	if b.frameSurface != nil {
		b.surface.Present()
	}

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuBackend) CreateTransientTexture(desc framegraph.TextureDescriptor) (*wgpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sampleCount := desc.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Transient Texture",
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   sampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, err
	}
	return tex.CreateView(nil)
}

func (b *wgpuBackend) UploadTexture(label string, data common.TexturePixelData) (*wgpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * 4,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)

	return tex.CreateView(nil)
}

func (b *wgpuBackend) UploadMeshBuffers(label string, vertexData, indexData []byte) (*wgpu.Buffer, *wgpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vertex, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Vertex Buffer",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, err
	}
	b.queue.WriteBuffer(vertex, 0, vertexData)

	index, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vertex.Release()
		return nil, nil, err
	}
	b.queue.WriteBuffer(index, 0, indexData)

	return vertex, index, nil
}

func (b *wgpuBackend) UploadInstances(data []byte) (*wgpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Instance Buffer",
		Size:  uint64(len(data)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	b.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

func (b *wgpuBackend) WriteUniform(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.uniformBuffer != nil {
		b.queue.WriteBuffer(b.uniformBuffer, 0, data)
	}
}

func (b *wgpuBackend) DrawBatches(target, depth *wgpu.TextureView, draws []Draw) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return fmt.Errorf("no frame encoder; AcquireFrame was not called")
	}

	descriptor := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       target,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
			},
		},
	}
	if depth != nil {
		descriptor.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		}
	}

	pass := b.frameEncoder.BeginRenderPass(descriptor)
	pass.SetPipeline(b.pipeline)
	pass.SetBindGroup(0, b.uniformBindGroup, nil)

	for _, d := range draws {
		if d.VertexBuffer == nil || d.IndexBuffer == nil || d.InstanceCount == 0 {
			continue
		}
		pass.SetVertexBuffer(0, d.VertexBuffer, 0, wgpu.WholeSize)
		pass.SetVertexBuffer(1, d.Instances, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(d.IndexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(d.IndexCount, d.InstanceCount, d.IndexOffset, 0, 0)
	}

	pass.End()
	return nil
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
}

// initPipeline compiles the editor shader and builds the single render
// pipeline the draw passes share. Callers hold b.mu.
func (b *wgpuBackend) initPipeline() error {
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "editor shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: editorWGSL,
		},
	})
	if err != nil {
		return err
	}

	uniformLayout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Camera Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeUniform,
				},
			},
		},
	})
	if err != nil {
		return err
	}

	b.uniformBuffer, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera Uniform",
		Size:  16 * 4,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}

	b.uniformBindGroup, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Camera Bind Group",
		Layout: uniformLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  b.uniformBuffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			},
		},
	})
	if err != nil {
		return err
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "editor",
		BindGroupLayouts: []*wgpu.BindGroupLayout{uniformLayout},
	})
	if err != nil {
		return err
	}

	b.pipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "editor Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					// Interleaved position, normal, uv.
					ArrayStride: 8 * 4,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{ShaderLocation: 0, Offset: 0, Format: wgpu.VertexFormatFloat32x3},
						{ShaderLocation: 1, Offset: 12, Format: wgpu.VertexFormatFloat32x3},
						{ShaderLocation: 2, Offset: 24, Format: wgpu.VertexFormatFloat32x2},
					},
				},
				{
					ArrayStride: instanceStride,
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes: []wgpu.VertexAttribute{
						{ShaderLocation: 3, Offset: 0, Format: wgpu.VertexFormatFloat32x4},
						{ShaderLocation: 4, Offset: 16, Format: wgpu.VertexFormatFloat32x4},
						{ShaderLocation: 5, Offset: 32, Format: wgpu.VertexFormatFloat32x4},
						{ShaderLocation: 6, Offset: 48, Format: wgpu.VertexFormatFloat32x4},
						{ShaderLocation: 7, Offset: 64, Format: wgpu.VertexFormatUint32},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	return err
}
