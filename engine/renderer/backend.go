package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/framegraph"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting,
	// capping frame rate to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeMailbox presents the most recently completed frame at the
	// next vertical blank, dropping older ones. Adapter-dependent.
	PresentModeMailbox

	// PresentModeUncapped presents frames immediately without waiting for
	// vertical blank. May cause screen tearing but has the lowest latency.
	PresentModeUncapped
)

// Backend abstracts the GPU API behind the frame driver: surface
// management, resource uploads and command submission. The wgpu backend
// is the production implementation; tests substitute a recording fake.
type Backend interface {
	// ConfigureSurface (re)configures the swapchain for the given pixel
	// size. Called at startup and on window resize.
	//
	// Parameters:
	//   - width: surface width in pixels.
	//   - height: surface height in pixels.
	//
	// Returns:
	//   - error: surface configuration failure.
	ConfigureSurface(width, height int) error

	// SetPresentMode selects the presentation mode applied on the next
	// ConfigureSurface call.
	//
	// Parameters:
	//   - mode: the presentation mode.
	SetPresentMode(mode PresentMode)

	// SurfaceFormat returns the configured swapchain texture format.
	//
	// Returns:
	//   - wgpu.TextureFormat: the surface format.
	SurfaceFormat() wgpu.TextureFormat

	// AcquireFrame acquires the next swapchain image and opens the
	// frame's command encoder. Fails if the previous frame was never
	// presented, providing the pipeline's backpressure point.
	//
	// Returns:
	//   - *wgpu.TextureView: the swapchain view to render into.
	//   - error: acquisition failure (the caller skips the frame).
	AcquireFrame() (*wgpu.TextureView, error)

	// SubmitFrame finishes and submits the frame's command encoder.
	//
	// Returns:
	//   - error: command buffer submission failure.
	SubmitFrame() error

	// Present presents the acquired swapchain image and releases the
	// frame's resources. Safe to call after a failed frame; it then
	// only releases.
	Present()

	// CreateTransientTexture creates a texture for the frame graph's
	// transient allocator.
	//
	// Parameters:
	//   - desc: the transient texture shape.
	//
	// Returns:
	//   - *wgpu.TextureView: a view of the new texture.
	//   - error: device allocation failure.
	CreateTransientTexture(desc framegraph.TextureDescriptor) (*wgpu.TextureView, error)

	// UploadTexture creates a sampled texture from decoded RGBA pixels
	// and writes the pixel data through the queue. Used by the frame
	// boundary's upload queue drain.
	//
	// Parameters:
	//   - label: a debug label for the texture.
	//   - data: the decoded pixels.
	//
	// Returns:
	//   - *wgpu.TextureView: a view of the uploaded texture.
	//   - error: device allocation failure.
	UploadTexture(label string, data common.TexturePixelData) (*wgpu.TextureView, error)

	// UploadMeshBuffers creates and fills the vertex and index buffers
	// for a registered mesh.
	//
	// Parameters:
	//   - label: a debug label for the buffers.
	//   - vertexData: the interleaved vertex stream.
	//   - indexData: the uint32 index stream.
	//
	// Returns:
	//   - *wgpu.Buffer: the vertex buffer.
	//   - *wgpu.Buffer: the index buffer.
	//   - error: device allocation failure.
	UploadMeshBuffers(label string, vertexData, indexData []byte) (*wgpu.Buffer, *wgpu.Buffer, error)

	// UploadInstances creates and fills a per-frame instance buffer.
	//
	// Parameters:
	//   - data: the packed instance records.
	//
	// Returns:
	//   - *wgpu.Buffer: the instance buffer.
	//   - error: device allocation failure.
	UploadInstances(data []byte) (*wgpu.Buffer, error)

	// WriteUniform writes the camera uniform data for the frame.
	//
	// Parameters:
	//   - data: the uniform bytes (view-projection matrix).
	WriteUniform(data []byte)

	// DrawBatches encodes one render pass drawing the given draw lists
	// into the target, using the depth attachment when non-nil.
	//
	// Parameters:
	//   - target: the color attachment view.
	//   - depth: the depth attachment view (nil for depth-only passes
	//     is invalid; nil disables the depth attachment).
	//   - draws: the encoded draw lists for this pass.
	//
	// Returns:
	//   - error: encoding failure.
	DrawBatches(target, depth *wgpu.TextureView, draws []Draw) error

	// Release destroys the backend's GPU resources.
	Release()
}

// Draw is one instanced draw command produced by the frame driver from
// a collector batch: the mesh buffers, the primitive index ranges and
// the per-instance data.
type Draw struct {
	VertexBuffer *wgpu.Buffer
	IndexBuffer  *wgpu.Buffer
	Instances    *wgpu.Buffer

	IndexOffset   uint32
	IndexCount    uint32
	InstanceCount uint32
}
