package renderer

import (
	"context"
	"fmt"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/bindless"
	"github.com/lumen3d/lumen/engine/camera"
	"github.com/lumen3d/lumen/engine/collector"
	"github.com/lumen3d/lumen/engine/framegraph"
	"github.com/lumen3d/lumen/engine/profiler"
	"github.com/lumen3d/lumen/engine/scenegraph"
)

// Renderer drives the per-frame pipeline from the single frame thread:
// drain pending texture uploads, collect instances, build and execute
// the frame's graph, present. A frame that fails anywhere is skipped;
// the previously presented image remains on screen and the next frame
// proceeds normally.
type Renderer interface {
	// Resize reconfigures the surface and the transient attachments for
	// a new pixel size.
	//
	// Parameters:
	//   - width: surface width in pixels.
	//   - height: surface height in pixels.
	//
	// Returns:
	//   - error: surface configuration failure.
	Resize(width, height int) error

	// DrainUploads applies all queued texture uploads: creates the GPU
	// texture, allocates the bindless slot and runs each upload's
	// completion callback. This is the frame boundary's single bindless
	// mutation point; RenderFrame calls it automatically.
	//
	// Returns:
	//   - int: the number of uploads applied.
	DrainUploads() int

	// UploadMesh creates GPU vertex/index buffers for a registered mesh
	// and stores them in the mesh table.
	//
	// Parameters:
	//   - id: the mesh table id.
	//   - vertexData: the interleaved vertex stream.
	//   - indexData: the uint32 index stream.
	//
	// Returns:
	//   - error: device allocation or unknown mesh failure.
	UploadMesh(id common.MeshID, vertexData, indexData []byte) error

	// RenderFrame runs one full frame: uploads, collection, frame graph
	// build/resolve/execute, submit and present.
	//
	// Parameters:
	//   - ctx: passed to frame graph passes for GPU waits.
	//   - graph: the scene to render. Must not be structurally mutated
	//     while the call runs.
	//   - cam: the view camera.
	//
	// Returns:
	//   - error: the failure that caused the frame to be skipped.
	RenderFrame(ctx context.Context, graph scenegraph.Graph, cam camera.Camera) error
}

type rendererImpl struct {
	backend   Backend
	resources bindless.Manager
	uploads   *bindless.UploadQueue
	collect   collector.Collector
	prof      *profiler.Profiler

	width  int
	height int
}

var _ Renderer = &rendererImpl{}

// NewRenderer creates the frame driver over the given backend.
//
// Parameters:
//   - backend: the GPU backend.
//   - resources: the bindless slot allocator and mesh/material tables.
//   - uploads: the asset-import handoff queue.
//   - c: the instance collector.
//   - opts: optional configuration functions.
//
// Returns:
//   - Renderer: the new frame driver.
func NewRenderer(backend Backend, resources bindless.Manager, uploads *bindless.UploadQueue, c collector.Collector, opts ...RendererOption) Renderer {
	r := &rendererImpl{
		backend:   backend,
		resources: resources,
		uploads:   uploads,
		collect:   c,
		width:     1280,
		height:    720,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *rendererImpl) Resize(width, height int) error {
	r.width = width
	r.height = height
	return r.backend.ConfigureSurface(width, height)
}

func (r *rendererImpl) DrainUploads() int {
	pending := r.uploads.Drain()
	for _, pt := range pending {
		view, err := r.backend.UploadTexture(pt.Name, pt.Data)

		var slot bindless.TextureSlot
		if err == nil {
			slot, err = r.resources.AllocateTexture(view)
		} else {
			slot = bindless.SlotUnset
		}

		if pt.OnAllocated != nil {
			pt.OnAllocated(slot, err)
		}
	}
	return len(pending)
}

func (r *rendererImpl) UploadMesh(id common.MeshID, vertexData, indexData []byte) error {
	mesh, ok := r.resources.Mesh(id)
	if !ok {
		return fmt.Errorf("upload mesh %d: unknown mesh id", id)
	}

	vertex, index, err := r.backend.UploadMeshBuffers(mesh.Name, vertexData, indexData)
	if err != nil {
		return fmt.Errorf("upload mesh %q: %w", mesh.Name, err)
	}
	return r.resources.SetMeshBuffers(id, vertex, index)
}

func (r *rendererImpl) RenderFrame(ctx context.Context, graph scenegraph.Graph, cam camera.Camera) error {
	started := time.Now()

	r.DrainUploads()

	batches := r.collect.Collect(graph, cam)
	if r.prof != nil {
		r.prof.RecordStage("collect", time.Since(started))
	}

	vp := cam.ViewProjectionMatrix()
	r.backend.WriteUniform(common.SliceToBytes(vp[:]))

	draws, err := r.buildDraws(batches)
	if err != nil {
		return fmt.Errorf("build draws: %w", err)
	}

	surfaceView, err := r.backend.AcquireFrame()
	if err != nil {
		return fmt.Errorf("acquire frame: %w", err)
	}

	fg := framegraph.NewFrameGraph(
		framegraph.WithAllocator(framegraph.NewPooledAllocator(r.backend.CreateTransientTexture)),
	)

	buildErr := r.buildFrameGraph(fg, surfaceView, draws)
	if buildErr == nil {
		buildErr = fg.Resolve()
	}
	if buildErr == nil {
		buildErr = fg.Execute(ctx)
	}
	fg.Retire()

	if buildErr != nil {
		// Skip the frame: present only releases the acquired image, the
		// previous frame's output stays on screen.
		r.backend.Present()
		return buildErr
	}

	if err := r.backend.SubmitFrame(); err != nil {
		r.backend.Present()
		return fmt.Errorf("submit frame: %w", err)
	}
	r.backend.Present()

	if r.prof != nil {
		r.prof.RecordStage("frame", time.Since(started))
	}
	return nil
}

// buildDraws uploads per-batch instance buffers and flattens batches
// into backend draw commands, one per primitive range.
func (r *rendererImpl) buildDraws(batches []*collector.InstanceBatch) ([]Draw, error) {
	var draws []Draw
	for _, batch := range batches {
		mesh, ok := r.resources.Mesh(batch.Mesh)
		if !ok || mesh.VertexBuffer == nil || mesh.IndexBuffer == nil {
			// Geometry not uploaded yet; skip until it streams in.
			continue
		}

		instances, err := r.backend.UploadInstances(batch.InstanceBytes())
		if err != nil {
			return nil, fmt.Errorf("mesh %q instances: %w", mesh.Name, err)
		}

		for _, prim := range batch.Primitives {
			draws = append(draws, Draw{
				VertexBuffer:  mesh.VertexBuffer,
				IndexBuffer:   mesh.IndexBuffer,
				Instances:     instances,
				IndexOffset:   prim.IndexOffset,
				IndexCount:    prim.IndexCount,
				InstanceCount: uint32(len(batch.Instances)),
			})
		}
	}
	return draws, nil
}

// buildFrameGraph declares the editor frame: an opaque pass drawing
// every batch into the swapchain with a transient depth attachment.
func (r *rendererImpl) buildFrameGraph(fg framegraph.FrameGraph, surfaceView *wgpu.TextureView, draws []Draw) error {
	if err := fg.ImportTexture("surface", surfaceView); err != nil {
		return err
	}

	depthDesc := framegraph.TextureDescriptor{
		Width:       uint32(r.width),
		Height:      uint32(r.height),
		Format:      wgpu.TextureFormatDepth24Plus,
		Usage:       wgpu.TextureUsageRenderAttachment,
		SampleCount: 1,
	}
	if err := fg.CreateTexture("depth", depthDesc); err != nil {
		return err
	}

	return fg.AddPass("opaque", nil, []string{"surface", "depth"}, func(ctx context.Context, pc *framegraph.PassContext) error {
		target, err := pc.Texture("surface")
		if err != nil {
			return err
		}
		depth, err := pc.Texture("depth")
		if err != nil {
			return err
		}
		return r.backend.DrawBatches(target, depth, draws)
	})
}
