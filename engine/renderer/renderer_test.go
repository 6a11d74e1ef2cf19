package renderer

import (
	"context"
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/bindless"
	"github.com/lumen3d/lumen/engine/camera"
	"github.com/lumen3d/lumen/engine/collector"
	"github.com/lumen3d/lumen/engine/framegraph"
	"github.com/lumen3d/lumen/engine/scenegraph"
)

// mockBackend records every call the frame driver makes without touching
// a real GPU device.
type mockBackend struct {
	configured      [][2]int
	uploadedLabels  []string
	instanceUploads [][]byte
	uniform         []byte
	transientAllocs int
	drawCalls       [][]Draw
	submitted       int
	presented       int

	acquireErr error
	drawErr    error
	submitErr  error
	uploadErr  error
}

var _ Backend = &mockBackend{}

func (m *mockBackend) ConfigureSurface(width, height int) error {
	m.configured = append(m.configured, [2]int{width, height})
	return nil
}

func (m *mockBackend) SetPresentMode(PresentMode) {}

func (m *mockBackend) SurfaceFormat() wgpu.TextureFormat {
	return wgpu.TextureFormatBGRA8Unorm
}

func (m *mockBackend) AcquireFrame() (*wgpu.TextureView, error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	return new(wgpu.TextureView), nil
}

func (m *mockBackend) SubmitFrame() error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted++
	return nil
}

func (m *mockBackend) Present() {
	m.presented++
}

func (m *mockBackend) CreateTransientTexture(framegraph.TextureDescriptor) (*wgpu.TextureView, error) {
	m.transientAllocs++
	return new(wgpu.TextureView), nil
}

func (m *mockBackend) UploadTexture(label string, data common.TexturePixelData) (*wgpu.TextureView, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.uploadedLabels = append(m.uploadedLabels, label)
	return new(wgpu.TextureView), nil
}

func (m *mockBackend) UploadMeshBuffers(label string, vertexData, indexData []byte) (*wgpu.Buffer, *wgpu.Buffer, error) {
	return new(wgpu.Buffer), new(wgpu.Buffer), nil
}

func (m *mockBackend) UploadInstances(data []byte) (*wgpu.Buffer, error) {
	m.instanceUploads = append(m.instanceUploads, data)
	return new(wgpu.Buffer), nil
}

func (m *mockBackend) WriteUniform(data []byte) {
	m.uniform = append([]byte(nil), data...)
}

func (m *mockBackend) DrawBatches(target, depth *wgpu.TextureView, draws []Draw) error {
	if m.drawErr != nil {
		return m.drawErr
	}
	m.drawCalls = append(m.drawCalls, draws)
	return nil
}

func (m *mockBackend) Release() {}

// testScene builds a manager with one uploaded cube mesh and a graph
// holding a single drawable node referencing it.
func testScene(t *testing.T) (bindless.Manager, scenegraph.Graph, common.MeshID) {
	t.Helper()

	mgr := bindless.NewManager()
	mat := mgr.AddMaterial(bindless.NewMaterial("stone"))
	mesh := mgr.RegisterMesh(bindless.Mesh{
		Name:           "cube",
		BoundingRadius: 1,
		Primitives: []bindless.Primitive{
			{IndexOffset: 0, IndexCount: 36, Material: mat},
		},
	})

	g := scenegraph.NewGraph()
	root, err := g.AddNode(scenegraph.NodeNone)
	require.NoError(t, err)
	require.NoError(t, g.SetComponent(root, scenegraph.MeshRef{Mesh: mesh}))

	return mgr, g, mesh
}

func testCamera() camera.Camera {
	return camera.NewCamera(
		camera.WithPosition([3]float32{0, 0, 5}),
		camera.WithTarget([3]float32{0, 0, 0}),
	)
}

func TestRenderFramePresentsSingleDraw(t *testing.T) {
	mgr, g, mesh := testScene(t)
	backend := &mockBackend{}
	queue := bindless.NewUploadQueue()
	r := NewRenderer(backend, mgr, queue, collector.NewCollector(mgr))

	require.NoError(t, r.UploadMesh(mesh, make([]byte, 32*8), make([]byte, 4*36)))
	require.NoError(t, r.RenderFrame(context.Background(), g, testCamera()))

	require.Len(t, backend.drawCalls, 1)
	require.Len(t, backend.drawCalls[0], 1)
	draw := backend.drawCalls[0][0]
	assert.Equal(t, uint32(36), draw.IndexCount)
	assert.Equal(t, uint32(1), draw.InstanceCount)
	assert.NotNil(t, draw.VertexBuffer)
	assert.NotNil(t, draw.Instances)

	// One 4x4 float view-projection matrix.
	assert.Len(t, backend.uniform, 64)
	// One instance, 80 bytes each.
	require.Len(t, backend.instanceUploads, 1)
	assert.Len(t, backend.instanceUploads[0], 80)

	assert.Equal(t, 1, backend.submitted)
	assert.Equal(t, 1, backend.presented)
	// Only the depth attachment is transient; the surface is imported.
	assert.Equal(t, 1, backend.transientAllocs)
}

func TestRenderFrameSkipsMeshWithoutBuffers(t *testing.T) {
	mgr, g, _ := testScene(t)
	backend := &mockBackend{}
	r := NewRenderer(backend, mgr, bindless.NewUploadQueue(), collector.NewCollector(mgr))

	require.NoError(t, r.RenderFrame(context.Background(), g, testCamera()))

	// Geometry never uploaded: nothing drawn, frame still presented.
	require.Len(t, backend.drawCalls, 1)
	assert.Empty(t, backend.drawCalls[0])
	assert.Equal(t, 1, backend.presented)
}

func TestRenderFrameDrainsUploadQueue(t *testing.T) {
	mgr, g, _ := testScene(t)
	backend := &mockBackend{}
	queue := bindless.NewUploadQueue()
	r := NewRenderer(backend, mgr, queue, collector.NewCollector(mgr))

	var got bindless.TextureSlot
	var gotErr error
	queue.Enqueue(bindless.PendingTexture{
		Name: "albedo",
		Data: common.TexturePixelData{Pixels: make([]byte, 4), Width: 1, Height: 1},
		OnAllocated: func(slot bindless.TextureSlot, err error) {
			got, gotErr = slot, err
		},
	})

	require.NoError(t, r.RenderFrame(context.Background(), g, testCamera()))

	require.NoError(t, gotErr)
	assert.NotEqual(t, bindless.SlotUnset, got)
	assert.Equal(t, []string{"albedo"}, backend.uploadedLabels)
	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, 1, mgr.LiveSlots())
}

func TestDrainUploadsReportsDeviceFailure(t *testing.T) {
	mgr, _, _ := testScene(t)
	deviceLost := errors.New("device lost")
	backend := &mockBackend{uploadErr: deviceLost}
	queue := bindless.NewUploadQueue()
	r := NewRenderer(backend, mgr, queue, collector.NewCollector(mgr))

	var gotErr error
	queue.Enqueue(bindless.PendingTexture{
		Name: "albedo",
		Data: common.TexturePixelData{Pixels: make([]byte, 4), Width: 1, Height: 1},
		OnAllocated: func(slot bindless.TextureSlot, err error) {
			gotErr = err
		},
	})

	assert.Equal(t, 1, r.DrainUploads())
	assert.ErrorIs(t, gotErr, deviceLost)
	assert.Equal(t, 0, mgr.LiveSlots())
}

func TestRenderFrameSkipsOnAcquireFailure(t *testing.T) {
	mgr, g, _ := testScene(t)
	backend := &mockBackend{acquireErr: errors.New("surface outdated")}
	r := NewRenderer(backend, mgr, bindless.NewUploadQueue(), collector.NewCollector(mgr))

	err := r.RenderFrame(context.Background(), g, testCamera())
	require.Error(t, err)
	assert.Empty(t, backend.drawCalls)
	assert.Equal(t, 0, backend.submitted)
}

func TestRenderFrameSkipsOnPassFailure(t *testing.T) {
	mgr, g, mesh := testScene(t)
	backend := &mockBackend{drawErr: errors.New("encoder invalid")}
	r := NewRenderer(backend, mgr, bindless.NewUploadQueue(), collector.NewCollector(mgr))

	require.NoError(t, r.UploadMesh(mesh, make([]byte, 32*8), make([]byte, 4*36)))

	err := r.RenderFrame(context.Background(), g, testCamera())
	require.Error(t, err)
	assert.ErrorIs(t, err, framegraph.ErrPassExecutionFailed)

	// The acquired image is still released so the next frame can proceed.
	assert.Equal(t, 1, backend.presented)
	assert.Equal(t, 0, backend.submitted)
}

func TestResizeReconfiguresSurface(t *testing.T) {
	mgr, _, _ := testScene(t)
	backend := &mockBackend{}
	r := NewRenderer(backend, mgr, bindless.NewUploadQueue(), collector.NewCollector(mgr), WithInitialSize(800, 600))

	require.NoError(t, r.Resize(1920, 1080))
	assert.Equal(t, [][2]int{{1920, 1080}}, backend.configured)
}

func TestUploadMeshUnknownID(t *testing.T) {
	mgr, _, _ := testScene(t)
	r := NewRenderer(&mockBackend{}, mgr, bindless.NewUploadQueue(), collector.NewCollector(mgr))

	err := r.UploadMesh(common.MeshID(999), nil, nil)
	assert.ErrorContains(t, err, "unknown mesh")
}
