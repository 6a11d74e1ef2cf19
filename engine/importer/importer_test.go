package importer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/bindless"
	"github.com/lumen3d/lumen/engine/scenegraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 50), G: uint8(y * 50), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// drainUploads plays the frame boundary's role: create a view per
// decoded texture and allocate its slot.
func drainUploads(q *bindless.UploadQueue, mgr bindless.Manager) {
	for _, pt := range q.Drain() {
		slot, err := mgr.AllocateTexture(new(wgpu.TextureView))
		if pt.OnAllocated != nil {
			pt.OnAllocated(slot, err)
		}
	}
}

func testModel(t *testing.T) *common.ImportedModel {
	t.Helper()

	noTextures := [common.TextureChannelCount]int{-1, -1, -1, -1}

	mat0 := noTextures
	mat0[common.ChannelAlbedo] = 0
	mat0[common.ChannelNormal] = 1

	mat1 := noTextures
	mat1[common.ChannelAlbedo] = 0

	return &common.ImportedModel{
		Name: "lantern",
		Textures: []common.ImportedTexture{
			{Name: "albedo", Data: pngBytes(t, 4, 4), MimeType: "image/png"},
			{Name: "normal", Data: pngBytes(t, 2, 2), MimeType: "image/png"},
			{Name: "unused", Data: pngBytes(t, 2, 2), MimeType: "image/png"},
		},
		Materials: []common.ImportedMaterial{
			{Name: "body", BaseColor: [4]float32{1, 1, 1, 1}, Roughness: 0.8, Textures: mat0},
			{Name: "glass", BaseColor: [4]float32{0.8, 0.9, 1, 0.5}, Roughness: 0.1, Textures: mat1},
		},
		Meshes: []common.ImportedMesh{
			{
				Name: "body_mesh",
				Primitives: []common.ImportedPrimitive{
					{IndexCount: 300, Material: 0},
					{IndexOffset: 300, IndexCount: 60, Material: 1},
				},
				BoundingRadius: 1.5,
			},
		},
		Nodes: []common.ImportedNode{
			{Name: "lantern_root", Scale: [3]float32{1, 1, 1}, Rotation: [4]float32{0, 0, 0, 1}, Mesh: -1, Children: []int{1}},
			{Name: "body", Translation: [3]float32{0, 2, 0}, Scale: [3]float32{1, 1, 1}, Rotation: [4]float32{0, 0, 0, 1}, Mesh: 0},
		},
		Roots: []int{0},
	}
}

func TestImportCommitAtFrameBoundary(t *testing.T) {
	mgr := bindless.NewManager()
	queue := bindless.NewUploadQueue()
	imp := NewImporter(mgr, queue, WithDecodeWorkers(2))

	g := scenegraph.NewGraph()
	model := testModel(t)

	p := imp.Begin(model)

	// Commit must refuse until the frame boundary drained the uploads.
	_, err := imp.Commit(p, g, scenegraph.NodeNone)
	assert.ErrorIs(t, err, ErrImportPending)

	require.Eventually(t, func() bool { return queue.Len() == 3 }, 2*time.Second, 5*time.Millisecond,
		"decode workers should enqueue all textures")
	assert.False(t, p.Ready(), "slots are only assigned at the drain")

	drainUploads(queue, mgr)
	require.True(t, p.Ready())
	assert.Empty(t, p.Errors())

	res, err := imp.Commit(p, g, scenegraph.NodeNone)
	require.NoError(t, err)

	// The unused texture was freed at commit; albedo and normal remain.
	assert.Equal(t, 2, mgr.LiveSlots())

	require.Len(t, res.Materials, 2)
	body, ok := mgr.Material(res.Materials[0])
	require.True(t, ok)
	assert.Equal(t, "body", body.Name)
	assert.False(t, body.Slots[common.ChannelAlbedo].IsUnset())
	assert.False(t, body.Slots[common.ChannelNormal].IsUnset())
	assert.True(t, body.Slots[common.ChannelMetallicRoughness].IsUnset())

	glass, ok := mgr.Material(res.Materials[1])
	require.True(t, ok)
	assert.Equal(t, body.Slots[common.ChannelAlbedo], glass.Slots[common.ChannelAlbedo],
		"both materials share the same albedo slot")

	require.Len(t, res.Meshes, 1)
	mesh, ok := mgr.Mesh(res.Meshes[0])
	require.True(t, ok)
	require.Len(t, mesh.Primitives, 2)
	assert.Equal(t, res.Materials[0], mesh.Primitives[0].Material)
	assert.Equal(t, res.Materials[1], mesh.Primitives[1].Material)
	assert.Equal(t, float32(1.5), mesh.BoundingRadius)

	// Node tree: container -> lantern_root -> body (with the MeshRef).
	assert.Equal(t, "lantern", g.Name(res.Root))
	roots := g.Children(res.Root)
	require.Len(t, roots, 1)
	assert.Equal(t, "lantern_root", g.Name(roots[0]))

	children := g.Children(roots[0])
	require.Len(t, children, 1)
	assert.Equal(t, "body", g.Name(children[0]))

	ref, ok := scenegraph.ComponentAs[scenegraph.MeshRef](g, children[0], scenegraph.KindMeshRef)
	require.True(t, ok)
	assert.Equal(t, res.Meshes[0], ref.Mesh)

	tr, ok := scenegraph.ComponentAs[scenegraph.Transform](g, children[0], scenegraph.KindTransform)
	require.True(t, ok)
	assert.Equal(t, [3]float32{0, 2, 0}, tr.Translation)
}

func TestImportSharedTextureSurvivesOneMaterialFree(t *testing.T) {
	mgr := bindless.NewManager()
	queue := bindless.NewUploadQueue()
	imp := NewImporter(mgr, queue)

	g := scenegraph.NewGraph()
	p := imp.Begin(testModel(t))

	require.Eventually(t, func() bool { return queue.Len() == 3 }, 2*time.Second, 5*time.Millisecond)
	drainUploads(queue, mgr)

	res, err := imp.Commit(p, g, scenegraph.NodeNone)
	require.NoError(t, err)

	body, _ := mgr.Material(res.Materials[0])
	albedo := body.Slots[common.ChannelAlbedo]

	// Two materials hold the albedo: one release keeps it live, the
	// second frees it.
	freed, err := mgr.Release(albedo)
	require.NoError(t, err)
	assert.False(t, freed)

	freed, err = mgr.Release(albedo)
	require.NoError(t, err)
	assert.True(t, freed)
}

func TestImportDoubleCommitRejected(t *testing.T) {
	mgr := bindless.NewManager()
	queue := bindless.NewUploadQueue()
	imp := NewImporter(mgr, queue)

	g := scenegraph.NewGraph()
	model := &common.ImportedModel{Name: "empty"}

	p := imp.Begin(model)
	require.True(t, p.Ready(), "a model without textures is ready immediately")

	_, err := imp.Commit(p, g, scenegraph.NodeNone)
	require.NoError(t, err)

	_, err = imp.Commit(p, g, scenegraph.NodeNone)
	assert.ErrorIs(t, err, ErrAlreadyCommitted)
}

func TestImportDecodeFailureCommitsUnsetChannel(t *testing.T) {
	mgr := bindless.NewManager()
	queue := bindless.NewUploadQueue()
	imp := NewImporter(mgr, queue)

	g := scenegraph.NewGraph()

	textures := [common.TextureChannelCount]int{0, -1, -1, -1}
	model := &common.ImportedModel{
		Name: "broken",
		Textures: []common.ImportedTexture{
			{Name: "corrupt", Data: []byte("not an image"), MimeType: "image/png"},
		},
		Materials: []common.ImportedMaterial{
			{Name: "mat", BaseColor: [4]float32{1, 1, 1, 1}, Textures: textures},
		},
	}

	p := imp.Begin(model)
	require.Eventually(t, p.Ready, 2*time.Second, 5*time.Millisecond,
		"a decode failure resolves the texture without a drain")

	errs := p.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "corrupt")

	res, err := imp.Commit(p, g, scenegraph.NodeNone)
	require.NoError(t, err)

	mat, ok := mgr.Material(res.Materials[0])
	require.True(t, ok)
	assert.True(t, mat.Slots[common.ChannelAlbedo].IsUnset())
	assert.Equal(t, 0, mgr.LiveSlots())
}
