package collector

import (
	"bytes"
	"testing"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/bindless"
	"github.com/lumen3d/lumen/engine/camera"
	"github.com/lumen3d/lumen/engine/scenegraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResources(t *testing.T) (bindless.Manager, common.MeshID, common.MaterialID, common.MaterialID) {
	t.Helper()

	mgr := bindless.NewManager()
	mat1 := mgr.AddMaterial(bindless.NewMaterial("stone"))
	mat2 := mgr.AddMaterial(bindless.NewMaterial("gold"))
	mesh := mgr.RegisterMesh(bindless.Mesh{
		Name:           "cube",
		Primitives:     []bindless.Primitive{{IndexCount: 36, Material: mat1}},
		BoundingRadius: 1,
	})
	return mgr, mesh, mat1, mat2
}

func translated(x, y, z float32) scenegraph.Transform {
	tr := scenegraph.NewTransform()
	tr.Translation = [3]float32{x, y, z}
	return tr
}

func TestCollectOverrideSplitsBatches(t *testing.T) {
	mgr, mesh, mat1, mat2 := testResources(t)

	g := scenegraph.NewGraph()
	root, err := g.AddNode(scenegraph.NodeNone)
	require.NoError(t, err)

	a, err := g.AddNode(root)
	require.NoError(t, err)
	require.NoError(t, g.SetComponent(a, translated(1, 0, 0)))
	require.NoError(t, g.SetComponent(a, scenegraph.MeshRef{Mesh: mesh}))

	b, err := g.AddNode(root)
	require.NoError(t, err)
	require.NoError(t, g.SetComponent(b, translated(2, 0, 0)))
	require.NoError(t, g.SetComponent(b, scenegraph.MeshRef{Mesh: mesh}))
	require.NoError(t, g.SetComponent(b, scenegraph.MaterialOverride{Material: mat2}))

	c := NewCollector(mgr, WithoutCulling())
	batches := c.Collect(g, nil)

	require.Len(t, batches, 2)

	assert.Equal(t, mesh, batches[0].Mesh)
	assert.Equal(t, mat1, batches[0].Material)
	require.Len(t, batches[0].Instances, 1)
	assert.Equal(t, float32(1), batches[0].Instances[0].World[12])
	assert.Equal(t, []scenegraph.NodeID{a}, batches[0].Nodes)

	assert.Equal(t, mesh, batches[1].Mesh)
	assert.Equal(t, mat2, batches[1].Material)
	require.Len(t, batches[1].Instances, 1)
	assert.Equal(t, float32(2), batches[1].Instances[0].World[12])
	assert.Equal(t, []scenegraph.NodeID{b}, batches[1].Nodes)
}

func TestCollectSharedMaterialMergesInstances(t *testing.T) {
	mgr, mesh, mat1, _ := testResources(t)

	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)

	var nodes []scenegraph.NodeID
	for i := 0; i < 3; i++ {
		n, err := g.AddNode(root)
		require.NoError(t, err)
		require.NoError(t, g.SetComponent(n, translated(float32(i), 0, 0)))
		require.NoError(t, g.SetComponent(n, scenegraph.MeshRef{Mesh: mesh}))
		nodes = append(nodes, n)
	}

	c := NewCollector(mgr, WithoutCulling())
	batches := c.Collect(g, nil)

	require.Len(t, batches, 1)
	assert.Equal(t, mat1, batches[0].Material)
	require.Len(t, batches[0].Instances, 3)

	// Instances keep traversal order.
	for i, inst := range batches[0].Instances {
		assert.Equal(t, float32(i), inst.World[12])
	}
	assert.Equal(t, nodes, batches[0].Nodes)
}

func TestCollectDeterministicBytes(t *testing.T) {
	mgr, mesh, _, mat2 := testResources(t)

	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	for i := 0; i < 8; i++ {
		n, _ := g.AddNode(root)
		require.NoError(t, g.SetComponent(n, translated(float32(i), float32(i)*2, 0)))
		require.NoError(t, g.SetComponent(n, scenegraph.MeshRef{Mesh: mesh}))
		if i%3 == 0 {
			require.NoError(t, g.SetComponent(n, scenegraph.MaterialOverride{Material: mat2}))
		}
	}

	c := NewCollector(mgr, WithoutCulling())

	first := c.Collect(g, nil)
	second := c.Collect(g, nil)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Mesh, second[i].Mesh)
		assert.Equal(t, first[i].Material, second[i].Material)
		assert.True(t, bytes.Equal(first[i].InstanceBytes(), second[i].InstanceBytes()),
			"batch %d instance bytes must be identical across calls", i)
	}
}

func TestCollectFrustumCullsOffscreenNodes(t *testing.T) {
	mgr, mesh, _, _ := testResources(t)

	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)

	visible, _ := g.AddNode(root)
	require.NoError(t, g.SetComponent(visible, translated(0, 0, 0)))
	require.NoError(t, g.SetComponent(visible, scenegraph.MeshRef{Mesh: mesh}))

	behind, _ := g.AddNode(root)
	require.NoError(t, g.SetComponent(behind, translated(0, 0, 100)))
	require.NoError(t, g.SetComponent(behind, scenegraph.MeshRef{Mesh: mesh}))

	cam := camera.NewCamera(
		camera.WithPosition([3]float32{0, 0, 5}),
		camera.WithTarget([3]float32{0, 0, 0}),
	)

	c := NewCollector(mgr)
	batches := c.Collect(g, cam)

	require.Len(t, batches, 1)
	require.Len(t, batches[0].Instances, 1)
	assert.Equal(t, []scenegraph.NodeID{visible}, batches[0].Nodes)
}

func TestCollectCustomCullFunc(t *testing.T) {
	mgr, mesh, _, _ := testResources(t)

	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	n, _ := g.AddNode(root)
	require.NoError(t, g.SetComponent(n, scenegraph.MeshRef{Mesh: mesh}))

	dropAll := func(world [16]float32, mesh *bindless.Mesh) bool { return false }

	c := NewCollector(mgr, WithCullFunc(dropAll))
	assert.Empty(t, c.Collect(g, nil))
}

func TestCollectMultiPrimitiveMesh(t *testing.T) {
	mgr := bindless.NewManager()
	mat1 := mgr.AddMaterial(bindless.NewMaterial("body"))
	mat2 := mgr.AddMaterial(bindless.NewMaterial("trim"))
	mat3 := mgr.AddMaterial(bindless.NewMaterial("paint"))
	mesh := mgr.RegisterMesh(bindless.Mesh{
		Name: "lamp",
		Primitives: []bindless.Primitive{
			{IndexCount: 12, Material: mat1},
			{IndexOffset: 12, IndexCount: 24, Material: mat2},
		},
		BoundingRadius: 1,
	})

	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	plain, _ := g.AddNode(root)
	require.NoError(t, g.SetComponent(plain, scenegraph.MeshRef{Mesh: mesh}))

	c := NewCollector(mgr, WithoutCulling())
	batches := c.Collect(g, nil)

	// No override: one batch per primitive material, each drawing only
	// its own primitive range.
	require.Len(t, batches, 2)
	assert.Equal(t, mat1, batches[0].Material)
	require.Len(t, batches[0].Primitives, 1)
	assert.Equal(t, uint32(12), batches[0].Primitives[0].IndexCount)
	assert.Equal(t, mat2, batches[1].Material)
	require.Len(t, batches[1].Primitives, 1)
	assert.Equal(t, uint32(24), batches[1].Primitives[0].IndexCount)

	// Override: every primitive collapses into a single batch.
	require.NoError(t, g.SetComponent(plain, scenegraph.MaterialOverride{Material: mat3}))
	batches = c.Collect(g, nil)
	require.Len(t, batches, 1)
	assert.Equal(t, mat3, batches[0].Material)
	assert.Len(t, batches[0].Primitives, 2)
	require.Len(t, batches[0].Instances, 1)
	assert.Equal(t, uint32(mat3), batches[0].Instances[0].Material)
}

func TestCollectSkipsUnsetAndMissingMeshes(t *testing.T) {
	mgr, mesh, _, _ := testResources(t)

	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)

	placeholder, _ := g.AddNode(root)
	require.NoError(t, g.SetComponent(placeholder, scenegraph.MeshRef{Mesh: common.MeshUnset}))

	dangling, _ := g.AddNode(root)
	require.NoError(t, g.SetComponent(dangling, scenegraph.MeshRef{Mesh: mesh + 100}))

	empty, _ := g.AddNode(root)
	_ = empty

	c := NewCollector(mgr, WithoutCulling())
	assert.Empty(t, c.Collect(g, nil))
}

func TestCollectNestedTransformsCompose(t *testing.T) {
	mgr, mesh, _, _ := testResources(t)

	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	require.NoError(t, g.SetComponent(root, translated(10, 0, 0)))

	child, _ := g.AddNode(root)
	require.NoError(t, g.SetComponent(child, translated(0, 5, 0)))
	require.NoError(t, g.SetComponent(child, scenegraph.MeshRef{Mesh: mesh}))

	c := NewCollector(mgr, WithoutCulling())
	batches := c.Collect(g, nil)

	require.Len(t, batches, 1)
	require.Len(t, batches[0].Instances, 1)
	world := batches[0].Instances[0].World
	assert.Equal(t, float32(10), world[12])
	assert.Equal(t, float32(5), world[13])
}
