package scenegraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/scenegraph"
)

func TestAddNodeInvalidParent(t *testing.T) {
	g := scenegraph.NewGraph()

	_, err := g.AddNode(scenegraph.NodeID(12345))
	require.ErrorIs(t, err, scenegraph.ErrInvalidParent)

	id, err := g.AddNode(scenegraph.NodeNone)
	require.NoError(t, err)
	assert.True(t, g.Contains(id))
	assert.Equal(t, 1, g.Count())
}

func TestRemoveNodeIsTerminal(t *testing.T) {
	g := scenegraph.NewGraph()
	id, err := g.AddNode(scenegraph.NodeNone)
	require.NoError(t, err)

	require.NoError(t, g.RemoveNode(id))
	assert.False(t, g.Contains(id))

	// A second removal of the same id must report NotFound, not silently succeed.
	err = g.RemoveNode(id)
	require.ErrorIs(t, err, scenegraph.ErrNotFound)
}

func TestRemoveNodeCascades(t *testing.T) {
	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	a, _ := g.AddNode(root)
	b, _ := g.AddNode(a)
	c, _ := g.AddNode(b)
	sibling, _ := g.AddNode(root)

	require.NoError(t, g.RemoveNode(a))

	assert.False(t, g.Contains(a))
	assert.False(t, g.Contains(b))
	assert.False(t, g.Contains(c))
	assert.True(t, g.Contains(root))
	assert.True(t, g.Contains(sibling))
	assert.Equal(t, 2, g.Count())
	assert.Equal(t, []scenegraph.NodeID{sibling}, g.Children(root))
}

func TestRemoveNodeInvokesReleaseHook(t *testing.T) {
	released := map[scenegraph.NodeID][]scenegraph.ComponentKind{}
	g := scenegraph.NewGraph(
		scenegraph.WithComponentReleaseFunc(func(id scenegraph.NodeID, c scenegraph.Component) {
			released[id] = append(released[id], c.ComponentKind())
		}),
	)

	root, _ := g.AddNode(scenegraph.NodeNone)
	child, _ := g.AddNode(root)
	keep, _ := g.AddNode(scenegraph.NodeNone)

	require.NoError(t, g.SetComponent(root, scenegraph.MeshRef{Mesh: 1}))
	require.NoError(t, g.SetComponent(child, scenegraph.MeshRef{Mesh: 2}))
	require.NoError(t, g.SetComponent(child, scenegraph.MaterialOverride{Material: 3}))
	require.NoError(t, g.SetComponent(keep, scenegraph.MeshRef{Mesh: 4}))

	require.NoError(t, g.RemoveNode(root))

	assert.ElementsMatch(t, []scenegraph.ComponentKind{scenegraph.KindMeshRef}, released[root])
	assert.ElementsMatch(t,
		[]scenegraph.ComponentKind{scenegraph.KindMeshRef, scenegraph.KindMaterialOverride},
		released[child])
	// Nodes outside the removed subtree are untouched.
	assert.NotContains(t, released, keep)
}

func TestReparentCycleDetected(t *testing.T) {
	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	a, _ := g.AddNode(root)
	b, _ := g.AddNode(a)

	// Parenting a node under its own descendant (or itself) must fail and
	// leave the graph unchanged.
	for _, target := range []scenegraph.NodeID{a, b} {
		err := g.Reparent(a, target)
		require.ErrorIs(t, err, scenegraph.ErrCycleDetected)

		parent, ok := g.Parent(a)
		require.True(t, ok)
		assert.Equal(t, root, parent)
		assert.Equal(t, []scenegraph.NodeID{b}, g.Children(a))
	}
}

func TestReparentToRootAndBack(t *testing.T) {
	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	a, _ := g.AddNode(root)

	require.NoError(t, g.Reparent(a, scenegraph.NodeNone))
	parent, ok := g.Parent(a)
	require.True(t, ok)
	assert.Equal(t, scenegraph.NodeNone, parent)
	assert.Contains(t, g.Roots(), a)

	require.NoError(t, g.Reparent(a, root))
	assert.NotContains(t, g.Roots(), a)
	assert.Equal(t, []scenegraph.NodeID{a}, g.Children(root))
}

func TestForestInvariantUnderOperationSequence(t *testing.T) {
	g := scenegraph.NewGraph()

	var ids []scenegraph.NodeID
	root, _ := g.AddNode(scenegraph.NodeNone)
	ids = append(ids, root)
	for i := 0; i < 20; i++ {
		parent := ids[i%len(ids)]
		id, err := g.AddNode(parent)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, g.Reparent(ids[5], ids[1]))
	require.NoError(t, g.Reparent(ids[9], scenegraph.NodeNone))
	require.NoError(t, g.RemoveNode(ids[3]))

	// Every live node must be reachable exactly once from the root set.
	seen := map[scenegraph.NodeID]int{}
	for id := range g.Traverse(scenegraph.NodeNone) {
		seen[id]++
	}
	assert.Len(t, seen, g.Count())
	for id, n := range seen {
		assert.Equal(t, 1, n, "node %d visited %d times", id, n)
	}
}

func TestStaleIDAfterSlotReuse(t *testing.T) {
	g := scenegraph.NewGraph()
	old, _ := g.AddNode(scenegraph.NodeNone)
	require.NoError(t, g.RemoveNode(old))

	// The freed slot is reused with a bumped generation; the old id stays dead.
	fresh, err := g.AddNode(scenegraph.NodeNone)
	require.NoError(t, err)
	assert.Equal(t, old.Index(), fresh.Index())
	assert.NotEqual(t, old.Generation(), fresh.Generation())

	assert.False(t, g.Contains(old))
	assert.True(t, g.Contains(fresh))
	assert.ErrorIs(t, g.SetName(old, "ghost"), scenegraph.ErrNotFound)
}

func TestTraversePreOrderAndRestartable(t *testing.T) {
	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	a, _ := g.AddNode(root)
	a1, _ := g.AddNode(a)
	a2, _ := g.AddNode(a)
	b, _ := g.AddNode(root)

	want := []scenegraph.NodeID{root, a, a1, a2, b}

	collect := func() []scenegraph.NodeID {
		var got []scenegraph.NodeID
		for id := range g.Traverse(root) {
			got = append(got, id)
		}
		return got
	}

	assert.Equal(t, want, collect())
	// Each Traverse call yields a fresh walk.
	assert.Equal(t, want, collect())

	// Early break must not poison later walks.
	for range g.Traverse(root) {
		break
	}
	assert.Equal(t, want, collect())
}

func TestComponentsOnePerKind(t *testing.T) {
	g := scenegraph.NewGraph()
	id, _ := g.AddNode(scenegraph.NodeNone)

	require.NoError(t, g.SetComponent(id, scenegraph.MeshRef{Mesh: 7}))
	require.NoError(t, g.SetComponent(id, scenegraph.MeshRef{Mesh: 9}))

	ref, ok := scenegraph.ComponentAs[scenegraph.MeshRef](g, id, scenegraph.KindMeshRef)
	require.True(t, ok)
	assert.Equal(t, common.MeshID(9), ref.Mesh)

	_, ok = g.Component(id, scenegraph.KindLight)
	assert.False(t, ok)

	require.NoError(t, g.RemoveComponent(id, scenegraph.KindMeshRef))
	_, ok = g.Component(id, scenegraph.KindMeshRef)
	assert.False(t, ok)
}

func TestWorldTransformComposition(t *testing.T) {
	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	mid, _ := g.AddNode(root)
	leaf, _ := g.AddNode(mid)

	tr := scenegraph.NewTransform()
	tr.Translation = [3]float32{1, 0, 0}
	require.NoError(t, g.SetComponent(root, tr))

	tr2 := scenegraph.NewTransform()
	tr2.Translation = [3]float32{0, 2, 0}
	require.NoError(t, g.SetComponent(leaf, tr2))

	// mid has no Transform component and must contribute identity.
	world, err := g.WorldTransform(leaf)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, world[12], 1e-6)
	assert.InDelta(t, 2.0, world[13], 1e-6)
	assert.InDelta(t, 0.0, world[14], 1e-6)

	_, err = g.WorldTransform(scenegraph.NodeID(999))
	assert.ErrorIs(t, err, scenegraph.ErrNotFound)
}

func TestWorldTransformScaleChain(t *testing.T) {
	g := scenegraph.NewGraph()
	root, _ := g.AddNode(scenegraph.NodeNone)
	leaf, _ := g.AddNode(root)

	tr := scenegraph.NewTransform()
	tr.Scale = [3]float32{2, 2, 2}
	require.NoError(t, g.SetComponent(root, tr))

	tr2 := scenegraph.NewTransform()
	tr2.Translation = [3]float32{1, 0, 0}
	require.NoError(t, g.SetComponent(leaf, tr2))

	// Parent scale applies to the child translation: leaf lands at x=2.
	world, err := g.WorldTransform(leaf)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, world[12], 1e-6)
	assert.InDelta(t, 2.0, world[0], 1e-6)
}
