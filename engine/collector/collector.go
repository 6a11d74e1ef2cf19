package collector

import (
	"github.com/kamstrup/intmap"
	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/bindless"
	"github.com/lumen3d/lumen/engine/camera"
	"github.com/lumen3d/lumen/engine/scenegraph"
)

// CullFunc decides whether an instance is visible before it is inserted
// into a batch. It receives the instance's resolved world matrix and
// the mesh it would draw; returning false drops the instance.
type CullFunc func(world [16]float32, mesh *bindless.Mesh) bool

// FrustumCull returns a CullFunc that tests the mesh bounding sphere,
// scaled by the largest axis of the world matrix, against the given
// frustum.
//
// Parameters:
//   - f: the world-space view frustum.
//
// Returns:
//   - CullFunc: the frustum-sphere visibility test.
func FrustumCull(f common.Frustum) CullFunc {
	return func(world [16]float32, mesh *bindless.Mesh) bool {
		center := common.TransformPoint(world[:], [3]float32{0, 0, 0})
		return f.ContainsSphere(center, mesh.BoundingRadius*maxAxisScale(world))
	}
}

// Collector walks the scene graph each frame and groups every visible
// drawable into per-(mesh, material) instance batches.
type Collector interface {
	// Collect traverses the graph once and builds the frame's instance
	// batches from scratch. Batch order is first-appearance order during
	// traversal and instances within a batch keep traversal order, so an
	// unchanged graph and camera yield byte-identical buffers across
	// calls.
	//
	// Structural graph mutation must not run concurrently with Collect;
	// the frame driver calls it from the single frame thread.
	//
	// Parameters:
	//   - graph: the scene graph to walk.
	//   - cam: the camera whose frustum drives the default cull; may be
	//     nil, in which case no culling is applied unless a CullFunc was
	//     configured.
	//
	// Returns:
	//   - []*InstanceBatch: the ordered batches for this frame.
	Collect(graph scenegraph.Graph, cam camera.Camera) []*InstanceBatch
}

type collectorImpl struct {
	resources bindless.Manager
	cull      CullFunc
	noCull    bool
}

var _ Collector = &collectorImpl{}

// NewCollector creates a collector that resolves meshes and materials
// through the given resource manager.
//
// Parameters:
//   - resources: the mesh/material tables to resolve MeshRefs against.
//   - opts: optional configuration functions.
//
// Returns:
//   - Collector: the new collector.
func NewCollector(resources bindless.Manager, opts ...CollectorOption) Collector {
	c := &collectorImpl{
		resources: resources,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *collectorImpl) Collect(graph scenegraph.Graph, cam camera.Camera) []*InstanceBatch {
	cull := c.cull
	if cull == nil && !c.noCull && cam != nil {
		cull = FrustumCull(cam.Frustum())
	}

	batches := make([]*InstanceBatch, 0, 16)
	index := intmap.New[uint64, int](64)

	type frame struct {
		id    scenegraph.NodeID
		world [16]float32
	}

	var identity [16]float32
	common.Identity(identity[:])

	roots := graph.Roots()
	stack := make([]frame, 0, max(len(roots), 64))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: roots[i], world: identity})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		world := top.world
		if tr, ok := scenegraph.ComponentAs[scenegraph.Transform](graph, top.id, scenegraph.KindTransform); ok {
			local := tr.Matrix()
			common.Mul4(world[:], top.world[:], local[:])
		}

		c.appendInstances(graph, top.id, world, cull, index, &batches)

		children := graph.Children(top.id)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], world: world})
		}
	}

	return batches
}

// appendInstances resolves a node's MeshRef, applies culling and the
// material override, and appends one instance per distinct effective
// material among the mesh's primitives.
func (c *collectorImpl) appendInstances(graph scenegraph.Graph, id scenegraph.NodeID, world [16]float32, cull CullFunc, index *intmap.Map[uint64, int], batches *[]*InstanceBatch) {
	ref, ok := scenegraph.ComponentAs[scenegraph.MeshRef](graph, id, scenegraph.KindMeshRef)
	if !ok || ref.Mesh == common.MeshUnset {
		return
	}

	mesh, ok := c.resources.Mesh(ref.Mesh)
	if !ok {
		return
	}

	if cull != nil && !cull(world, &mesh) {
		return
	}

	override := common.MaterialUnset
	if ov, ok := scenegraph.ComponentAs[scenegraph.MaterialOverride](graph, id, scenegraph.KindMaterialOverride); ok {
		override = ov.Material
	}

	// A node joins one batch per distinct effective material among its
	// primitives, so seen tracks the keys already appended for this node.
	var seen []uint64
	for _, prim := range mesh.Primitives {
		material := prim.Material
		if override != common.MaterialUnset {
			material = override
		}

		key := batchKey(ref.Mesh, material)
		if containsKey(seen, key) {
			continue
		}
		seen = append(seen, key)

		at, ok := index.Get(key)
		if !ok {
			at = len(*batches)
			index.Put(key, at)
			*batches = append(*batches, &InstanceBatch{
				Mesh:       ref.Mesh,
				Material:   material,
				Primitives: primitivesFor(mesh.Primitives, material, override),
			})
		}

		batch := (*batches)[at]
		batch.Instances = append(batch.Instances, Instance{
			World:    world,
			Material: uint32(material),
		})
		batch.Nodes = append(batch.Nodes, id)
	}
}

// primitivesFor selects the primitive ranges drawn with the given
// effective material. With an override active every primitive of the
// mesh renders with it.
func primitivesFor(prims []bindless.Primitive, material common.MaterialID, override common.MaterialID) []bindless.Primitive {
	if override != common.MaterialUnset {
		return prims
	}

	var out []bindless.Primitive
	for _, p := range prims {
		if p.Material == material {
			out = append(out, p)
		}
	}
	return out
}

func containsKey(keys []uint64, key uint64) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// maxAxisScale returns the largest basis-vector length of the matrix,
// the factor a bounding radius grows by under non-uniform scale.
func maxAxisScale(m [16]float32) float32 {
	s := common.Length3([3]float32{m[0], m[1], m[2]})
	if y := common.Length3([3]float32{m[4], m[5], m[6]}); y > s {
		s = y
	}
	if z := common.Length3([3]float32{m[8], m[9], m[10]}); z > s {
		s = z
	}
	return s
}
