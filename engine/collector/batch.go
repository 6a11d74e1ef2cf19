package collector

import (
	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/bindless"
	"github.com/lumen3d/lumen/engine/scenegraph"
)

// Instance is the per-instance GPU record uploaded to the instance
// buffer. The layout is 16 floats of column-major world matrix followed
// by the material table index, padded to a 16-byte boundary.
type Instance struct {
	World    [16]float32
	Material uint32
	_        [3]uint32
}

// InstanceBatch groups every visible instance that shares the same
// (mesh, effective material) key. Instances keep traversal order, so a
// fixed graph and camera always produce the same buffer bytes.
type InstanceBatch struct {
	Mesh     common.MeshID
	Material common.MaterialID

	// Primitives are the index ranges of the mesh drawn with this
	// batch's material.
	Primitives []bindless.Primitive

	Instances []Instance

	// Nodes records the source node per instance, index-aligned with
	// Instances. The renderer ignores it; the editor uses it to map a
	// drawn instance back to its node.
	Nodes []scenegraph.NodeID
}

// InstanceBytes returns the raw instance records for buffer upload.
//
// Returns:
//   - []byte: the instance data viewed as bytes.
func (b *InstanceBatch) InstanceBytes() []byte {
	return common.SliceToBytes(b.Instances)
}

// batchKey packs a mesh id and material id into a single map key.
func batchKey(mesh common.MeshID, material common.MaterialID) uint64 {
	return uint64(mesh)<<32 | uint64(material)
}
