package bindless

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/lumen3d/lumen/common"
)

// Primitive is one draw range of a mesh: a contiguous region of the mesh's
// vertex/index buffers plus the material it is shaded with by default.
// Material may be common.MaterialUnset.
type Primitive struct {
	VertexOffset uint32
	IndexOffset  uint32
	IndexCount   uint32
	Material     common.MaterialID
}

// Mesh is one record of the mesh table: an ordered sequence of primitives
// sharing a pair of GPU vertex/index buffers, plus a bounding radius for
// sphere-based culling. MeshRef components address meshes by the stable
// common.MeshID the table issued at registration.
type Mesh struct {
	// Name is the mesh identifier from the source asset (informational only;
	// all lookups key on MeshID).
	Name string

	// Primitives are the draw ranges composing this mesh.
	Primitives []Primitive

	// BoundingRadius is the maximum vertex distance from the mesh origin.
	BoundingRadius float32

	// VertexBuffer and IndexBuffer are the GPU buffers holding the mesh
	// geometry, set by the renderer when the mesh is uploaded. Nil until then.
	VertexBuffer *wgpu.Buffer
	IndexBuffer  *wgpu.Buffer
}
