package scenegraph

import (
	"github.com/lumen3d/lumen/common"
)

// ComponentKind identifies one of the closed set of component variants a node
// may carry. A node holds at most one component of each kind. New component
// kinds are added by extending this set, not by subclassing nodes.
type ComponentKind int

const (
	// KindTransform is the local translation/rotation/scale component.
	KindTransform ComponentKind = iota

	// KindMeshRef references a mesh in the engine's mesh table.
	KindMeshRef

	// KindMaterialOverride replaces the default material of every primitive
	// rendered for this node.
	KindMaterialOverride

	// KindCamera marks a node as a camera and carries its projection parameters.
	KindCamera

	// KindLight marks a node as a light source.
	KindLight

	// KindCollisionShape opts a node into raycast picking.
	KindCollisionShape

	// KindEditorTag carries an editor-facing label with no render semantics.
	KindEditorTag

	componentKindCount
)

// Component is a typed data fragment attached to a node. Implementations are
// plain value types; the graph stores them by kind.
type Component interface {
	// ComponentKind returns the variant kind this component occupies on a node.
	ComponentKind() ComponentKind
}

// Transform is a node's local translation, rotation (quaternion x,y,z,w) and
// per-axis scale. Nodes without a Transform behave as identity.
type Transform struct {
	Translation [3]float32
	Rotation    [4]float32
	Scale       [3]float32
}

// NewTransform returns an identity transform.
func NewTransform() Transform {
	return Transform{
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	}
}

// Matrix composes the local transform into a column-major 4x4 matrix.
func (t Transform) Matrix() [16]float32 {
	var m [16]float32
	common.ComposeTRS(m[:], t.Translation, t.Rotation, t.Scale)
	return m
}

// ComponentKind implements Component.
func (Transform) ComponentKind() ComponentKind { return KindTransform }

// MeshRef attaches drawable geometry to a node by stable mesh-table id.
// common.MeshUnset is valid and means "nothing to draw yet" (e.g. a
// placeholder created before its asset finished streaming in).
type MeshRef struct {
	Mesh common.MeshID
}

// ComponentKind implements Component.
func (MeshRef) ComponentKind() ComponentKind { return KindMeshRef }

// MaterialOverride replaces the default material of all primitives drawn for
// this node. common.MaterialUnset disables the override.
type MaterialOverride struct {
	Material common.MaterialID
}

// ComponentKind implements Component.
func (MaterialOverride) ComponentKind() ComponentKind { return KindMaterialOverride }

// Camera carries projection parameters for a camera node. When Orthographic
// is false the perspective fields (FovY) apply; otherwise XMag/YMag do.
type Camera struct {
	Orthographic bool
	FovY         float32
	XMag, YMag   float32
	Near, Far    float32
}

// ComponentKind implements Component.
func (Camera) ComponentKind() ComponentKind { return KindCamera }

// LightKind enumerates the supported light source variants.
type LightKind int

const (
	LightDirectional LightKind = iota
	LightPoint
	LightSpot
)

// Light marks a node as a light source positioned by the node's world transform.
type Light struct {
	Kind      LightKind
	Color     [3]float32
	Intensity float32
	Range     float32
}

// ComponentKind implements Component.
func (Light) ComponentKind() ComponentKind { return KindLight }

// ShapeKind enumerates the collision shape variants supported by picking.
type ShapeKind int

const (
	ShapeSphere ShapeKind = iota
	ShapeBox
	ShapeCapsule
)

// CollisionShape opts a node into the picking service's raycast queries,
// independent of whether the node is rendered. The shape is expressed in the
// node's local space and transformed by its resolved world transform.
//
// Field usage by kind: Sphere uses Radius; Box uses HalfExtents; Capsule uses
// Radius and HalfHeight (segment half-length along local Y, excluding caps).
type CollisionShape struct {
	Kind        ShapeKind
	Radius      float32
	HalfExtents [3]float32
	HalfHeight  float32
}

// ComponentKind implements Component.
func (CollisionShape) ComponentKind() ComponentKind { return KindCollisionShape }

// EditorTag is an arbitrary editor-facing label (e.g. "gizmo target",
// "prefab root"). It has no render or picking semantics.
type EditorTag struct {
	Tag string
}

// ComponentKind implements Component.
func (EditorTag) ComponentKind() ComponentKind { return KindEditorTag }

// ComponentAs retrieves a node's component of the concrete type T.
// It is a typed convenience wrapper over Graph.Component.
//
// Parameters:
//   - g: the graph to query
//   - id: the node id
//   - kind: the component kind to retrieve
//
// Returns:
//   - T: the component value (zero value if absent or wrong type)
//   - bool: true if the component exists and is of type T
func ComponentAs[T Component](g Graph, id NodeID, kind ComponentKind) (T, bool) {
	var zero T
	c, ok := g.Component(id, kind)
	if !ok {
		return zero, false
	}
	v, ok := c.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
