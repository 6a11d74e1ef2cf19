package bindless

import (
	"github.com/lumen3d/lumen/common"
)

// MaterialParams are the shading parameters of a material record, laid out to
// match the GPU-side material buffer entry.
type MaterialParams struct {
	// BaseColor is the albedo/diffuse color (RGBA).
	BaseColor [4]float32

	// Metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic float32

	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32
}

// Material is one record of the flat material table: shading parameters plus
// a fixed-width array of bindless texture slots, one per texture channel.
// Unused channels hold SlotUnset.
//
// Primitives reference materials by common.MaterialID; swapping a texture is
// an in-place update of one channel entry (Manager.SetMaterialSlot), visible
// to every primitive referencing the material on the next frame.
type Material struct {
	// Name is the material identifier from the source asset (informational only).
	Name string

	// Params holds the shading parameters.
	Params MaterialParams

	// Slots maps each texture channel to a bindless texture slot.
	Slots [common.TextureChannelCount]TextureSlot
}

// NewMaterial returns a material with default parameters (opaque white,
// dielectric, fully rough) and every channel unset.
func NewMaterial(name string) Material {
	m := Material{
		Name: name,
		Params: MaterialParams{
			BaseColor: [4]float32{1, 1, 1, 1},
			Metallic:  0.0,
			Roughness: 1.0,
		},
	}
	for i := range m.Slots {
		m.Slots[i] = SlotUnset
	}
	return m
}
