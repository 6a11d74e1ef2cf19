// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// MeshID is a stable index into the engine's mesh table. IDs are issued by the
// mesh table when a mesh is registered and never reassigned while the mesh is
// live. Draw and lookup paths key on MeshID, never on mesh names.
type MeshID uint32

// MaterialID is a stable index into the engine's material table.
type MaterialID uint32

const (
	// MeshUnset is the sentinel value for "no mesh referenced".
	MeshUnset = MeshID(0xFFFFFFFF)

	// MaterialUnset is the sentinel value for "no material referenced".
	// A primitive carrying MaterialUnset renders with the engine default material.
	MaterialUnset = MaterialID(0xFFFFFFFF)
)

// TextureChannel identifies one texture slot of a material's fixed-width
// slot array (albedo, normal, etc.).
type TextureChannel int

const (
	// ChannelAlbedo is the base color / diffuse texture channel.
	ChannelAlbedo TextureChannel = iota

	// ChannelNormal is the tangent-space normal map channel.
	ChannelNormal

	// ChannelMetallicRoughness is the combined metallic-roughness channel
	// (glTF convention: B = metallic, G = roughness).
	ChannelMetallicRoughness

	// ChannelEmissive is the emissive color channel.
	ChannelEmissive

	// TextureChannelCount is the fixed width of a material's slot array.
	TextureChannelCount
)

// String returns the channel's conventional shader-facing name.
func (c TextureChannel) String() string {
	switch c {
	case ChannelAlbedo:
		return "albedo"
	case ChannelNormal:
		return "normal"
	case ChannelMetallicRoughness:
		return "metallic_roughness"
	case ChannelEmissive:
		return "emissive"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// TexturePixelData holds decoded RGBA pixel data pending GPU upload.
// This is what asset-import workers hand to the bindless upload queue.
type TexturePixelData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// ImportedTexture represents texture data extracted from a model file.
// For embedded textures (GLB), the Data field contains raw image bytes.
// For external textures, the Path field contains the file path.
type ImportedTexture struct {
	// Name is an identifier for this texture (e.g., "diffuse", "normal").
	Name string

	// Path is the file path for external textures (empty for embedded).
	Path string

	// Data contains raw image bytes for embedded textures (PNG/JPEG).
	Data []byte

	// MimeType indicates the image format (e.g., "image/png", "image/jpeg").
	MimeType string

	// Width is the texture width in pixels (populated after Decode).
	Width int

	// Height is the texture height in pixels (populated after Decode).
	Height int
}

// Decode decodes the texture to raw RGBA pixel data.
// Uses either embedded Data bytes or loads from Path on disk.
// Supports PNG and JPEG formats.
// Reference: https://pkg.go.dev/image
//
// Returns:
//   - TexturePixelData: raw RGBA pixel data (4 bytes per pixel, row-major order) with dimensions
//   - error: error if decoding fails
func (t *ImportedTexture) Decode() (TexturePixelData, error) {
	if t == nil {
		return TexturePixelData{}, fmt.Errorf("texture is nil")
	}

	var img image.Image
	var err error

	if len(t.Data) > 0 {
		img, _, err = image.Decode(bytes.NewReader(t.Data))
		if err != nil {
			return TexturePixelData{}, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	} else if t.Path != "" {
		file, fileErr := os.Open(t.Path)
		if fileErr != nil {
			return TexturePixelData{}, fmt.Errorf("failed to open texture file %s: %w", t.Path, fileErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return TexturePixelData{}, fmt.Errorf("failed to decode texture file %s: %w", t.Path, err)
		}
	} else {
		return TexturePixelData{}, fmt.Errorf("texture has neither data nor path")
	}

	bounds := img.Bounds()
	t.Width = bounds.Dx()
	t.Height = bounds.Dy()

	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	return TexturePixelData{
		Pixels: rgba.Pix,
		Width:  uint32(t.Width),
		Height: uint32(t.Height),
	}, nil
}

// ImportedMaterial represents material properties from an imported model file.
// Texture references are indices into the owning ImportedModel's texture list,
// or -1 when a channel is absent.
type ImportedMaterial struct {
	// Name is the material identifier.
	Name string

	// BaseColor is the albedo/diffuse color (RGBA).
	BaseColor [4]float32

	// Metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic float32

	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32

	// Textures maps each channel to an index into the model's texture list, -1 if unused.
	Textures [TextureChannelCount]int
}

// ImportedPrimitive is one draw range of an imported mesh, referencing a
// contiguous region of the mesh's vertex/index data and a material by index
// into the owning ImportedModel's material list (-1 for none).
type ImportedPrimitive struct {
	VertexOffset uint32
	IndexOffset  uint32
	IndexCount   uint32
	Material     int
}

// ImportedMesh represents mesh geometry extracted from a model file,
// flattened into single vertex/index streams plus per-primitive ranges.
type ImportedMesh struct {
	// Name is the mesh identifier from the source file (informational only).
	Name string

	// VertexData is the raw interleaved vertex stream.
	VertexData []byte

	// IndexData is the raw index stream (uint32 indices).
	IndexData []byte

	// Primitives are the draw ranges composing this mesh, in file order.
	Primitives []ImportedPrimitive

	// BoundingRadius is the maximum vertex distance from the mesh origin,
	// used for sphere-based frustum culling.
	BoundingRadius float32
}

// ImportedNode is one node of an imported scene tree. Mesh is an index into
// the owning ImportedModel's mesh list, or -1 when the node carries no mesh.
type ImportedNode struct {
	Name        string
	Translation [3]float32
	Rotation    [4]float32 // quaternion (x, y, z, w)
	Scale       [3]float32
	Mesh        int
	Children    []int
}

// ImportedModel is the complete output of an asset import: flat lists of
// textures, materials and meshes plus a node tree referencing them by index.
// It is produced by an external parser (glTF etc.) and consumed by the
// engine's importer, which translates indices into stable engine ids.
type ImportedModel struct {
	Name      string
	Textures  []ImportedTexture
	Materials []ImportedMaterial
	Meshes    []ImportedMesh
	Nodes     []ImportedNode
	Roots     []int
}
