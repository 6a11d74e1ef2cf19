package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/lumen3d/lumen/common"
)

// vertexStride is the size of one interleaved vertex: position vec3,
// normal vec3, uv vec2.
const vertexStride = 32

// gltfExtractModel converts a parsed document into the engine's
// format-neutral import payload.
func gltfExtractModel(p gltfParser, fallbackName string) (*common.ImportedModel, error) {
	doc := p.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document after parsing")
	}

	textures, err := gltfExtractTextures(p, doc)
	if err != nil {
		return nil, fmt.Errorf("texture extraction failed: %w", err)
	}

	materials := gltfExtractMaterials(doc)

	meshes := make([]common.ImportedMesh, 0, len(doc.Meshes))
	for i := range doc.Meshes {
		mesh, err := gltfExtractMesh(p, doc, i)
		if err != nil {
			return nil, fmt.Errorf("mesh %d extraction failed: %w", i, err)
		}
		meshes = append(meshes, mesh)
	}

	nodes, roots := gltfExtractNodes(doc)

	return &common.ImportedModel{
		Name:      gltfModelName(doc, fallbackName),
		Textures:  textures,
		Materials: materials,
		Meshes:    meshes,
		Nodes:     nodes,
		Roots:     roots,
	}, nil
}

// gltfExtractTextures resolves every texture's source image to either
// embedded bytes (bufferView or data URI) or an external file path.
// Output indices align with the document's texture indices, so material
// channel references carry over unchanged.
func gltfExtractTextures(p gltfParser, doc *gltfDocument) ([]common.ImportedTexture, error) {
	textures := make([]common.ImportedTexture, 0, len(doc.Textures))

	for i := range doc.Textures {
		tex := &doc.Textures[i]

		out := common.ImportedTexture{Name: tex.Name}
		if tex.Source == nil || *tex.Source < 0 || *tex.Source >= len(doc.Images) {
			textures = append(textures, out)
			continue
		}

		img := &doc.Images[*tex.Source]
		if out.Name == "" {
			out.Name = img.Name
		}
		if out.Name == "" {
			out.Name = fmt.Sprintf("texture_%d", i)
		}
		out.MimeType = img.MimeType

		switch {
		case img.BufferView != nil:
			data, err := p.ViewData(*img.BufferView)
			if err != nil {
				return nil, fmt.Errorf("image %q: %w", out.Name, err)
			}
			out.Data = data
		case strings.HasPrefix(img.URI, "data:"):
			data, err := (&gltfParserImpl{}).loadDataURI(img.URI)
			if err != nil {
				return nil, fmt.Errorf("image %q: %w", out.Name, err)
			}
			out.Data = data
		case img.URI != "":
			out.Path = filepath.Join(p.BaseDir(), img.URI)
		}

		textures = append(textures, out)
	}

	return textures, nil
}

// gltfExtractMaterials maps the PBR metallic-roughness model onto the
// engine's material channels. Untextured channels stay at -1.
func gltfExtractMaterials(doc *gltfDocument) []common.ImportedMaterial {
	materials := make([]common.ImportedMaterial, 0, len(doc.Materials))

	for i := range doc.Materials {
		mat := &doc.Materials[i]

		out := common.ImportedMaterial{
			Name:      mat.Name,
			BaseColor: [4]float32{1, 1, 1, 1},
			Metallic:  1,
			Roughness: 1,
		}
		if out.Name == "" {
			out.Name = fmt.Sprintf("material_%d", i)
		}
		for c := range out.Textures {
			out.Textures[c] = -1
		}

		if pbr := mat.PbrMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				out.BaseColor = *pbr.BaseColorFactor
			}
			if pbr.MetallicFactor != nil {
				out.Metallic = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				out.Roughness = *pbr.RoughnessFactor
			}
			if pbr.BaseColorTexture != nil {
				out.Textures[common.ChannelAlbedo] = pbr.BaseColorTexture.Index
			}
			if pbr.MetallicRoughnessTexture != nil {
				out.Textures[common.ChannelMetallicRoughness] = pbr.MetallicRoughnessTexture.Index
			}
		}
		if mat.NormalTexture != nil {
			out.Textures[common.ChannelNormal] = mat.NormalTexture.Index
		}
		if mat.EmissiveTexture != nil {
			out.Textures[common.ChannelEmissive] = mat.EmissiveTexture.Index
		}

		materials = append(materials, out)
	}

	return materials
}

// gltfExtractMesh flattens a mesh's primitives into single interleaved
// vertex and uint32 index streams. Indices are rebased onto the
// flattened vertex stream so draws never need a base-vertex offset.
// Non-triangle primitives are skipped.
func gltfExtractMesh(p gltfParser, doc *gltfDocument, meshIndex int) (common.ImportedMesh, error) {
	src := &doc.Meshes[meshIndex]

	out := common.ImportedMesh{Name: src.Name}
	if out.Name == "" {
		out.Name = fmt.Sprintf("mesh_%d", meshIndex)
	}

	var vertexBuf bytes.Buffer
	var indexBuf bytes.Buffer
	var vertexCount, indexCount uint32
	var radiusSq float32

	for pi := range src.Primitives {
		prim := &src.Primitives[pi]
		if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
			continue
		}

		posAccessor, ok := prim.Attributes["POSITION"]
		if !ok {
			return common.ImportedMesh{}, fmt.Errorf("primitive %d has no POSITION attribute", pi)
		}

		positions, err := p.ReadVec3Accessor(posAccessor)
		if err != nil {
			return common.ImportedMesh{}, fmt.Errorf("primitive %d positions: %w", pi, err)
		}

		var normals [][3]float32
		if accessor, ok := prim.Attributes["NORMAL"]; ok {
			if normals, err = p.ReadVec3Accessor(accessor); err != nil {
				return common.ImportedMesh{}, fmt.Errorf("primitive %d normals: %w", pi, err)
			}
		}

		var uvs [][2]float32
		if accessor, ok := prim.Attributes["TEXCOORD_0"]; ok {
			if uvs, err = p.ReadVec2Accessor(accessor); err != nil {
				return common.ImportedMesh{}, fmt.Errorf("primitive %d uvs: %w", pi, err)
			}
		}

		var indices []uint32
		if prim.Indices != nil {
			if indices, err = p.ReadIndicesAccessor(*prim.Indices); err != nil {
				return common.ImportedMesh{}, fmt.Errorf("primitive %d indices: %w", pi, err)
			}
		} else {
			// Non-indexed geometry: synthesize a trivial index list.
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		for i, pos := range positions {
			var v [8]float32
			v[0], v[1], v[2] = pos[0], pos[1], pos[2]
			if i < len(normals) {
				v[3], v[4], v[5] = normals[i][0], normals[i][1], normals[i][2]
			}
			if i < len(uvs) {
				v[6], v[7] = uvs[i][0], uvs[i][1]
			}
			if err := binary.Write(&vertexBuf, binary.LittleEndian, v); err != nil {
				return common.ImportedMesh{}, err
			}

			distSq := pos[0]*pos[0] + pos[1]*pos[1] + pos[2]*pos[2]
			if distSq > radiusSq {
				radiusSq = distSq
			}
		}

		rebased := make([]uint32, len(indices))
		for i, idx := range indices {
			rebased[i] = idx + vertexCount
		}
		if err := binary.Write(&indexBuf, binary.LittleEndian, rebased); err != nil {
			return common.ImportedMesh{}, err
		}

		material := -1
		if prim.Material != nil {
			material = *prim.Material
		}

		out.Primitives = append(out.Primitives, common.ImportedPrimitive{
			VertexOffset: vertexCount,
			IndexOffset:  indexCount,
			IndexCount:   uint32(len(indices)),
			Material:     material,
		})

		vertexCount += uint32(len(positions))
		indexCount += uint32(len(indices))
	}

	out.VertexData = vertexBuf.Bytes()
	out.IndexData = indexBuf.Bytes()
	out.BoundingRadius = float32(math.Sqrt(float64(radiusSq)))
	return out, nil
}

// gltfExtractNodes converts the document's node array into the import
// payload's tree. Matrix-form transforms are decomposed into TRS.
func gltfExtractNodes(doc *gltfDocument) ([]common.ImportedNode, []int) {
	nodes := make([]common.ImportedNode, 0, len(doc.Nodes))

	for i := range doc.Nodes {
		src := &doc.Nodes[i]

		out := common.ImportedNode{
			Name:        src.Name,
			Translation: [3]float32{0, 0, 0},
			Rotation:    [4]float32{0, 0, 0, 1},
			Scale:       [3]float32{1, 1, 1},
			Mesh:        -1,
			Children:    src.Children,
		}
		if out.Name == "" {
			out.Name = fmt.Sprintf("node_%d", i)
		}
		if src.Mesh != nil {
			out.Mesh = *src.Mesh
		}

		if src.Matrix != nil {
			out.Translation, out.Rotation, out.Scale = gltfDecomposeMatrix(*src.Matrix)
		} else {
			if src.Translation != nil {
				out.Translation = *src.Translation
			}
			if src.Rotation != nil {
				out.Rotation = *src.Rotation
			}
			if src.Scale != nil {
				out.Scale = *src.Scale
			}
		}

		nodes = append(nodes, out)
	}

	roots := gltfSceneRoots(doc)
	return nodes, roots
}

// gltfSceneRoots returns the root node indices of the default scene, or
// every parentless node when the document declares no scenes.
func gltfSceneRoots(doc *gltfDocument) []int {
	sceneIndex := 0
	if doc.Scene != nil {
		sceneIndex = *doc.Scene
	}
	if sceneIndex >= 0 && sceneIndex < len(doc.Scenes) {
		return doc.Scenes[sceneIndex].Nodes
	}

	hasParent := make([]bool, len(doc.Nodes))
	for i := range doc.Nodes {
		for _, child := range doc.Nodes[i].Children {
			if child >= 0 && child < len(hasParent) {
				hasParent[child] = true
			}
		}
	}

	var roots []int
	for i := range doc.Nodes {
		if !hasParent[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// gltfDecomposeMatrix splits a column-major affine matrix into TRS.
// Assumes no shear, which holds for all exporters in practice.
func gltfDecomposeMatrix(m [16]float32) (translation [3]float32, rotation [4]float32, scale [3]float32) {
	translation = [3]float32{m[12], m[13], m[14]}

	scale[0] = vecLen(m[0], m[1], m[2])
	scale[1] = vecLen(m[4], m[5], m[6])
	scale[2] = vecLen(m[8], m[9], m[10])

	// Negative determinant means one axis is mirrored.
	det := m[0]*(m[5]*m[10]-m[6]*m[9]) - m[4]*(m[1]*m[10]-m[2]*m[9]) + m[8]*(m[1]*m[6]-m[2]*m[5])
	if det < 0 {
		scale[0] = -scale[0]
	}

	var r [9]float32
	for c := 0; c < 3; c++ {
		s := scale[c]
		if s == 0 {
			s = 1
		}
		r[c*3+0] = m[c*4+0] / s
		r[c*3+1] = m[c*4+1] / s
		r[c*3+2] = m[c*4+2] / s
	}

	rotation = gltfQuatFromRotation(r)
	return translation, rotation, scale
}

// gltfQuatFromRotation converts a column-major 3x3 rotation to a
// quaternion (x, y, z, w) using Shepperd's method.
func gltfQuatFromRotation(r [9]float32) [4]float32 {
	trace := r[0] + r[4] + r[8]

	var q [4]float32
	switch {
	case trace > 0:
		s := float32(math.Sqrt(float64(trace+1))) * 2
		q[3] = s / 4
		q[0] = (r[5] - r[7]) / s
		q[1] = (r[6] - r[2]) / s
		q[2] = (r[1] - r[3]) / s
	case r[0] > r[4] && r[0] > r[8]:
		s := float32(math.Sqrt(float64(1+r[0]-r[4]-r[8]))) * 2
		q[3] = (r[5] - r[7]) / s
		q[0] = s / 4
		q[1] = (r[3] + r[1]) / s
		q[2] = (r[6] + r[2]) / s
	case r[4] > r[8]:
		s := float32(math.Sqrt(float64(1+r[4]-r[0]-r[8]))) * 2
		q[3] = (r[6] - r[2]) / s
		q[0] = (r[3] + r[1]) / s
		q[1] = s / 4
		q[2] = (r[7] + r[5]) / s
	default:
		s := float32(math.Sqrt(float64(1+r[8]-r[0]-r[4]))) * 2
		q[3] = (r[1] - r[3]) / s
		q[0] = (r[6] + r[2]) / s
		q[1] = (r[7] + r[5]) / s
		q[2] = s / 4
	}
	return q
}

// gltfModelName derives a model name from the default scene or a file
// path fallback.
func gltfModelName(doc *gltfDocument, fallbackPath string) string {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}

	if fallbackPath != "" {
		base := filepath.Base(fallbackPath)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}

	return "unnamed_model"
}

func vecLen(x, y, z float32) float32 {
	return float32(math.Sqrt(float64(x*x + y*y + z*z)))
}
