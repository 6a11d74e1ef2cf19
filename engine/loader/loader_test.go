package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen3d/lumen/common"
)

// triangleBuffer packs positions, normals, uvs and uint16 indices for a
// single triangle into one glTF buffer.
func triangleBuffer(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	positions := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 2, 0}}
	normals := [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	uvs := [][2]float32{{0, 0}, {1, 0}, {0, 1}}
	indices := []uint16{0, 1, 2}

	require.NoError(t, binary.Write(&buf, binary.LittleEndian, positions))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, normals))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uvs))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, indices))
	return buf.Bytes()
}

// triangleDocument builds a one-triangle document: a red material, a
// two-node tree and a default scene. bufferURI controls whether the
// binary payload is embedded as a data URI (for .gltf) or left to the
// GLB binary chunk.
func triangleDocument(t *testing.T, bufferURI bool) ([]byte, []byte) {
	t.Helper()

	bin := triangleBuffer(t)

	intPtr := func(v int) *int { return &v }
	f32Ptr := func(v float32) *float32 { return &v }

	doc := gltfDocument{
		Asset: gltfAsset{Version: "2.0"},
		Scene: intPtr(0),
		Scenes: []gltfScene{
			{Name: "demo", Nodes: []int{0}},
		},
		Nodes: []gltfNode{
			{Name: "root", Children: []int{1}},
			{Name: "tri", Mesh: intPtr(0), Translation: &[3]float32{0, 2, 0}},
		},
		Meshes: []gltfMesh{
			{
				Name: "triangle",
				Primitives: []gltfPrimitive{
					{
						Attributes: map[string]int{"POSITION": 0, "NORMAL": 1, "TEXCOORD_0": 2},
						Indices:    intPtr(3),
						Material:   intPtr(0),
					},
				},
			},
		},
		Accessors: []gltfAccessor{
			{BufferView: intPtr(0), ComponentType: gltfComponentTypeFloat, Count: 3, Type: gltfAccessorTypeVec3},
			{BufferView: intPtr(1), ComponentType: gltfComponentTypeFloat, Count: 3, Type: gltfAccessorTypeVec3},
			{BufferView: intPtr(2), ComponentType: gltfComponentTypeFloat, Count: 3, Type: gltfAccessorTypeVec2},
			{BufferView: intPtr(3), ComponentType: gltfComponentTypeUnsignedShort, Count: 3, Type: gltfAccessorTypeScalar},
		},
		BufferViews: []gltfBufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: 36},
			{Buffer: 0, ByteOffset: 36, ByteLength: 36},
			{Buffer: 0, ByteOffset: 72, ByteLength: 24},
			{Buffer: 0, ByteOffset: 96, ByteLength: 6},
		},
		Buffers: []gltfBuffer{
			{ByteLength: len(bin)},
		},
		Materials: []gltfMaterial{
			{
				Name: "red",
				PbrMetallicRoughness: &gltfPbrMetallicRoughness{
					BaseColorFactor: &[4]float32{1, 0, 0, 1},
					MetallicFactor:  f32Ptr(0.2),
					RoughnessFactor: f32Ptr(0.8),
				},
			},
		},
	}

	if bufferURI {
		doc.Buffers[0].URI = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin)
	}

	jsonData, err := json.Marshal(&doc)
	require.NoError(t, err)
	return jsonData, bin
}

// buildGLB wraps a JSON document and binary payload in a GLB container.
func buildGLB(t *testing.T, jsonData, bin []byte) []byte {
	t.Helper()

	for len(jsonData)%4 != 0 {
		jsonData = append(jsonData, ' ')
	}
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	var out bytes.Buffer
	total := 12 + 8 + len(jsonData) + 8 + len(bin)
	require.NoError(t, binary.Write(&out, binary.LittleEndian, gltfGLBHeader{
		Magic:   gltfGLBMagic,
		Version: gltfGLBVersion,
		Length:  uint32(total),
	}))
	require.NoError(t, binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{
		ChunkLength: uint32(len(jsonData)),
		ChunkType:   gltfGLBChunkJSON,
	}))
	out.Write(jsonData)
	require.NoError(t, binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{
		ChunkLength: uint32(len(bin)),
		ChunkType:   gltfGLBChunkBIN,
	}))
	out.Write(bin)
	return out.Bytes()
}

func TestLoadReaderGLTF(t *testing.T) {
	jsonData, _ := triangleDocument(t, true)

	l := NewLoader()
	model, err := l.LoadReader(bytes.NewReader(jsonData), false, "fallback")
	require.NoError(t, err)

	assert.Equal(t, "demo", model.Name)

	require.Len(t, model.Meshes, 1)
	mesh := model.Meshes[0]
	assert.Equal(t, "triangle", mesh.Name)
	assert.Len(t, mesh.VertexData, 3*vertexStride)
	assert.Len(t, mesh.IndexData, 3*4)
	assert.InDelta(t, 2.0, mesh.BoundingRadius, 1e-6)

	require.Len(t, mesh.Primitives, 1)
	prim := mesh.Primitives[0]
	assert.Equal(t, uint32(3), prim.IndexCount)
	assert.Equal(t, uint32(0), prim.IndexOffset)
	assert.Equal(t, 0, prim.Material)

	// Second vertex: position (1,0,0), normal (0,0,1), uv (1,0).
	var v [8]float32
	require.NoError(t, binary.Read(bytes.NewReader(mesh.VertexData[vertexStride:2*vertexStride]), binary.LittleEndian, &v))
	assert.Equal(t, [8]float32{1, 0, 0, 0, 0, 1, 1, 0}, v)

	require.Len(t, model.Materials, 1)
	mat := model.Materials[0]
	assert.Equal(t, "red", mat.Name)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, mat.BaseColor)
	assert.InDelta(t, 0.2, mat.Metallic, 1e-6)
	assert.Equal(t, -1, mat.Textures[common.ChannelAlbedo])

	require.Len(t, model.Nodes, 2)
	assert.Equal(t, "root", model.Nodes[0].Name)
	assert.Equal(t, []int{1}, model.Nodes[0].Children)
	assert.Equal(t, -1, model.Nodes[0].Mesh)
	assert.Equal(t, "tri", model.Nodes[1].Name)
	assert.Equal(t, 0, model.Nodes[1].Mesh)
	assert.Equal(t, [3]float32{0, 2, 0}, model.Nodes[1].Translation)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, model.Nodes[1].Rotation)
	assert.Equal(t, [3]float32{1, 1, 1}, model.Nodes[1].Scale)
	assert.Equal(t, []int{0}, model.Roots)
}

func TestLoadReaderGLB(t *testing.T) {
	jsonData, bin := triangleDocument(t, false)
	glb := buildGLB(t, jsonData, bin)

	l := NewLoader()
	model, err := l.LoadReader(bytes.NewReader(glb), true, "fox.glb")
	require.NoError(t, err)

	require.Len(t, model.Meshes, 1)
	assert.Len(t, model.Meshes[0].VertexData, 3*vertexStride)
	assert.Len(t, model.Meshes[0].IndexData, 3*4)
}

func TestLoadCachesByPath(t *testing.T) {
	jsonData, _ := triangleDocument(t, true)
	path := filepath.Join(t.TempDir(), "tri.gltf")
	require.NoError(t, os.WriteFile(path, jsonData, 0o644))

	l := NewLoader()
	first, err := l.Load(path)
	require.NoError(t, err)
	second, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	l.Evict(path)
	third, err := l.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestLoadWithoutCache(t *testing.T) {
	jsonData, _ := triangleDocument(t, true)
	path := filepath.Join(t.TempDir(), "tri.gltf")
	require.NoError(t, os.WriteFile(path, jsonData, 0o644))

	l := NewLoader(WithoutCache())
	first, err := l.Load(path)
	require.NoError(t, err)
	second, err := l.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	l := NewLoader()
	_, err := l.Load("model.obj")
	assert.ErrorContains(t, err, "unsupported model format")
}

func TestLoadRejectsBadVersion(t *testing.T) {
	l := NewLoader()
	_, err := l.LoadReader(bytes.NewReader([]byte(`{"asset":{"version":"1.0"}}`)), false, "")
	assert.ErrorIs(t, err, errInvalidGLTFVersion)
}

func TestDecomposeMatrixTRS(t *testing.T) {
	// Scale 2, rotate 90 degrees about Z, translate (1,2,3).
	// Column-major: col0=(0,2,0), col1=(-2,0,0), col2=(0,0,2).
	m := [16]float32{
		0, 2, 0, 0,
		-2, 0, 0, 0,
		0, 0, 2, 0,
		1, 2, 3, 1,
	}

	translation, rotation, scale := gltfDecomposeMatrix(m)
	assert.Equal(t, [3]float32{1, 2, 3}, translation)
	assert.InDelta(t, 2, scale[0], 1e-5)
	assert.InDelta(t, 2, scale[1], 1e-5)
	assert.InDelta(t, 2, scale[2], 1e-5)

	half := float32(math.Sqrt2 / 2)
	assert.InDelta(t, 0, rotation[0], 1e-5)
	assert.InDelta(t, 0, rotation[1], 1e-5)
	assert.InDelta(t, half, rotation[2], 1e-5)
	assert.InDelta(t, half, rotation[3], 1e-5)
}
