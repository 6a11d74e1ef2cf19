package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/lumen3d/lumen/common"
)

// gltfLoaderBackend is the glTF/GLB implementation of loaderBackend.
type gltfLoaderBackend struct{}

var _ loaderBackend = &gltfLoaderBackend{}

// newGLTFLoaderBackend creates the glTF/GLB loader backend.
//
// Returns:
//   - loaderBackend: the backend
func newGLTFLoaderBackend() loaderBackend {
	return &gltfLoaderBackend{}
}

func (b *gltfLoaderBackend) CanLoad(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return true
	default:
		return false
	}
}

func (b *gltfLoaderBackend) Load(path string) (*common.ImportedModel, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return gltfExtractModel(parser, path)
}

func (b *gltfLoaderBackend) LoadReader(r io.Reader, binary bool, name string) (*common.ImportedModel, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, binary); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}

	return gltfExtractModel(parser, name)
}
