package loader

import (
	"io"

	"github.com/lumen3d/lumen/common"
)

// loaderBackend abstracts a model file format behind a uniform loading
// interface. Each backend owns one format family (glTF/GLB today).
// This is internal to the loader package.
type loaderBackend interface {
	// CanLoad reports whether this backend handles the given file path,
	// judged by extension.
	//
	// Parameters:
	//   - path: the model file path
	//
	// Returns:
	//   - bool: true if this backend can load the file
	CanLoad(path string) bool

	// Load parses a model file into the engine's import payload.
	//
	// Parameters:
	//   - path: the model file path
	//
	// Returns:
	//   - *common.ImportedModel: the parsed model
	//   - error: error if parsing fails
	Load(path string) (*common.ImportedModel, error)

	// LoadReader parses a model from a reader. External resource URIs
	// cannot be resolved in this mode.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - binary: true when the stream is the format's binary container
	//   - name: fallback model name
	//
	// Returns:
	//   - *common.ImportedModel: the parsed model
	//   - error: error if parsing fails
	LoadReader(r io.Reader, binary bool, name string) (*common.ImportedModel, error)
}
