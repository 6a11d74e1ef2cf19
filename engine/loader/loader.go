package loader

import (
	"fmt"
	"io"
	"sync"

	"github.com/lumen3d/lumen/common"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	backends []loaderBackend

	cache   map[string]*common.ImportedModel
	caching bool
}

// Loader defines the public-facing interface for parsing 3D model files
// into the engine's format-neutral import payload. It abstracts the file
// format (glTF, GLB) behind per-format backends and caches parsed models
// by path so repeated placements of the same asset parse once.
//
// Loading performs CPU-side parsing only; handing the payload to the
// engine's importer is what creates GPU resources and scene nodes.
type Loader interface {
	// Load parses the model file at the given path. Results are cached
	// by path; a second Load of the same path returns the cached payload.
	// The returned model is shared, callers must not mutate it.
	//
	// Parameters:
	//   - path: the model file path (.gltf or .glb)
	//
	// Returns:
	//   - *common.ImportedModel: the parsed model
	//   - error: unsupported format or parse failure
	Load(path string) (*common.ImportedModel, error)

	// LoadReader parses a model from a reader, bypassing the cache. Use
	// this for embedded resources or network streams. External resource
	// URIs inside the model cannot be resolved in this mode.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - binary: true when the stream is GLB
	//   - name: fallback model name
	//
	// Returns:
	//   - *common.ImportedModel: the parsed model
	//   - error: parse failure
	LoadReader(r io.Reader, binary bool, name string) (*common.ImportedModel, error)

	// Evict removes a cached model by path. The next Load re-parses it.
	//
	// Parameters:
	//   - path: the model file path
	Evict(path string)
}

var _ Loader = &loader{}

// NewLoader creates a model loader with the glTF/GLB backend registered
// and caching enabled.
//
// Parameters:
//   - opts: optional configuration functions.
//
// Returns:
//   - Loader: the new loader.
func NewLoader(opts ...LoaderOption) Loader {
	l := &loader{
		backends: []loaderBackend{newGLTFLoaderBackend()},
		cache:    make(map[string]*common.ImportedModel),
		caching:  true,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *loader) Load(path string) (*common.ImportedModel, error) {
	if l.caching {
		l.mu.RLock()
		cached, ok := l.cache[path]
		l.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	backend := l.backendFor(path)
	if backend == nil {
		return nil, fmt.Errorf("unsupported model format: %s", path)
	}

	model, err := backend.Load(path)
	if err != nil {
		return nil, err
	}

	if l.caching {
		l.mu.Lock()
		l.cache[path] = model
		l.mu.Unlock()
	}

	return model, nil
}

func (l *loader) LoadReader(r io.Reader, binary bool, name string) (*common.ImportedModel, error) {
	// Reader loads always use the first backend; there is no path to
	// dispatch on.
	if len(l.backends) == 0 {
		return nil, fmt.Errorf("no loader backends registered")
	}
	return l.backends[0].LoadReader(r, binary, name)
}

func (l *loader) Evict(path string) {
	l.mu.Lock()
	delete(l.cache, path)
	l.mu.Unlock()
}

func (l *loader) backendFor(path string) loaderBackend {
	for _, b := range l.backends {
		if b.CanLoad(path) {
			return b
		}
	}
	return nil
}
