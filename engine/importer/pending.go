package importer

import (
	"fmt"
	"sync"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/bindless"
	"github.com/lumen3d/lumen/engine/scenegraph"
)

// PendingImport tracks one model's asset import from the moment its
// texture decodes are scheduled until Commit materializes the model in
// the scene graph. Decode workers and the frame boundary's upload drain
// both report into it; Ready flips once every texture reached a slot or
// failed.
type PendingImport struct {
	model *common.ImportedModel

	mu        sync.Mutex
	slots     []bindless.TextureSlot
	errs      []error
	remaining int
	committed bool
}

// Ready reports whether every texture has finished decoding and slot
// allocation (successfully or not). Models without textures are ready
// immediately.
//
// Returns:
//   - bool: true once Commit may run.
func (p *PendingImport) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining == 0
}

// Errors returns the per-texture decode and allocation failures
// collected so far, each wrapped with the texture name. Failed textures
// commit as unset material channels rather than aborting the import.
//
// Returns:
//   - []error: the collected failures (nil if none).
func (p *PendingImport) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []error
	for _, err := range p.errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// finish records the outcome for one texture index.
func (p *PendingImport) finish(i int, slot bindless.TextureSlot, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.errs[i] = fmt.Errorf("texture %q: %w", p.model.Textures[i].Name, err)
		p.slots[i] = bindless.SlotUnset
	} else {
		p.slots[i] = slot
	}
	p.remaining--
}

// CommitResult maps the imported model's index space onto the stable
// engine ids Commit issued for it. The frame driver uses Meshes to pair
// mesh ids with the model's vertex/index data for GPU upload.
type CommitResult struct {
	// Root is the container node Commit created under the requested
	// parent; the model's own roots are its children.
	Root scenegraph.NodeID

	// Materials holds the material id issued per ImportedMaterial index.
	Materials []common.MaterialID

	// Meshes holds the mesh id issued per ImportedMesh index.
	Meshes []common.MeshID
}
