package importer

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/bindless"
	"github.com/lumen3d/lumen/engine/scenegraph"
)

// Importer turns parsed model records into engine state in two phases.
// Begin schedules texture decodes on a worker pool; the decoded pixels
// flow through the bindless upload queue and receive slots at the frame
// boundary. Commit then runs on the frame thread and builds the
// material table entries, mesh table entries and scene graph nodes.
// Import never touches the bindless texture array directly; every slot
// goes through the allocator.
type Importer interface {
	// Begin schedules the model's texture decodes and returns a handle
	// to poll and eventually commit. Safe to call from any goroutine.
	//
	// Parameters:
	//   - model: the parsed model records.
	//
	// Returns:
	//   - *PendingImport: the in-flight import handle.
	Begin(model *common.ImportedModel) *PendingImport

	// Commit materializes a ready import: registers materials and
	// meshes, wires texture slots into material channels with shared
	// textures reference-counted, and builds the node tree under the
	// given parent. Must run at the frame boundary, after the upload
	// queue drain that allocated the import's slots.
	//
	// Parameters:
	//   - p: the import handle returned by Begin.
	//   - graph: the scene graph to build the node tree in.
	//   - parent: the parent node (scenegraph.NodeNone for a new root).
	//
	// Returns:
	//   - CommitResult: the issued ids and container node.
	//   - error: ErrImportPending if textures are still outstanding,
	//     ErrAlreadyCommitted on a second call.
	Commit(p *PendingImport, graph scenegraph.Graph, parent scenegraph.NodeID) (CommitResult, error)
}

type importerImpl struct {
	resources     bindless.Manager
	queue         *bindless.UploadQueue
	pool          worker.DynamicWorkerPool
	decodeWorkers int
	nextTask      int
}

var _ Importer = &importerImpl{}

const defaultDecodeWorkers = 4

// NewImporter creates an importer feeding the given resource manager
// through the given upload queue.
//
// Parameters:
//   - resources: the slot allocator and material/mesh tables.
//   - queue: the decode-to-render-thread handoff queue.
//   - opts: optional configuration functions.
//
// Returns:
//   - Importer: the new importer.
func NewImporter(resources bindless.Manager, queue *bindless.UploadQueue, opts ...ImporterOption) Importer {
	im := &importerImpl{
		resources:     resources,
		queue:         queue,
		decodeWorkers: defaultDecodeWorkers,
	}

	for _, opt := range opts {
		opt(im)
	}

	im.pool = worker.NewDynamicWorkerPool(im.decodeWorkers, 256, 1*time.Second)
	return im
}

func (im *importerImpl) Begin(model *common.ImportedModel) *PendingImport {
	p := &PendingImport{
		model:     model,
		slots:     make([]bindless.TextureSlot, len(model.Textures)),
		errs:      make([]error, len(model.Textures)),
		remaining: len(model.Textures),
	}
	for i := range p.slots {
		p.slots[i] = bindless.SlotUnset
	}

	for i := range model.Textures {
		i := i
		tex := &model.Textures[i]

		im.nextTask++
		im.pool.SubmitTask(worker.Task{
			ID: im.nextTask,
			Do: func() (any, error) {
				data, err := tex.Decode()
				if err != nil {
					p.finish(i, bindless.SlotUnset, err)
					return nil, err
				}

				im.queue.Enqueue(bindless.PendingTexture{
					Name: tex.Name,
					Data: data,
					OnAllocated: func(slot bindless.TextureSlot, err error) {
						p.finish(i, slot, err)
					},
				})
				return nil, nil
			},
		})
	}

	return p
}

func (im *importerImpl) Commit(p *PendingImport, graph scenegraph.Graph, parent scenegraph.NodeID) (CommitResult, error) {
	p.mu.Lock()
	if p.remaining > 0 {
		outstanding := p.remaining
		p.mu.Unlock()
		return CommitResult{}, fmt.Errorf("model %q: %d textures outstanding: %w", p.model.Name, outstanding, ErrImportPending)
	}
	if p.committed {
		p.mu.Unlock()
		return CommitResult{}, fmt.Errorf("model %q: %w", p.model.Name, ErrAlreadyCommitted)
	}
	p.committed = true
	slots := p.slots
	p.mu.Unlock()

	model := p.model
	result := CommitResult{
		Materials: make([]common.MaterialID, len(model.Materials)),
		Meshes:    make([]common.MeshID, len(model.Meshes)),
	}

	// Materials first: each channel use retains its texture so shared
	// textures survive as long as any material references them.
	for i, src := range model.Materials {
		mat := bindless.NewMaterial(src.Name)
		mat.Params = bindless.MaterialParams{
			BaseColor: src.BaseColor,
			Metallic:  src.Metallic,
			Roughness: src.Roughness,
		}

		for c := 0; c < int(common.TextureChannelCount); c++ {
			ti := src.Textures[c]
			if ti < 0 || ti >= len(slots) || slots[ti].IsUnset() {
				continue
			}
			if err := im.resources.Retain(slots[ti]); err != nil {
				continue
			}
			mat.Slots[c] = slots[ti]
		}

		result.Materials[i] = im.resources.AddMaterial(mat)
	}

	// The allocation itself holds one reference per texture; dropping it
	// here frees textures no material ended up using and leaves shared
	// ones at exactly one reference per use.
	for _, slot := range slots {
		if !slot.IsUnset() {
			_, _ = im.resources.Release(slot)
		}
	}

	for i, mesh := range model.Meshes {
		prims := make([]bindless.Primitive, len(mesh.Primitives))
		for j, pr := range mesh.Primitives {
			material := common.MaterialUnset
			if pr.Material >= 0 && pr.Material < len(result.Materials) {
				material = result.Materials[pr.Material]
			}
			prims[j] = bindless.Primitive{
				VertexOffset: pr.VertexOffset,
				IndexOffset:  pr.IndexOffset,
				IndexCount:   pr.IndexCount,
				Material:     material,
			}
		}

		result.Meshes[i] = im.resources.RegisterMesh(bindless.Mesh{
			Name:           mesh.Name,
			Primitives:     prims,
			BoundingRadius: mesh.BoundingRadius,
		})
	}

	container, err := graph.AddNode(parent)
	if err != nil {
		return CommitResult{}, fmt.Errorf("model %q container: %w", model.Name, err)
	}
	_ = graph.SetName(container, model.Name)
	_ = graph.SetComponent(container, scenegraph.NewTransform())
	result.Root = container

	for _, root := range model.Roots {
		if err := im.addNodeTree(graph, container, model, root, result.Meshes); err != nil {
			return CommitResult{}, err
		}
	}

	return result, nil
}

// addNodeTree recursively builds the scene graph subtree for one
// imported node index.
func (im *importerImpl) addNodeTree(graph scenegraph.Graph, parent scenegraph.NodeID, model *common.ImportedModel, index int, meshes []common.MeshID) error {
	if index < 0 || index >= len(model.Nodes) {
		return nil
	}
	src := model.Nodes[index]

	id, err := graph.AddNode(parent)
	if err != nil {
		return fmt.Errorf("model %q node %q: %w", model.Name, src.Name, err)
	}
	_ = graph.SetName(id, src.Name)
	_ = graph.SetComponent(id, importTransform(src))

	if src.Mesh >= 0 && src.Mesh < len(meshes) {
		_ = graph.SetComponent(id, scenegraph.MeshRef{Mesh: meshes[src.Mesh]})
	}

	for _, child := range src.Children {
		if err := im.addNodeTree(graph, id, model, child, meshes); err != nil {
			return err
		}
	}
	return nil
}

// importTransform converts an imported node's TRS, filling in identity
// defaults where the source file omitted fields.
func importTransform(src common.ImportedNode) scenegraph.Transform {
	tr := scenegraph.NewTransform()
	tr.Translation = src.Translation
	if src.Rotation != ([4]float32{}) {
		tr.Rotation = src.Rotation
	}
	if src.Scale != ([3]float32{}) {
		tr.Scale = src.Scale
	}
	return tr
}
