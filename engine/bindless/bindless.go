// Package bindless manages the GPU-resident resource arrays (textures,
// materials, meshes) that primitives reference by stable index instead of by
// direct handle. Texture slots carry generation counters so references held
// after a free-and-reuse are detected instead of silently resolving to the
// wrong texture.
package bindless

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/lumen3d/lumen/common"
)

// textureEntry is one element of the bindless texture array.
type textureEntry struct {
	view       *wgpu.TextureView
	generation uint32
	live       bool
	refs       int
}

// manager is the implementation of the Manager interface.
type manager struct {
	mu sync.RWMutex

	entries  []textureEntry
	capacity int // backing array size; doubles on exhaustion, indices never move
	freeList []uint32
	live     int
	maxSlots int // hard cap (GPU descriptor limit); 0 = unbounded

	materials []Material
	meshes    []Mesh
}

// Manager owns the bindless texture slot array plus the flat material and
// mesh tables. Slot indices, once issued, are unique among all currently live
// slots; a freed index is only reissued under an incremented generation, so
// stale handles fail instead of aliasing.
//
// Allocation and free must be externally synchronized with frame execution;
// the frame pipeline performs all mutations at the frame boundary (asset
// import workers hand off through an UploadQueue rather than calling in).
type Manager interface {
	// AllocateTexture claims the lowest free slot index for the given texture
	// view, reusing freed indices before growing the backing array. The array
	// capacity doubles when exhausted; previously issued indices remain valid
	// across growth. The new slot starts with a reference count of one.
	//
	// Parameters:
	//   - view: the GPU texture view to publish in the bindless array
	//
	// Returns:
	//   - TextureSlot: the issued slot handle (index + generation)
	//   - error: ErrCapacityExceeded if a hard slot limit is configured and reached
	AllocateTexture(view *wgpu.TextureView) (TextureSlot, error)

	// Free explicitly evicts a slot regardless of its reference count, marks
	// the index free, and increments the generation so outstanding handles
	// become stale.
	//
	// Parameters:
	//   - slot: the handle to free
	//
	// Returns:
	//   - error: ErrStaleSlot if the handle's generation is not the live one (double-free protection)
	Free(slot TextureSlot) error

	// Resolve returns the texture view a slot handle refers to.
	//
	// Parameters:
	//   - slot: the handle to resolve
	//
	// Returns:
	//   - *wgpu.TextureView: the live view
	//   - error: ErrStaleSlot if the slot was freed (even if the index was since reused)
	Resolve(slot TextureSlot) (*wgpu.TextureView, error)

	// Retain increments a live slot's reference count. Each holder sharing a
	// texture across materials retains it once and releases it when done.
	//
	// Parameters:
	//   - slot: the handle to retain
	//
	// Returns:
	//   - error: ErrStaleSlot if the handle is not live
	Retain(slot TextureSlot) error

	// Release decrements a live slot's reference count, freeing the slot when
	// it reaches zero.
	//
	// Parameters:
	//   - slot: the handle to release
	//
	// Returns:
	//   - bool: true if this release freed the slot
	//   - error: ErrStaleSlot if the handle is not live
	Release(slot TextureSlot) (bool, error)

	// LiveSlots returns the number of currently live texture slots.
	LiveSlots() int

	// Capacity returns the current backing array size.
	Capacity() int

	// AddMaterial appends a material record to the flat material table and
	// returns its stable id.
	//
	// Parameters:
	//   - m: the material record
	//
	// Returns:
	//   - common.MaterialID: the issued material id
	AddMaterial(m Material) common.MaterialID

	// Material returns a copy of the material record for the given id.
	//
	// Returns:
	//   - Material: the record
	//   - bool: false if the id is out of range
	Material(id common.MaterialID) (Material, bool)

	// SetMaterialSlot swaps one texture channel of a material in place. The
	// change is visible to every primitive referencing the material on the
	// next frame. This is the editor's "swap texture" entry point; the caller
	// allocates the incoming slot and frees/releases the outgoing one.
	//
	// Parameters:
	//   - id: the material to modify
	//   - channel: the texture channel to replace
	//   - slot: the new slot handle (SlotUnset to clear the channel)
	//
	// Returns:
	//   - error: ErrUnknownMaterial if the id is out of range
	SetMaterialSlot(id common.MaterialID, channel common.TextureChannel, slot TextureSlot) error

	// SetMaterialParams replaces a material's shading parameters in place.
	//
	// Parameters:
	//   - id: the material to modify
	//   - params: the new shading parameters
	//
	// Returns:
	//   - error: ErrUnknownMaterial if the id is out of range
	SetMaterialParams(id common.MaterialID, params MaterialParams) error

	// ReleaseMaterialSlots drops the texture references a material holds:
	// every bound channel is released once and cleared to SlotUnset, freeing
	// textures whose reference count reaches zero. Channels already unset or
	// pointing at slots freed elsewhere are skipped, so the call is safe to
	// repeat.
	//
	// Parameters:
	//   - id: the material to evict
	//
	// Returns:
	//   - error: ErrUnknownMaterial if the id is out of range
	ReleaseMaterialSlots(id common.MaterialID) error

	// MaterialCount returns the number of registered materials.
	MaterialCount() int

	// RegisterMesh appends a mesh record to the mesh table and returns its
	// stable id. Draw paths key on this id, never on the mesh name.
	//
	// Parameters:
	//   - m: the mesh record
	//
	// Returns:
	//   - common.MeshID: the issued mesh id
	RegisterMesh(m Mesh) common.MeshID

	// Mesh returns the mesh record for the given id. The returned record's
	// slices are shared with the table and must be treated as read-only.
	//
	// Returns:
	//   - Mesh: the record
	//   - bool: false if the id is out of range
	Mesh(id common.MeshID) (Mesh, bool)

	// SetMeshBuffers attaches the uploaded GPU vertex/index buffers to a mesh
	// record. Called by the renderer after geometry upload.
	//
	// Parameters:
	//   - id: the mesh to modify
	//   - vertex: the GPU vertex buffer
	//   - index: the GPU index buffer
	//
	// Returns:
	//   - error: an error if the id is out of range
	SetMeshBuffers(id common.MeshID, vertex, index *wgpu.Buffer) error

	// MeshCount returns the number of registered meshes.
	MeshCount() int
}

var _ Manager = &manager{}

// defaultCapacity is the initial bindless array size when no option overrides it.
const defaultCapacity = 64

// NewManager creates a bindless resource manager configured with the provided options.
//
// Parameters:
//   - options: variadic list of ManagerBuilderOption functions
//
// Returns:
//   - Manager: a new Manager instance
func NewManager(options ...ManagerBuilderOption) Manager {
	m := &manager{
		capacity: defaultCapacity,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.maxSlots > 0 && m.capacity > m.maxSlots {
		m.capacity = m.maxSlots
	}
	return m
}

func (m *manager) AllocateTexture(view *wgpu.TextureView) (TextureSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSlots > 0 && m.live >= m.maxSlots {
		return TextureSlot{}, fmt.Errorf("allocate texture: %d slots live: %w", m.live, ErrCapacityExceeded)
	}

	var index uint32
	if len(m.freeList) > 0 {
		// freeList is kept sorted ascending; reuse the lowest index first to
		// bound the array size.
		index = m.freeList[0]
		m.freeList = m.freeList[1:]
	} else {
		if len(m.entries) >= m.capacity {
			m.capacity *= 2
			if m.maxSlots > 0 && m.capacity > m.maxSlots {
				m.capacity = m.maxSlots
			}
		}
		m.entries = append(m.entries, textureEntry{})
		index = uint32(len(m.entries) - 1)
	}

	e := &m.entries[index]
	e.view = view
	e.live = true
	e.refs = 1
	m.live++
	return TextureSlot{Index: index, Generation: e.generation}, nil
}

func (m *manager) Free(slot TextureSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freeLocked(slot)
}

func (m *manager) Resolve(slot TextureSlot) (*wgpu.TextureView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.lookup(slot, "resolve")
	if err != nil {
		return nil, err
	}
	return e.view, nil
}

func (m *manager) Retain(slot TextureSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(slot, "retain")
	if err != nil {
		return err
	}
	e.refs++
	return nil
}

func (m *manager) Release(slot TextureSlot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(slot, "release")
	if err != nil {
		return false, err
	}
	e.refs--
	if e.refs > 0 {
		return false, nil
	}
	if err := m.freeLocked(slot); err != nil {
		return false, err
	}
	return true, nil
}

func (m *manager) LiveSlots() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live
}

func (m *manager) Capacity() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capacity
}

func (m *manager) AddMaterial(mat Material) common.MaterialID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.materials = append(m.materials, mat)
	return common.MaterialID(len(m.materials) - 1)
}

func (m *manager) Material(id common.MaterialID) (Material, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if int(id) >= len(m.materials) {
		return Material{}, false
	}
	return m.materials[id], true
}

func (m *manager) SetMaterialSlot(id common.MaterialID, channel common.TextureChannel, slot TextureSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int(id) >= len(m.materials) {
		return fmt.Errorf("set slot %s on material %d: %w", channel, id, ErrUnknownMaterial)
	}
	m.materials[id].Slots[channel] = slot
	return nil
}

func (m *manager) SetMaterialParams(id common.MaterialID, params MaterialParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int(id) >= len(m.materials) {
		return fmt.Errorf("set params on material %d: %w", id, ErrUnknownMaterial)
	}
	m.materials[id].Params = params
	return nil
}

func (m *manager) ReleaseMaterialSlots(id common.MaterialID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int(id) >= len(m.materials) {
		return fmt.Errorf("release slots of material %d: %w", id, ErrUnknownMaterial)
	}
	mat := &m.materials[id]
	for c := range mat.Slots {
		slot := mat.Slots[c]
		if slot.IsUnset() {
			continue
		}
		mat.Slots[c] = SlotUnset
		e, err := m.lookup(slot, "release")
		if err != nil {
			// Freed through another path already; the channel is cleared
			// either way.
			continue
		}
		e.refs--
		if e.refs <= 0 {
			_ = m.freeLocked(slot)
		}
	}
	return nil
}

func (m *manager) MaterialCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.materials)
}

func (m *manager) RegisterMesh(mesh Mesh) common.MeshID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.meshes = append(m.meshes, mesh)
	return common.MeshID(len(m.meshes) - 1)
}

func (m *manager) Mesh(id common.MeshID) (Mesh, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if int(id) >= len(m.meshes) {
		return Mesh{}, false
	}
	return m.meshes[id], true
}

func (m *manager) SetMeshBuffers(id common.MeshID, vertex, index *wgpu.Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int(id) >= len(m.meshes) {
		return fmt.Errorf("set buffers on mesh %d: out of range", id)
	}
	m.meshes[id].VertexBuffer = vertex
	m.meshes[id].IndexBuffer = index
	return nil
}

func (m *manager) MeshCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.meshes)
}

// lookup validates a slot handle against the live array. Callers hold a lock.
func (m *manager) lookup(slot TextureSlot, op string) (*textureEntry, error) {
	if slot.IsUnset() || int(slot.Index) >= len(m.entries) {
		return nil, fmt.Errorf("%s slot %d (gen %d): %w", op, slot.Index, slot.Generation, ErrStaleSlot)
	}
	e := &m.entries[slot.Index]
	if !e.live || e.generation != slot.Generation {
		return nil, fmt.Errorf("%s slot %d (gen %d, live gen %d): %w", op, slot.Index, slot.Generation, e.generation, ErrStaleSlot)
	}
	return e, nil
}

// freeLocked releases a slot's index back to the free list and bumps its
// generation. Callers hold the write lock.
func (m *manager) freeLocked(slot TextureSlot) error {
	e, err := m.lookup(slot, "free")
	if err != nil {
		return err
	}
	e.live = false
	e.view = nil
	e.refs = 0
	e.generation++
	m.live--

	i := sort.Search(len(m.freeList), func(i int) bool { return m.freeList[i] >= slot.Index })
	m.freeList = append(m.freeList, 0)
	copy(m.freeList[i+1:], m.freeList[i:])
	m.freeList[i] = slot.Index
	return nil
}
