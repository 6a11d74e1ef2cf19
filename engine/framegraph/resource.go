package framegraph

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureDescriptor describes a transient texture the graph allocates
// lazily at the owning pass's first write. Two transients with equal
// descriptors and non-overlapping lifetimes may share one backing
// allocation.
type TextureDescriptor struct {
	Width       uint32
	Height      uint32
	Format      wgpu.TextureFormat
	Usage       wgpu.TextureUsage
	SampleCount uint32
}

// Allocator hands out and reclaims backing texture views for transient
// frame graph resources. Implementations may pool released views so
// that non-overlapping transients alias the same allocation.
type Allocator interface {
	// AcquireTexture returns a view backing the given descriptor,
	// reusing a previously released compatible view when available.
	//
	// Parameters:
	//   - desc: the transient texture descriptor.
	//
	// Returns:
	//   - *wgpu.TextureView: the backing view.
	//   - error: allocation failure from the device.
	AcquireTexture(desc TextureDescriptor) (*wgpu.TextureView, error)

	// ReleaseTexture returns a view to the allocator for reuse within
	// the frame or destruction at frame end.
	//
	// Parameters:
	//   - desc: the descriptor the view was acquired with.
	//   - view: the view to reclaim.
	ReleaseTexture(desc TextureDescriptor, view *wgpu.TextureView)
}

// AllocateTextureFunc creates a fresh backing view for a descriptor.
// The renderer backend supplies one bound to its device.
type AllocateTextureFunc func(desc TextureDescriptor) (*wgpu.TextureView, error)

type pooledAllocator struct {
	mu    *sync.Mutex
	alloc AllocateTextureFunc
	free  map[TextureDescriptor][]*wgpu.TextureView
}

var _ Allocator = &pooledAllocator{}

// NewPooledAllocator creates an allocator that recycles released views
// by descriptor, so transients with disjoint lifetimes alias a single
// device allocation.
//
// Parameters:
//   - alloc: the device-backed view constructor.
//
// Returns:
//   - Allocator: the pooling allocator.
func NewPooledAllocator(alloc AllocateTextureFunc) Allocator {
	return &pooledAllocator{
		mu:    &sync.Mutex{},
		alloc: alloc,
		free:  make(map[TextureDescriptor][]*wgpu.TextureView),
	}
}

func (p *pooledAllocator) AcquireTexture(desc TextureDescriptor) (*wgpu.TextureView, error) {
	p.mu.Lock()
	if pool := p.free[desc]; len(pool) > 0 {
		view := pool[len(pool)-1]
		p.free[desc] = pool[:len(pool)-1]
		p.mu.Unlock()
		return view, nil
	}
	p.mu.Unlock()

	view, err := p.alloc(desc)
	if err != nil {
		return nil, fmt.Errorf("allocate %dx%d texture: %w", desc.Width, desc.Height, err)
	}
	return view, nil
}

func (p *pooledAllocator) ReleaseTexture(desc TextureDescriptor, view *wgpu.TextureView) {
	if view == nil {
		return
	}
	p.mu.Lock()
	p.free[desc] = append(p.free[desc], view)
	p.mu.Unlock()
}

// resourceKind distinguishes how a logical resource is backed.
type resourceKind int

const (
	resourceTransient resourceKind = iota
	resourceImportedTexture
	resourceImportedBuffer
)

// resource is one logical named resource tracked by the graph.
type resource struct {
	name string
	kind resourceKind

	// desc is set for transients only.
	desc TextureDescriptor

	// view is the backing texture view: set at import time for imported
	// textures, acquired lazily at first write for transients.
	view *wgpu.TextureView

	// buffer is set for imported buffers.
	buffer *wgpu.Buffer

	// firstWrite and lastUse are positions in the resolved pass order,
	// computed by Resolve. Transients are acquired before firstWrite
	// runs and released after lastUse finishes.
	firstWrite int
	lastUse    int
}
