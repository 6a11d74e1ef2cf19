package bindless

import (
	"sync"

	"github.com/lumen3d/lumen/common"
)

// PendingTexture is a decoded texture handed off by an asset-import worker,
// waiting for the render thread to create the GPU view and allocate its slot.
type PendingTexture struct {
	// Name identifies the texture for diagnostics.
	Name string

	// Data is the decoded RGBA pixel data.
	Data common.TexturePixelData

	// OnAllocated, when non-nil, is invoked on the render thread after the
	// slot is allocated (or allocation fails). It runs inside the frame
	// boundary's single mutation point.
	OnAllocated func(slot TextureSlot, err error)
}

// UploadQueue is the thread-safe handoff point between asset-import workers
// and the render thread. Workers enqueue decoded textures from any goroutine;
// the frame pipeline drains the queue at the frame boundary, the single
// mutation point where slot allocation is permitted.
type UploadQueue struct {
	mu      sync.Mutex
	pending []PendingTexture
}

// NewUploadQueue creates an empty upload queue.
//
// Returns:
//   - *UploadQueue: the new queue
func NewUploadQueue() *UploadQueue {
	return &UploadQueue{}
}

// Enqueue adds a decoded texture to the queue. Safe to call from any goroutine.
//
// Parameters:
//   - t: the decoded texture to hand off
func (q *UploadQueue) Enqueue(t PendingTexture) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, t)
}

// Drain removes and returns all queued textures in enqueue order.
// Called by the frame pipeline at the frame boundary.
//
// Returns:
//   - []PendingTexture: the drained textures (nil if the queue was empty)
func (q *UploadQueue) Drain() []PendingTexture {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.pending
	q.pending = nil
	return drained
}

// Len returns the number of queued textures.
func (q *UploadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
