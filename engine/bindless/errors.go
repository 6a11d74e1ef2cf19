package bindless

import "errors"

var (
	// ErrStaleSlot is returned when a slot handle's generation does not match
	// the currently live generation at its index. It indicates a use-after-free
	// bug in the caller and is always fatal to the operation; it is never
	// retried.
	ErrStaleSlot = errors.New("stale bindless slot")

	// ErrCapacityExceeded is returned by AllocateTexture when a hard slot
	// limit is configured (e.g. the GPU descriptor-array limit) and reached.
	// It is recoverable: the caller can free slots or raise the limit.
	ErrCapacityExceeded = errors.New("bindless slot capacity exceeded")

	// ErrUnknownMaterial is returned when a material id does not index a
	// registered material.
	ErrUnknownMaterial = errors.New("unknown material")
)
