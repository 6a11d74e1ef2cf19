package bindless

// ManagerBuilderOption is a function that configures a manager instance during construction.
type ManagerBuilderOption func(*manager)

// WithInitialCapacity is an option builder that sets the starting size of the
// bindless texture array. The array still doubles on exhaustion.
//
// Parameters:
//   - capacity: the initial backing array size (values < 1 are ignored)
//
// Returns:
//   - ManagerBuilderOption: a function that applies the capacity option to a manager
func WithInitialCapacity(capacity int) ManagerBuilderOption {
	return func(m *manager) {
		if capacity > 0 {
			m.capacity = capacity
		}
	}
}

// WithMaxSlots is an option builder that sets a hard upper bound on live
// texture slots, matching the GPU's descriptor-array limit. AllocateTexture
// fails with ErrCapacityExceeded once the bound is reached.
//
// Parameters:
//   - maxSlots: the maximum number of live slots (0 = unbounded)
//
// Returns:
//   - ManagerBuilderOption: a function that applies the slot limit to a manager
func WithMaxSlots(maxSlots int) ManagerBuilderOption {
	return func(m *manager) {
		m.maxSlots = maxSlots
	}
}
