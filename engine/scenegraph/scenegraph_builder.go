package scenegraph

// GraphBuilderOption is a function that configures a graph instance during construction.
type GraphBuilderOption func(*graph)

// WithCapacity is an option builder that pre-allocates the node arena for the
// expected scene size, avoiding re-allocation during bulk import.
//
// Parameters:
//   - capacity: the number of node slots to reserve
//
// Returns:
//   - GraphBuilderOption: a function that applies the capacity option to a graph
func WithCapacity(capacity int) GraphBuilderOption {
	return func(g *graph) {
		if capacity > 0 {
			g.slots = make([]slot, 0, capacity)
		}
	}
}

// WithComponentReleaseFunc is an option builder that sets the hook invoked for
// every component of every node removed by RemoveNode. The editor wires this
// to the bindless resource manager so cascading removal releases the slots a
// subtree exclusively held.
//
// Parameters:
//   - fn: callback receiving the removed node's id and each of its components
//
// Returns:
//   - GraphBuilderOption: a function that applies the release hook to a graph
func WithComponentReleaseFunc(fn func(id NodeID, c Component)) GraphBuilderOption {
	return func(g *graph) {
		g.releaseFunc = fn
	}
}
