package framegraph

// FrameGraphOption configures a frame graph during construction.
type FrameGraphOption func(*frameGraph)

// WithAllocator installs the transient texture allocator. Graphs that
// declare transient textures require one; graphs using only imported
// resources do not.
//
// Parameters:
//   - a: the allocator backing transient textures.
//
// Returns:
//   - FrameGraphOption: the option to apply.
func WithAllocator(a Allocator) FrameGraphOption {
	return func(g *frameGraph) {
		g.allocator = a
	}
}
