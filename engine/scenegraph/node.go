package scenegraph

// NodeID is a stable handle to a node in the scene graph. It packs the node's
// arena index (lower 32 bits) and a generation counter (upper 32 bits). The
// generation is bumped every time an arena slot is freed, so ids held after a
// node's removal fail lookups instead of silently resolving to a reused slot.
//
// The zero value is NodeNone and never refers to a live node: generations
// start at 1.
type NodeID uint64

// NodeNone is the null node id. Passing it as a parent means "root level".
const NodeNone = NodeID(0)

// newNodeID packs an arena index and generation into a NodeID.
func newNodeID(index, generation uint32) NodeID {
	return NodeID(uint64(generation)<<32 | uint64(index))
}

// Index extracts the arena index from the node id.
func (id NodeID) Index() uint32 {
	return uint32(id & 0xFFFFFFFF)
}

// Generation extracts the generation counter from the node id.
func (id NodeID) Generation() uint32 {
	return uint32(id >> 32)
}

// node is the arena-resident node record. Parent and children are stored as
// NodeIDs (index lists), never as pointers, so cycle detection reduces to
// index comparisons and removed nodes cannot be aliased.
type node struct {
	name       string
	parent     NodeID
	children   []NodeID
	components [componentKindCount]Component
}

// slot is one arena entry. A slot is reused after free with an incremented
// generation, invalidating any NodeID still holding the old generation.
type slot struct {
	generation uint32
	live       bool
	node       node
}
