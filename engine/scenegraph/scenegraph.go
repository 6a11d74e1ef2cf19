package scenegraph

import (
	"fmt"
	"iter"
	"sync"

	"github.com/lumen3d/lumen/common"
)

// graph is the implementation of the Graph interface.
// Nodes live in an arena of generational slots; parent/child links are stored
// as NodeIDs so the structure contains no Go pointers between nodes.
type graph struct {
	mu sync.RWMutex

	slots    []slot
	freeList []uint32
	roots    []NodeID
	count    int

	// releaseFunc, when set, is invoked once per component of every node
	// removed by RemoveNode, letting the owner release bindless slots or other
	// resources the node exclusively held.
	releaseFunc func(id NodeID, c Component)
}

// Graph owns the scene's structural forest: nodes, parent/child edges, and
// per-node component sets. The graph enforces the forest invariant (no node is
// its own ancestor) on every structural operation.
//
// Structural mutation is single-writer: it must not be interleaved with an
// in-flight Traverse on another goroutine. The frame pipeline applies queued
// mutations strictly between frames.
type Graph interface {
	// AddNode creates a node under the given parent and returns its stable id.
	// Pass NodeNone to create a root node. New nodes are appended to the
	// parent's child list (or to the root set), preserving sibling order.
	//
	// Parameters:
	//   - parent: the parent node id, or NodeNone for a root node
	//
	// Returns:
	//   - NodeID: the new node's id
	//   - error: ErrInvalidParent if the parent id is not live
	AddNode(parent NodeID) (NodeID, error)

	// RemoveNode removes the node and, recursively, all of its descendants.
	// For every removed node the graph invokes the configured component
	// release hook once per attached component. Removal is terminal: repeated
	// calls with the same id fail with ErrNotFound rather than silently
	// succeeding.
	//
	// Parameters:
	//   - id: the node to remove
	//
	// Returns:
	//   - error: ErrNotFound if the id is not live
	RemoveNode(id NodeID) error

	// Reparent moves a node (and implicitly its subtree) under a new parent,
	// or to the root set when newParent is NodeNone. The operation fails with
	// ErrCycleDetected if newParent is the node itself or one of its
	// descendants, leaving the graph unchanged.
	//
	// Parameters:
	//   - id: the node to move
	//   - newParent: the destination parent, or NodeNone for root level
	//
	// Returns:
	//   - error: ErrNotFound, ErrInvalidParent, or ErrCycleDetected
	Reparent(id NodeID, newParent NodeID) error

	// SetComponent attaches a component to a node, replacing any existing
	// component of the same kind.
	//
	// Parameters:
	//   - id: the node to modify
	//   - c: the component value to attach
	//
	// Returns:
	//   - error: ErrNotFound if the id is not live
	SetComponent(id NodeID, c Component) error

	// Component retrieves a node's component of the given kind.
	//
	// Parameters:
	//   - id: the node to query
	//   - kind: the component kind
	//
	// Returns:
	//   - Component: the component value, or nil
	//   - bool: true if the node is live and carries a component of that kind
	Component(id NodeID, kind ComponentKind) (Component, bool)

	// RemoveComponent detaches a node's component of the given kind.
	// Removing an absent component is a no-op.
	//
	// Parameters:
	//   - id: the node to modify
	//   - kind: the component kind to detach
	//
	// Returns:
	//   - error: ErrNotFound if the id is not live
	RemoveComponent(id NodeID, kind ComponentKind) error

	// Name returns the node's optional display name ("" when unset or the id
	// is not live). Names are labels for the editor only; every lookup path in
	// the engine keys on NodeID.
	Name(id NodeID) string

	// SetName sets the node's display name.
	//
	// Parameters:
	//   - id: the node to rename
	//   - name: the display name
	//
	// Returns:
	//   - error: ErrNotFound if the id is not live
	SetName(id NodeID, name string) error

	// Parent returns a node's parent id, or NodeNone for root nodes.
	//
	// Parameters:
	//   - id: the node to query
	//
	// Returns:
	//   - NodeID: the parent id, or NodeNone
	//   - bool: true if the queried id is live
	Parent(id NodeID) (NodeID, bool)

	// Children returns a copy of the node's ordered child id list.
	Children(id NodeID) []NodeID

	// Roots returns a copy of the ordered root node id list.
	Roots() []NodeID

	// Contains reports whether the id refers to a live node.
	Contains(id NodeID) bool

	// Count returns the number of live nodes in the graph.
	Count() int

	// Traverse yields node ids in depth-first pre-order starting at root, or
	// over the whole forest (in root order) when root is NodeNone. The
	// sequence is finite and each call produces a fresh, restartable walk.
	// Structural mutation must not be interleaved with an in-flight walk; the
	// frame pipeline queues mutations and applies them between frames.
	//
	// Parameters:
	//   - root: the subtree root, or NodeNone for the whole forest
	//
	// Returns:
	//   - iter.Seq[NodeID]: lazy pre-order sequence of live node ids
	Traverse(root NodeID) iter.Seq[NodeID]

	// WorldTransform resolves a node's effective world transform: the
	// composition of its local Transform component with its ancestor chain,
	// applied top-down. Nodes without a Transform component contribute
	// identity.
	//
	// Parameters:
	//   - id: the node to resolve
	//
	// Returns:
	//   - [16]float32: the world matrix (column-major)
	//   - error: ErrNotFound if the id is not live
	WorldTransform(id NodeID) ([16]float32, error)
}

var _ Graph = &graph{}

// NewGraph creates an empty scene graph configured with the provided options.
//
// Parameters:
//   - options: variadic list of GraphBuilderOption functions
//
// Returns:
//   - Graph: a new empty Graph
func NewGraph(options ...GraphBuilderOption) Graph {
	g := &graph{}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *graph) AddNode(parent NodeID) (NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if parent != NodeNone && !g.isLive(parent) {
		return NodeNone, fmt.Errorf("add node: parent %d: %w", parent, ErrInvalidParent)
	}

	var index uint32
	if n := len(g.freeList); n > 0 {
		index = g.freeList[n-1]
		g.freeList = g.freeList[:n-1]
	} else {
		g.slots = append(g.slots, slot{})
		index = uint32(len(g.slots) - 1)
	}

	s := &g.slots[index]
	s.generation++
	s.live = true
	s.node = node{parent: parent}

	id := newNodeID(index, s.generation)
	if parent == NodeNone {
		g.roots = append(g.roots, id)
	} else {
		p := &g.slots[parent.Index()].node
		p.children = append(p.children, id)
	}
	g.count++
	return id, nil
}

func (g *graph) RemoveNode(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isLive(id) {
		return fmt.Errorf("remove node %d: %w", id, ErrNotFound)
	}

	g.detach(id)

	// Free the whole subtree, children before clearing the parent's slot so
	// the release hook sees each node's components exactly once.
	var removeSubtree func(NodeID)
	removeSubtree = func(cur NodeID) {
		s := &g.slots[cur.Index()]
		for _, child := range s.node.children {
			removeSubtree(child)
		}
		if g.releaseFunc != nil {
			for _, c := range s.node.components {
				if c != nil {
					g.releaseFunc(cur, c)
				}
			}
		}
		s.live = false
		s.generation++
		s.node = node{}
		g.freeList = append(g.freeList, cur.Index())
		g.count--
	}
	removeSubtree(id)
	return nil
}

func (g *graph) Reparent(id NodeID, newParent NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isLive(id) {
		return fmt.Errorf("reparent node %d: %w", id, ErrNotFound)
	}
	if newParent != NodeNone {
		if !g.isLive(newParent) {
			return fmt.Errorf("reparent node %d: parent %d: %w", id, newParent, ErrInvalidParent)
		}
		// Walking up from the prospective parent must never reach id; hitting
		// it means newParent lives inside id's subtree.
		for cur := newParent; cur != NodeNone; cur = g.slots[cur.Index()].node.parent {
			if cur == id {
				return fmt.Errorf("reparent node %d under %d: %w", id, newParent, ErrCycleDetected)
			}
		}
	}

	g.detach(id)
	g.slots[id.Index()].node.parent = newParent
	if newParent == NodeNone {
		g.roots = append(g.roots, id)
	} else {
		p := &g.slots[newParent.Index()].node
		p.children = append(p.children, id)
	}
	return nil
}

func (g *graph) SetComponent(id NodeID, c Component) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isLive(id) {
		return fmt.Errorf("set component on node %d: %w", id, ErrNotFound)
	}
	g.slots[id.Index()].node.components[c.ComponentKind()] = c
	return nil
}

func (g *graph) Component(id NodeID, kind ComponentKind) (Component, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.isLive(id) {
		return nil, false
	}
	c := g.slots[id.Index()].node.components[kind]
	return c, c != nil
}

func (g *graph) RemoveComponent(id NodeID, kind ComponentKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isLive(id) {
		return fmt.Errorf("remove component from node %d: %w", id, ErrNotFound)
	}
	g.slots[id.Index()].node.components[kind] = nil
	return nil
}

func (g *graph) Name(id NodeID) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.isLive(id) {
		return ""
	}
	return g.slots[id.Index()].node.name
}

func (g *graph) SetName(id NodeID, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isLive(id) {
		return fmt.Errorf("set name on node %d: %w", id, ErrNotFound)
	}
	g.slots[id.Index()].node.name = name
	return nil
}

func (g *graph) Parent(id NodeID) (NodeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.isLive(id) {
		return NodeNone, false
	}
	return g.slots[id.Index()].node.parent, true
}

func (g *graph) Children(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.isLive(id) {
		return nil
	}
	children := g.slots[id.Index()].node.children
	cp := make([]NodeID, len(children))
	copy(cp, children)
	return cp
}

func (g *graph) Roots() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cp := make([]NodeID, len(g.roots))
	copy(cp, g.roots)
	return cp
}

func (g *graph) Contains(id NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isLive(id)
}

func (g *graph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count
}

func (g *graph) Traverse(root NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		// Explicit stack, children pushed in reverse so they pop in order.
		var stack []NodeID
		if root == NodeNone {
			rootSet := g.Roots()
			for i := len(rootSet) - 1; i >= 0; i-- {
				stack = append(stack, rootSet[i])
			}
		} else {
			if !g.Contains(root) {
				return
			}
			stack = append(stack, root)
		}

		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(cur) {
				return
			}
			children := g.Children(cur)
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
}

func (g *graph) WorldTransform(id NodeID) ([16]float32, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var world [16]float32
	if !g.isLive(id) {
		return world, fmt.Errorf("world transform of node %d: %w", id, ErrNotFound)
	}

	// Collect the ancestor chain, then compose top-down from the root.
	var chain []NodeID
	for cur := id; cur != NodeNone; cur = g.slots[cur.Index()].node.parent {
		chain = append(chain, cur)
	}

	common.Identity(world[:])
	for i := len(chain) - 1; i >= 0; i-- {
		c := g.slots[chain[i].Index()].node.components[KindTransform]
		if c == nil {
			continue
		}
		local := c.(Transform).Matrix()
		common.Mul4(world[:], world[:], local[:])
	}
	return world, nil
}

// detach unlinks a node from its parent's child list or the root set without
// freeing it. Callers hold the write lock.
func (g *graph) detach(id NodeID) {
	parent := g.slots[id.Index()].node.parent
	if parent == NodeNone {
		for i, r := range g.roots {
			if r == id {
				g.roots = append(g.roots[:i], g.roots[i+1:]...)
				break
			}
		}
		return
	}
	p := &g.slots[parent.Index()].node
	for i, c := range p.children {
		if c == id {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
}

// isLive reports whether the id refers to a live slot with a matching
// generation. Callers hold at least the read lock.
func (g *graph) isLive(id NodeID) bool {
	idx := id.Index()
	if int(idx) >= len(g.slots) {
		return false
	}
	s := &g.slots[idx]
	return s.live && s.generation == id.Generation()
}
