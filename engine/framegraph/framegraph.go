package framegraph

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// State tracks a frame graph through its one-shot lifecycle. A graph
// moves strictly forward: Building -> Resolved -> Executing -> Retired,
// and a new graph is built for the next frame.
type State int

const (
	Building State = iota
	Resolved
	Executing
	Retired
)

// String returns the state name for error messages and logs.
func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Resolved:
		return "resolved"
	case Executing:
		return "executing"
	case Retired:
		return "retired"
	default:
		return "unknown"
	}
}

// FrameGraph assembles one frame's render passes over named logical
// resources, resolves a deterministic execution order from their
// declared reads and writes, and runs them with lazily allocated
// transient resources.
type FrameGraph interface {
	// ImportTexture registers an externally owned texture view (the
	// swapchain view, the bindless array) under a logical name. Imported
	// resources are never allocated or released by the graph.
	//
	// Parameters:
	//   - name: the logical resource name.
	//   - view: the backing view, owned by the caller.
	//
	// Returns:
	//   - error: ErrInvalidState if the graph left the Building state.
	ImportTexture(name string, view *wgpu.TextureView) error

	// ImportBuffer registers an externally owned buffer (instance
	// buffers, uniform buffers) under a logical name.
	//
	// Parameters:
	//   - name: the logical resource name.
	//   - buffer: the backing buffer, owned by the caller.
	//
	// Returns:
	//   - error: ErrInvalidState if the graph left the Building state.
	ImportBuffer(name string, buffer *wgpu.Buffer) error

	// CreateTexture declares a transient texture. The backing allocation
	// is deferred until the first writing pass runs and is released
	// after the last declared reader, allowing non-overlapping
	// transients to alias one allocation.
	//
	// Parameters:
	//   - name: the logical resource name.
	//   - desc: the texture shape to allocate.
	//
	// Returns:
	//   - error: ErrInvalidState if the graph left the Building state.
	CreateTexture(name string, desc TextureDescriptor) error

	// AddPass registers a render pass with its declared resource reads
	// and writes. Execution order is derived from these declarations
	// only; registration order breaks ties.
	//
	// Parameters:
	//   - name: the pass name, carried in error and profiling output.
	//   - reads: logical resource names the pass consumes.
	//   - writes: logical resource names the pass produces.
	//   - fn: the pass body.
	//
	// Returns:
	//   - error: ErrInvalidState if the graph left the Building state.
	AddPass(name string, reads, writes []string, fn PassFunc) error

	// Resolve validates the declarations, topologically sorts the
	// passes and computes transient resource lifetimes. After a
	// successful Resolve the graph is in the Resolved state.
	//
	// Returns:
	//   - error: ErrCyclicDependency if the declared edges form a cycle,
	//     ErrUnknownResource if a pass declares an unregistered name,
	//     ErrInvalidState on misuse.
	Resolve() error

	// ExecutionOrder returns the resolved pass names in execution order.
	// Valid after Resolve.
	//
	// Returns:
	//   - []string: pass names in execution order (nil before Resolve).
	ExecutionOrder() []string

	// Execute runs every pass in resolved order. A pass failure aborts
	// the remaining passes and surfaces as ErrPassExecutionFailed
	// wrapping the pass error; the frame is skipped and never retried
	// within the same frame.
	//
	// Parameters:
	//   - ctx: passed through to each pass body for GPU waits.
	//
	// Returns:
	//   - error: the first pass failure, or ErrInvalidState on misuse.
	Execute(ctx context.Context) error

	// Retire releases all transient resources still held and moves the
	// graph to its terminal state. Safe to call after a failed Execute.
	Retire()

	// State returns the graph's current lifecycle state.
	State() State
}

type frameGraph struct {
	state     State
	allocator Allocator

	passes    []*pass
	resources map[string]*resource

	// order holds indices into passes after Resolve.
	order []int

	// held tracks transients currently backed by an acquired view.
	held []*resource
}

var _ FrameGraph = &frameGraph{}

// NewFrameGraph creates an empty graph in the Building state.
//
// Parameters:
//   - opts: optional configuration functions.
//
// Returns:
//   - FrameGraph: the new graph.
func NewFrameGraph(opts ...FrameGraphOption) FrameGraph {
	g := &frameGraph{
		state:     Building,
		resources: make(map[string]*resource),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *frameGraph) ImportTexture(name string, view *wgpu.TextureView) error {
	if g.state != Building {
		return fmt.Errorf("import texture %q in state %s: %w", name, g.state, ErrInvalidState)
	}
	g.resources[name] = &resource{
		name: name,
		kind: resourceImportedTexture,
		view: view,
	}
	return nil
}

func (g *frameGraph) ImportBuffer(name string, buffer *wgpu.Buffer) error {
	if g.state != Building {
		return fmt.Errorf("import buffer %q in state %s: %w", name, g.state, ErrInvalidState)
	}
	g.resources[name] = &resource{
		name:   name,
		kind:   resourceImportedBuffer,
		buffer: buffer,
	}
	return nil
}

func (g *frameGraph) CreateTexture(name string, desc TextureDescriptor) error {
	if g.state != Building {
		return fmt.Errorf("create texture %q in state %s: %w", name, g.state, ErrInvalidState)
	}
	g.resources[name] = &resource{
		name: name,
		kind: resourceTransient,
		desc: desc,
	}
	return nil
}

func (g *frameGraph) AddPass(name string, reads, writes []string, fn PassFunc) error {
	if g.state != Building {
		return fmt.Errorf("add pass %q in state %s: %w", name, g.state, ErrInvalidState)
	}
	g.passes = append(g.passes, &pass{
		name:    name,
		reads:   reads,
		writes:  writes,
		execute: fn,
	})
	return nil
}

func (g *frameGraph) Resolve() error {
	if g.state != Building {
		return fmt.Errorf("resolve in state %s: %w", g.state, ErrInvalidState)
	}

	if err := g.validate(); err != nil {
		return err
	}

	order, err := g.topoSort()
	if err != nil {
		return err
	}
	g.order = order

	g.computeLifetimes()
	g.state = Resolved
	return nil
}

func (g *frameGraph) ExecutionOrder() []string {
	if g.order == nil {
		return nil
	}
	names := make([]string, len(g.order))
	for i, p := range g.order {
		names[i] = g.passes[p].name
	}
	return names
}

func (g *frameGraph) Execute(ctx context.Context) error {
	if g.state != Resolved {
		return fmt.Errorf("execute in state %s: %w", g.state, ErrInvalidState)
	}
	g.state = Executing

	for pos, pi := range g.order {
		p := g.passes[pi]

		if err := g.acquireTransients(pos); err != nil {
			g.releaseHeld()
			return fmt.Errorf("pass %q: %w: %w", p.name, ErrPassExecutionFailed, err)
		}

		pc := &PassContext{
			pass:      p,
			resources: g.declaredResources(p),
		}

		if err := p.execute(ctx, pc); err != nil {
			g.releaseHeld()
			return fmt.Errorf("pass %q: %w: %w", p.name, ErrPassExecutionFailed, err)
		}

		g.releaseExpired(pos)
	}

	return nil
}

func (g *frameGraph) Retire() {
	g.releaseHeld()
	g.state = Retired
}

func (g *frameGraph) State() State {
	return g.state
}

// validate checks every declared name against the resource registry and
// that each transient has at least one writer before any reader needs it.
func (g *frameGraph) validate() error {
	writers := make(map[string]bool)
	for _, p := range g.passes {
		for _, name := range p.writes {
			if _, ok := g.resources[name]; !ok {
				return fmt.Errorf("pass %q writes %q: %w", p.name, name, ErrUnknownResource)
			}
			writers[name] = true
		}
	}
	for _, p := range g.passes {
		for _, name := range p.reads {
			res, ok := g.resources[name]
			if !ok {
				return fmt.Errorf("pass %q reads %q: %w", p.name, name, ErrUnknownResource)
			}
			if res.kind == resourceTransient && !writers[name] {
				return fmt.Errorf("pass %q reads transient %q that no pass writes: %w", p.name, name, ErrUnknownResource)
			}
		}
	}

	if g.allocator == nil {
		for _, res := range g.resources {
			if res.kind == resourceTransient && writers[res.name] {
				return fmt.Errorf("transient %q declared without an allocator: %w", res.name, ErrInvalidState)
			}
		}
	}

	return nil
}

// topoSort runs Kahn's algorithm over writer-before-reader edges, with
// writers of the same resource additionally serialized in registration
// order. Ties among ready passes break by registration order, making
// the result deterministic for a fixed registration sequence.
func (g *frameGraph) topoSort() ([]int, error) {
	n := len(g.passes)
	adj := make([][]int, n)
	indegree := make([]int, n)

	addEdge := func(from, to int) {
		if from == to {
			return
		}
		for _, v := range adj[from] {
			if v == to {
				return
			}
		}
		adj[from] = append(adj[from], to)
		indegree[to]++
	}

	readersOf := make(map[string][]int)
	writersOf := make(map[string][]int)
	for i, p := range g.passes {
		for _, name := range p.reads {
			readersOf[name] = append(readersOf[name], i)
		}
		for _, name := range p.writes {
			writersOf[name] = append(writersOf[name], i)
		}
	}

	for name, ws := range writersOf {
		for _, w := range ws {
			for _, r := range readersOf[name] {
				addEdge(w, r)
			}
		}
		// Two passes writing the same resource keep registration order.
		for i := 1; i < len(ws); i++ {
			addEdge(ws[i-1], ws[i])
		}
	}

	order := make([]int, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			var stuck []string
			for i, p := range g.passes {
				if !done[i] {
					stuck = append(stuck, p.name)
				}
			}
			return nil, fmt.Errorf("passes %v: %w", stuck, ErrCyclicDependency)
		}

		done[next] = true
		order = append(order, next)
		for _, v := range adj[next] {
			indegree[v]--
		}
	}

	return order, nil
}

// computeLifetimes records, per resource, the resolved positions of its
// first write and last use. Transients are acquired just before their
// first writer runs and released right after their last user finishes.
func (g *frameGraph) computeLifetimes() {
	for _, res := range g.resources {
		res.firstWrite = -1
		res.lastUse = -1
	}

	for pos, pi := range g.order {
		p := g.passes[pi]
		for _, name := range p.writes {
			res := g.resources[name]
			if res.firstWrite == -1 {
				res.firstWrite = pos
			}
			res.lastUse = pos
		}
		for _, name := range p.reads {
			g.resources[name].lastUse = pos
		}
	}
}

// acquireTransients backs every transient whose first write is the pass
// at the given position.
func (g *frameGraph) acquireTransients(pos int) error {
	for _, res := range g.resources {
		if res.kind != resourceTransient || res.firstWrite != pos {
			continue
		}
		view, err := g.allocator.AcquireTexture(res.desc)
		if err != nil {
			return fmt.Errorf("acquire transient %q: %w", res.name, err)
		}
		res.view = view
		g.held = append(g.held, res)
	}
	return nil
}

// releaseExpired returns transients whose last use is the pass at the
// given position back to the allocator for in-frame reuse.
func (g *frameGraph) releaseExpired(pos int) {
	kept := g.held[:0]
	for _, res := range g.held {
		if res.lastUse == pos {
			g.allocator.ReleaseTexture(res.desc, res.view)
			res.view = nil
			continue
		}
		kept = append(kept, res)
	}
	g.held = kept
}

// releaseHeld returns every still-held transient to the allocator.
func (g *frameGraph) releaseHeld() {
	for _, res := range g.held {
		g.allocator.ReleaseTexture(res.desc, res.view)
		res.view = nil
	}
	g.held = g.held[:0]
}

// declaredResources builds the restricted view of the registry a pass
// may touch during execution.
func (g *frameGraph) declaredResources(p *pass) map[string]*resource {
	out := make(map[string]*resource, len(p.reads)+len(p.writes))
	for _, name := range p.reads {
		out[name] = g.resources[name]
	}
	for _, name := range p.writes {
		out[name] = g.resources[name]
	}
	return out
}
