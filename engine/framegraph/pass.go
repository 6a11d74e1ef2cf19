package framegraph

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// PassFunc is the body of a render pass. It runs once per frame in
// resolved order and receives only the resources the pass declared.
type PassFunc func(ctx context.Context, pc *PassContext) error

// pass is one registered render pass.
type pass struct {
	name    string
	reads   []string
	writes  []string
	execute PassFunc
}

// declares reports whether the pass listed the name in reads or writes.
func (p *pass) declares(name string) bool {
	for _, r := range p.reads {
		if r == name {
			return true
		}
	}
	for _, w := range p.writes {
		if w == name {
			return true
		}
	}
	return false
}

// PassContext is a pass's window onto the graph during execution. It
// resolves resource names to their backing views and buffers, and
// rejects any name the pass did not declare.
type PassContext struct {
	pass      *pass
	resources map[string]*resource
}

// Texture resolves a declared texture resource to its backing view.
//
// Parameters:
//   - name: the logical resource name.
//
// Returns:
//   - *wgpu.TextureView: the backing view.
//   - error: ErrUndeclaredResource if the pass did not declare the name,
//     ErrUnknownResource if the name does not resolve to a texture.
func (pc *PassContext) Texture(name string) (*wgpu.TextureView, error) {
	if !pc.pass.declares(name) {
		return nil, fmt.Errorf("pass %q texture %q: %w", pc.pass.name, name, ErrUndeclaredResource)
	}
	res, ok := pc.resources[name]
	if !ok || res.kind == resourceImportedBuffer {
		return nil, fmt.Errorf("pass %q texture %q: %w", pc.pass.name, name, ErrUnknownResource)
	}
	return res.view, nil
}

// Buffer resolves a declared buffer resource to its backing buffer.
//
// Parameters:
//   - name: the logical resource name.
//
// Returns:
//   - *wgpu.Buffer: the backing buffer.
//   - error: ErrUndeclaredResource if the pass did not declare the name,
//     ErrUnknownResource if the name does not resolve to a buffer.
func (pc *PassContext) Buffer(name string) (*wgpu.Buffer, error) {
	if !pc.pass.declares(name) {
		return nil, fmt.Errorf("pass %q buffer %q: %w", pc.pass.name, name, ErrUndeclaredResource)
	}
	res, ok := pc.resources[name]
	if !ok || res.kind != resourceImportedBuffer {
		return nil, fmt.Errorf("pass %q buffer %q: %w", pc.pass.name, name, ErrUnknownResource)
	}
	return res.buffer, nil
}

// PassName returns the executing pass's registered name.
func (pc *PassContext) PassName() string {
	return pc.pass.name
}
