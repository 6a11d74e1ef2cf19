package renderer

import "github.com/lumen3d/lumen/engine/profiler"

// RendererOption configures optional renderer behavior.
type RendererOption func(*rendererImpl)

// WithProfiler attaches a profiler; the driver records "collect" and
// "frame" stage timings into it. Ticking the profiler once per frame
// stays with the loop that owns frame pacing.
//
// Parameters:
//   - p: the profiler to record into.
//
// Returns:
//   - RendererOption: the option function.
func WithProfiler(p *profiler.Profiler) RendererOption {
	return func(r *rendererImpl) {
		r.prof = p
	}
}

// WithInitialSize sets the surface size used for transient attachments
// before the first Resize call.
//
// Parameters:
//   - width: initial surface width in pixels.
//   - height: initial surface height in pixels.
//
// Returns:
//   - RendererOption: the option function.
func WithInitialSize(width, height int) RendererOption {
	return func(r *rendererImpl) {
		r.width = width
		r.height = height
	}
}
