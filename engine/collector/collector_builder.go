package collector

// CollectorOption configures a collector during construction.
type CollectorOption func(*collectorImpl)

// WithCullFunc installs a fixed visibility predicate, replacing the
// default per-frame frustum-sphere cull.
//
// Parameters:
//   - fn: the visibility predicate.
//
// Returns:
//   - CollectorOption: the option to apply.
func WithCullFunc(fn CullFunc) CollectorOption {
	return func(c *collectorImpl) {
		c.cull = fn
	}
}

// WithoutCulling disables culling entirely; every drawable instance is
// batched regardless of the camera.
//
// Returns:
//   - CollectorOption: the option to apply.
func WithoutCulling() CollectorOption {
	return func(c *collectorImpl) {
		c.noCull = true
	}
}
