package camera

// CameraOption configures a camera during construction.
type CameraOption func(*cameraImpl)

// WithPosition sets the initial eye position.
//
// Parameters:
//   - position: the world-space eye position.
//
// Returns:
//   - CameraOption: the option to apply.
func WithPosition(position [3]float32) CameraOption {
	return func(c *cameraImpl) {
		c.position = position
	}
}

// WithTarget sets the initial look-at target.
//
// Parameters:
//   - target: the world-space target point.
//
// Returns:
//   - CameraOption: the option to apply.
func WithTarget(target [3]float32) CameraOption {
	return func(c *cameraImpl) {
		c.target = target
	}
}

// WithUp sets the initial up vector.
//
// Parameters:
//   - up: the up vector.
//
// Returns:
//   - CameraOption: the option to apply.
func WithUp(up [3]float32) CameraOption {
	return func(c *cameraImpl) {
		c.up = up
	}
}

// WithFov sets the vertical field of view in radians and leaves the
// camera in perspective mode.
//
// Parameters:
//   - fov: the vertical field of view in radians.
//
// Returns:
//   - CameraOption: the option to apply.
func WithFov(fov float32) CameraOption {
	return func(c *cameraImpl) {
		c.fov = fov
		c.orthographic = false
	}
}

// WithAspect sets the projection aspect ratio.
//
// Parameters:
//   - aspect: width divided by height.
//
// Returns:
//   - CameraOption: the option to apply.
func WithAspect(aspect float32) CameraOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithClipPlanes sets the near and far clip distances.
//
// Parameters:
//   - near: the near clip distance.
//   - far: the far clip distance.
//
// Returns:
//   - CameraOption: the option to apply.
func WithClipPlanes(near, far float32) CameraOption {
	return func(c *cameraImpl) {
		c.near = near
		c.far = far
	}
}

// WithOrthographic puts the camera in orthographic mode with the given
// half-extents.
//
// Parameters:
//   - xMag: half the view width in world units.
//   - yMag: half the view height in world units.
//
// Returns:
//   - CameraOption: the option to apply.
func WithOrthographic(xMag, yMag float32) CameraOption {
	return func(c *cameraImpl) {
		c.xMag = xMag
		c.yMag = yMag
		c.orthographic = true
	}
}
