package camera

import (
	"sync"

	"github.com/lumen3d/lumen/common"
)

// Camera produces the view and projection matrices the collector and
// renderer consume each frame. A camera is either perspective or
// orthographic; switching modes only changes how the projection matrix
// is derived, the view side is always position/target/up.
type Camera interface {
	// Position returns the camera eye position in world space.
	//
	// Returns:
	//   - [3]float32: the eye position.
	Position() [3]float32

	// SetPosition moves the camera eye to the given world-space position.
	//
	// Parameters:
	//   - position: the new eye position.
	SetPosition(position [3]float32)

	// Target returns the world-space point the camera looks at.
	//
	// Returns:
	//   - [3]float32: the look-at target.
	Target() [3]float32

	// SetTarget re-aims the camera at the given world-space point.
	//
	// Parameters:
	//   - target: the new look-at target.
	SetTarget(target [3]float32)

	// Up returns the camera up vector.
	//
	// Returns:
	//   - [3]float32: the up vector.
	Up() [3]float32

	// SetUp replaces the camera up vector.
	//
	// Parameters:
	//   - up: the new up vector.
	SetUp(up [3]float32)

	// SetAspect updates the projection aspect ratio. Only meaningful in
	// perspective mode; callers typically invoke this on window resize.
	//
	// Parameters:
	//   - aspect: width divided by height.
	SetAspect(aspect float32)

	// SetFov updates the vertical field of view and switches the camera
	// into perspective mode.
	//
	// Parameters:
	//   - fov: the vertical field of view in radians.
	SetFov(fov float32)

	// SetOrthographic switches the camera into orthographic mode with the
	// given half-extents.
	//
	// Parameters:
	//   - xMag: half the view width in world units.
	//   - yMag: half the view height in world units.
	SetOrthographic(xMag, yMag float32)

	// SetClipPlanes updates the near and far clip distances.
	//
	// Parameters:
	//   - near: the near clip distance.
	//   - far: the far clip distance.
	SetClipPlanes(near, far float32)

	// ViewMatrix returns the current view matrix in column-major order.
	//
	// Returns:
	//   - [16]float32: the view matrix.
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current projection matrix in
	// column-major order.
	//
	// Returns:
	//   - [16]float32: the projection matrix.
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns projection multiplied by view in
	// column-major order.
	//
	// Returns:
	//   - [16]float32: the combined view-projection matrix.
	ViewProjectionMatrix() [16]float32

	// Frustum extracts the six world-space clip planes from the current
	// view-projection matrix.
	//
	// Returns:
	//   - common.Frustum: the view frustum.
	Frustum() common.Frustum

	// ScreenRay unprojects a screen-space pixel coordinate into a
	// world-space ray suitable for picking.
	//
	// Parameters:
	//   - x: the pixel x coordinate.
	//   - y: the pixel y coordinate.
	//   - width: the viewport width in pixels.
	//   - height: the viewport height in pixels.
	//
	// Returns:
	//   - common.Ray: the world-space ray through the pixel.
	//   - bool: false if the view-projection matrix is not invertible.
	ScreenRay(x, y float32, width, height int) (common.Ray, bool)
}

type cameraImpl struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32
	up       [3]float32

	orthographic bool
	fov          float32
	aspect       float32
	xMag         float32
	yMag         float32
	near         float32
	far          float32

	viewMatrix           [16]float32
	projectionMatrix     [16]float32
	viewProjectionMatrix [16]float32
}

var _ Camera = &cameraImpl{}

// NewCamera creates a perspective camera at the origin looking down the
// negative Z axis, configurable through the given options.
//
// Parameters:
//   - opts: optional configuration functions.
//
// Returns:
//   - Camera: the new camera.
func NewCamera(opts ...CameraOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: [3]float32{0, 0, 5},
		target:   [3]float32{0, 0, 0},
		up:       [3]float32{0, 1, 0},
		fov:      45.0 * (3.14159265 / 180.0),
		aspect:   1.0,
		near:     0.1,
		far:      100.0,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) SetPosition(position [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
	c.updateMatrices()
}

func (c *cameraImpl) Target() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) SetTarget(target [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
	c.updateMatrices()
}

func (c *cameraImpl) Up() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) SetUp(up [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = up
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.orthographic = false
	c.updateMatrices()
}

func (c *cameraImpl) SetOrthographic(xMag, yMag float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xMag = xMag
	c.yMag = yMag
	c.orthographic = true
	c.updateMatrices()
}

func (c *cameraImpl) SetClipPlanes(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.ExtractFrustumFromMatrix(c.viewProjectionMatrix[:])
}

func (c *cameraImpl) ScreenRay(x, y float32, width, height int) (common.Ray, bool) {
	c.mu.Lock()
	vp := c.viewProjectionMatrix
	c.mu.Unlock()
	return common.RayFromScreen(x, y, width, height, vp[:])
}

// updateMatrices recomputes view, projection and their product. Callers
// must hold c.mu.
func (c *cameraImpl) updateMatrices() {
	common.LookAt(c.viewMatrix[:],
		c.position[0], c.position[1], c.position[2],
		c.target[0], c.target[1], c.target[2],
		c.up[0], c.up[1], c.up[2])
	if c.orthographic {
		common.Orthographic(c.projectionMatrix[:], c.xMag, c.yMag, c.near, c.far)
	} else {
		common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	}
	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
}
