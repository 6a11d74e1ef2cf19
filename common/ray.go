package common

// Ray is a world-space ray used by picking queries.
// Direction should be normalized; RayFromScreen returns normalized rays.
type Ray struct {
	Origin    [3]float32
	Direction [3]float32
}

// Point returns the point at parametric distance t along the ray.
func (r Ray) Point(t float32) [3]float32 {
	return Add3(r.Origin, Scale3(r.Direction, t))
}

// RayFromScreen converts a screen-space point into a world-space ray by
// unprojecting it through the inverse of the camera's view-projection matrix.
// Screen coordinates are in pixels with the origin at the top-left, matching
// window cursor callbacks.
//
// Parameters:
//   - x, y: cursor position in pixels
//   - width, height: viewport size in pixels
//   - viewProj: the camera's view-projection matrix (16 elements, column-major)
//
// Returns:
//   - Ray: the world-space ray through the screen point
//   - bool: false if the view-projection matrix is singular
func RayFromScreen(x, y float32, width, height int, viewProj []float32) (Ray, bool) {
	var inv [16]float32
	if !Invert4(inv[:], viewProj) {
		return Ray{}, false
	}

	// NDC with WebGPU depth range: near plane at z=0, far at z=1.
	ndcX := 2.0*x/float32(width) - 1.0
	ndcY := 1.0 - 2.0*y/float32(height)

	near := unproject(inv[:], ndcX, ndcY, 0.0)
	far := unproject(inv[:], ndcX, ndcY, 1.0)

	return Ray{
		Origin:    near,
		Direction: Normalize3(Sub3(far, near)),
	}, true
}

// unproject applies an inverse view-projection matrix to an NDC point and
// performs the perspective divide.
func unproject(inv []float32, x, y, z float32) [3]float32 {
	px := inv[0]*x + inv[4]*y + inv[8]*z + inv[12]
	py := inv[1]*x + inv[5]*y + inv[9]*z + inv[13]
	pz := inv[2]*x + inv[6]*y + inv[10]*z + inv[14]
	pw := inv[3]*x + inv[7]*y + inv[11]*z + inv[15]
	if pw == 0 {
		pw = 1
	}
	invW := 1.0 / pw
	return [3]float32{px * invW, py * invW, pz * invW}
}
