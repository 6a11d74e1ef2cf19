package picking

import (
	"math"

	"github.com/lumen3d/lumen/common"
	"github.com/lumen3d/lumen/engine/scenegraph"
)

// Hit is a successful raycast result: the picked node and the distance
// along the ray to the nearest intersection point.
type Hit struct {
	Node     scenegraph.NodeID
	Distance float32
}

// Service answers editor picking queries by intersecting a world-space
// ray against the collision shapes attached to scene graph nodes.
// Nodes without a CollisionShape component are never pick targets,
// whether or not they are rendered.
type Service interface {
	// Raycast walks the graph and tests the ray against every node
	// carrying a CollisionShape, transformed by that node's resolved
	// world transform. The closest hit wins.
	//
	// Parameters:
	//   - graph: the scene graph to query.
	//   - ray: the world-space ray; direction should be normalized so
	//     distances are in world units.
	//
	// Returns:
	//   - Hit: the closest hit node and distance.
	//   - bool: false if the ray hit nothing.
	Raycast(graph scenegraph.Graph, ray common.Ray) (Hit, bool)
}

type service struct {
	maxDistance float32
}

var _ Service = &service{}

// NewService creates a picking service.
//
// Parameters:
//   - opts: optional configuration functions.
//
// Returns:
//   - Service: the new service.
func NewService(opts ...ServiceOption) Service {
	s := &service{
		maxDistance: float32(math.Inf(1)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) Raycast(graph scenegraph.Graph, ray common.Ray) (Hit, bool) {
	best := Hit{Distance: s.maxDistance}
	found := false

	type frame struct {
		id    scenegraph.NodeID
		world [16]float32
	}

	var identity [16]float32
	common.Identity(identity[:])

	roots := graph.Roots()
	stack := make([]frame, 0, max(len(roots), 32))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: roots[i], world: identity})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		world := top.world
		if tr, ok := scenegraph.ComponentAs[scenegraph.Transform](graph, top.id, scenegraph.KindTransform); ok {
			local := tr.Matrix()
			common.Mul4(world[:], top.world[:], local[:])
		}

		if shape, ok := scenegraph.ComponentAs[scenegraph.CollisionShape](graph, top.id, scenegraph.KindCollisionShape); ok {
			if t, hit := intersect(ray, shape, world); hit && t < best.Distance {
				best = Hit{Node: top.id, Distance: t}
				found = true
			}
		}

		children := graph.Children(top.id)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], world: world})
		}
	}

	return best, found
}

// intersect dispatches on the shape kind and returns the smallest
// non-negative ray parameter, in world units for a normalized ray.
func intersect(ray common.Ray, shape scenegraph.CollisionShape, world [16]float32) (float32, bool) {
	switch shape.Kind {
	case scenegraph.ShapeSphere:
		center := common.TransformPoint(world[:], [3]float32{0, 0, 0})
		return raySphere(ray, center, shape.Radius*maxAxisScale(world))
	case scenegraph.ShapeBox:
		return rayBox(ray, shape.HalfExtents, world)
	case scenegraph.ShapeCapsule:
		a := common.TransformPoint(world[:], [3]float32{0, -shape.HalfHeight, 0})
		b := common.TransformPoint(world[:], [3]float32{0, shape.HalfHeight, 0})
		return rayCapsule(ray, a, b, shape.Radius*maxAxisScale(world))
	default:
		return 0, false
	}
}

// raySphere solves the analytic quadratic for a sphere centered at c.
func raySphere(ray common.Ray, c [3]float32, r float32) (float32, bool) {
	oc := common.Sub3(ray.Origin, c)
	b := common.Dot3(oc, ray.Direction)
	q := common.Dot3(oc, oc) - r*r

	disc := b*b - q
	if disc < 0 {
		return 0, false
	}

	root := float32(math.Sqrt(float64(disc)))
	t := -b - root
	if t < 0 {
		// Origin inside the sphere: take the exit point.
		t = -b + root
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// rayBox transforms the ray into the box's local space and runs the
// slab test against [-halfExtents, +halfExtents]. The local ray keeps
// the world parametrization, so the returned t is a world distance.
func rayBox(ray common.Ray, halfExtents [3]float32, world [16]float32) (float32, bool) {
	var inv [16]float32
	if !common.Invert4(inv[:], world[:]) {
		return 0, false
	}

	o := common.TransformPoint(inv[:], ray.Origin)
	d := common.TransformDirection(inv[:], ray.Direction)

	tMin := float32(math.Inf(-1))
	tMax := float32(math.Inf(1))

	for i := 0; i < 3; i++ {
		if absf(d[i]) < 1e-8 {
			if o[i] < -halfExtents[i] || o[i] > halfExtents[i] {
				return 0, false
			}
			continue
		}

		t1 := (-halfExtents[i] - o[i]) / d[i]
		t2 := (halfExtents[i] - o[i]) / d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return 0, false
		}
	}

	if tMax < 0 {
		return 0, false
	}
	if tMin < 0 {
		// Origin inside the box.
		return tMax, true
	}
	return tMin, true
}

// rayCapsule intersects the ray with a capsule given by the world-space
// cap centers a, b and radius r: the infinite cylinder body clipped to
// the segment, plus sphere caps.
func rayCapsule(ray common.Ray, a, b [3]float32, r float32) (float32, bool) {
	ba := common.Sub3(b, a)
	oa := common.Sub3(ray.Origin, a)

	baba := common.Dot3(ba, ba)
	bard := common.Dot3(ba, ray.Direction)
	baoa := common.Dot3(ba, oa)
	rdoa := common.Dot3(ray.Direction, oa)
	oaoa := common.Dot3(oa, oa)

	if baba == 0 {
		// Degenerate capsule (zero-length segment) is a sphere.
		return raySphere(ray, a, r)
	}

	qa := baba - bard*bard
	qb := baba*rdoa - baoa*bard
	qc := baba*oaoa - baoa*baoa - r*r*baba

	disc := qb*qb - qa*qc
	if disc < 0 {
		return 0, false
	}

	if qa > 1e-8 {
		t := (-qb - float32(math.Sqrt(float64(disc)))) / qa
		y := baoa + t*bard
		if t >= 0 && y >= 0 && y <= baba {
			return t, true
		}
	}

	// Cap spheres cover the segment endpoints and the parallel-ray case.
	if t, ok := raySphere(ray, a, r); ok {
		if t2, ok2 := raySphere(ray, b, r); ok2 && t2 < t {
			return t2, true
		}
		return t, true
	}
	return raySphere(ray, b, r)
}

// maxAxisScale returns the largest basis-vector length of the matrix.
func maxAxisScale(m [16]float32) float32 {
	s := common.Length3([3]float32{m[0], m[1], m[2]})
	if y := common.Length3([3]float32{m[4], m[5], m[6]}); y > s {
		s = y
	}
	if z := common.Length3([3]float32{m[8], m[9], m[10]}); z > s {
		s = z
	}
	return s
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
