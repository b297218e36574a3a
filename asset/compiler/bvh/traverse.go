package bvh

import (
	"math"

	"github.com/achilleasa/aabbtree/types"
)

const (
	// Hits closer than this are ignored to avoid self-intersections.
	minHitDistance float32 = 1e-5

	// Determinant threshold for rays parallel to the triangle plane.
	parallelEpsilon float32 = 1e-9

	// Slab exit distances are scaled by this factor to absorb rounding so
	// hits on a box boundary are never culled.
	slabExitScale float32 = 1 + 1e-5
)

// A Ray with an origin and a (not necessarily normalized) direction.
type Ray struct {
	Origin types.Vec3
	Dir    types.Vec3
}

// Hit describes the closest intersection found by Intersect.
type Hit struct {
	Triangle int32

	// Distance along the ray in units of the ray direction length.
	T float32

	// Barycentric coordinates of the hit point.
	U, V float32
}

// Find the closest triangle hit along the ray within (0, tMax).
func (t *Tree) Intersect(ray Ray, tMax float32) (Hit, bool) {
	return t.traverse(ray, tMax, false)
}

// Returns true if any triangle blocks the ray within (0, tMax). This is the
// query used for shadow rays.
func (t *Tree) Occluded(ray Ray, tMax float32) bool {
	_, found := t.traverse(ray, tMax, true)
	return found
}

func (t *Tree) traverse(ray Ray, tMax float32, anyHit bool) (Hit, bool) {
	closest := Hit{Triangle: -1, T: tMax}
	if t.Empty() {
		return closest, false
	}

	if IsLeaf(t.Root) {
		return closest, t.testTriangle(ray, DecodeLeaf(t.Root), &closest)
	}

	invDir := types.Vec3{1 / ray.Dir[0], 1 / ray.Dir[1], 1 / ray.Dir[2]}
	found := false
	stack := make([]int32, 1, 64)
	stack[0] = t.Root
	for len(stack) > 0 {
		node := &t.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		children := [2]struct {
			ref      int32
			min, max types.Vec4
		}{
			{node.LeftChild, node.LeftMin, node.LeftMax},
			{node.RightChild, node.RightMin, node.RightMax},
		}
		for _, child := range children {
			if !hitBox(ray.Origin, invDir, child.min.Vec3(), child.max.Vec3(), closest.T) {
				continue
			}

			if !IsLeaf(child.ref) {
				stack = append(stack, child.ref)
				continue
			}

			if t.testTriangle(ray, DecodeLeaf(child.ref), &closest) {
				found = true
				if anyHit {
					return closest, true
				}
			}
		}
	}

	return closest, found
}

// Test the ray against a triangle and update closest if the hit is nearer.
func (t *Tree) testTriangle(ray Ray, triIndex int32, closest *Hit) bool {
	dist, u, v, ok := intersectTriangle(ray, t.Triangles[triIndex])
	if !ok || dist >= closest.T {
		return false
	}
	*closest = Hit{Triangle: triIndex, T: dist, U: u, V: v}
	return true
}

// Slab test. Comparisons are arranged so NaNs produced by 0 * Inf never
// tighten the interval.
func hitBox(origin, invDir, bmin, bmax types.Vec3, tMax float32) bool {
	var tNear float32 = 0
	tFar := tMax
	for axis := 0; axis < 3; axis++ {
		t1 := (bmin[axis] - origin[axis]) * invDir[axis]
		t2 := (bmax[axis] - origin[axis]) * invDir[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		t2 *= slabExitScale
		if t1 > tNear {
			tNear = t1
		}
		if t2 < tFar {
			tFar = t2
		}
		if tNear > tFar {
			return false
		}
	}
	return true
}

// Möller–Trumbore ray/triangle intersection.
func intersectTriangle(ray Ray, tri Triangle) (dist, u, v float32, ok bool) {
	v0, v1, v2 := tri.Vertex(0), tri.Vertex(1), tri.Vertex(2)
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)

	p := ray.Dir.Cross(e2)
	det := e1.Dot(p)
	if float32(math.Abs(float64(det))) < parallelEpsilon {
		return 0, 0, 0, false
	}
	invDet := 1 / det

	s := ray.Origin.Sub(v0)
	u = s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	q := s.Cross(e1)
	v = ray.Dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	dist = e2.Dot(q) * invDet
	if dist <= minHitDistance {
		return 0, 0, 0, false
	}
	return dist, u, v, true
}
