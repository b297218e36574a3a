package bvh

import (
	"math"

	"github.com/achilleasa/aabbtree/types"
)

// A world-space triangle. Vertices are stored as Vec4 so each one occupies a
// 16-byte aligned slot on the GPU; the W component is unused.
type Triangle [3]types.Vec4

// Get the triangle vertex at index i as a Vec3.
func (tri Triangle) Vertex(i int) types.Vec3 {
	return tri[i].Vec3()
}

// Get the triangle AABB.
func (tri Triangle) BBox() [2]types.Vec3 {
	v0, v1, v2 := tri.Vertex(0), tri.Vertex(1), tri.Vertex(2)
	return [2]types.Vec3{
		types.MinVec3(v0, types.MinVec3(v1, v2)),
		types.MaxVec3(v0, types.MaxVec3(v1, v2)),
	}
}

// AabbNode is an internal tree node. Each node stores the bounding boxes of
// its two children so a traversal can test both of them with a single fetch.
//
// LeftChild/RightChild use the leaf encoding: values >= 0 index the node
// list while negative values v reference the triangle at index ^v.
type AabbNode struct {
	LeftMin  types.Vec4
	LeftMax  types.Vec4
	RightMin types.Vec4
	RightMax types.Vec4

	LeftChild  int32
	RightChild int32

	// std430 rounds the struct size up to its 16-byte alignment.
	_ [2]int32
}

// Set the left child bounding box.
func (n *AabbNode) SetLeftBBox(bbox [2]types.Vec3) {
	n.LeftMin = bbox[0].Vec4(0)
	n.LeftMax = bbox[1].Vec4(0)
}

// Set the right child bounding box.
func (n *AabbNode) SetRightBBox(bbox [2]types.Vec3) {
	n.RightMin = bbox[0].Vec4(0)
	n.RightMax = bbox[1].Vec4(0)
}

// Get the left child bounding box.
func (n *AabbNode) LeftBBox() [2]types.Vec3 {
	return [2]types.Vec3{n.LeftMin.Vec3(), n.LeftMax.Vec3()}
}

// Get the right child bounding box.
func (n *AabbNode) RightBBox() [2]types.Vec3 {
	return [2]types.Vec3{n.RightMin.Vec3(), n.RightMax.Vec3()}
}

// Encode a triangle index as a child reference.
func EncodeLeaf(triIndex int32) int32 {
	return ^triIndex
}

// Decode a leaf child reference back to a triangle index.
func DecodeLeaf(ref int32) int32 {
	return ^ref
}

// Returns true if the child reference points to a triangle.
func IsLeaf(ref int32) bool {
	return ref < 0
}

// An AABB tree over a set of world-space triangles.
//
// For N >= 2 triangles Nodes contains exactly N-1 entries. A single triangle
// produces no nodes and a leaf-encoded Root. An empty tree has no nodes, no
// triangles and its Root must not be used.
type Tree struct {
	Nodes     []AabbNode
	Triangles []Triangle
	Root      int32
}

// Returns true if the tree contains no triangles. Callers must skip
// traversal entirely for empty trees.
func (t *Tree) Empty() bool {
	return len(t.Triangles) == 0
}

// Get the bounds of all geometry in the tree.
func (t *Tree) Bounds() [2]types.Vec3 {
	if t.Empty() {
		return emptyBBox()
	}

	if IsLeaf(t.Root) {
		return t.Triangles[DecodeLeaf(t.Root)].BBox()
	}

	root := &t.Nodes[t.Root]
	return unionBBox(root.LeftBBox(), root.RightBBox())
}

// An inverted box that acts as the identity for unionBBox.
func emptyBBox() [2]types.Vec3 {
	return [2]types.Vec3{
		{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

func unionBBox(a, b [2]types.Vec3) [2]types.Vec3 {
	return [2]types.Vec3{
		types.MinVec3(a[0], b[0]),
		types.MaxVec3(a[1], b[1]),
	}
}

// Half the surface area of a box. The factor of two cancels out in all cost
// ratios so it is omitted.
func halfArea(bbox [2]types.Vec3) float32 {
	side := bbox[1].Sub(bbox[0])
	return side[0]*side[1] + side[0]*side[2] + side[1]*side[2]
}

func containsBBox(outer, inner [2]types.Vec3) bool {
	for axis := 0; axis < 3; axis++ {
		if inner[0][axis] < outer[0][axis] || inner[1][axis] > outer[1][axis] {
			return false
		}
	}
	return true
}
