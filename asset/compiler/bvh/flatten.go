package bvh

import (
	"fmt"

	"github.com/achilleasa/aabbtree/asset/scene"
	"github.com/achilleasa/aabbtree/types"
)

// A Leaf is the build-time view of a single triangle.
type Leaf struct {
	Min      types.Vec3
	Max      types.Vec3
	Centroid types.Vec3

	// Index into the triangle list.
	GeomIndex int32

	// Scratch space used by a single partition step.
	bucket int
}

// Create a leaf for a triangle.
func NewLeaf(tri Triangle, geomIndex int32) Leaf {
	bbox := tri.BBox()
	return Leaf{
		Min:       bbox[0],
		Max:       bbox[1],
		Centroid:  bbox[0].Add(bbox[1]).Mul(0.5),
		GeomIndex: geomIndex,
	}
}

// Get leaf AABB.
func (l *Leaf) BBox() [2]types.Vec3 {
	return [2]types.Vec3{l.Min, l.Max}
}

// Transform the scene geometry into world space and emit a triangle and a
// leaf for each indexed triangle. Output follows node, then primitive, then
// triangle order; the leaf at position i always references triangle i.
func Flatten(sc *scene.Scene) ([]Triangle, []Leaf, error) {
	triCount := sc.TriangleCount()
	triangles := make([]Triangle, 0, triCount)
	leafs := make([]Leaf, 0, triCount)

	for nodeIndex, node := range sc.Nodes {
		if node.PrimMesh < 0 || node.PrimMesh >= len(sc.PrimMeshes) {
			return nil, nil, fmt.Errorf("flatten: node %d references unknown prim mesh %d", nodeIndex, node.PrimMesh)
		}
		pm := sc.PrimMeshes[node.PrimMesh]

		if uint64(pm.FirstIndex)+uint64(pm.IndexCount) > uint64(len(sc.Indices)) {
			return nil, nil, fmt.Errorf("flatten: prim mesh %d index range [%d, %d) exceeds index buffer length %d", node.PrimMesh, pm.FirstIndex, pm.FirstIndex+pm.IndexCount, len(sc.Indices))
		}

		indices := sc.Indices[pm.FirstIndex : pm.FirstIndex+pm.IndexCount]
		for i := 0; i+2 < len(indices); i += 3 {
			var tri Triangle
			for v := 0; v < 3; v++ {
				posIndex := uint64(pm.VertexOffset) + uint64(indices[i+v])
				if posIndex >= uint64(len(sc.Positions)) {
					return nil, nil, fmt.Errorf("flatten: prim mesh %d references vertex %d; position buffer length is %d", node.PrimMesh, posIndex, len(sc.Positions))
				}
				tri[v] = node.WorldMatrix.TransformPoint(sc.Positions[posIndex]).Vec4(0)
			}

			geomIndex := int32(len(triangles))
			triangles = append(triangles, tri)
			leafs = append(leafs, NewLeaf(tri, geomIndex))
		}
	}

	return triangles, leafs, nil
}
