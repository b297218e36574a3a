package bvh

import (
	"math/rand"
	"testing"

	"github.com/achilleasa/aabbtree/types"
)

func makeTriangle(v0, v1, v2 types.Vec3) Triangle {
	return Triangle{v0.Vec4(0), v1.Vec4(0), v2.Vec4(0)}
}

func leafsFor(triangles []Triangle) []Leaf {
	leafs := make([]Leaf, len(triangles))
	for i, tri := range triangles {
		leafs[i] = NewLeaf(tri, int32(i))
	}
	return leafs
}

// Generate count small triangles whose centroids are uniformly spread inside
// the unit cube.
func randomTriangles(seed int64, count int, size float32) []Triangle {
	rng := rand.New(rand.NewSource(seed))
	rnd := func() types.Vec3 {
		return types.Vec3{rng.Float32(), rng.Float32(), rng.Float32()}
	}

	triangles := make([]Triangle, count)
	for i := range triangles {
		c := rnd()
		triangles[i] = makeTriangle(
			c.Add(rnd().Sub(types.Vec3{0.5, 0.5, 0.5}).Mul(size)),
			c.Add(rnd().Sub(types.Vec3{0.5, 0.5, 0.5}).Mul(size)),
			c.Add(rnd().Sub(types.Vec3{0.5, 0.5, 0.5}).Mul(size)),
		)
	}
	return triangles
}

func buildDefault(triangles []Triangle) *Tree {
	return BuildTree(triangles, leafsFor(triangles), DefaultOptions())
}

// Compute the exact bounds of all triangles reachable through ref.
func subtreeBounds(tree *Tree, ref int32) [2]types.Vec3 {
	if IsLeaf(ref) {
		return tree.Triangles[DecodeLeaf(ref)].BBox()
	}
	node := &tree.Nodes[ref]
	return unionBBox(subtreeBounds(tree, node.LeftChild), subtreeBounds(tree, node.RightChild))
}

func subtreeLeafCount(tree *Tree, ref int32) int {
	if IsLeaf(ref) {
		return 1
	}
	node := &tree.Nodes[ref]
	return subtreeLeafCount(tree, node.LeftChild) + subtreeLeafCount(tree, node.RightChild)
}

func mustValidate(t *testing.T, tree *Tree) {
	t.Helper()
	if err := tree.Validate(); err != nil {
		t.Fatal(err)
	}
}
