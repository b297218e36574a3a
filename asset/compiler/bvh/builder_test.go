package bvh

import (
	"reflect"
	"testing"

	"github.com/achilleasa/aabbtree/types"
)

func TestNodeCount(t *testing.T) {
	for _, count := range []int{0, 1, 2, 3, 4, 5, 12, 13, 100, 257} {
		tree := buildDefault(randomTriangles(int64(count), count, 0.05))

		expNodes := count - 1
		if count == 0 {
			expNodes = 0
		}
		if len(tree.Nodes) != expNodes {
			t.Fatalf("expected tree with %d triangles to have %d nodes; got %d", count, expNodes, len(tree.Nodes))
		}
		if len(tree.Triangles) != count {
			t.Fatalf("expected tree to have %d triangles; got %d", count, len(tree.Triangles))
		}
		mustValidate(t, tree)
	}
}

func TestEmptyTree(t *testing.T) {
	tree := BuildTree(nil, nil, DefaultOptions())
	if !tree.Empty() {
		t.Fatal("expected tree to be empty")
	}
	if len(tree.Nodes) != 0 || len(tree.Triangles) != 0 {
		t.Fatalf("expected no nodes and no triangles; got %d and %d", len(tree.Nodes), len(tree.Triangles))
	}
	if _, hit := tree.Intersect(Ray{Dir: types.Vec3{0, 0, 1}}, 1e9); hit {
		t.Fatal("expected no hits for an empty tree")
	}
}

func TestSingleTriangle(t *testing.T) {
	triangles := []Triangle{makeTriangle(types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, types.Vec3{0, 1, 0})}
	tree := buildDefault(triangles)

	if len(tree.Nodes) != 0 {
		t.Fatalf("expected no nodes; got %d", len(tree.Nodes))
	}
	if exp := EncodeLeaf(0); tree.Root != exp {
		t.Fatalf("expected root to be %d; got %d", exp, tree.Root)
	}

	bounds := tree.Bounds()
	if exp := [2]types.Vec3{{0, 0, 0}, {1, 1, 0}}; bounds != exp {
		t.Fatalf("expected bounds %v; got %v", exp, bounds)
	}
}

func TestTwoDisjointTriangles(t *testing.T) {
	triangles := []Triangle{
		makeTriangle(types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, types.Vec3{0, 1, 0}),
		makeTriangle(types.Vec3{100, 50, 0}, types.Vec3{101, 50, 0}, types.Vec3{100, 51, 1}),
	}
	tree := buildDefault(triangles)

	if len(tree.Nodes) != 1 {
		t.Fatalf("expected 1 node; got %d", len(tree.Nodes))
	}
	if tree.Root != 0 {
		t.Fatalf("expected root to point to node 0; got %d", tree.Root)
	}

	node := tree.Nodes[0]
	if node.LeftChild != EncodeLeaf(0) || node.RightChild != EncodeLeaf(1) {
		t.Fatalf("expected children (%d, %d); got (%d, %d)", EncodeLeaf(0), EncodeLeaf(1), node.LeftChild, node.RightChild)
	}
	if exp := triangles[0].BBox(); node.LeftBBox() != exp {
		t.Fatalf("expected left bbox %v; got %v", exp, node.LeftBBox())
	}
	if exp := triangles[1].BBox(); node.RightBBox() != exp {
		t.Fatalf("expected right bbox %v; got %v", exp, node.RightBBox())
	}
}

func TestChildBoundsAreExact(t *testing.T) {
	tree := buildDefault(randomTriangles(11, 500, 0.05))
	mustValidate(t, tree)

	for nodeIndex := range tree.Nodes {
		node := &tree.Nodes[nodeIndex]
		if exp := subtreeBounds(tree, node.LeftChild); node.LeftBBox() != exp {
			t.Fatalf("node %d: expected left bbox %v; got %v", nodeIndex, exp, node.LeftBBox())
		}
		if exp := subtreeBounds(tree, node.RightChild); node.RightBBox() != exp {
			t.Fatalf("node %d: expected right bbox %v; got %v", nodeIndex, exp, node.RightBBox())
		}
	}
}

func TestRootBoundsMatchGeometry(t *testing.T) {
	triangles := randomTriangles(5, 321, 0.2)
	tree := buildDefault(triangles)

	exp := emptyBBox()
	for _, tri := range triangles {
		exp = unionBBox(exp, tri.BBox())
	}
	if got := tree.Bounds(); got != exp {
		t.Fatalf("expected root bounds %v; got %v", exp, got)
	}
}

func TestEveryTriangleReferencedOnce(t *testing.T) {
	tree := buildDefault(randomTriangles(13, 777, 0.01))

	refs := make([]int, len(tree.Triangles))
	for _, node := range tree.Nodes {
		for _, child := range []int32{node.LeftChild, node.RightChild} {
			if IsLeaf(child) {
				refs[DecodeLeaf(child)]++
			}
		}
	}
	for triIndex, count := range refs {
		if count != 1 {
			t.Fatalf("expected triangle %d to be referenced once; got %d", triIndex, count)
		}
	}
}

func TestDeterministicBuild(t *testing.T) {
	triangles := randomTriangles(17, 1000, 0.03)
	leafs := leafsFor(triangles)
	leafsCopy := append([]Leaf(nil), leafs...)

	tree1 := BuildTree(triangles, leafs, DefaultOptions())
	tree2 := BuildTree(triangles, leafs, DefaultOptions())

	if tree1.Root != tree2.Root {
		t.Fatalf("expected identical roots; got %d and %d", tree1.Root, tree2.Root)
	}
	if !reflect.DeepEqual(tree1.Nodes, tree2.Nodes) {
		t.Fatal("expected identical node lists for identical input")
	}
	if !reflect.DeepEqual(leafs, leafsCopy) {
		t.Fatal("expected the caller's leaf list to be left untouched")
	}
}

func TestSAHBalance(t *testing.T) {
	tree := buildDefault(randomTriangles(23, 1000, 0.01))
	mustValidate(t, tree)

	for nodeIndex := range tree.Nodes {
		node := &tree.Nodes[nodeIndex]
		left := subtreeLeafCount(tree, node.LeftChild)
		right := subtreeLeafCount(tree, node.RightChild)
		total := left + right
		if total < 100 {
			continue
		}

		smaller := left
		if right < smaller {
			smaller = right
		}
		if float64(smaller) < 0.15*float64(total) {
			t.Fatalf("node %d: unbalanced split %d/%d", nodeIndex, left, right)
		}
	}

	st := tree.Stats(DefaultTraversalCost)
	if st.MaxDepth > 40 {
		t.Fatalf("expected a reasonably shallow tree; got max depth %d", st.MaxDepth)
	}
}

func TestDegenerateGeometry(t *testing.T) {
	point := types.Vec3{1, 2, 3}
	coincident := make([]Triangle, 50)
	for i := range coincident {
		coincident[i] = makeTriangle(point, point, point)
	}

	// Identical non-degenerate triangles have a positive outer area but
	// no centroid span.
	stacked := make([]Triangle, 37)
	for i := range stacked {
		stacked[i] = makeTriangle(types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, types.Vec3{0, 1, 0})
	}

	// Collinear triangles along the x axis.
	collinear := make([]Triangle, 20)
	for i := range collinear {
		x := float32(i)
		collinear[i] = makeTriangle(types.Vec3{x, 0, 0}, types.Vec3{x + 0.5, 0, 0}, types.Vec3{x + 1, 0, 0})
	}

	specs := []struct {
		descr     string
		triangles []Triangle
	}{
		{"coincident points", coincident},
		{"stacked triangles", stacked},
		{"collinear segments", collinear},
	}

	for _, spec := range specs {
		tree := buildDefault(spec.triangles)
		if exp := len(spec.triangles) - 1; len(tree.Nodes) != exp {
			t.Fatalf("[%s] expected %d nodes; got %d", spec.descr, exp, len(tree.Nodes))
		}

		for nodeIndex, node := range tree.Nodes {
			for _, v := range []types.Vec4{node.LeftMin, node.LeftMax, node.RightMin, node.RightMax} {
				if !v.Vec3().IsFinite() {
					t.Fatalf("[%s] node %d contains non-finite bounds: %v", spec.descr, nodeIndex, node)
				}
			}
		}
		if err := tree.Validate(); err != nil {
			t.Fatalf("[%s] %v", spec.descr, err)
		}
	}
}

func TestBuildWithCustomOptions(t *testing.T) {
	triangles := randomTriangles(29, 200, 0.05)
	for _, opts := range []Options{
		{Buckets: 2, TraversalCost: 1},
		{Buckets: 32, TraversalCost: 0.5},
		{Buckets: 0, TraversalCost: 0}, // replaced by the defaults
	} {
		tree := BuildTree(triangles, leafsFor(triangles), opts)
		mustValidate(t, tree)
	}
}

func TestSplitAxis(t *testing.T) {
	specs := []struct {
		span types.Vec3
		exp  Axis
	}{
		{types.Vec3{1, 0, 0}, XAxis},
		{types.Vec3{0, 1, 0}, YAxis},
		{types.Vec3{0, 0, 1}, ZAxis},
		{types.Vec3{1, 1, 1}, XAxis},
		{types.Vec3{0, 2, 2}, YAxis},
		{types.Vec3{1, 0.5, 1}, XAxis},
		{types.Vec3{0, 0, 0}, XAxis},
	}
	for _, spec := range specs {
		if got := splitAxis(spec.span); got != spec.exp {
			t.Errorf("expected span %v to select axis %d; got %d", spec.span, spec.exp, got)
		}
	}
}
