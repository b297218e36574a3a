package bvh

import (
	"strings"
	"testing"

	"github.com/achilleasa/aabbtree/asset/scene"
	"github.com/achilleasa/aabbtree/types"
)

func quadScene() *scene.Scene {
	sc := scene.New()
	quad := sc.AddPrimMesh(
		"quad",
		[]types.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		[]uint32{0, 1, 2, 0, 2, 3},
	)
	tri := sc.AddPrimMesh(
		"tri",
		[]types.Vec3{{0, 0, 0}, {0, 0, 1}, {0, 1, 0}},
		[]uint32{0, 1, 2},
	)
	sc.AddNode(types.Ident4(), quad)
	sc.AddNode(types.Translate4(types.Vec3{10, 0, 0}), tri)
	sc.AddNode(types.Scale4(types.Vec3{2, 2, 2}), quad)
	return sc
}

func TestFlattenOrderAndTransforms(t *testing.T) {
	triangles, leafs, err := Flatten(quadScene())
	if err != nil {
		t.Fatal(err)
	}

	if len(triangles) != 5 || len(leafs) != 5 {
		t.Fatalf("expected 5 triangles and leafs; got %d and %d", len(triangles), len(leafs))
	}

	expFirstVertex := []types.Vec3{{0, 0, 0}, {0, 0, 0}, {10, 0, 0}, {0, 0, 0}, {0, 0, 0}}
	for i, exp := range expFirstVertex {
		if got := triangles[i].Vertex(0); got != exp {
			t.Errorf("triangle %d: expected first vertex %v; got %v", i, exp, got)
		}
		if leafs[i].GeomIndex != int32(i) {
			t.Errorf("leaf %d: expected geom index %d; got %d", i, i, leafs[i].GeomIndex)
		}
	}

	// Second triangle of the scaled quad
	if exp, got := (types.Vec3{2, 2, 0}), triangles[4].Vertex(1); got != exp {
		t.Fatalf("expected scaled vertex %v; got %v", exp, got)
	}

	leaf := leafs[2]
	if exp := (types.Vec3{10, 0, 0}); leaf.Min != exp {
		t.Fatalf("expected leaf min %v; got %v", exp, leaf.Min)
	}
	if exp := (types.Vec3{10, 1, 1}); leaf.Max != exp {
		t.Fatalf("expected leaf max %v; got %v", exp, leaf.Max)
	}
	if exp := (types.Vec3{10, 0.5, 0.5}); leaf.Centroid != exp {
		t.Fatalf("expected leaf centroid %v; got %v", exp, leaf.Centroid)
	}

	for i, tri := range triangles {
		for v := 0; v < 3; v++ {
			if tri[v][3] != 0 {
				t.Fatalf("triangle %d: expected zero padding in vertex %d; got %f", i, v, tri[v][3])
			}
		}
	}
}

func TestFlattenErrors(t *testing.T) {
	specs := []struct {
		descr  string
		mutate func(sc *scene.Scene)
		expErr string
	}{
		{"unknown prim mesh", func(sc *scene.Scene) { sc.Nodes[0].PrimMesh = 9 }, "unknown prim mesh 9"},
		{"index range", func(sc *scene.Scene) { sc.PrimMeshes[1].IndexCount = 30 }, "exceeds index buffer length"},
		{"vertex range", func(sc *scene.Scene) { sc.Indices[0] = 100 }, "references vertex 100"},
	}

	for _, spec := range specs {
		sc := quadScene()
		spec.mutate(sc)
		_, _, err := Flatten(sc)
		if err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[%s] expected error containing %q; got %v", spec.descr, spec.expErr, err)
		}
	}
}

func TestBuildScene(t *testing.T) {
	tree, err := Build(quadScene(), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Nodes) != 4 {
		t.Fatalf("expected 4 nodes; got %d", len(tree.Nodes))
	}
	mustValidate(t, tree)

	if _, err = Build(quadScene(), Options{Buckets: 1, TraversalCost: 1}); err == nil {
		t.Fatal("expected an error for invalid options")
	}
}
