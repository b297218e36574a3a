package bvh

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"testing"

	"github.com/achilleasa/aabbtree/types"
)

func TestLeafEncodingRoundTrip(t *testing.T) {
	for _, index := range []int32{0, 1, 2, 41, 1 << 20, math.MaxInt32} {
		ref := EncodeLeaf(index)
		if !IsLeaf(ref) {
			t.Fatalf("expected encoded index %d to be a leaf reference; got %d", index, ref)
		}
		if got := DecodeLeaf(ref); got != index {
			t.Fatalf("expected decoded index to be %d; got %d", index, got)
		}
	}

	if exp, got := int32(-1), EncodeLeaf(0); got != exp {
		t.Fatalf("expected triangle 0 to encode as %d; got %d", exp, got)
	}
	if IsLeaf(0) {
		t.Fatal("expected node reference 0 not to be a leaf")
	}
}

func TestPackedStrides(t *testing.T) {
	if exp, got := NodeStride, binary.Size(AabbNode{}); got != exp {
		t.Fatalf("expected packed node size %d; got %d", exp, got)
	}
	if exp, got := TriangleStride, binary.Size(Triangle{}); got != exp {
		t.Fatalf("expected packed triangle size %d; got %d", exp, got)
	}
	if exp, got := uintptr(NodeStride), reflect.TypeOf(AabbNode{}).Size(); got != exp {
		t.Fatalf("expected in-memory node size %d; got %d", exp, got)
	}
}

func TestNodeBytesLayout(t *testing.T) {
	tree := &Tree{Nodes: make([]AabbNode, 1)}
	node := &tree.Nodes[0]
	node.SetLeftBBox([2]types.Vec3{{1, 2, 3}, {4, 5, 6}})
	node.SetRightBBox([2]types.Vec3{{7, 8, 9}, {10, 11, 12}})
	node.LeftChild = EncodeLeaf(3)
	node.RightChild = 7

	data := tree.NodeBytes()
	if len(data) != NodeStride {
		t.Fatalf("expected %d bytes; got %d", NodeStride, len(data))
	}

	floatAt := func(offset int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
	}
	expFloats := map[int]float32{0: 1, 4: 2, 8: 3, 16: 4, 32: 7, 48: 10, 56: 12}
	for offset, exp := range expFloats {
		if got := floatAt(offset); got != exp {
			t.Errorf("expected float at offset %d to be %f; got %f", offset, exp, got)
		}
	}

	if got := int32(binary.LittleEndian.Uint32(data[64:])); got != EncodeLeaf(3) {
		t.Errorf("expected left child %d at offset 64; got %d", EncodeLeaf(3), got)
	}
	if got := int32(binary.LittleEndian.Uint32(data[68:])); got != 7 {
		t.Errorf("expected right child 7 at offset 68; got %d", got)
	}
	if !bytes.Equal(data[72:80], make([]byte, 8)) {
		t.Errorf("expected zero padding at offset 72; got %v", data[72:80])
	}
}

func TestReadPackedArrays(t *testing.T) {
	tree := buildDefault(randomTriangles(7, 33, 0.1))

	nodes, err := ReadNodes(bytes.NewReader(tree.NodeBytes()), len(tree.Nodes))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(nodes, tree.Nodes) {
		t.Fatal("expected decoded nodes to match the original node list")
	}

	triangles, err := ReadTriangles(bytes.NewReader(tree.TriangleBytes()), len(tree.Triangles))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(triangles, tree.Triangles) {
		t.Fatal("expected decoded triangles to match the original triangle list")
	}

	if _, err = ReadNodes(bytes.NewReader(tree.NodeBytes()[:NodeStride-1]), 1); err == nil {
		t.Fatal("expected an error when reading a truncated node buffer")
	}
}

func TestValidateDetectsCorruption(t *testing.T) {
	triangles := randomTriangles(3, 16, 0.05)

	specs := []struct {
		descr  string
		mutate func(tree *Tree)
	}{
		{"duplicate leaf", func(tree *Tree) {
			for i := range tree.Nodes {
				if IsLeaf(tree.Nodes[i].LeftChild) && IsLeaf(tree.Nodes[i].RightChild) {
					tree.Nodes[i].RightChild = tree.Nodes[i].LeftChild
					return
				}
			}
		}},
		{"shrunk bounds", func(tree *Tree) {
			tree.Nodes[0].LeftMax = tree.Nodes[0].LeftMin
		}},
		{"dropped node", func(tree *Tree) {
			tree.Nodes = tree.Nodes[:len(tree.Nodes)-1]
		}},
		{"non-finite bounds", func(tree *Tree) {
			tree.Nodes[0].RightMin[0] = float32(math.Inf(-1))
		}},
	}

	for _, spec := range specs {
		tree := buildDefault(triangles)
		mustValidate(t, tree)
		spec.mutate(tree)
		if err := tree.Validate(); err == nil {
			t.Errorf("[%s] expected validation to fail", spec.descr)
		}
	}
}
