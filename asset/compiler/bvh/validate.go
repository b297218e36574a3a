package bvh

import (
	"fmt"

	"github.com/achilleasa/aabbtree/types"
)

// Validate checks the structural invariants of the tree: the node count, that
// every node is reachable exactly once, that every triangle is referenced by
// exactly one leaf and that each stored child box contains the geometry
// reachable through that child.
func (t *Tree) Validate() error {
	triCount := len(t.Triangles)
	switch {
	case triCount == 0:
		if len(t.Nodes) != 0 {
			return fmt.Errorf("bvh: empty tree contains %d nodes", len(t.Nodes))
		}
		return nil
	case triCount == 1 && len(t.Nodes) != 0:
		return fmt.Errorf("bvh: single triangle tree contains %d nodes", len(t.Nodes))
	case triCount > 1 && len(t.Nodes) != triCount-1:
		return fmt.Errorf("bvh: expected %d nodes for %d triangles; got %d", triCount-1, triCount, len(t.Nodes))
	}

	seenTri := make([]bool, triCount)
	seenNode := make([]bool, len(t.Nodes))
	order := make([]int32, 0, len(t.Nodes))
	stack := make([]int32, 0, 64)

	visit := func(ref int32) error {
		if IsLeaf(ref) {
			triIndex := DecodeLeaf(ref)
			if int(triIndex) >= triCount {
				return fmt.Errorf("bvh: leaf references triangle %d; tree has %d triangles", triIndex, triCount)
			}
			if seenTri[triIndex] {
				return fmt.Errorf("bvh: triangle %d is referenced by more than one leaf", triIndex)
			}
			seenTri[triIndex] = true
			return nil
		}

		if int(ref) >= len(t.Nodes) {
			return fmt.Errorf("bvh: reference to node %d; tree has %d nodes", ref, len(t.Nodes))
		}
		if seenNode[ref] {
			return fmt.Errorf("bvh: node %d is referenced more than once", ref)
		}
		seenNode[ref] = true
		order = append(order, ref)
		stack = append(stack, ref)
		return nil
	}

	if err := visit(t.Root); err != nil {
		return err
	}
	for len(stack) > 0 {
		nodeIndex := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &t.Nodes[nodeIndex]
		if err := visit(node.LeftChild); err != nil {
			return err
		}
		if err := visit(node.RightChild); err != nil {
			return err
		}
	}

	for triIndex, seen := range seenTri {
		if !seen {
			return fmt.Errorf("bvh: triangle %d is not referenced by any leaf", triIndex)
		}
	}
	if len(order) != len(t.Nodes) {
		return fmt.Errorf("bvh: %d of %d nodes are unreachable from the root", len(t.Nodes)-len(order), len(t.Nodes))
	}

	// Pre-order reversed visits children before their parents
	bounds := make([][2]types.Vec3, len(t.Nodes))
	childBounds := func(ref int32) [2]types.Vec3 {
		if IsLeaf(ref) {
			return t.Triangles[DecodeLeaf(ref)].BBox()
		}
		return bounds[ref]
	}
	for i := len(order) - 1; i >= 0; i-- {
		nodeIndex := order[i]
		node := &t.Nodes[nodeIndex]
		leftBBox, rightBBox := node.LeftBBox(), node.RightBBox()

		for _, v := range []types.Vec3{leftBBox[0], leftBBox[1], rightBBox[0], rightBBox[1]} {
			if !v.IsFinite() {
				return fmt.Errorf("bvh: node %d has non-finite bounds", nodeIndex)
			}
		}
		if !containsBBox(leftBBox, childBounds(node.LeftChild)) {
			return fmt.Errorf("bvh: node %d left bounds do not contain the left subtree", nodeIndex)
		}
		if !containsBBox(rightBBox, childBounds(node.RightChild)) {
			return fmt.Errorf("bvh: node %d right bounds do not contain the right subtree", nodeIndex)
		}
		bounds[nodeIndex] = unionBBox(leftBBox, rightBBox)
	}

	return nil
}
