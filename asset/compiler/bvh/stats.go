package bvh

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/aabbtree/asset/scene"
	"github.com/olekukonko/tablewriter"
)

// TreeStats summarizes the shape of a tree.
type TreeStats struct {
	Triangles int
	Nodes     int
	MaxDepth  int

	// Mean depth of all leafs; the root sits at depth 0.
	AvgLeafDepth float64

	// Expected SAH cost of a ray query relative to a single triangle test.
	SAHCost float64
}

// Collect tree statistics. traversalCost weighs internal nodes in the SAH
// cost estimate.
func (t *Tree) Stats(traversalCost float32) TreeStats {
	st := TreeStats{
		Triangles: len(t.Triangles),
		Nodes:     len(t.Nodes),
	}
	if t.Empty() {
		return st
	}

	rootArea := float64(halfArea(t.Bounds()))
	if IsLeaf(t.Root) {
		if rootArea > 0 {
			st.SAHCost = 1
		}
		return st
	}

	type entry struct {
		node  int32
		depth int
	}

	var depthSum, cost float64
	stack := []entry{{t.Root, 0}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &t.Nodes[e.node]

		leftBBox, rightBBox := node.LeftBBox(), node.RightBBox()
		cost += float64(traversalCost) * float64(halfArea(unionBBox(leftBBox, rightBBox)))

		for _, child := range [2]struct {
			ref  int32
			area float32
		}{{node.LeftChild, halfArea(leftBBox)}, {node.RightChild, halfArea(rightBBox)}} {
			depth := e.depth + 1
			if depth > st.MaxDepth {
				st.MaxDepth = depth
			}
			if IsLeaf(child.ref) {
				depthSum += float64(depth)
				cost += float64(child.area)
				continue
			}
			stack = append(stack, entry{child.ref, depth})
		}
	}

	st.AvgLeafDepth = depthSum / float64(st.Triangles)
	if rootArea > 0 {
		st.SAHCost = cost / rootArea
	}
	return st
}

// Build a tabular representation of tree statistics and buffer sizes.
func (t *Tree) StatsTable(traversalCost float32) string {
	st := t.Stats(traversalCost)
	bounds := t.Bounds()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"Triangles", fmt.Sprintf("%d (%s)", st.Triangles, scene.FmtSize(t.Triangles))})
	table.Append([]string{"Nodes", fmt.Sprintf("%d (%s)", st.Nodes, scene.FmtSize(t.Nodes))})
	table.Append([]string{"Root", fmt.Sprint(t.Root)})
	if !t.Empty() {
		table.Append([]string{"Bounds", fmt.Sprintf("%v - %v", bounds[0], bounds[1])})
	}
	table.Append([]string{"Max depth", fmt.Sprint(st.MaxDepth)})
	table.Append([]string{"Avg leaf depth", fmt.Sprintf("%.2f", st.AvgLeafDepth)})
	table.Append([]string{"SAH cost", fmt.Sprintf("%.3f", st.SAHCost)})

	table.Render()
	return buf.String()
}
