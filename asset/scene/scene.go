package scene

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/achilleasa/aabbtree/types"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// A PrimMesh describes a triangle-list primitive stored inside the scene's
// global index and position buffers. Indices in [FirstIndex, FirstIndex+IndexCount)
// are relative to VertexOffset.
type PrimMesh struct {
	Name string

	FirstIndex   uint32
	IndexCount   uint32
	VertexOffset uint32
	VertexCount  uint32
}

// A DrawNode places a PrimMesh in the world.
type DrawNode struct {
	WorldMatrix types.Mat4
	PrimMesh    int
}

// Scene is the flattened scene representation produced by the scene readers.
// Nodes are ordered and the order is preserved by the geometry flattener.
type Scene struct {
	Nodes      []DrawNode
	PrimMeshes []PrimMesh

	// Global buffers shared by all prim meshes.
	Indices   []uint32
	Positions []types.Vec3
}

// Create a new empty scene.
func New() *Scene {
	return &Scene{
		Nodes:      make([]DrawNode, 0),
		PrimMeshes: make([]PrimMesh, 0),
		Indices:    make([]uint32, 0),
		Positions:  make([]types.Vec3, 0),
	}
}

// Append a primitive's positions and triangle indices to the global buffers
// and return the index of the new prim mesh.
func (sc *Scene) AddPrimMesh(name string, positions []types.Vec3, indices []uint32) int {
	sc.PrimMeshes = append(sc.PrimMeshes, PrimMesh{
		Name:         name,
		FirstIndex:   uint32(len(sc.Indices)),
		IndexCount:   uint32(len(indices)),
		VertexOffset: uint32(len(sc.Positions)),
		VertexCount:  uint32(len(positions)),
	})
	sc.Indices = append(sc.Indices, indices...)
	sc.Positions = append(sc.Positions, positions...)
	return len(sc.PrimMeshes) - 1
}

// Place a prim mesh in the world.
func (sc *Scene) AddNode(worldMatrix types.Mat4, primMesh int) {
	sc.Nodes = append(sc.Nodes, DrawNode{
		WorldMatrix: worldMatrix,
		PrimMesh:    primMesh,
	})
}

// Get the number of world-space triangles the scene expands to.
func (sc *Scene) TriangleCount() int {
	count := 0
	for _, node := range sc.Nodes {
		if node.PrimMesh < 0 || node.PrimMesh >= len(sc.PrimMeshes) {
			continue
		}
		count += int(sc.PrimMeshes[node.PrimMesh].IndexCount / 3)
	}
	return count
}

// Build a tabular representation of scene statistics.
func (sc *Scene) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Asset Type", "Asset", "Count", "Size"})
	table.Append([]string{"Geometry", "Positions", fmt.Sprint(len(sc.Positions)), FmtSize(sc.Positions)})
	table.Append([]string{"", "Indices", fmt.Sprint(len(sc.Indices)), FmtSize(sc.Indices)})
	table.Append([]string{"Layout", "Prim meshes", fmt.Sprint(len(sc.PrimMeshes)), FmtSize(sc.PrimMeshes)})
	table.Append([]string{"", "Draw nodes", fmt.Sprint(len(sc.Nodes)), FmtSize(sc.Nodes)})
	table.SetFooter([]string{"Total", "World triangles", fmt.Sprint(sc.TriangleCount()), FmtSize(sc.Positions, sc.Indices, sc.PrimMeshes, sc.Nodes)})

	table.Render()
	return buf.String()
}

// Sum the total space used by a set of slices and return back a human
// readable size.
func FmtSize(items ...interface{}) string {
	var totalBytes uint64
	for _, item := range items {
		t := reflect.TypeOf(item)
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}

		totalBytes += uint64(int(t.Elem().Size()) * v.Len())
	}

	return humanize.Bytes(totalBytes)
}
