package bvh

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Size in bytes of a packed Triangle: 3 * vec4.
	TriangleStride = 48

	// Size in bytes of a packed AabbNode: 4 * vec4 + 2 * int32 padded to
	// a 16-byte boundary.
	NodeStride = 80
)

// All GPU buffers are little-endian.
var byteOrder = binary.LittleEndian

// Write the node list as a tightly packed array of NodeStride sized records.
func (t *Tree) WriteNodes(w io.Writer) error {
	return binary.Write(w, byteOrder, t.Nodes)
}

// Write the triangle list as a tightly packed array of TriangleStride sized records.
func (t *Tree) WriteTriangles(w io.Writer) error {
	return binary.Write(w, byteOrder, t.Triangles)
}

// Get the packed node list, ready to be copied into a GPU buffer.
func (t *Tree) NodeBytes() []byte {
	var buf bytes.Buffer
	buf.Grow(len(t.Nodes) * NodeStride)
	// Writing to a bytes.Buffer cannot fail
	_ = t.WriteNodes(&buf)
	return buf.Bytes()
}

// Get the packed triangle list, ready to be copied into a GPU buffer.
func (t *Tree) TriangleBytes() []byte {
	var buf bytes.Buffer
	buf.Grow(len(t.Triangles) * TriangleStride)
	_ = t.WriteTriangles(&buf)
	return buf.Bytes()
}

// Read count packed nodes from r.
func ReadNodes(r io.Reader, count int) ([]AabbNode, error) {
	nodes := make([]AabbNode, count)
	if err := binary.Read(r, byteOrder, nodes); err != nil {
		return nil, fmt.Errorf("bvh: could not read %d nodes: %w", count, err)
	}
	return nodes, nil
}

// Read count packed triangles from r.
func ReadTriangles(r io.Reader, count int) ([]Triangle, error) {
	triangles := make([]Triangle, count)
	if err := binary.Read(r, byteOrder, triangles); err != nil {
		return nil, fmt.Errorf("bvh: could not read %d triangles: %w", count, err)
	}
	return triangles, nil
}
