// Package archive stores packed AABB trees as zip files so they can be built
// once and uploaded many times.
package archive

const (
	headerFile   = "header.bin"
	nodeFile     = "nodes.bin"
	triangleFile = "triangles.bin"

	formatVersion uint32 = 1
)

var magic = [4]byte{'A', 'A', 'B', 'B'}

// The archive header. All fields are little-endian.
type header struct {
	Magic          [4]byte
	Version        uint32
	Root           int32
	NodeCount      uint32
	TriangleCount  uint32
	NodeStride     uint32
	TriangleStride uint32
}
