package archive

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"time"

	"github.com/achilleasa/aabbtree/asset"
	"github.com/achilleasa/aabbtree/asset/compiler/bvh"
	"github.com/achilleasa/aabbtree/log"
	"github.com/klauspost/compress/flate"
)

type zipTreeReader struct {
	logger log.Logger
}

// Create a new zip tree reader.
func newZipTreeReader() *zipTreeReader {
	return &zipTreeReader{
		logger: log.New("zip reader"),
	}
}

// Read a tree from a local path or http(s) URL.
func ReadTree(path string) (*bvh.Tree, error) {
	res, err := asset.NewResource(path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return newZipTreeReader().Read(res)
}

// Read a tree from a zip archive resource.
func (r *zipTreeReader) Read(res *asset.Resource) (*bvh.Tree, error) {
	r.logger.Noticef(`reading compressed tree from "%s"`, res.Path())
	start := time.Now()

	// zip package requires a reader implementing ReaderAt. To work around
	// this requirement we read the entire zip file into memory and create
	// a reader from the bytes package that implements ReaderAt
	data, err := ioutil.ReadAll(res)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("tree reader: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	files := make(map[string]*zip.File)
	for _, f := range zr.File {
		switch f.Name {
		case headerFile, nodeFile, triangleFile:
			files[f.Name] = f
		default:
			r.logger.Warningf("unknown file %s in tree zip file; skipping", f.Name)
		}
	}
	for _, name := range []string{headerFile, nodeFile, triangleFile} {
		if files[name] == nil {
			return nil, fmt.Errorf("tree reader: archive is missing %s", name)
		}
	}

	var hdr header
	err = readEntry(files[headerFile], func(rc io.Reader) error {
		return binary.Read(rc, binary.LittleEndian, &hdr)
	})
	if err != nil {
		return nil, err
	}
	if err = checkHeader(&hdr); err != nil {
		return nil, err
	}

	if err = checkEntrySize(files[nodeFile], hdr.NodeCount, bvh.NodeStride); err != nil {
		return nil, err
	}
	if err = checkEntrySize(files[triangleFile], hdr.TriangleCount, bvh.TriangleStride); err != nil {
		return nil, err
	}

	tree := &bvh.Tree{Root: hdr.Root}
	err = readEntry(files[nodeFile], func(rc io.Reader) error {
		tree.Nodes, err = bvh.ReadNodes(rc, int(hdr.NodeCount))
		return err
	})
	if err != nil {
		return nil, err
	}
	err = readEntry(files[triangleFile], func(rc io.Reader) error {
		tree.Triangles, err = bvh.ReadTriangles(rc, int(hdr.TriangleCount))
		return err
	})
	if err != nil {
		return nil, err
	}

	if err = tree.Validate(); err != nil {
		return nil, fmt.Errorf("tree reader: %w", err)
	}

	r.logger.Noticef("loaded tree in %d ms", time.Since(start).Nanoseconds()/1e6)
	return tree, nil
}

func checkHeader(hdr *header) error {
	switch {
	case hdr.Magic != magic:
		return fmt.Errorf("tree reader: not a tree archive")
	case hdr.Version != formatVersion:
		return fmt.Errorf("tree reader: unsupported format version %d", hdr.Version)
	case hdr.NodeStride != bvh.NodeStride || hdr.TriangleStride != bvh.TriangleStride:
		return fmt.Errorf("tree reader: unsupported record strides (node %d, triangle %d)", hdr.NodeStride, hdr.TriangleStride)
	}
	return nil
}

// The header counts must match the entry sizes before anything is allocated.
func checkEntrySize(f *zip.File, count uint32, stride uint64) error {
	if expSize := uint64(count) * stride; f.UncompressedSize64 != expSize {
		return fmt.Errorf("tree reader: %s holds %d bytes; header expects %d records of %d bytes", f.Name, f.UncompressedSize64, count, stride)
	}
	return nil
}

func readEntry(f *zip.File, fn func(io.Reader) error) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if err = fn(rc); err != nil {
		return fmt.Errorf("tree reader: failed to load %s: %w", f.Name, err)
	}
	return nil
}
