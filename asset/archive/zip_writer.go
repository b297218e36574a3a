package archive

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/achilleasa/aabbtree/asset/compiler/bvh"
	"github.com/achilleasa/aabbtree/log"
	"github.com/klauspost/compress/flate"
)

type zipTreeWriter struct {
	logger log.Logger
}

// Create a new zip tree writer.
func newZipTreeWriter() *zipTreeWriter {
	return &zipTreeWriter{
		logger: log.New("zip writer"),
	}
}

// Write a tree to a zip file.
func WriteTree(tree *bvh.Tree, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	w := newZipTreeWriter()
	w.logger.Noticef("writing compressed tree to %s", filename)
	if err = w.Write(tree, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write a tree as a zip archive to out.
func (w *zipTreeWriter) Write(tree *bvh.Tree, out io.Writer) error {
	start := time.Now()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	hdr := header{
		Magic:          magic,
		Version:        formatVersion,
		Root:           tree.Root,
		NodeCount:      uint32(len(tree.Nodes)),
		TriangleCount:  uint32(len(tree.Triangles)),
		NodeStride:     bvh.NodeStride,
		TriangleStride: bvh.TriangleStride,
	}
	var hdrBuf bytes.Buffer
	if err := binary.Write(&hdrBuf, binary.LittleEndian, &hdr); err != nil {
		return err
	}

	entries := []struct {
		name  string
		write func(io.Writer) error
	}{
		{headerFile, func(cw io.Writer) error { _, err := cw.Write(hdrBuf.Bytes()); return err }},
		{nodeFile, tree.WriteNodes},
		{triangleFile, tree.WriteTriangles},
	}
	for _, entry := range entries {
		cw, err := zw.Create(entry.name)
		if err != nil {
			return err
		}
		if err = entry.write(cw); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return err
	}

	w.logger.Noticef("compressed tree in %d ms", time.Since(start).Nanoseconds()/1e6)
	return nil
}
