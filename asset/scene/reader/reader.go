package reader

import (
	"fmt"

	"github.com/achilleasa/aabbtree/asset"
	"github.com/achilleasa/aabbtree/asset/scene"
)

// The Reader interface is implemented by all scene readers.
type Reader interface {
	// Read a flattened scene from a resource.
	Read(*asset.Resource) (*scene.Scene, error)
}

// Read scene from a local file or http(s) URL.
func ReadScene(filename string) (*scene.Scene, error) {
	res, err := asset.NewResource(filename, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	// Select reader based on file extension
	var reader Reader
	switch res.Ext() {
	case ".obj":
		reader = newWavefrontReader()
	case ".gltf", ".glb":
		reader = newGltfReader()
	default:
		return nil, fmt.Errorf("readScene: unsupported file format %q", res.Ext())
	}
	return reader.Read(res)
}
