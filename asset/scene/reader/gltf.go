package reader

import (
	"fmt"
	"time"

	"github.com/achilleasa/aabbtree/asset"
	"github.com/achilleasa/aabbtree/asset/scene"
	"github.com/achilleasa/aabbtree/log"
	"github.com/achilleasa/aabbtree/types"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

type gltfSceneReader struct {
	logger log.Logger

	doc *gltf.Document
	sc  *scene.Scene

	// Prim mesh indices for each (mesh, primitive) pair; -1 marks a skipped
	// primitive.
	meshPrims [][]int
}

func newGltfReader() *gltfSceneReader {
	return &gltfSceneReader{
		logger: log.New("gltf scene reader"),
	}
}

// Read scene definition. Local documents are opened from disk so that
// external buffers can be resolved; remote documents must be self-contained.
func (r *gltfSceneReader) Read(sceneRes *asset.Resource) (*scene.Scene, error) {
	r.logger.Noticef(`parsing scene from "%s"`, sceneRes.Path())
	start := time.Now()

	var err error
	if localPath, isLocal := sceneRes.LocalPath(); isLocal {
		r.doc, err = gltf.Open(localPath)
	} else {
		r.doc = new(gltf.Document)
		err = gltf.NewDecoder(sceneRes).Decode(r.doc)
	}
	if err != nil {
		return nil, fmt.Errorf("gltf reader: could not open %q: %w", sceneRes.Path(), err)
	}

	r.sc = scene.New()
	if err = r.loadMeshes(); err != nil {
		return nil, err
	}
	if err = r.loadNodes(); err != nil {
		return nil, err
	}

	r.logger.Noticef("parsed scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return r.sc, nil
}

// Convert every triangle primitive into a prim mesh.
func (r *gltfSceneReader) loadMeshes() error {
	r.meshPrims = make([][]int, len(r.doc.Meshes))
	for meshIndex, mesh := range r.doc.Meshes {
		r.meshPrims[meshIndex] = make([]int, len(mesh.Primitives))
		for primIndex, prim := range mesh.Primitives {
			r.meshPrims[meshIndex][primIndex] = -1

			if prim.Mode != gltf.PrimitiveTriangles {
				r.logger.Warningf("skipping mesh %d primitive %d: unsupported primitive mode %d", meshIndex, primIndex, prim.Mode)
				continue
			}

			posIndex, ok := prim.Attributes["POSITION"]
			if !ok || posIndex >= len(r.doc.Accessors) {
				r.logger.Warningf("skipping mesh %d primitive %d: missing POSITION attribute", meshIndex, primIndex)
				continue
			}
			rawPositions, err := modeler.ReadPosition(r.doc, r.doc.Accessors[posIndex], nil)
			if err != nil {
				return fmt.Errorf("gltf reader: mesh %d primitive %d: could not read positions: %w", meshIndex, primIndex, err)
			}

			var indices []uint32
			if prim.Indices != nil {
				if *prim.Indices >= len(r.doc.Accessors) {
					return fmt.Errorf("gltf reader: mesh %d primitive %d: index accessor %d out of range", meshIndex, primIndex, *prim.Indices)
				}
				indices, err = modeler.ReadIndices(r.doc, r.doc.Accessors[*prim.Indices], nil)
				if err != nil {
					return fmt.Errorf("gltf reader: mesh %d primitive %d: could not read indices: %w", meshIndex, primIndex, err)
				}
			} else {
				indices = make([]uint32, len(rawPositions))
				for i := range indices {
					indices[i] = uint32(i)
				}
			}

			if rem := len(indices) % 3; rem != 0 {
				r.logger.Warningf("mesh %d primitive %d: dropping %d trailing indices", meshIndex, primIndex, rem)
				indices = indices[:len(indices)-rem]
			}

			positions := make([]types.Vec3, len(rawPositions))
			for i, p := range rawPositions {
				positions[i] = types.Vec3(p)
			}

			name := mesh.Name
			if name == "" {
				name = fmt.Sprintf("mesh_%d", meshIndex)
			}
			if len(mesh.Primitives) > 1 {
				name = fmt.Sprintf("%s_p%d", name, primIndex)
			}
			r.meshPrims[meshIndex][primIndex] = r.sc.AddPrimMesh(name, positions, indices)
		}
	}
	return nil
}

// Walk the node hierarchy starting from the default scene roots, or all
// parentless nodes if the document does not define a default scene.
func (r *gltfSceneReader) loadNodes() error {
	var roots []int
	if r.doc.Scene != nil && *r.doc.Scene < len(r.doc.Scenes) {
		roots = r.doc.Scenes[*r.doc.Scene].Nodes
	} else {
		hasParent := make([]bool, len(r.doc.Nodes))
		for _, node := range r.doc.Nodes {
			for _, child := range node.Children {
				if child < len(hasParent) {
					hasParent[child] = true
				}
			}
		}
		for nodeIndex := range r.doc.Nodes {
			if !hasParent[nodeIndex] {
				roots = append(roots, nodeIndex)
			}
		}
	}

	visiting := make([]bool, len(r.doc.Nodes))
	for _, root := range roots {
		if err := r.visitNode(root, types.Ident4(), visiting); err != nil {
			return err
		}
	}
	return nil
}

func (r *gltfSceneReader) visitNode(nodeIndex int, parent types.Mat4, visiting []bool) error {
	if nodeIndex < 0 || nodeIndex >= len(r.doc.Nodes) {
		return fmt.Errorf("gltf reader: node index %d out of range", nodeIndex)
	}
	if visiting[nodeIndex] {
		return fmt.Errorf("gltf reader: node %d is part of a cycle", nodeIndex)
	}
	visiting[nodeIndex] = true
	defer func() { visiting[nodeIndex] = false }()

	node := r.doc.Nodes[nodeIndex]
	world := parent.Mul4(localTransform(node))

	if node.Mesh != nil && *node.Mesh < len(r.meshPrims) {
		for _, primMesh := range r.meshPrims[*node.Mesh] {
			if primMesh >= 0 {
				r.sc.AddNode(world, primMesh)
			}
		}
	}

	for _, child := range node.Children {
		if err := r.visitNode(child, world, visiting); err != nil {
			return err
		}
	}
	return nil
}

// A node either specifies an explicit matrix or separate TRS components.
func localTransform(node *gltf.Node) types.Mat4 {
	if m := types.Mat4FromColumnMajor64(node.MatrixOrDefault()); !m.IsIdent() {
		return m
	}

	t := node.TranslationOrDefault()
	s := node.ScaleOrDefault()
	return types.TRS(
		types.XYZ(float32(t[0]), float32(t[1]), float32(t[2])),
		types.QuatFromXYZW(node.RotationOrDefault()),
		types.XYZ(float32(s[0]), float32(s[1]), float32(s[2])),
	)
}
