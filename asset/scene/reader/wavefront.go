package reader

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/aabbtree/asset"
	"github.com/achilleasa/aabbtree/asset/scene"
	"github.com/achilleasa/aabbtree/log"
	"github.com/achilleasa/aabbtree/types"
)

// A mesh being assembled by the parser. Faces index the global vertex list.
type wavefrontMesh struct {
	name    string
	indices []uint32
}

type wavefrontInstance struct {
	meshName  string
	transform types.Mat4
}

type wavefrontSceneReader struct {
	logger log.Logger

	// Global vertex list shared by all parsed files.
	vertexList []types.Vec3

	meshes    []*wavefrontMesh
	instances []wavefrontInstance

	// Error stack for nested includes.
	errStack []string

	// Files currently being parsed; used to detect include cycles.
	openFiles map[string]bool
}

// Create a new wavefront scene reader.
func newWavefrontReader() *wavefrontSceneReader {
	return &wavefrontSceneReader{
		logger:     log.New("wavefront scene reader"),
		vertexList: make([]types.Vec3, 0),
		meshes:     make([]*wavefrontMesh, 0),
		instances:  make([]wavefrontInstance, 0),
		errStack:   make([]string, 0),
		openFiles:  make(map[string]bool),
	}
}

// Read scene definition.
func (r *wavefrontSceneReader) Read(sceneRes *asset.Resource) (*scene.Scene, error) {
	r.logger.Noticef(`parsing scene from "%s"`, sceneRes.Path())
	start := time.Now()

	err := r.parse(sceneRes)
	if err != nil {
		return nil, err
	}

	sc, err := r.buildScene()
	if err != nil {
		return nil, err
	}

	r.logger.Noticef("parsed scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return sc, nil
}

// Convert parsed meshes into prim meshes with compact vertex ranges and
// emit the draw nodes. If no instances are defined, each mesh gets an
// identity transformed draw node.
func (r *wavefrontSceneReader) buildScene() (*scene.Scene, error) {
	sc := scene.New()
	meshNameToPrim := make(map[string]int, len(r.meshes))

	for _, mesh := range r.meshes {
		// Duplicate names get a numeric suffix; instances bind to the first mesh
		if _, exists := meshNameToPrim[mesh.name]; exists {
			uniqueName := mesh.name
			for suffix := 1; ; suffix++ {
				uniqueName = fmt.Sprintf("%s_%d", mesh.name, suffix)
				if _, taken := meshNameToPrim[uniqueName]; !taken {
					break
				}
			}
			r.logger.Warningf(`duplicate mesh name "%s"; renaming to "%s"`, mesh.name, uniqueName)
			mesh.name = uniqueName
		}

		// Remap global vertex indices into a local vertex range
		remap := make(map[uint32]uint32)
		positions := make([]types.Vec3, 0)
		indices := make([]uint32, len(mesh.indices))
		for i, globalIndex := range mesh.indices {
			localIndex, exists := remap[globalIndex]
			if !exists {
				localIndex = uint32(len(positions))
				remap[globalIndex] = localIndex
				positions = append(positions, r.vertexList[globalIndex])
			}
			indices[i] = localIndex
		}

		meshNameToPrim[mesh.name] = sc.AddPrimMesh(mesh.name, positions, indices)
	}

	if len(r.instances) == 0 {
		for primIndex := range sc.PrimMeshes {
			sc.AddNode(types.Ident4(), primIndex)
		}
		return sc, nil
	}

	for _, inst := range r.instances {
		primIndex, exists := meshNameToPrim[inst.meshName]
		if !exists {
			return nil, r.emitError("", 0, `unknown mesh with name "%s"`, inst.meshName)
		}
		sc.AddNode(inst.transform, primIndex)
	}
	return sc, nil
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontSceneReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)

	var errMsg string
	if file != "" {
		errMsg = fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n"))
	} else {
		errMsg = fmt.Sprintf("error: %s\n%s", msg, strings.Join(r.errStack, "\n"))
	}

	return fmt.Errorf("%s", strings.Trim(errMsg, "\n"))
}

// Push a frame to the error stack.
func (r *wavefrontSceneReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *wavefrontSceneReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Parse wavefront object scene format. Material, normal and texture
// statements are ignored.
func (r *wavefrontSceneReader) parse(res *asset.Resource) error {
	var lineNum int = 0

	if r.openFiles[res.Path()] {
		return r.emitError(res.Path(), lineNum, "include cycle detected")
	}
	r.openFiles[res.Path()] = true
	defer delete(r.openFiles, res.Path())

	// Included files use 1-based indices relative to their own vertices.
	relVertexOffset := len(r.vertexList)

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [%s]", res.Path(), lineNum, lineTokens[0]))

			incRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			err = r.parse(incRes)
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.vertexList = append(r.vertexList, v)
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument for object name; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			r.verifyLastParsedMesh()
			r.meshes = append(r.meshes, &wavefrontMesh{name: lineTokens[1]})
		case "f":
			faceIndices, err := r.parseFace(lineTokens, relVertexOffset)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}

			// If no object has been defined create a default one
			if len(r.meshes) == 0 {
				r.meshes = append(r.meshes, &wavefrontMesh{name: "default"})
			}

			mesh := r.meshes[len(r.meshes)-1]
			mesh.indices = append(mesh.indices, faceIndices...)
		case "instance":
			instance, err := parseMeshInstance(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.instances = append(r.instances, instance)
		}
	}

	if err := scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%s", err.Error())
	}

	r.verifyLastParsedMesh()
	return nil
}

// Drop the last parsed mesh if it contains no faces.
func (r *wavefrontSceneReader) verifyLastParsedMesh() {
	lastMeshIndex := len(r.meshes) - 1
	if lastMeshIndex >= 0 && len(r.meshes[lastMeshIndex].indices) == 0 {
		r.logger.Warningf(`dropping mesh "%s" as it contains no polygons`, r.meshes[lastMeshIndex].name)
		r.meshes = r.meshes[:lastMeshIndex]
	}
}

// Parse mesh instance definition. Definitions use the following format:
// instance mesh_name tX tY tZ yaw pitch roll sX sY sZ
// where:
// - tX, tY, tZ       : translation vector
// - yaw, pitch, roll : rotation angles in degrees
// - sX, sY, sZ	      : scale
func parseMeshInstance(lineTokens []string) (wavefrontInstance, error) {
	if len(lineTokens) != 11 {
		return wavefrontInstance{}, fmt.Errorf(`unsupported syntax for "instance"; expected 10 arguments: mesh_name tX tY tZ yaw pitch roll sX sY sZ; got %d`, len(lineTokens)-1)
	}

	var args [9]float32
	for index := range args {
		v, err := strconv.ParseFloat(lineTokens[index+2], 32)
		if err != nil {
			return wavefrontInstance{}, err
		}
		args[index] = float32(v)
	}

	translation := types.Vec3{args[0], args[1], args[2]}
	scale := types.Vec3{args[6], args[7], args[8]}
	toRad := float32(math.Pi / 180.0)

	// M = T * R * S
	yawQuat := types.QuatFromAxisAngle(types.Vec3{1, 0, 0}, args[3]*toRad)
	pitchQuat := types.QuatFromAxisAngle(types.Vec3{0, 1, 0}, args[4]*toRad)
	rollQuat := types.QuatFromAxisAngle(types.Vec3{0, 0, 1}, args[5]*toRad)

	return wavefrontInstance{
		meshName:  lineTokens[1],
		transform: types.TRS(translation, rollQuat.Mul(pitchQuat.Mul(yawQuat)), scale),
	}, nil
}

// Parse face definition. Each argument is one of the following formats:
// - vertexIndex
// - vertexIndex/uvIndex
// - vertexIndex//normalIndex
// - vertexIndex/uvIndex/normalIndex
//
// Only vertex indices are used. Indices start from 1 and may be negative to
// indicate an offset off the end of the vertex list. Convex polygons are
// triangulated as a fan.
func (r *wavefrontSceneReader) parseFace(lineTokens []string, relVertexOffset int) ([]uint32, error) {
	if len(lineTokens) < 4 {
		return nil, fmt.Errorf(`unsupported syntax for "f"; expected at least 3 arguments; got %d`, len(lineTokens)-1)
	}

	polygon := make([]uint32, len(lineTokens)-1)
	for arg := range polygon {
		vTokens := strings.Split(lineTokens[arg+1], "/")
		if vTokens[0] == "" {
			return nil, fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		vOffset, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList), relVertexOffset)
		if err != nil {
			return nil, fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}
		polygon[arg] = uint32(vOffset)
	}

	indices := make([]uint32, 0, 3*(len(polygon)-2))
	for i := 1; i+1 < len(polygon); i++ {
		indices = append(indices, polygon[0], polygon[i], polygon[i+1])
	}
	return indices, nil
}

// Given an index for a face coord calculate the proper offset into the coord
// list. Wavefront format can also use negative indices to reference elements
// from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var vOffset int = 0
	switch {
	case index == 0:
		return -1, fmt.Errorf("index 0 is not a valid coord index")
	case index < 0:
		vOffset = coordListLen + int(index)
	default:
		vOffset = relOffset + int(index-1)
	}
	if vOffset < 0 || vOffset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return vOffset, nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
