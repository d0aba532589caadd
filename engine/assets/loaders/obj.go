package loaders

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// OBJImporter reads Wavefront OBJ files. Polygons are fan triangulated,
// identical position/uv/normal corners share one vertex, the v coordinate
// is flipped for Vulkan and every vertex is white.
type OBJImporter struct{}

type objCorner struct {
	position int
	uv       int
	normal   int
}

func (oi *OBJImporter) Import(path string) ([]metadata.Vertex, []uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var mtl io.Reader = strings.NewReader("")
	if mtlFile, err := os.Open(strings.TrimSuffix(path, ".obj") + ".mtl"); err == nil {
		defer mtlFile.Close()
		mtl = mtlFile
	}

	vertices, indices, err := DecodeOBJ(f, mtl)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "importing %s", path)
	}
	return vertices, indices, nil
}

// DecodeOBJ converts an OBJ stream to indexed geometry.
func DecodeOBJ(r io.Reader, mtl io.Reader) ([]metadata.Vertex, []uint32, error) {
	decoder, err := obj.DecodeReader(r, mtl)
	if err != nil {
		return nil, nil, errors.Mark(err, core.ErrMalformedAsset)
	}

	var vertices []metadata.Vertex
	var indices []uint32
	unique := make(map[objCorner]uint32)

	addCorner := func(face *obj.Face, i int) error {
		corner := objCorner{position: face.Vertices[i], uv: -1, normal: -1}
		if i < len(face.Uvs) {
			corner.uv = face.Uvs[i]
		}
		if i < len(face.Normals) {
			corner.normal = face.Normals[i]
		}
		if index, ok := unique[corner]; ok {
			indices = append(indices, index)
			return nil
		}

		if corner.position < 0 || corner.position*3+2 >= len(decoder.Vertices) {
			return errors.Mark(errors.Newf("vertex index %d out of range", corner.position), core.ErrMalformedAsset)
		}
		vertex := metadata.Vertex{
			Position: mgl32.Vec3{
				decoder.Vertices[corner.position*3],
				decoder.Vertices[corner.position*3+1],
				decoder.Vertices[corner.position*3+2],
			},
			Color: mgl32.Vec3{1, 1, 1},
		}
		if corner.uv >= 0 && corner.uv*2+1 < len(decoder.Uvs) {
			vertex.UVX = decoder.Uvs[corner.uv*2]
			vertex.UVY = 1.0 - decoder.Uvs[corner.uv*2+1]
		}
		if corner.normal >= 0 && corner.normal*3+2 < len(decoder.Normals) {
			vertex.Normal = mgl32.Vec3{
				decoder.Normals[corner.normal*3],
				decoder.Normals[corner.normal*3+1],
				decoder.Normals[corner.normal*3+2],
			}
		}

		index := uint32(len(vertices))
		vertices = append(vertices, vertex)
		unique[corner] = index
		indices = append(indices, index)
		return nil
	}

	for _, object := range decoder.Objects {
		for f := range object.Faces {
			face := &object.Faces[f]
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					if err := addCorner(face, corner); err != nil {
						return nil, nil, err
					}
				}
			}
		}
	}

	if len(indices) == 0 {
		return nil, nil, errors.Mark(errors.New("no triangles"), core.ErrMalformedAsset)
	}
	return vertices, indices, nil
}
