package loaders

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

func TestOBJImporterQuadIsFanTriangulated(t *testing.T) {
	importer := &OBJImporter{}
	vertices, indices, err := importer.Import(filepath.Join("testdata", "quad.obj"))
	require.NoError(t, err)

	assert.Len(t, vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, indices)

	for _, v := range vertices {
		assert.Equal(t, mgl32.Vec3{1, 1, 1}, v.Color)
		assert.Equal(t, mgl32.Vec3{0, 0, 1}, v.Normal)
	}
	// v is flipped
	assert.Equal(t, float32(0), vertices[0].UVX)
	assert.Equal(t, float32(1), vertices[0].UVY)
	assert.Equal(t, float32(1), vertices[2].UVX)
	assert.Equal(t, float32(0), vertices[2].UVY)
}

func TestOBJImporterSharesCorners(t *testing.T) {
	importer := &OBJImporter{}
	vertices, indices, err := importer.Import(filepath.Join("testdata", "triangles.obj"))
	require.NoError(t, err)

	assert.Len(t, vertices, 4)
	require.Len(t, indices, 6)
	assert.Equal(t, indices[1], indices[3])
	assert.Equal(t, indices[2], indices[5])
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, vertices[indices[4]].Position)
}

func TestOBJImporterFailures(t *testing.T) {
	importer := &OBJImporter{}

	_, _, err := importer.Import(filepath.Join("testdata", "empty.obj"))
	assert.True(t, errors.Is(err, core.ErrMalformedAsset))

	_, _, err = importer.Import(filepath.Join("testdata", "missing.obj"))
	assert.Error(t, err)
}

func TestGLTFImporterIsUnsupported(t *testing.T) {
	importer := &GLTFImporter{}
	vertices, indices, err := importer.Import("models/anything.gltf")
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))
	assert.Nil(t, vertices)
	assert.Nil(t, indices)
}

func spirvWords(words ...uint32) []byte {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

func TestDecodeSPIRV(t *testing.T) {
	code, err := DecodeSPIRV(spirvWords(spirvMagic, 0x00010600, 0, 8, 0))
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010600, 0, 8, 0}, code)

	_, err = DecodeSPIRV(spirvWords(0xdeadbeef, 0, 0, 0, 0))
	assert.True(t, errors.Is(err, core.ErrMalformedAsset))

	_, err = DecodeSPIRV(append(spirvWords(spirvMagic, 0, 0, 0, 0), 1))
	assert.True(t, errors.Is(err, core.ErrMalformedAsset))

	_, err = DecodeSPIRV(nil)
	assert.True(t, errors.Is(err, core.ErrMalformedAsset))
}

func TestShaderLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesh.vert.spv")
	data := spirvWords(spirvMagic, 0x00010600, 0, 8, 0, 17)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loader := &ShaderLoader{}
	resource, err := loader.Load(path, metadata.ResourceTypeShader, nil)
	require.NoError(t, err)
	assert.Equal(t, "mesh.vert.spv", resource.Name)
	assert.Equal(t, uint64(len(data)), resource.DataSize)
	assert.Len(t, resource.Data.([]uint32), 6)

	require.NoError(t, loader.Unload(resource))
	assert.Nil(t, resource.Data)
}
