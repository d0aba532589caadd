package metadata

import (
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPULayouts(t *testing.T) {
	assert.Equal(t, 48, VertexSize)
	assert.Equal(t, uintptr(32), unsafe.Offsetof(Vertex{}.Normal))

	assert.Equal(t, uint32(80), PushConstantsSize)
	assert.Equal(t, uintptr(16), unsafe.Offsetof(PushConstants{}.Model))

	assert.Equal(t, uint64(400), UniformBlockSize)
	assert.Equal(t, uintptr(320), unsafe.Offsetof(UniformBlock{}.LightPos))
}

func TestMeshTypeFromPath(t *testing.T) {
	assert.Equal(t, MeshTypeOBJ, MeshTypeFromPath("models/bunny.obj"))
	assert.Equal(t, MeshTypeOBJ, MeshTypeFromPath("TEAPOT.OBJ"))
	assert.Equal(t, MeshTypeGLTF, MeshTypeFromPath("scene.gltf"))
	assert.Equal(t, MeshTypeGLTF, MeshTypeFromPath("scene.glb"))
	assert.Equal(t, MeshTypeUndefined, MeshTypeFromPath("notes.txt"))
}

func TestQuitRequest(t *testing.T) {
	assert.True(t, QuitRequest().IsQuit())

	req := NewUploadRequest("models/square.obj", mgl32.Ident4())
	assert.False(t, req.IsQuit())
	assert.NotEqual(t, NewUploadRequest("a.obj", mgl32.Ident4()).ID, req.ID)

	// A file literally named QUIT with a known type is still a real request.
	assert.False(t, UploadRequest{Path: QuitRequestPath, Type: MeshTypeOBJ}.IsQuit())
}

func TestParsePipelineEnums(t *testing.T) {
	cull, err := ParseFaceCullMode("front")
	require.NoError(t, err)
	assert.Equal(t, FaceCullModeFront, cull)

	ff, err := ParseFrontFace("cw")
	require.NoError(t, err)
	assert.Equal(t, FrontFaceClockwise, ff)

	op, err := ParseCompareOp("greater_or_equal")
	require.NoError(t, err)
	assert.Equal(t, CompareOpGreaterOrEqual, op)

	load, err := ParseAttachmentLoadOp("load")
	require.NoError(t, err)
	assert.Equal(t, AttachmentLoadOpLoad, load)

	_, err = ParseFaceCullMode("sideways")
	assert.Error(t, err)
	_, err = ParseCompareOp("")
	assert.Error(t, err)
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.Equal(t, FaceCullModeBack, cfg.CullMode)
	assert.Equal(t, CompareOpLessOrEqual, cfg.DepthCompare)
	assert.Equal(t, AttachmentLoadOpClear, cfg.ColorLoad)
	assert.True(t, cfg.DepthTest && cfg.DepthWrite)
}
