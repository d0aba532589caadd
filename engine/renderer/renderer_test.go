package renderer

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

func TestRendererShutdownOrder(t *testing.T) {
	fb := newFakeBackend()
	r := New(fb, newFakeSurface(), objImporters(&fakeImporter{}), 0)
	require.NoError(t, r.Initialize())

	require.NoError(t, r.Enqueue(metadata.NewUploadRequest("models/bunny.obj", mgl32.Ident4())))
	require.Eventually(t, func() bool { return r.Meshes().Len() == 1 }, time.Second, time.Millisecond)

	_, err := r.Draw()
	require.NoError(t, err)
	require.NoError(t, r.Shutdown())

	ops := fb.ops()
	idle := indexOf(ops, "idle")
	release := indexOf(ops, "release:bunny")
	destroy := indexOf(ops, "destroy")
	shutdown := indexOf(ops, "shutdown")
	require.True(t, idle >= 0 && release >= 0 && destroy >= 0 && shutdown >= 0, "%v", ops)
	assert.Less(t, indexOf(ops, "upload:bunny"), idle)
	assert.Less(t, idle, release)
	assert.Less(t, release, destroy)
	assert.Less(t, destroy, shutdown)

	assert.Zero(t, fb.liveSwapchains)
	assert.True(t, r.Meshes().Sealed())
	assert.Zero(t, r.Meshes().Len())

	// idempotent
	require.NoError(t, r.Shutdown())
	assert.Equal(t, 1, fb.count("shutdown"))
}

func TestRendererDrawReportsUploadFailure(t *testing.T) {
	fb := newFakeBackend()
	fb.uploadErr = core.ErrOutOfMemory
	r := New(fb, newFakeSurface(), objImporters(&fakeImporter{}), time.Second)
	require.NoError(t, r.Initialize())

	require.NoError(t, r.Enqueue(metadata.NewUploadRequest("models/bunny.obj", mgl32.Ident4())))
	<-r.Uploads().Done()

	_, err := r.Draw()
	assert.ErrorIs(t, err, core.ErrOutOfMemory)
	assert.Error(t, r.Shutdown())
}

func TestRendererWriteUniforms(t *testing.T) {
	fb := newFakeBackend()
	r := New(fb, newFakeSurface(), nil, time.Second)
	block := &metadata.UniformBlock{Ka: mgl32.Vec4{0.2, 0.2, 0.2, 0}}
	require.NoError(t, r.WriteUniforms(block))
	assert.Same(t, block, fb.uniforms)
}
