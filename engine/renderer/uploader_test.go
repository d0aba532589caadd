package renderer

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

func startupRequests() []metadata.UploadRequest {
	return []metadata.UploadRequest{
		metadata.NewUploadRequest("models/bunny.obj", mgl32.Ident4()),
		metadata.NewUploadRequest("models/teapot.obj", mgl32.Translate3D(2, 0, 0)),
		metadata.NewUploadRequest("models/square.obj", mgl32.Translate3D(-2, 0, 0)),
	}
}

func TestUploadStartupModels(t *testing.T) {
	fb := newFakeBackend()
	meshes := NewMeshList()
	up := NewUploadPipeline(fb, meshes, objImporters(&fakeImporter{}))

	reqs := startupRequests()
	for _, req := range reqs {
		require.NoError(t, up.Enqueue(req))
	}
	up.Start()
	require.NoError(t, up.Shutdown())

	records := meshes.Snapshot()
	require.Len(t, records, 3)
	for i, name := range []string{"bunny", "teapot", "square"} {
		assert.Equal(t, name, records[i].Name)
		assert.Equal(t, reqs[i].ID, records[i].ID)
		assert.Greater(t, records[i].IndexCount, uint32(0))
		assert.NotZero(t, records[i].VertexBufferAddress)
	}
	assert.Equal(t, mgl32.Translate3D(2, 0, 0), records[1].Model)
	assert.True(t, meshes.Sealed())

	uploaded, skipped := up.Processed()
	assert.Equal(t, uint64(3), uploaded)
	assert.Zero(t, skipped)
}

func TestUploadFIFOOrder(t *testing.T) {
	fb := newFakeBackend()
	importer := &fakeImporter{}
	meshes := NewMeshList()
	up := NewUploadPipeline(fb, meshes, objImporters(importer))
	up.Start()

	var paths []string
	for i := 0; i < 20; i++ {
		p := "models/mesh" + string(rune('a'+i)) + ".obj"
		paths = append(paths, p)
		require.NoError(t, up.Enqueue(metadata.NewUploadRequest(p, mgl32.Ident4())))
	}
	require.NoError(t, up.Shutdown())

	assert.Equal(t, paths, importer.calls)
	assert.Equal(t, 20, meshes.Len())
}

func TestUploadAfterShutdown(t *testing.T) {
	fb := newFakeBackend()
	meshes := NewMeshList()
	up := NewUploadPipeline(fb, meshes, objImporters(&fakeImporter{}))
	up.Start()
	require.NoError(t, up.Shutdown())

	err := up.Enqueue(metadata.NewUploadRequest("models/bunny.obj", mgl32.Ident4()))
	assert.ErrorIs(t, err, core.ErrUploaderClosed)
	assert.ErrorIs(t, meshes.Append(&metadata.MeshRecord{}), core.ErrMeshListSealed)
	assert.Zero(t, meshes.Len())

	select {
	case <-up.Done():
	default:
		t.Fatal("worker still running after shutdown")
	}
}

func TestUploadShutdownWithoutStart(t *testing.T) {
	meshes := NewMeshList()
	up := NewUploadPipeline(newFakeBackend(), meshes, nil)
	require.NoError(t, up.Shutdown())
	assert.True(t, meshes.Sealed())
	require.NoError(t, up.Shutdown())
}

func TestUploadSkipsBadAssets(t *testing.T) {
	fb := newFakeBackend()
	meshes := NewMeshList()
	up := NewUploadPipeline(fb, meshes, objImporters(&fakeImporter{}))
	up.Start()

	for _, p := range []string{"models/broken.obj", "models/notes.txt", "models/empty.obj", "models/bunny.obj"} {
		require.NoError(t, up.Enqueue(metadata.NewUploadRequest(p, mgl32.Ident4())))
	}
	require.NoError(t, up.Shutdown())

	require.Equal(t, 1, meshes.Len())
	assert.Equal(t, "bunny", meshes.Snapshot()[0].Name)
	uploaded, skipped := up.Processed()
	assert.Equal(t, uint64(1), uploaded)
	assert.Equal(t, uint64(3), skipped)
	assert.NoError(t, up.Err())
}

func TestUploadFailureIsFatal(t *testing.T) {
	fb := newFakeBackend()
	fb.uploadErr = core.ErrOutOfMemory
	meshes := NewMeshList()
	up := NewUploadPipeline(fb, meshes, objImporters(&fakeImporter{}))

	for _, req := range startupRequests() {
		require.NoError(t, up.Enqueue(req))
	}
	up.Start()

	<-up.Done()
	err := up.Shutdown()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrOutOfMemory))
	assert.True(t, errors.Is(up.Err(), core.ErrOutOfMemory))
	assert.Equal(t, 1, fb.count("upload:bunny"))
	assert.Zero(t, fb.count("upload:teapot"))
	assert.Zero(t, meshes.Len())

	assert.ErrorIs(t, up.Enqueue(startupRequests()[0]), core.ErrUploaderClosed)
}

func TestSnapshotsOnlySeeCompleteRecords(t *testing.T) {
	fb := newFakeBackend()
	fb.uploadDelay = time.Millisecond
	meshes := NewMeshList()
	up := NewUploadPipeline(fb, meshes, objImporters(&fakeImporter{}))
	up.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			for _, record := range meshes.Snapshot() {
				buffers := record.Buffers.(*fakeBuffers)
				assert.True(t, buffers.ready.Load())
				assert.NotZero(t, record.IndexCount)
			}
			select {
			case <-up.Done():
				return
			default:
			}
		}
	}()

	for i := 0; i < 10; i++ {
		require.NoError(t, up.Enqueue(metadata.NewUploadRequest("models/bunny.obj", mgl32.Ident4())))
	}
	require.NoError(t, up.Shutdown())
	wg.Wait()
	assert.Equal(t, 10, meshes.Len())
}
