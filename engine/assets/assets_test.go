package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

type announcements struct {
	mu    sync.Mutex
	paths []string
}

func (a *announcements) add(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
}

func (a *announcements) get() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.paths...)
}

func newManager(t *testing.T, dirs ...string) (*AssetManager, *announcements) {
	t.Helper()
	am, err := NewAssetManager(20 * time.Millisecond)
	require.NoError(t, err)
	seen := &announcements{}
	am.OnModelAdded(seen.add)
	require.NoError(t, am.Initialize(dirs...))
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, seen
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, metadata.ResourceTypeShader, determineAssetType("shaders/spirv/mesh.vert.spv"))
	assert.Equal(t, metadata.ResourceTypeModel, determineAssetType("models/bunny.obj"))
	assert.Equal(t, metadata.ResourceTypeModel, determineAssetType("models/Box.GLTF"))
	assert.Equal(t, metadata.ResourceTypeNone, determineAssetType("models/bunny.mtl"))
	assert.Equal(t, metadata.ResourceTypeNone, determineAssetType("README"))
}

func TestInitializeIndexesWithoutAnnouncing(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "square.obj")
	require.NoError(t, os.WriteFile(existing, []byte("o square\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	am, seen := newManager(t, dir)

	assert.Equal(t, []string{existing}, am.Assets(metadata.ResourceTypeModel))
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, seen.get())
}

func TestDroppedModelIsAnnouncedOnce(t *testing.T) {
	dir := t.TempDir()
	_, seen := newManager(t, dir)

	dropped := filepath.Join(dir, "teapot.obj")
	f, err := os.Create(dropped)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.WriteString("v 0 0 0\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool { return len(seen.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

	// further writes to an announced file are ignored
	require.NoError(t, os.WriteFile(dropped, []byte("v 1 1 1\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{dropped}, seen.get())
}

func TestNonModelFilesAreNotAnnounced(t *testing.T) {
	dir := t.TempDir()
	am, seen := newManager(t, dir)

	shader := filepath.Join(dir, "mesh.frag.spv")
	require.NoError(t, os.WriteFile(shader, []byte{1, 2, 3, 4}, 0o644))

	assert.Eventually(t, func() bool {
		return len(am.Assets(metadata.ResourceTypeShader)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, seen.get())
}

func TestRemovedModelCanBeAnnouncedAgain(t *testing.T) {
	dir := t.TempDir()
	am, seen := newManager(t, dir)

	path := filepath.Join(dir, "bunny.obj")
	require.NoError(t, os.WriteFile(path, []byte("o bunny\n"), 0o644))
	assert.Eventually(t, func() bool { return len(seen.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		return len(am.Assets(metadata.ResourceTypeModel)) == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("o bunny\n"), 0o644))
	assert.Eventually(t, func() bool { return len(seen.get()) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestLoadAssetShader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.vert.spv")
	data := make([]byte, 20)
	binary.LittleEndian.PutUint32(data, 0x07230203)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	am, _ := newManager(t, dir)

	resource, err := am.LoadAsset(path, metadata.ResourceTypeShader, nil)
	require.NoError(t, err)
	assert.Len(t, resource.Data.([]uint32), 5)
	require.NoError(t, am.UnloadAsset(resource))
	assert.Nil(t, resource.Data)

	_, err = am.LoadAsset(filepath.Join(dir, "missing.spv"), metadata.ResourceTypeShader, nil)
	assert.Error(t, err)
	_, err = am.LoadAsset(path, metadata.ResourceTypeModel, nil)
	assert.Error(t, err)
}

func TestShutdownIsIdempotent(t *testing.T) {
	am, err := NewAssetManager(0)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(t.TempDir()))
	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())
}

func TestWatchAfterShutdownFails(t *testing.T) {
	am, err := NewAssetManager(0)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, am.Initialize(dir))

	// the closed flag is read while Shutdown may be writing it
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = am.Shutdown()
	}()
	_ = am.addRecursive(dir)
	wg.Wait()

	assert.Error(t, am.addRecursive(dir))
	assert.Error(t, am.Initialize(dir))
}
