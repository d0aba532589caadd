package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

func TestCreateWaitsForNonZeroExtent(t *testing.T) {
	fb := newFakeBackend()
	surface := newFakeSurface(
		metadata.Extent2D{Width: 0, Height: 0},
		metadata.Extent2D{Width: 800, Height: 0},
		metadata.Extent2D{Width: 800, Height: 600},
	)
	sm := NewSwapchainManager(fb, surface)

	require.NoError(t, sm.Create())
	assert.Equal(t, 2, surface.waitEvents)
	assert.Equal(t, metadata.Extent2D{Width: 800, Height: 600}, fb.lastExtent)
	assert.Equal(t, 1, fb.swapchainsCreated)
	assert.Equal(t, uint32(800), sm.Current().Extent().Width)
}

func TestRecreateWaitsIdleBeforeDestroy(t *testing.T) {
	fb := newFakeBackend()
	sm := NewSwapchainManager(fb, newFakeSurface())
	require.NoError(t, sm.Create())
	old := sm.Current()

	require.NoError(t, sm.Recreate())
	assert.Equal(t, []string{"create", "idle", "destroy", "create"}, fb.ops())
	assert.NotSame(t, old, sm.Current())
	assert.Equal(t, 1, sm.Recreations())
}

func TestRecreateKeepsOneLiveGeneration(t *testing.T) {
	fb := newFakeBackend()
	sm := NewSwapchainManager(fb, newFakeSurface())
	require.NoError(t, sm.Create())

	for i := 0; i < 3; i++ {
		require.NoError(t, sm.Recreate())
	}
	assert.Equal(t, 4, fb.swapchainsCreated)
	assert.Equal(t, 1, fb.liveSwapchains)

	require.NoError(t, sm.Destroy())
	assert.Zero(t, fb.liveSwapchains)
	assert.Nil(t, sm.Current())
	require.NoError(t, sm.Destroy())
}

func TestRecreateAbortsWhenSurfaceCloses(t *testing.T) {
	fb := newFakeBackend()
	surface := newFakeSurface(
		metadata.Extent2D{Width: 640, Height: 480},
		metadata.Extent2D{},
	)
	sm := NewSwapchainManager(fb, surface)
	require.NoError(t, sm.Create())
	current := sm.Current()

	surface.closed = true
	err := sm.Recreate()
	assert.ErrorIs(t, err, core.ErrSurfaceClosed)
	assert.Same(t, current, sm.Current())
	assert.Equal(t, 1, fb.liveSwapchains)
	assert.Zero(t, sm.Recreations())
}

func TestRecreateAtSameExtentKeepsImageShape(t *testing.T) {
	fb := newFakeBackend()
	sm := NewSwapchainManager(fb, newFakeSurface(metadata.Extent2D{Width: 1021, Height: 766}))
	require.NoError(t, sm.Create())
	first := sm.Current()
	count, format := first.ImageCount(), first.Format()

	require.NoError(t, sm.Recreate())
	second := sm.Current()
	require.NoError(t, sm.Recreate())
	third := sm.Current()

	assert.NotSame(t, first, second)
	assert.NotSame(t, second, third)
	for _, sc := range []Swapchain{second, third} {
		assert.Equal(t, first.Extent(), sc.Extent())
		assert.Equal(t, count, sc.ImageCount())
		assert.Equal(t, format, sc.Format())
	}
	assert.Equal(t, 2, sm.Recreations())
}
