package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// SwapchainManager owns the current swapchain generation and rebuilds it
// when presentation goes stale. It never creates a swapchain with a zero
// extent: while the surface is minimized it blocks on window events.
type SwapchainManager struct {
	factory     SwapchainFactory
	surface     Surface
	current     Swapchain
	recreations int
}

func NewSwapchainManager(factory SwapchainFactory, surface Surface) *SwapchainManager {
	return &SwapchainManager{
		factory: factory,
		surface: surface,
	}
}

func (sm *SwapchainManager) Create() error {
	extent, err := sm.waitForExtent()
	if err != nil {
		return err
	}
	sc, err := sm.factory.CreateSwapchain(extent)
	if err != nil {
		return errors.Wrapf(err, "creating swapchain %dx%d", extent.Width, extent.Height)
	}
	sm.current = sc
	core.LogDebug("swapchain created (%dx%d, %d images)", extent.Width, extent.Height, sc.ImageCount())
	return nil
}

// Recreate waits for the device to go idle, destroys the current
// generation and builds a new one for the surface's present extent.
func (sm *SwapchainManager) Recreate() error {
	extent, err := sm.waitForExtent()
	if err != nil {
		return err
	}
	if err := sm.factory.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for device idle before swapchain recreation")
	}
	if err := sm.destroyCurrent(); err != nil {
		return err
	}
	sc, err := sm.factory.CreateSwapchain(extent)
	if err != nil {
		return errors.Wrapf(err, "recreating swapchain %dx%d", extent.Width, extent.Height)
	}
	sm.current = sc
	sm.recreations++
	core.LogDebug("swapchain recreated (%dx%d)", extent.Width, extent.Height)
	return nil
}

func (sm *SwapchainManager) Current() Swapchain {
	return sm.current
}

func (sm *SwapchainManager) Recreations() int {
	return sm.recreations
}

// Destroy releases the current generation. The caller guarantees the GPU is idle.
func (sm *SwapchainManager) Destroy() error {
	return sm.destroyCurrent()
}

func (sm *SwapchainManager) destroyCurrent() error {
	if sm.current == nil {
		return nil
	}
	err := sm.current.Destroy()
	sm.current = nil
	if err != nil {
		return errors.Wrap(err, "destroying swapchain")
	}
	return nil
}

func (sm *SwapchainManager) waitForExtent() (metadata.Extent2D, error) {
	for {
		w, h := sm.surface.FramebufferSize()
		extent := metadata.Extent2D{Width: w, Height: h}
		if !extent.IsZero() {
			return extent, nil
		}
		if sm.surface.ShouldClose() {
			return extent, core.ErrSurfaceClosed
		}
		sm.surface.WaitEvents()
	}
}
