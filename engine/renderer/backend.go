package renderer

import (
	"time"

	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// FrameBackend does the GPU side of a tick for one frame slot. Slots are
// numbered 0..FramesInFlight()-1.
type FrameBackend interface {
	FramesInFlight() int
	// WaitFrame blocks until the slot's completion fence is signaled.
	WaitFrame(slot int, timeout time.Duration) error
	// AcquireImage returns core.ErrSwapchainOutOfDate when the surface went stale.
	AcquireImage(slot int, timeout time.Duration) (uint32, error)
	ResetFrame(slot int) error
	RecordFrame(slot int, image uint32, meshes []*metadata.MeshRecord) error
	SubmitFrame(slot int) error
	// PresentFrame returns core.ErrSwapchainOutOfDate or core.ErrSwapchainSuboptimal
	// when the swapchain has to be rebuilt.
	PresentFrame(slot int, image uint32) error
	WaitIdle() error
}

// Swapchain is one generation of presentable images and their views.
type Swapchain interface {
	Extent() metadata.Extent2D
	ImageCount() uint32
	Format() uint32
	// Destroy releases the views and the chain. The images belong to the chain.
	Destroy() error
}

type SwapchainFactory interface {
	CreateSwapchain(extent metadata.Extent2D) (Swapchain, error)
	WaitIdle() error
}

// Surface is the part of the window the renderer depends on.
type Surface interface {
	FramebufferSize() (uint32, uint32)
	WaitEvents()
	ShouldClose() bool
}

// Importer turns a mesh file into vertex and index arrays. It must fail on
// malformed input instead of returning empty geometry.
type Importer interface {
	Import(path string) ([]metadata.Vertex, []uint32, error)
}

// MeshUploader makes geometry GPU resident. It returns only once the copy
// has completed on the GPU.
type MeshUploader interface {
	UploadMesh(data *metadata.MeshData) (*metadata.MeshRecord, error)
}

// Backend is everything the Renderer drives.
type Backend interface {
	FrameBackend
	SwapchainFactory
	MeshUploader
	WriteUniforms(block *metadata.UniformBlock) error
	Shutdown() error
}
