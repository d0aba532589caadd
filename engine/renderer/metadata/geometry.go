package metadata

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

/**
 * @brief One vertex as read by the vertex shader through the buffer
 * device address. Matches a std430 struct { vec3; float; vec3; float; vec3; }.
 */
type Vertex struct {
	Position mgl32.Vec3
	UVX      float32
	Color    mgl32.Vec3
	UVY      float32
	Normal   mgl32.Vec3
	_        float32
}

const VertexSize = int(unsafe.Sizeof(Vertex{}))

/** @brief Per draw data pushed at the vertex stage. */
type PushConstants struct {
	VertexBuffer uint64
	_            uint64
	Model        mgl32.Mat4
}

const PushConstantsSize = uint32(unsafe.Sizeof(PushConstants{}))

/** @brief A framebuffer or swapchain size in pixels. */
type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

/** @brief Lifecycle of a frame slot. */
type FrameSlotState int

const (
	/** @brief Fence observed signaled; the slot may be reset. */
	FrameSlotIdle FrameSlotState = iota
	FrameSlotRecording
	/** @brief Handed to the GPU; fence unsignaled until the work completes. */
	FrameSlotSubmitted
)

func (s FrameSlotState) String() string {
	switch s {
	case FrameSlotIdle:
		return "idle"
	case FrameSlotRecording:
		return "recording"
	case FrameSlotSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

/** @brief GPU memory placement of a buffer. */
type MemoryClass int

const (
	/** @brief Device local, not host visible (vertex, index, images). */
	MemoryClassDeviceLocal MemoryClass = iota
	/** @brief Host visible and mapped for its whole life (uniform buffer). */
	MemoryClassHostMapped
	/** @brief Host visible, lives for a single upload (staging). */
	MemoryClassHostTransient
)
