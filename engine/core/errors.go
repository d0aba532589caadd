package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// Presentation staleness. Never surfaced past the frame loop.
	ErrSwapchainOutOfDate  = errors.New("swapchain out of date")
	ErrSwapchainSuboptimal = errors.New("swapchain suboptimal")
	ErrSurfaceClosed       = errors.New("surface closed while waiting for a non-zero extent")

	// Fatal GPU conditions.
	ErrFenceTimeout = errors.New("fence wait timed out")
	ErrDeviceLost   = errors.New("device lost")
	ErrOutOfMemory  = errors.New("gpu allocation failed")

	ErrFrameSlotBusy     = errors.New("frame slot reused before its fence was observed")
	ErrUploaderClosed    = errors.New("upload pipeline is shut down")
	ErrMeshListSealed    = errors.New("mesh list is sealed")
	ErrMalformedAsset    = errors.New("malformed asset")
	ErrUnsupportedFormat = errors.New("unsupported asset format")

	ErrUnknown = errors.New("unknown")
)
