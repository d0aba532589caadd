package renderer

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// FrameSynchronizer runs the per tick protocol over a fixed ring of frame
// slots. A slot is reset and re-recorded only after its previous
// submission's fence has been observed signaled.
type FrameSynchronizer struct {
	backend    FrameBackend
	swapchains *SwapchainManager
	meshes     *MeshList
	timeout    time.Duration

	slots       []metadata.FrameSlotState
	current     int
	frameNumber uint64

	resizeRequested atomic.Bool
}

func NewFrameSynchronizer(backend FrameBackend, swapchains *SwapchainManager, meshes *MeshList, timeout time.Duration) *FrameSynchronizer {
	n := backend.FramesInFlight()
	if n < 1 {
		n = 1
	}
	return &FrameSynchronizer{
		backend:    backend,
		swapchains: swapchains,
		meshes:     meshes,
		timeout:    timeout,
		slots:      make([]metadata.FrameSlotState, n),
	}
}

// RequestResize makes the next tick rebuild the swapchain after presenting.
// Safe to call from window callbacks.
func (fs *FrameSynchronizer) RequestResize() {
	fs.resizeRequested.Store(true)
}

func (fs *FrameSynchronizer) FrameNumber() uint64 {
	return fs.frameNumber
}

func (fs *FrameSynchronizer) CurrentSlot() int {
	return fs.current
}

func (fs *FrameSynchronizer) SlotState(i int) metadata.FrameSlotState {
	return fs.slots[i]
}

// Draw runs one tick. It returns false when the frame was skipped because
// the swapchain had to be rebuilt before an image could be acquired. Any
// returned error is fatal.
func (fs *FrameSynchronizer) Draw() (bool, error) {
	i := fs.current

	if err := fs.backend.WaitFrame(i, fs.timeout); err != nil {
		return false, errors.Wrapf(err, "waiting on frame slot %d", i)
	}
	fs.slots[i] = metadata.FrameSlotIdle

	image, err := fs.backend.AcquireImage(i, fs.timeout)
	if err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			// the fence stays signaled so the slot can be retried next tick
			return false, fs.recreate()
		}
		return false, errors.Wrapf(err, "acquiring swapchain image for slot %d", i)
	}

	if err := fs.beginRecording(i); err != nil {
		return false, err
	}
	if err := fs.backend.ResetFrame(i); err != nil {
		return false, errors.Wrapf(err, "resetting frame slot %d", i)
	}
	if err := fs.backend.RecordFrame(i, image, fs.meshes.Snapshot()); err != nil {
		return false, errors.Wrapf(err, "recording frame slot %d", i)
	}
	if err := fs.backend.SubmitFrame(i); err != nil {
		return false, errors.Wrapf(err, "submitting frame slot %d", i)
	}
	fs.slots[i] = metadata.FrameSlotSubmitted

	perr := fs.backend.PresentFrame(i, image)
	fs.current = (i + 1) % len(fs.slots)
	fs.frameNumber++

	stale := errors.Is(perr, core.ErrSwapchainOutOfDate) || errors.Is(perr, core.ErrSwapchainSuboptimal)
	if perr != nil && !stale {
		return true, errors.Wrapf(perr, "presenting image %d", image)
	}
	if fs.resizeRequested.Swap(false) || stale {
		if err := fs.recreate(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Drain blocks until the GPU has finished every submitted frame.
func (fs *FrameSynchronizer) Drain() error {
	if err := fs.backend.WaitIdle(); err != nil {
		return errors.Wrap(err, "draining frames in flight")
	}
	for i := range fs.slots {
		fs.slots[i] = metadata.FrameSlotIdle
	}
	return nil
}

func (fs *FrameSynchronizer) beginRecording(i int) error {
	if fs.slots[i] != metadata.FrameSlotIdle {
		return errors.Wrapf(core.ErrFrameSlotBusy, "slot %d is %s", i, fs.slots[i])
	}
	fs.slots[i] = metadata.FrameSlotRecording
	return nil
}

func (fs *FrameSynchronizer) recreate() error {
	fs.resizeRequested.Store(false)
	return fs.swapchains.Recreate()
}
