package renderer

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

const DefaultFenceTimeout = time.Second

// Renderer ties the backend to the frame loop, the swapchain lifecycle and
// the background mesh uploads.
type Renderer struct {
	backend    Backend
	meshes     *MeshList
	uploads    *UploadPipeline
	swapchains *SwapchainManager
	frames     *FrameSynchronizer

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(backend Backend, surface Surface, importers map[metadata.MeshType]Importer, fenceTimeout time.Duration) *Renderer {
	if fenceTimeout <= 0 {
		fenceTimeout = DefaultFenceTimeout
	}
	meshes := NewMeshList()
	swapchains := NewSwapchainManager(backend, surface)
	return &Renderer{
		backend:    backend,
		meshes:     meshes,
		uploads:    NewUploadPipeline(backend, meshes, importers),
		swapchains: swapchains,
		frames:     NewFrameSynchronizer(backend, swapchains, meshes, fenceTimeout),
	}
}

// Initialize creates the first swapchain and starts the upload worker.
func (r *Renderer) Initialize() error {
	if err := r.swapchains.Create(); err != nil {
		return err
	}
	r.uploads.Start()
	core.LogInfo("renderer initialized with %d frames in flight", r.backend.FramesInFlight())
	return nil
}

func (r *Renderer) Enqueue(req metadata.UploadRequest) error {
	return r.uploads.Enqueue(req)
}

// Draw runs one frame. A fatal upload failure is reported here so the
// render loop stops on the next tick.
func (r *Renderer) Draw() (bool, error) {
	if err := r.uploads.Err(); err != nil {
		return false, errors.Wrap(err, "mesh upload failed")
	}
	return r.frames.Draw()
}

func (r *Renderer) RequestResize() {
	r.frames.RequestResize()
}

func (r *Renderer) WriteUniforms(block *metadata.UniformBlock) error {
	return r.backend.WriteUniforms(block)
}

func (r *Renderer) Meshes() *MeshList {
	return r.meshes
}

func (r *Renderer) Uploads() *UploadPipeline {
	return r.uploads
}

func (r *Renderer) Swapchains() *SwapchainManager {
	return r.swapchains
}

func (r *Renderer) Frames() *FrameSynchronizer {
	return r.frames
}

// Shutdown joins the upload worker, drains the GPU, then destroys meshes,
// the swapchain and the backend in that order. The first error is returned
// but every step runs.
func (r *Renderer) Shutdown() error {
	r.shutdownOnce.Do(func() {
		var errs []error
		if err := r.uploads.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		if err := r.frames.Drain(); err != nil {
			errs = append(errs, err)
		}
		for _, record := range r.meshes.Drain() {
			if err := record.Buffers.Release(); err != nil {
				errs = append(errs, errors.Wrapf(err, "releasing mesh %s", record.Name))
			}
		}
		if err := r.swapchains.Destroy(); err != nil {
			errs = append(errs, err)
		}
		if err := r.backend.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		for _, err := range errs[min(1, len(errs)):] {
			core.LogError("renderer shutdown: %v", err)
		}
		if len(errs) > 0 {
			r.shutdownErr = errs[0]
		}
	})
	return r.shutdownErr
}
