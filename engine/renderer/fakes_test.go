package renderer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

type event struct {
	op   string
	slot int
}

type fakeBackend struct {
	mu     sync.Mutex
	frames int
	events []event

	waitErr     error
	acquireErrs []error
	presentErrs []error

	swapchainsCreated int
	liveSwapchains    int
	lastExtent        metadata.Extent2D
	nextImage         uint32

	uploadErr   error
	uploadDelay time.Duration
	uploads     int

	uniforms *metadata.UniformBlock
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{frames: 2}
}

func (fb *fakeBackend) log(op string, slot int) {
	fb.mu.Lock()
	fb.events = append(fb.events, event{op: op, slot: slot})
	fb.mu.Unlock()
}

func (fb *fakeBackend) snapshot() []event {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]event, len(fb.events))
	copy(out, fb.events)
	return out
}

func (fb *fakeBackend) ops() []string {
	var out []string
	for _, e := range fb.snapshot() {
		out = append(out, e.op)
	}
	return out
}

func (fb *fakeBackend) slotOps(slot int) []string {
	var out []string
	for _, e := range fb.snapshot() {
		if e.slot == slot {
			out = append(out, e.op)
		}
	}
	return out
}

func (fb *fakeBackend) count(op string) int {
	n := 0
	for _, e := range fb.snapshot() {
		if e.op == op {
			n++
		}
	}
	return n
}

func (fb *fakeBackend) FramesInFlight() int { return fb.frames }

func (fb *fakeBackend) WaitFrame(slot int, timeout time.Duration) error {
	fb.log("wait", slot)
	return fb.waitErr
}

func (fb *fakeBackend) AcquireImage(slot int, timeout time.Duration) (uint32, error) {
	fb.log("acquire", slot)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.acquireErrs) > 0 {
		err := fb.acquireErrs[0]
		fb.acquireErrs = fb.acquireErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	img := fb.nextImage
	fb.nextImage = (fb.nextImage + 1) % 3
	return img, nil
}

func (fb *fakeBackend) ResetFrame(slot int) error {
	fb.log("reset", slot)
	return nil
}

func (fb *fakeBackend) RecordFrame(slot int, image uint32, meshes []*metadata.MeshRecord) error {
	fb.log("record", slot)
	return nil
}

func (fb *fakeBackend) SubmitFrame(slot int) error {
	fb.log("submit", slot)
	return nil
}

func (fb *fakeBackend) PresentFrame(slot int, image uint32) error {
	fb.log("present", slot)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.presentErrs) > 0 {
		err := fb.presentErrs[0]
		fb.presentErrs = fb.presentErrs[1:]
		return err
	}
	return nil
}

func (fb *fakeBackend) WaitIdle() error {
	fb.log("idle", -1)
	return nil
}

func (fb *fakeBackend) CreateSwapchain(extent metadata.Extent2D) (Swapchain, error) {
	fb.log("create", -1)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.swapchainsCreated++
	fb.liveSwapchains++
	fb.lastExtent = extent
	return &fakeSwapchain{backend: fb, extent: extent}, nil
}

func (fb *fakeBackend) UploadMesh(data *metadata.MeshData) (*metadata.MeshRecord, error) {
	if fb.uploadDelay > 0 {
		time.Sleep(fb.uploadDelay)
	}
	fb.log("upload:"+data.Name, -1)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.uploadErr != nil {
		return nil, fb.uploadErr
	}
	fb.uploads++
	buffers := &fakeBuffers{backend: fb, name: data.Name}
	buffers.ready.Store(true)
	return &metadata.MeshRecord{
		ID:                  data.ID,
		Name:                data.Name,
		Buffers:             buffers,
		VertexBufferAddress: uint64(0x1000 + fb.uploads*0x100),
		IndexCount:          uint32(len(data.Indices)),
		Model:               data.Model,
	}, nil
}

func (fb *fakeBackend) WriteUniforms(block *metadata.UniformBlock) error {
	fb.mu.Lock()
	fb.uniforms = block
	fb.mu.Unlock()
	return nil
}

func (fb *fakeBackend) Shutdown() error {
	fb.log("shutdown", -1)
	return nil
}

type fakeSwapchain struct {
	backend   *fakeBackend
	extent    metadata.Extent2D
	destroyed bool
}

func (fs *fakeSwapchain) Extent() metadata.Extent2D { return fs.extent }

// ImageCount and Format depend only on the extent, like a surface whose
// capabilities do not change between recreations.
func (fs *fakeSwapchain) ImageCount() uint32 {
	if fs.extent.Width >= fs.extent.Height {
		return 3
	}
	return 2
}

func (fs *fakeSwapchain) Format() uint32 {
	return 44 + (fs.extent.Width+fs.extent.Height)%4
}

func (fs *fakeSwapchain) Destroy() error {
	if fs.destroyed {
		return fmt.Errorf("swapchain destroyed twice")
	}
	fs.destroyed = true
	fs.backend.log("destroy", -1)
	fs.backend.mu.Lock()
	fs.backend.liveSwapchains--
	fs.backend.mu.Unlock()
	return nil
}

type fakeBuffers struct {
	backend *fakeBackend
	name    string
	ready   atomic.Bool
}

func (fb *fakeBuffers) Release() error {
	fb.backend.log("release:"+fb.name, -1)
	return nil
}

// fakeSurface reports the queued sizes in order and then sticks to the last one.
type fakeSurface struct {
	sizes      []metadata.Extent2D
	waitEvents int
	closed     bool
}

func newFakeSurface(sizes ...metadata.Extent2D) *fakeSurface {
	if len(sizes) == 0 {
		sizes = []metadata.Extent2D{{Width: 1700, Height: 900}}
	}
	return &fakeSurface{sizes: sizes}
}

func (fs *fakeSurface) FramebufferSize() (uint32, uint32) {
	e := fs.sizes[0]
	if len(fs.sizes) > 1 {
		fs.sizes = fs.sizes[1:]
	}
	return e.Width, e.Height
}

func (fs *fakeSurface) WaitEvents()       { fs.waitEvents++ }
func (fs *fakeSurface) ShouldClose() bool { return fs.closed }

type fakeImporter struct {
	mu    sync.Mutex
	calls []string
}

func (fi *fakeImporter) Import(path string) ([]metadata.Vertex, []uint32, error) {
	fi.mu.Lock()
	fi.calls = append(fi.calls, path)
	fi.mu.Unlock()
	if path == "models/broken.obj" {
		return nil, nil, core.ErrMalformedAsset
	}
	if path == "models/empty.obj" {
		return nil, nil, nil
	}
	vertices := []metadata.Vertex{{}, {}, {}}
	return vertices, []uint32{0, 1, 2}, nil
}

func objImporters(fi *fakeImporter) map[metadata.MeshType]Importer {
	return map[metadata.MeshType]Importer{metadata.MeshTypeOBJ: fi}
}
