package renderer

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/vkshadow/engine/containers"
	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// UploadPipeline moves mesh files from disk to the GPU on a single
// background worker. Requests are served in FIFO order; the quit sentinel
// ends the worker after everything enqueued before it has been handled.
type UploadPipeline struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  *containers.RingQueue[metadata.UploadRequest]
	closed bool

	importers map[metadata.MeshType]Importer
	uploader  MeshUploader
	meshes    *MeshList
	logger    *log.Logger

	group   errgroup.Group
	started atomic.Bool
	done    chan struct{}
	err     atomic.Pointer[error]

	uploaded atomic.Uint64
	skipped  atomic.Uint64
}

func NewUploadPipeline(uploader MeshUploader, meshes *MeshList, importers map[metadata.MeshType]Importer) *UploadPipeline {
	up := &UploadPipeline{
		queue:     containers.NewRingQueue[metadata.UploadRequest](8),
		importers: importers,
		uploader:  uploader,
		meshes:    meshes,
		logger:    core.LogWith("upload"),
		done:      make(chan struct{}),
	}
	up.cond = sync.NewCond(&up.mu)
	return up
}

// Enqueue never blocks. It fails once the quit sentinel has been sent.
func (up *UploadPipeline) Enqueue(req metadata.UploadRequest) error {
	up.mu.Lock()
	defer up.mu.Unlock()
	if up.closed {
		return core.ErrUploaderClosed
	}
	if req.IsQuit() {
		up.closed = true
	}
	up.queue.Enqueue(req)
	up.cond.Signal()
	return nil
}

// Start launches the worker. Calling it twice is a no-op.
func (up *UploadPipeline) Start() {
	if !up.started.CompareAndSwap(false, true) {
		return
	}
	up.group.Go(func() error {
		defer close(up.done)
		err := up.run()
		if err != nil {
			up.mu.Lock()
			up.closed = true
			up.mu.Unlock()
			up.err.Store(&err)
			up.logger.Error("upload worker stopped", "err", err)
		}
		return err
	})
}

// Shutdown sends the quit sentinel and joins the worker. Requests already
// queued are processed first. The returned error is the worker's fatal
// error, if any.
func (up *UploadPipeline) Shutdown() error {
	up.mu.Lock()
	if !up.closed {
		up.closed = true
		up.queue.Enqueue(metadata.QuitRequest())
		up.cond.Signal()
	}
	up.mu.Unlock()

	if !up.started.Load() {
		up.meshes.Seal()
		return nil
	}
	return up.group.Wait()
}

// Err reports a fatal worker error without blocking.
func (up *UploadPipeline) Err() error {
	if p := up.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Done is closed when the worker has exited.
func (up *UploadPipeline) Done() <-chan struct{} {
	return up.done
}

// Processed returns how many requests were uploaded and how many were skipped.
func (up *UploadPipeline) Processed() (uploaded, skipped uint64) {
	return up.uploaded.Load(), up.skipped.Load()
}

func (up *UploadPipeline) next() metadata.UploadRequest {
	up.mu.Lock()
	defer up.mu.Unlock()
	for up.queue.IsEmpty() {
		up.cond.Wait()
	}
	req, _ := up.queue.Dequeue()
	return req
}

func (up *UploadPipeline) run() error {
	defer up.meshes.Seal()
	for {
		req := up.next()
		if req.IsQuit() {
			up.logger.Debug("quit request received")
			return nil
		}
		if err := up.process(req); err != nil {
			return err
		}
	}
}

func (up *UploadPipeline) process(req metadata.UploadRequest) error {
	importer, ok := up.importers[req.Type]
	if !ok {
		up.skip(req, errors.Wrapf(core.ErrUnsupportedFormat, "mesh type %s", req.Type))
		return nil
	}

	vertices, indices, err := importer.Import(req.Path)
	if err != nil {
		up.skip(req, err)
		return nil
	}
	if len(vertices) == 0 || len(indices) == 0 {
		up.skip(req, errors.Wrap(core.ErrMalformedAsset, "no geometry"))
		return nil
	}

	record, err := up.uploader.UploadMesh(&metadata.MeshData{
		ID:       req.ID,
		Name:     meshName(req.Path),
		Vertices: vertices,
		Indices:  indices,
		Model:    req.Transform,
	})
	if err != nil {
		return errors.Wrapf(err, "uploading %s", req.Path)
	}
	if err := up.meshes.Append(record); err != nil {
		if rerr := record.Buffers.Release(); rerr != nil {
			up.logger.Warn("releasing orphaned mesh", "name", record.Name, "err", rerr)
		}
		return err
	}

	up.uploaded.Add(1)
	up.logger.Info("mesh uploaded", "id", req.ID, "name", record.Name, "vertices", len(vertices), "indices", record.IndexCount)
	return nil
}

func (up *UploadPipeline) skip(req metadata.UploadRequest, err error) {
	up.skipped.Add(1)
	up.logger.Error("skipping mesh", "id", req.ID, "path", req.Path, "err", err)
}

func meshName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
