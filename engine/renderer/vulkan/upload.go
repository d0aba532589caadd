package vulkan

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// meshBuffers is the GPU side of a MeshRecord.
type meshBuffers struct {
	allocator *ResourceAllocator
	Vertex    *AllocatedBuffer
	Index     *AllocatedBuffer
	once      sync.Once
}

// Release destroys both buffers. The caller guarantees the GPU no longer
// reads them.
func (mb *meshBuffers) Release() error {
	mb.once.Do(func() {
		mb.allocator.DestroyBuffer(mb.Vertex)
		mb.allocator.DestroyBuffer(mb.Index)
	})
	return nil
}

func vertexBytes(vertices []metadata.Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*metadata.VertexSize)
}

func indexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
}

// UploadMesh copies the geometry into device local buffers through one
// staging buffer and blocks until the transfer queue has finished. Only
// the upload goroutine calls it.
func (vr *VulkanRenderer) UploadMesh(data *metadata.MeshData) (*metadata.MeshRecord, error) {
	if len(data.Vertices) == 0 || len(data.Indices) == 0 {
		return nil, errors.Mark(errors.Newf("mesh %s has no geometry", data.Name), core.ErrMalformedAsset)
	}
	vertices := vertexBytes(data.Vertices)
	indices := indexBytes(data.Indices)
	vertexSize := uint64(len(vertices))
	indexSize := uint64(len(indices))

	vertex, err := vr.allocator.CreateBuffer(vertexSize,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferDstBit|vk.BufferUsageShaderDeviceAddressBit),
		metadata.MemoryClassDeviceLocal)
	if err != nil {
		return nil, errors.Wrap(err, "creating vertex buffer")
	}
	index, err := vr.allocator.CreateBuffer(indexSize,
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit),
		metadata.MemoryClassDeviceLocal)
	if err != nil {
		vr.allocator.DestroyBuffer(vertex)
		return nil, errors.Wrap(err, "creating index buffer")
	}
	buffers := &meshBuffers{allocator: vr.allocator, Vertex: vertex, Index: index}

	staging, err := vr.allocator.CreateBuffer(vertexSize+indexSize,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), metadata.MemoryClassHostTransient)
	if err != nil {
		buffers.Release()
		return nil, errors.Wrap(err, "creating staging buffer")
	}
	defer vr.allocator.DestroyBuffer(staging)

	if err := staging.Write(0, vertices); err != nil {
		buffers.Release()
		return nil, err
	}
	if err := staging.Write(vertexSize, indices); err != nil {
		buffers.Release()
		return nil, err
	}

	device := vr.context.Device
	err = vr.context.Locks.SafeCall(ResourceManagement, func() error {
		cmd, err := AllocateAndBeginSingleUse(vr.context, vr.transferPool)
		if err != nil {
			return err
		}
		vk.CmdCopyBuffer(cmd.Handle, staging.Handle, vertex.Handle, 1, []vk.BufferCopy{{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      vk.DeviceSize(vertexSize),
		}})
		vk.CmdCopyBuffer(cmd.Handle, staging.Handle, index.Handle, 1, []vk.BufferCopy{{
			SrcOffset: vk.DeviceSize(vertexSize),
			DstOffset: 0,
			Size:      vk.DeviceSize(indexSize),
		}})
		return cmd.EndSingleUse(vr.context, vr.transferPool, device.TransferQueue, device.TransferQueueIndex, vr.fenceTimeout)
	})
	if err != nil {
		buffers.Release()
		return nil, errors.Wrapf(err, "transferring mesh %s", data.Name)
	}

	core.LogDebug("Uploaded mesh %s (%d vertices, %d indices).", data.Name, len(data.Vertices), len(data.Indices))
	return &metadata.MeshRecord{
		ID:                  data.ID,
		Name:                data.Name,
		Buffers:             buffers,
		VertexBufferAddress: vertex.Address,
		IndexCount:          uint32(len(data.Indices)),
		Model:               data.Model,
	}, nil
}
