package vulkan

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

type AllocatedBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Class  metadata.MemoryClass
	// Host pointer, set for host visible classes.
	Mapped unsafe.Pointer
	// GPU virtual address, set when the buffer was created with
	// SHADER_DEVICE_ADDRESS usage.
	Address uint64
}

type AllocatedImage struct {
	Handle vk.Image
	View   vk.ImageView
	Memory vk.DeviceMemory
	Extent vk.Extent3D
	Format vk.Format
}

type ImageSpec struct {
	Format vk.Format
	Extent vk.Extent3D
	Usage  vk.ImageUsageFlags
	Aspect vk.ImageAspectFlags
}

// ResourceAllocator creates buffers and images with dedicated device
// memory. It is used from both the render and the upload goroutine.
type ResourceAllocator struct {
	context *VulkanContext
	live    atomic.Int64
}

func NewResourceAllocator(context *VulkanContext) *ResourceAllocator {
	return &ResourceAllocator{context: context}
}

// LiveAllocations is the number of buffers and images not yet destroyed.
func (ra *ResourceAllocator) LiveAllocations() int64 {
	return ra.live.Load()
}

func memoryPropertiesFor(class metadata.MemoryClass) vk.MemoryPropertyFlags {
	switch class {
	case metadata.MemoryClassHostMapped, metadata.MemoryClassHostTransient:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	default:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}
}

// findMemoryType returns the first memory type allowed by filter that has
// every requested property.
func findMemoryType(types []vk.MemoryPropertyFlags, filter uint32, want vk.MemoryPropertyFlags) (uint32, error) {
	for i, flags := range types {
		if filter&(1<<uint(i)) != 0 && flags&want == want {
			return uint32(i), nil
		}
	}
	return 0, errors.Mark(errors.Newf("no memory type for filter %#x with properties %#x", filter, uint32(want)), core.ErrOutOfMemory)
}

func (ra *ResourceAllocator) allocate(requirements vk.MemoryRequirements, want vk.MemoryPropertyFlags, deviceAddress bool) (vk.DeviceMemory, error) {
	requirements.Deref()
	typeIndex, err := findMemoryType(ra.context.memoryTypeFlags(), requirements.MemoryTypeBits, want)
	if err != nil {
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: typeIndex,
	}
	var flagsInfo vk.MemoryAllocateFlagsInfo
	var pinner runtime.Pinner
	defer pinner.Unpin()
	if deviceAddress {
		flagsInfo = vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureTypeMemoryAllocateFlagsInfo,
			Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
		}
		pinner.Pin(&flagsInfo)
		allocInfo.PNext = unsafe.Pointer(&flagsInfo)
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ra.context.Device.LogicalDevice, &allocInfo, ra.context.Allocator, &memory); res != vk.Success {
		return nil, errors.Mark(resultError(res, "vkAllocateMemory"), core.ErrOutOfMemory)
	}
	return memory, nil
}

func (ra *ResourceAllocator) CreateBuffer(size uint64, usage vk.BufferUsageFlags, class metadata.MemoryClass) (*AllocatedBuffer, error) {
	device := ra.context.Device
	buffer := &AllocatedBuffer{Size: size, Class: class}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	// buffers written on the transfer queue and read on the graphics queue
	if device.TransferQueueIndex != device.GraphicsQueueIndex && class == metadata.MemoryClassDeviceLocal {
		createInfo.SharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{device.GraphicsQueueIndex, device.TransferQueueIndex}
	}

	if res := vk.CreateBuffer(device.LogicalDevice, &createInfo, ra.context.Allocator, &buffer.Handle); res != vk.Success {
		return nil, errors.Mark(resultError(res, "vkCreateBuffer"), core.ErrOutOfMemory)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device.LogicalDevice, buffer.Handle, &requirements)

	deviceAddress := usage&vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit) != 0
	memory, err := ra.allocate(requirements, memoryPropertiesFor(class), deviceAddress)
	if err != nil {
		vk.DestroyBuffer(device.LogicalDevice, buffer.Handle, ra.context.Allocator)
		return nil, errors.Wrapf(err, "allocating %d byte buffer", size)
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(device.LogicalDevice, buffer.Handle, memory, 0); res != vk.Success {
		vk.FreeMemory(device.LogicalDevice, memory, ra.context.Allocator)
		vk.DestroyBuffer(device.LogicalDevice, buffer.Handle, ra.context.Allocator)
		return nil, resultError(res, "vkBindBufferMemory")
	}

	if class != metadata.MemoryClassDeviceLocal {
		var ptr unsafe.Pointer
		if res := vk.MapMemory(device.LogicalDevice, memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
			vk.FreeMemory(device.LogicalDevice, memory, ra.context.Allocator)
			vk.DestroyBuffer(device.LogicalDevice, buffer.Handle, ra.context.Allocator)
			return nil, resultError(res, "vkMapMemory")
		}
		buffer.Mapped = ptr
	}

	if deviceAddress {
		addressInfo := vk.BufferDeviceAddressInfo{
			SType:  vk.StructureTypeBufferDeviceAddressInfo,
			Buffer: buffer.Handle,
		}
		buffer.Address = uint64(vk.GetBufferDeviceAddress(device.LogicalDevice, &addressInfo))
	}

	ra.live.Add(1)
	return buffer, nil
}

func (ra *ResourceAllocator) DestroyBuffer(buffer *AllocatedBuffer) {
	if buffer == nil || buffer.Handle == vk.NullBuffer {
		return
	}
	device := ra.context.Device.LogicalDevice
	if buffer.Mapped != nil {
		vk.UnmapMemory(device, buffer.Memory)
		buffer.Mapped = nil
	}
	vk.DestroyBuffer(device, buffer.Handle, ra.context.Allocator)
	vk.FreeMemory(device, buffer.Memory, ra.context.Allocator)
	buffer.Handle = vk.NullBuffer
	buffer.Memory = vk.NullDeviceMemory
	ra.live.Add(-1)
}

// Write copies data into a host visible buffer at the given offset.
func (ab *AllocatedBuffer) Write(offset uint64, data []byte) error {
	if ab.Mapped == nil {
		return errors.New("buffer is not host mapped")
	}
	if offset+uint64(len(data)) > ab.Size {
		return errors.Newf("write of %d bytes at %d overflows %d byte buffer", len(data), offset, ab.Size)
	}
	vk.Memcopy(unsafe.Add(ab.Mapped, offset), data)
	return nil
}

func (ra *ResourceAllocator) CreateImage(spec ImageSpec) (*AllocatedImage, error) {
	device := ra.context.Device.LogicalDevice
	image := &AllocatedImage{Extent: spec.Extent, Format: spec.Format}

	createInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        spec.Format,
		Extent:        spec.Extent,
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         spec.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if res := vk.CreateImage(device, &createInfo, ra.context.Allocator, &image.Handle); res != vk.Success {
		return nil, errors.Mark(resultError(res, "vkCreateImage"), core.ErrOutOfMemory)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image.Handle, &requirements)
	memory, err := ra.allocate(requirements, memoryPropertiesFor(metadata.MemoryClassDeviceLocal), false)
	if err != nil {
		vk.DestroyImage(device, image.Handle, ra.context.Allocator)
		return nil, errors.Wrapf(err, "allocating %dx%d image", spec.Extent.Width, spec.Extent.Height)
	}
	image.Memory = memory

	if res := vk.BindImageMemory(device, image.Handle, memory, 0); res != vk.Success {
		vk.FreeMemory(device, memory, ra.context.Allocator)
		vk.DestroyImage(device, image.Handle, ra.context.Allocator)
		return nil, resultError(res, "vkBindImageMemory")
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            image.Handle,
		ViewType:         vk.ImageViewType2d,
		Format:           spec.Format,
		SubresourceRange: subresourceRange(spec.Aspect),
	}
	if res := vk.CreateImageView(device, &viewInfo, ra.context.Allocator, &image.View); res != vk.Success {
		vk.FreeMemory(device, memory, ra.context.Allocator)
		vk.DestroyImage(device, image.Handle, ra.context.Allocator)
		return nil, resultError(res, "vkCreateImageView")
	}

	ra.live.Add(1)
	return image, nil
}

func (ra *ResourceAllocator) DestroyImage(image *AllocatedImage) {
	if image == nil || image.Handle == vk.NullImage {
		return
	}
	device := ra.context.Device.LogicalDevice
	vk.DestroyImageView(device, image.View, ra.context.Allocator)
	vk.DestroyImage(device, image.Handle, ra.context.Allocator)
	vk.FreeMemory(device, image.Memory, ra.context.Allocator)
	image.Handle = vk.NullImage
	image.View = vk.NullImageView
	image.Memory = vk.NullDeviceMemory
	ra.live.Add(-1)
}
