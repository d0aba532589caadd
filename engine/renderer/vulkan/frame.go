package vulkan

import (
	vk "github.com/goki/vulkan"
)

// FrameSlot holds what one frame in flight records and synchronizes with.
// The render fence is created signaled so the first wait returns at once.
type FrameSlot struct {
	CommandPool        vk.CommandPool
	CommandBuffer      *VulkanCommandBuffer
	RenderFence        *VulkanFence
	SwapchainSemaphore vk.Semaphore
	RenderSemaphore    vk.Semaphore
}

func createCommandPool(context *VulkanContext, family uint32, flags vk.CommandPoolCreateFlagBits) (vk.CommandPool, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(flags),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		return vk.NullCommandPool, resultError(res, "vkCreateCommandPool")
	}
	return pool, nil
}

func createSemaphore(context *VulkanContext) (vk.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &semaphore); res != vk.Success {
		return vk.NullSemaphore, resultError(res, "vkCreateSemaphore")
	}
	return semaphore, nil
}

func NewFrameSlot(context *VulkanContext) (*FrameSlot, error) {
	slot := &FrameSlot{}
	var err error

	slot.CommandPool, err = createCommandPool(context, context.Device.GraphicsQueueIndex, vk.CommandPoolCreateResetCommandBufferBit)
	if err != nil {
		return nil, err
	}
	if slot.CommandBuffer, err = NewVulkanCommandBuffer(context, slot.CommandPool, true); err != nil {
		slot.Destroy(context)
		return nil, err
	}
	if slot.RenderFence, err = NewFence(context, true); err != nil {
		slot.Destroy(context)
		return nil, err
	}
	if slot.SwapchainSemaphore, err = createSemaphore(context); err != nil {
		slot.Destroy(context)
		return nil, err
	}
	if slot.RenderSemaphore, err = createSemaphore(context); err != nil {
		slot.Destroy(context)
		return nil, err
	}
	return slot, nil
}

// Destroy tolerates a partially created slot.
func (fs *FrameSlot) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if fs.RenderSemaphore != vk.NullSemaphore {
		vk.DestroySemaphore(device, fs.RenderSemaphore, context.Allocator)
		fs.RenderSemaphore = vk.NullSemaphore
	}
	if fs.SwapchainSemaphore != vk.NullSemaphore {
		vk.DestroySemaphore(device, fs.SwapchainSemaphore, context.Allocator)
		fs.SwapchainSemaphore = vk.NullSemaphore
	}
	if fs.RenderFence != nil {
		fs.RenderFence.Destroy(context)
		fs.RenderFence = nil
	}
	// freeing the pool frees its command buffers
	if fs.CommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(device, fs.CommandPool, context.Allocator)
		fs.CommandPool = vk.NullCommandPool
	}
	fs.CommandBuffer = nil
}
