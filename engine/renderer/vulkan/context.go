package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanContext is the set of handles every backend object needs.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	// Current swapchain generation, replaced on every recreation.
	Swapchain *VulkanSwapchain

	Locks *VulkanLockPool
}

func (vc *VulkanContext) memoryTypeFlags() []vk.MemoryPropertyFlags {
	memory := vc.Device.Memory
	out := make([]vk.MemoryPropertyFlags, memory.MemoryTypeCount)
	for i := range out {
		memory.MemoryTypes[i].Deref()
		out[i] = memory.MemoryTypes[i].PropertyFlags
	}
	return out
}
