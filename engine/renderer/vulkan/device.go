package vulkan

import (
	"runtime"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkshadow/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice   vk.PhysicalDevice
	LogicalDevice    vk.Device
	SwapchainSupport VulkanSwapchainSupportInfo

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	TransferQueueIndex uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties
}

type queueFamilyCaps struct {
	Graphics bool
	Compute  bool
	Transfer bool
	Present  bool
}

type queueFamilyIndices struct {
	Graphics uint32
	Present  uint32
	Transfer uint32
}

const noQueueFamily = ^uint32(0)

// selectQueueFamilies picks the first graphics family, a present family
// (one that also does graphics when possible) and the transfer capable
// family with the fewest other capabilities, which is the dedicated
// transfer family when the device has one.
func selectQueueFamilies(families []queueFamilyCaps) (queueFamilyIndices, bool) {
	idx := queueFamilyIndices{Graphics: noQueueFamily, Present: noQueueFamily, Transfer: noQueueFamily}
	minTransferScore := 255
	for i, f := range families {
		family := uint32(i)
		if f.Graphics && idx.Graphics == noQueueFamily {
			idx.Graphics = family
		}
		if f.Present && (idx.Present == noQueueFamily || (f.Graphics && !families[idx.Present].Graphics)) {
			idx.Present = family
		}
		// graphics and compute families implicitly support transfer
		if f.Transfer || f.Graphics || f.Compute {
			score := 0
			if f.Graphics {
				score++
			}
			if f.Compute {
				score++
			}
			if score < minTransferScore {
				minTransferScore = score
				idx.Transfer = family
			}
		}
	}
	ok := idx.Graphics != noQueueFamily && idx.Present != noQueueFamily && idx.Transfer != noQueueFamily
	return idx, ok
}

// uniqueFamilies lists each family once, graphics first.
func (q queueFamilyIndices) uniqueFamilies() []uint32 {
	out := []uint32{q.Graphics}
	for _, f := range []uint32{q.Present, q.Transfer} {
		seen := false
		for _, o := range out {
			if o == f {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, f)
		}
	}
	return out
}

func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}
	device := context.Device

	core.LogInfo("Creating logical device...")

	families := queueFamilyIndices{
		Graphics: device.GraphicsQueueIndex,
		Present:  device.PresentQueueIndex,
		Transfer: device.TransferQueueIndex,
	}.uniqueFamilies()

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtension(device.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	features13 := vk.PhysicalDeviceVulkan13Features{
		SType:            vk.StructureTypePhysicalDeviceVulkan13Features,
		DynamicRendering: vk.True,
		Synchronization2: vk.True,
	}
	features12 := vk.PhysicalDeviceVulkan12Features{
		SType:               vk.StructureTypePhysicalDeviceVulkan12Features,
		PNext:               unsafe.Pointer(&features13),
		BufferDeviceAddress: vk.True,
		DescriptorIndexing:  vk.True,
	}

	// the feature chain is read by the driver through raw pointers
	var pinner runtime.Pinner
	pinner.Pin(&features13)
	pinner.Pin(&features12)
	defer pinner.Unpin()

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(&features12),
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical); res != vk.Success {
		err := resultError(res, "vkCreateDevice")
		core.LogError(err.Error())
		return err
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(logical, device.GraphicsQueueIndex, 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(logical, device.PresentQueueIndex, 0, &device.PresentQueue)
	vk.GetDeviceQueue(logical, device.TransferQueueIndex, 0, &device.TransferQueue)
	core.LogInfo("Queues obtained.")

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	device.GraphicsQueue = nil
	device.PresentQueue = nil
	device.TransferQueue = nil

	core.LogInfo("Destroying logical device...")
	if device.LogicalDevice != nil {
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return resultError(res, "vkGetPhysicalDeviceSurfaceCapabilities")
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return resultError(res, "vkGetPhysicalDeviceSurfaceFormats")
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount > 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats); res != vk.Success {
			return resultError(res, "vkGetPhysicalDeviceSurfaceFormats")
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return resultError(res, "vkGetPhysicalDeviceSurfacePresentModes")
	}
	supportInfo.PresentModes = make([]vk.PresentMode, presentModeCount)
	if presentModeCount > 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, supportInfo.PresentModes); res != vk.Success {
			return resultError(res, "vkGetPhysicalDeviceSurfacePresentModes")
		}
	}
	return nil
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return resultError(res, "vkEnumeratePhysicalDevices")
	}
	if physicalDeviceCount == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return resultError(res, "vkEnumeratePhysicalDevices")
	}

	for _, candidate := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(candidate, &properties)
		properties.Deref()
		name := cString(properties.DeviceName[:])

		if vk.Version(properties.ApiVersion).Minor() < 3 && vk.Version(properties.ApiVersion).Major() <= 1 {
			core.LogInfo("Device '%s' does not support Vulkan 1.3, skipping.", name)
			continue
		}

		queues, ok := queryQueueFamilies(candidate, context.Surface)
		if !ok {
			core.LogInfo("Device '%s' lacks a graphics, present or transfer queue, skipping.", name)
			continue
		}
		if !hasDeviceExtension(candidate, vk.KhrSwapchainExtensionName) {
			core.LogInfo("Device '%s' has no swapchain support, skipping.", name)
			continue
		}

		var support VulkanSwapchainSupportInfo
		if err := DeviceQuerySwapchainSupport(candidate, context.Surface, &support); err != nil {
			return err
		}
		if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			core.LogInfo("Required swapchain support not present on '%s', skipping.", name)
			continue
		}

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(candidate, &memory)
		memory.Deref()

		core.LogInfo("Selected device: '%s'.", name)
		core.LogInfo("Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch())
		core.LogDebug("Graphics Family Index: %d", queues.Graphics)
		core.LogDebug("Present Family Index:  %d", queues.Present)
		core.LogDebug("Transfer Family Index: %d", queues.Transfer)

		context.Device.PhysicalDevice = candidate
		context.Device.Properties = properties
		context.Device.Memory = memory
		context.Device.SwapchainSupport = support
		context.Device.GraphicsQueueIndex = queues.Graphics
		context.Device.PresentQueueIndex = queues.Present
		context.Device.TransferQueueIndex = queues.Transfer
		return nil
	}

	return errors.New("no physical devices were found which meet the requirements")
}

func queryQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) (queueFamilyIndices, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	properties := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, properties)

	caps := make([]queueFamilyCaps, count)
	for i := range properties {
		properties[i].Deref()
		flags := properties[i].QueueFlags
		caps[i] = queueFamilyCaps{
			Graphics: flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0,
			Compute:  flags&vk.QueueFlags(vk.QueueComputeBit) != 0,
			Transfer: flags&vk.QueueFlags(vk.QueueTransferBit) != 0,
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res == vk.Success {
			caps[i].Present = supportsPresent == vk.True
		}
	}
	return selectQueueFamilies(caps)
}

func hasDeviceExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	want := strings.TrimRight(name, end)
	for i := range available {
		available[i].Deref()
		if cString(available[i].ExtensionName[:]) == want {
			return true
		}
	}
	return false
}
