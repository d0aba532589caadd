package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// VulkanSwapchain is one swapchain generation: the chain, its images and
// their views. It is never resized in place.
type VulkanSwapchain struct {
	context     *VulkanContext
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Size        vk.Extent2D
	Images      []vk.Image
	Views       []vk.ImageView
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func (vs *VulkanSwapchain) Extent() metadata.Extent2D {
	return metadata.Extent2D{Width: vs.Size.Width, Height: vs.Size.Height}
}

func (vs *VulkanSwapchain) ImageCount() uint32 {
	return uint32(len(vs.Images))
}

func (vs *VulkanSwapchain) Format() uint32 {
	return uint32(vs.ImageFormat.Format)
}

// Destroy releases the views and the chain. The images are owned by the
// chain and go with it.
func (vs *VulkanSwapchain) Destroy() error {
	if vs.Handle == vk.NullSwapchain {
		return nil
	}
	device := vs.context.Device.LogicalDevice
	for _, view := range vs.Views {
		vk.DestroyImageView(device, view, vs.context.Allocator)
	}
	vs.Views = nil
	vs.Images = nil
	vk.DestroySwapchain(device, vs.Handle, vs.context.Allocator)
	vs.Handle = vk.NullSwapchain
	if vs.context.Swapchain == vs {
		vs.context.Swapchain = nil
	}
	return nil
}

// chooseSurfaceFormat prefers B8G8R8A8_UNORM with an sRGB non-linear color
// space and otherwise takes the first format offered.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// chooseExtent uses the surface's current extent when the platform fixes
// it, else the requested size clamped to the supported range.
func chooseExtent(capabilities vk.SurfaceCapabilities, requested metadata.Extent2D) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}
	return vk.Extent2D{
		Width:  Clamp(requested.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: Clamp(requested.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func chooseImageCount(capabilities vk.SurfaceCapabilities) uint32 {
	count := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && count > capabilities.MaxImageCount {
		count = capabilities.MaxImageCount
	}
	return count
}

func createSwapchain(context *VulkanContext, requested metadata.Extent2D) (*VulkanSwapchain, error) {
	device := context.Device
	// capabilities change with the window size, requery for every generation
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, context.Surface, &device.SwapchainSupport); err != nil {
		return nil, err
	}
	support := device.SwapchainSupport

	swapchain := &VulkanSwapchain{
		context:     context,
		ImageFormat: chooseSurfaceFormat(support.Formats),
		Size:        chooseExtent(support.Capabilities, requested),
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    chooseImageCount(support.Capabilities),
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Size,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
	}
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{device.GraphicsQueueIndex, device.PresentQueueIndex}
	}

	if res := vk.CreateSwapchain(device.LogicalDevice, &createInfo, context.Allocator, &swapchain.Handle); res != vk.Success {
		err := resultError(res, "vkCreateSwapchainKHR")
		core.LogError(err.Error())
		return nil, err
	}

	var imageCount uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &imageCount, nil); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError(res, "vkGetSwapchainImagesKHR")
	}
	swapchain.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &imageCount, swapchain.Images); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError(res, "vkGetSwapchainImagesKHR")
	}

	swapchain.Views = make([]vk.ImageView, 0, imageCount)
	for _, image := range swapchain.Images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:            vk.StructureTypeImageViewCreateInfo,
			Image:            image,
			ViewType:         vk.ImageViewType2d,
			Format:           swapchain.ImageFormat.Format,
			SubresourceRange: subresourceRange(vk.ImageAspectFlags(vk.ImageAspectColorBit)),
		}
		var view vk.ImageView
		if res := vk.CreateImageView(device.LogicalDevice, &viewInfo, context.Allocator, &view); res != vk.Success {
			swapchain.Destroy()
			return nil, resultError(res, "vkCreateImageView")
		}
		swapchain.Views = append(swapchain.Views, view)
	}

	context.Swapchain = swapchain
	core.LogInfo("Swapchain created successfully (%dx%d, %d images).", swapchain.Size.Width, swapchain.Size.Height, imageCount)
	return swapchain, nil
}
