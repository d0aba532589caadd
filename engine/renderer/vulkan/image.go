package vulkan

import (
	vk "github.com/goki/vulkan"
)

func subresourceRange(aspect vk.ImageAspectFlags) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     aspect,
		BaseMipLevel:   0,
		LevelCount:     vk.RemainingMipLevels,
		BaseArrayLayer: 0,
		LayerCount:     vk.RemainingArrayLayers,
	}
}

func aspectForLayout(layout vk.ImageLayout) vk.ImageAspectFlags {
	switch layout {
	case vk.ImageLayoutDepthAttachmentOptimal,
		vk.ImageLayoutDepthStencilAttachmentOptimal,
		vk.ImageLayoutDepthStencilReadOnlyOptimal:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// transitionImage records a full pipeline barrier moving every mip and
// layer of image from one layout to another. Coarse, but the frame only
// has a handful of transitions.
func transitionImage(cmd vk.CommandBuffer, image vk.Image, from, to vk.ImageLayout) {
	transitionImageAspect(cmd, image, aspectForLayout(to), from, to)
}

// transitionImageAspect is transitionImage for layouts that do not imply
// the aspect, such as a depth image in TRANSFER_DST_OPTIMAL.
func transitionImageAspect(cmd vk.CommandBuffer, image vk.Image, aspect vk.ImageAspectFlags, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit | vk.AccessMemoryReadBit),
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    subresourceRange(aspect),
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func blitRegion(src, dst vk.Extent2D) vk.ImageBlit {
	layers := vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:       0,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	return vk.ImageBlit{
		SrcSubresource: layers,
		SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(src.Width), Y: int32(src.Height), Z: 1}},
		DstSubresource: layers,
		DstOffsets:     [2]vk.Offset3D{{}, {X: int32(dst.Width), Y: int32(dst.Height), Z: 1}},
	}
}

// copyImageToImage scales src into dst with linear filtering. src must be
// in TRANSFER_SRC_OPTIMAL and dst in TRANSFER_DST_OPTIMAL.
func copyImageToImage(cmd vk.CommandBuffer, src, dst vk.Image, srcSize, dstSize vk.Extent2D) {
	vk.CmdBlitImage(cmd,
		src, vk.ImageLayoutTransferSrcOptimal,
		dst, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{blitRegion(srcSize, dstSize)},
		vk.FilterLinear)
}
