package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// GlobalDescriptors is set 0: the scene uniform block plus the shadow map
// and its sampler. The set is written once at creation.
type GlobalDescriptors struct {
	Pool          vk.DescriptorPool
	Layout        vk.DescriptorSetLayout
	Set           vk.DescriptorSet
	UniformBuffer *AllocatedBuffer
	ShadowMap     *AllocatedImage
	Sampler       vk.Sampler
}

func poolSizes() []vk.DescriptorPoolSize {
	return []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: 1},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: 1},
	}
}

func layoutBindings() []vk.DescriptorSetLayoutBinding {
	return []vk.DescriptorSetLayoutBinding{
		{
			Binding:         BINDING_GLOBAL_UBO,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAllGraphics),
		},
		{
			Binding:         BINDING_SHADOW_SAMPLER,
			DescriptorType:  vk.DescriptorTypeSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
		{
			Binding:         BINDING_SHADOW_IMAGE,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
}

func shadowSamplerInfo() vk.SamplerCreateInfo {
	return vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeClampToBorder,
		AddressModeV:            vk.SamplerAddressModeClampToBorder,
		AddressModeW:            vk.SamplerAddressModeClampToBorder,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  1,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
}

// NewGlobalDescriptors creates the pool, layout, set, uniform buffer,
// shadow map and sampler. On error everything created so far is released.
func NewGlobalDescriptors(context *VulkanContext, allocator *ResourceAllocator) (*GlobalDescriptors, error) {
	gd := &GlobalDescriptors{}
	device := context.Device.LogicalDevice

	sizes := poolSizes()
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       GLOBAL_DESCRIPTOR_MAX_SETS,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	if res := vk.CreateDescriptorPool(device, &poolInfo, context.Allocator, &gd.Pool); res != vk.Success {
		err := resultError(res, "vkCreateDescriptorPool")
		core.LogError(err.Error())
		return nil, err
	}

	bindings := layoutBindings()
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if res := vk.CreateDescriptorSetLayout(device, &layoutInfo, context.Allocator, &gd.Layout); res != vk.Success {
		gd.Destroy(context, allocator)
		return nil, resultError(res, "vkCreateDescriptorSetLayout")
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     gd.Pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{gd.Layout},
	}
	if res := vk.AllocateDescriptorSets(device, &allocInfo, &gd.Set); res != vk.Success {
		gd.Destroy(context, allocator)
		return nil, resultError(res, "vkAllocateDescriptorSets")
	}

	var err error
	gd.UniformBuffer, err = allocator.CreateBuffer(metadata.UniformBlockSize,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), metadata.MemoryClassHostMapped)
	if err != nil {
		gd.Destroy(context, allocator)
		return nil, err
	}

	gd.ShadowMap, err = allocator.CreateImage(ImageSpec{
		Format: DEPTH_IMAGE_FORMAT,
		Extent: vk.Extent3D{Width: SHADOW_MAP_SIZE, Height: SHADOW_MAP_SIZE, Depth: 1},
		Usage:  vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit),
		Aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	})
	if err != nil {
		gd.Destroy(context, allocator)
		return nil, err
	}

	samplerInfo := shadowSamplerInfo()
	if res := vk.CreateSampler(device, &samplerInfo, context.Allocator, &gd.Sampler); res != vk.Success {
		gd.Destroy(context, allocator)
		return nil, resultError(res, "vkCreateSampler")
	}

	gd.write(context)
	return gd, nil
}

func (gd *GlobalDescriptors) write(context *VulkanContext) {
	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          gd.Set,
			DstBinding:      BINDING_GLOBAL_UBO,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: gd.UniformBuffer.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(metadata.UniformBlockSize),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          gd.Set,
			DstBinding:      BINDING_SHADOW_SAMPLER,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampler,
			PImageInfo:      []vk.DescriptorImageInfo{{Sampler: gd.Sampler}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          gd.Set,
			DstBinding:      BINDING_SHADOW_IMAGE,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageView:   gd.ShadowMap.View,
				ImageLayout: vk.ImageLayoutDepthStencilReadOnlyOptimal,
			}},
		},
	}
	context.Locks.SafeCall(DescriptorUpdates, func() error {
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
		return nil
	})
}

// WriteUniforms copies the block into the mapped uniform buffer. The GPU
// sees whatever was written last before the frame is submitted.
func (gd *GlobalDescriptors) WriteUniforms(block *metadata.UniformBlock) error {
	data := unsafe.Slice((*byte)(unsafe.Pointer(block)), metadata.UniformBlockSize)
	return gd.UniformBuffer.Write(0, data)
}

// Destroy tolerates a partially created set.
func (gd *GlobalDescriptors) Destroy(context *VulkanContext, allocator *ResourceAllocator) {
	device := context.Device.LogicalDevice
	if gd.Sampler != vk.NullSampler {
		vk.DestroySampler(device, gd.Sampler, context.Allocator)
		gd.Sampler = vk.NullSampler
	}
	allocator.DestroyImage(gd.ShadowMap)
	gd.ShadowMap = nil
	allocator.DestroyBuffer(gd.UniformBuffer)
	gd.UniformBuffer = nil
	if gd.Layout != nil {
		vk.DestroyDescriptorSetLayout(device, gd.Layout, context.Allocator)
		gd.Layout = nil
	}
	// destroying the pool frees the set
	if gd.Pool != nil {
		vk.DestroyDescriptorPool(device, gd.Pool, context.Allocator)
		gd.Pool = nil
	}
}
