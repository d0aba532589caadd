package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// MeshPipeline draws index buffered meshes whose vertices are pulled from
// a buffer device address carried in push constants.
type MeshPipeline struct {
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

// meshRenderingInfo describes the dynamic rendering attachments the mesh
// pipeline draws into in place of a render pass.
func meshRenderingInfo() vk.PipelineRenderingCreateInfo {
	return vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    1,
		PColorAttachmentFormats: []vk.Format{DRAW_IMAGE_FORMAT},
		DepthAttachmentFormat:   DEPTH_IMAGE_FORMAT,
	}
}

func cullModeFlags(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func frontFace(face metadata.FrontFace) vk.FrontFace {
	if face == metadata.FrontFaceClockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func compareOp(op metadata.CompareOp) vk.CompareOp {
	switch op {
	case metadata.CompareOpNever:
		return vk.CompareOpNever
	case metadata.CompareOpLess:
		return vk.CompareOpLess
	case metadata.CompareOpEqual:
		return vk.CompareOpEqual
	case metadata.CompareOpGreater:
		return vk.CompareOpGreater
	case metadata.CompareOpNotEqual:
		return vk.CompareOpNotEqual
	case metadata.CompareOpGreaterOrEqual:
		return vk.CompareOpGreaterOrEqual
	case metadata.CompareOpAlways:
		return vk.CompareOpAlways
	default:
		return vk.CompareOpLessOrEqual
	}
}

func loadOp(op metadata.AttachmentLoadOp) vk.AttachmentLoadOp {
	if op == metadata.AttachmentLoadOpLoad {
		return vk.AttachmentLoadOpLoad
	}
	return vk.AttachmentLoadOpClear
}

func boolToVk(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func pushConstantRange() vk.PushConstantRange {
	return vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       metadata.PushConstantsSize,
	}
}

func NewMeshPipeline(context *VulkanContext, config metadata.PipelineConfig, setLayout vk.DescriptorSetLayout, vertexCode, fragmentCode []uint32) (*MeshPipeline, error) {
	device := context.Device.LogicalDevice
	pipeline := &MeshPipeline{}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushConstantRange()},
	}
	if res := vk.CreatePipelineLayout(device, &layoutInfo, context.Allocator, &pipeline.Layout); res != vk.Success {
		err := resultError(res, "vkCreatePipelineLayout")
		core.LogError(err.Error())
		return nil, err
	}

	vertexStage, err := NewShaderStage(context, vertexCode, vk.ShaderStageVertexBit)
	if err != nil {
		pipeline.Destroy(context)
		return nil, err
	}
	defer vertexStage.Destroy(context)
	fragmentStage, err := NewShaderStage(context, fragmentCode, vk.ShaderStageFragmentBit)
	if err != nil {
		pipeline.Destroy(context)
		return nil, err
	}
	defer fragmentStage.Destroy(context)

	stages := []vk.PipelineShaderStageCreateInfo{
		vertexStage.ShaderStageCreateInfo,
		fragmentStage.ShaderStageCreateInfo,
	}

	// vertices come from the device address, nothing is bound
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                cullModeFlags(config.CullMode),
		FrontFace:               frontFace(config.FrontFace),
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       boolToVk(config.DepthTest),
		DepthWriteEnable:      boolToVk(config.DepthWrite),
		DepthCompareOp:        compareOp(config.DepthCompare),
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MinDepthBounds:        0,
		MaxDepthBounds:        1,
	}
	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:    vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// the Go struct carries a slice, so the chain needs the C copy
	renderingInfo := meshRenderingInfo()
	renderingRef, renderingAllocs := renderingInfo.PassRef()
	defer renderingAllocs.Free()

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafe.Pointer(renderingRef),
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              pipeline.Layout,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineInfo}, context.Allocator, pipelines); res != vk.Success {
		pipeline.Destroy(context)
		err := resultError(res, "vkCreateGraphicsPipelines")
		core.LogError(err.Error())
		return nil, err
	}
	pipeline.Handle = pipelines[0]

	core.LogDebug("Mesh pipeline created.")
	return pipeline, nil
}

func (mp *MeshPipeline) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if mp.Handle != vk.NullPipeline {
		vk.DestroyPipeline(device, mp.Handle, context.Allocator)
		mp.Handle = vk.NullPipeline
	}
	if mp.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, mp.Layout, context.Allocator)
		mp.Layout = vk.NullPipelineLayout
	}
}
