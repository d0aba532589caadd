package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// meshPass is everything the single geometry pass reads.
type meshPass struct {
	Color      *AllocatedImage
	Depth      *AllocatedImage
	Extent     vk.Extent2D
	Pipeline   *MeshPipeline
	GlobalSet  vk.DescriptorSet
	ColorLoad  metadata.AttachmentLoadOp
	ClearColor [4]float32
}

func (mp *meshPass) colorAttachment() vk.RenderingAttachmentInfo {
	attachment := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   mp.Color.View,
		ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
		LoadOp:      loadOp(mp.ColorLoad),
		StoreOp:     vk.AttachmentStoreOpStore,
	}
	attachment.ClearValue.SetColor(mp.ClearColor[:])
	return attachment
}

func (mp *meshPass) depthAttachment() vk.RenderingAttachmentInfo {
	attachment := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   mp.Depth.View,
		ImageLayout: vk.ImageLayoutDepthAttachmentOptimal,
		LoadOp:      vk.AttachmentLoadOpClear,
		StoreOp:     vk.AttachmentStoreOpStore,
	}
	attachment.ClearValue.SetDepthStencil(1.0, 0)
	return attachment
}

// recordMeshPass draws every mesh into the draw and depth images. Both
// images must already be in their attachment layouts.
func recordMeshPass(cmd vk.CommandBuffer, pass *meshPass, meshes []*metadata.MeshRecord) {
	depth := pass.depthAttachment()
	renderingInfo := vk.RenderingInfo{
		SType: vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: pass.Extent,
		},
		LayerCount:           1,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.RenderingAttachmentInfo{pass.colorAttachment()},
		PDepthAttachment:     []vk.RenderingAttachmentInfo{depth},
	}
	vk.CmdBeginRendering(cmd, &renderingInfo)

	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, pass.Pipeline.Handle)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, pass.Pipeline.Layout,
		0, 1, []vk.DescriptorSet{pass.GlobalSet}, 0, nil)

	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(pass.Extent.Width),
		Height:   float32(pass.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: pass.Extent,
	}})

	for _, mesh := range meshes {
		buffers, ok := mesh.Buffers.(*meshBuffers)
		if !ok {
			continue
		}
		constants := metadata.PushConstants{
			VertexBuffer: mesh.VertexBufferAddress,
			Model:        mesh.Model,
		}
		vk.CmdPushConstants(cmd, pass.Pipeline.Layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			0, metadata.PushConstantsSize, unsafe.Pointer(&constants))
		vk.CmdBindIndexBuffer(cmd, buffers.Index.Handle, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexed(cmd, mesh.IndexCount, 1, 0, 0, 0)
	}

	vk.CmdEndRendering(cmd)
}
