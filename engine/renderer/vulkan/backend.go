package vulkan

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// SurfaceProvider is the window side of instance and surface creation.
type SurfaceProvider interface {
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

type Options struct {
	AppName    string
	Validation bool
	// Size of the offscreen draw and depth images. The draw image is
	// blitted to whatever size the swapchain has.
	DrawExtent     metadata.Extent2D
	Pipeline       metadata.PipelineConfig
	VertexShader   []uint32
	FragmentShader []uint32
	FenceTimeout   time.Duration
}

// VulkanRenderer implements renderer.Backend on goki/vulkan.
type VulkanRenderer struct {
	window  SurfaceProvider
	options Options

	context      *VulkanContext
	allocator    *ResourceAllocator
	deletion     DeletionQueue
	frames       []*FrameSlot
	transferPool vk.CommandPool
	fenceTimeout time.Duration

	drawImage   *AllocatedImage
	depthImage  *AllocatedImage
	drawExtent  vk.Extent2D
	descriptors *GlobalDescriptors
	pipeline    *MeshPipeline
}

func New(window SurfaceProvider, options Options) *VulkanRenderer {
	timeout := options.FenceTimeout
	if timeout <= 0 {
		timeout = renderer.DefaultFenceTimeout
	}
	return &VulkanRenderer{
		window:       window,
		options:      options,
		fenceTimeout: timeout,
		context: &VulkanContext{
			Allocator: nil,
			Device:    &VulkanDevice{},
			Locks:     NewVulkanLockPool(),
		},
	}
}

// Initialize brings up the instance, device and every long lived GPU
// object. Each step registers its teardown so a failure half way leaves
// Shutdown able to release what was created.
func (vr *VulkanRenderer) Initialize() error {
	if err := vr.createInstance(); err != nil {
		return err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.window.CreateSurface(vr.context.Instance)
	if err != nil {
		core.LogError("Failed to create platform surface!")
		return errors.Wrap(err, "creating window surface")
	}
	vr.context.Surface = surface
	vr.deletion.Push("surface", func() {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, nil)
		vr.context.Surface = vk.NullSurface
	})
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}
	vr.deletion.Push("device", func() { DeviceDestroy(vr.context) })

	vr.allocator = NewResourceAllocator(vr.context)

	for i := 0; i < FRAMES_IN_FLIGHT; i++ {
		slot, err := NewFrameSlot(vr.context)
		if err != nil {
			return errors.Wrapf(err, "creating frame slot %d", i)
		}
		vr.frames = append(vr.frames, slot)
		vr.deletion.Push("frame slot", func() { slot.Destroy(vr.context) })
	}

	vr.transferPool, err = createCommandPool(vr.context, vr.context.Device.TransferQueueIndex, vk.CommandPoolCreateTransientBit)
	if err != nil {
		return errors.Wrap(err, "creating transfer command pool")
	}
	vr.deletion.Push("transfer command pool", func() {
		vk.DestroyCommandPool(vr.context.Device.LogicalDevice, vr.transferPool, vr.context.Allocator)
		vr.transferPool = vk.NullCommandPool
	})

	if err := vr.createDrawImages(); err != nil {
		return err
	}

	vr.descriptors, err = NewGlobalDescriptors(vr.context, vr.allocator)
	if err != nil {
		return errors.Wrap(err, "creating global descriptors")
	}
	vr.deletion.Push("global descriptors", func() { vr.descriptors.Destroy(vr.context, vr.allocator) })
	if err := vr.prepareShadowMap(); err != nil {
		return err
	}

	vr.pipeline, err = NewMeshPipeline(vr.context, vr.options.Pipeline, vr.descriptors.Layout,
		vr.options.VertexShader, vr.options.FragmentShader)
	if err != nil {
		return errors.Wrap(err, "creating mesh pipeline")
	}
	vr.deletion.Push("mesh pipeline", func() { vr.pipeline.Destroy(vr.context) })

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := errors.New("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return errors.Wrap(err, "initializing vulkan loader")
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 3, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(vr.options.AppName),
		PEngineName:        VulkanSafeString(ENGINE_NAME),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{"VK_KHR_surface"}
	extensions = append(extensions, vr.window.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	var layers []string
	if vr.options.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkValidationLayers(layers); err != nil {
			return err
		}
	}
	core.LogDebug("Required extensions: %v", extensions)

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := resultError(res, "vkCreateInstance")
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return errors.Wrap(err, "initializing instance functions")
	}
	vr.deletion.Push("instance", func() {
		vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
		vr.context.Instance = nil
	})
	core.LogInfo("Vulkan Instance created.")

	if vr.options.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return errors.Wrap(err, "creating debug report callback")
		}
		vr.context.debugMessenger = dbg
		vr.deletion.Push("debug report callback", func() {
			vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, nil)
			vr.context.debugMessenger = vk.NullDebugReportCallback
		})
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkValidationLayers(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError(res, "vkEnumerateInstanceLayerProperties")
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError(res, "vkEnumerateInstanceLayerProperties")
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if cString(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			err := errors.Newf("required validation layer is missing: %s", name)
			core.LogError(err.Error())
			return err
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (vr *VulkanRenderer) createDrawImages() error {
	vr.drawExtent = vk.Extent2D{Width: vr.options.DrawExtent.Width, Height: vr.options.DrawExtent.Height}
	extent := vk.Extent3D{Width: vr.drawExtent.Width, Height: vr.drawExtent.Height, Depth: 1}

	var err error
	vr.drawImage, err = vr.allocator.CreateImage(ImageSpec{
		Format: DRAW_IMAGE_FORMAT,
		Extent: extent,
		Usage:  vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit | vk.ImageUsageColorAttachmentBit),
		Aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		return errors.Wrap(err, "creating draw image")
	}
	vr.deletion.Push("draw image", func() { vr.allocator.DestroyImage(vr.drawImage) })

	vr.depthImage, err = vr.allocator.CreateImage(ImageSpec{
		Format: DEPTH_IMAGE_FORMAT,
		Extent: extent,
		Usage:  vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		Aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	})
	if err != nil {
		return errors.Wrap(err, "creating depth image")
	}
	vr.deletion.Push("depth image", func() { vr.allocator.DestroyImage(vr.depthImage) })
	return nil
}

// prepareShadowMap clears the shadow map to zero depth and moves it into
// the layout its descriptor declares. Nothing renders into it yet, and the
// fragment shader reads zero as "no occluder".
func (vr *VulkanRenderer) prepareShadowMap() error {
	pool := vr.frames[0].CommandPool
	cmd, err := AllocateAndBeginSingleUse(vr.context, pool)
	if err != nil {
		return err
	}
	shadow := vr.descriptors.ShadowMap.Handle
	depth := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	transitionImageAspect(cmd.Handle, shadow, depth,
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	vk.CmdClearDepthStencilImage(cmd.Handle, shadow, vk.ImageLayoutTransferDstOptimal,
		&vk.ClearDepthStencilValue{Depth: 0, Stencil: 0}, 1, []vk.ImageSubresourceRange{subresourceRange(depth)})
	transitionImageAspect(cmd.Handle, shadow, depth,
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutDepthStencilReadOnlyOptimal)
	device := vr.context.Device
	return cmd.EndSingleUse(vr.context, pool, device.GraphicsQueue, device.GraphicsQueueIndex, vr.fenceTimeout)
}

func (vr *VulkanRenderer) FramesInFlight() int {
	return FRAMES_IN_FLIGHT
}

func (vr *VulkanRenderer) WaitFrame(slot int, timeout time.Duration) error {
	return vr.frames[slot].RenderFence.Wait(vr.context, timeout)
}

func (vr *VulkanRenderer) AcquireImage(slot int, timeout time.Duration) (uint32, error) {
	swapchain := vr.context.Swapchain
	if swapchain == nil {
		return 0, errors.Wrap(core.ErrSwapchainOutOfDate, "no swapchain")
	}
	var index uint32
	res := vk.AcquireNextImage(vr.context.Device.LogicalDevice, swapchain.Handle, uint64(timeout.Nanoseconds()),
		vr.frames[slot].SwapchainSemaphore, vk.NullFence, &index)
	// a suboptimal image is still presentable, the present reports it
	if res != vk.Success && res != vk.Suboptimal {
		return 0, resultError(res, "vkAcquireNextImageKHR")
	}
	return index, nil
}

func (vr *VulkanRenderer) ResetFrame(slot int) error {
	frame := vr.frames[slot]
	if err := frame.RenderFence.Reset(vr.context); err != nil {
		return err
	}
	return frame.CommandBuffer.Reset()
}

// RecordFrame renders into the offscreen draw image and blits it into the
// acquired swapchain image.
func (vr *VulkanRenderer) RecordFrame(slot int, image uint32, meshes []*metadata.MeshRecord) error {
	swapchain := vr.context.Swapchain
	if swapchain == nil || int(image) >= len(swapchain.Images) {
		return errors.Newf("swapchain image %d out of range", image)
	}
	target := swapchain.Images[image]
	cb := vr.frames[slot].CommandBuffer
	if err := cb.Begin(true); err != nil {
		return err
	}
	cmd := cb.Handle

	transitionImage(cmd, vr.drawImage.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal)
	transitionImage(cmd, vr.depthImage.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutDepthAttachmentOptimal)

	recordMeshPass(cmd, &meshPass{
		Color:      vr.drawImage,
		Depth:      vr.depthImage,
		Extent:     vr.drawExtent,
		Pipeline:   vr.pipeline,
		GlobalSet:  vr.descriptors.Set,
		ColorLoad:  vr.options.Pipeline.ColorLoad,
		ClearColor: vr.options.Pipeline.ClearColor,
	}, meshes)

	transitionImage(cmd, vr.drawImage.Handle, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal)
	transitionImage(cmd, target, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	copyImageToImage(cmd, vr.drawImage.Handle, target, vr.drawExtent, swapchain.Size)
	transitionImage(cmd, target, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc)

	return cb.End()
}

func (vr *VulkanRenderer) SubmitFrame(slot int) error {
	frame := vr.frames[slot]
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{frame.SwapchainSemaphore},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{frame.CommandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{frame.RenderSemaphore},
	}
	device := vr.context.Device
	err := vr.context.Locks.SafeQueueCall(device.GraphicsQueueIndex, func() error {
		return resultError(vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, frame.RenderFence.Handle), "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	frame.CommandBuffer.UpdateSubmitted()
	return nil
}

func (vr *VulkanRenderer) PresentFrame(slot int, image uint32) error {
	swapchain := vr.context.Swapchain
	if swapchain == nil {
		return errors.Wrap(core.ErrSwapchainOutOfDate, "no swapchain")
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vr.frames[slot].RenderSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{swapchain.Handle},
		PImageIndices:      []uint32{image},
	}
	device := vr.context.Device
	return vr.context.Locks.SafeQueueCall(device.PresentQueueIndex, func() error {
		return resultError(vk.QueuePresent(device.PresentQueue, &presentInfo), "vkQueuePresentKHR")
	})
}

func (vr *VulkanRenderer) WaitIdle() error {
	if vr.context.Device.LogicalDevice == nil {
		return nil
	}
	device := vr.context.Device
	families := []uint32{device.GraphicsQueueIndex, device.PresentQueueIndex, device.TransferQueueIndex}
	return vr.context.Locks.SafeAllQueuesCall(families, func() error {
		return resultError(vk.DeviceWaitIdle(device.LogicalDevice), "vkDeviceWaitIdle")
	})
}

func (vr *VulkanRenderer) CreateSwapchain(extent metadata.Extent2D) (renderer.Swapchain, error) {
	return createSwapchain(vr.context, extent)
}

func (vr *VulkanRenderer) WriteUniforms(block *metadata.UniformBlock) error {
	return vr.descriptors.WriteUniforms(block)
}

// Shutdown waits for the device and destroys everything in reverse order
// of creation. Mesh buffers and the swapchain must already be gone.
func (vr *VulkanRenderer) Shutdown() error {
	err := vr.WaitIdle()
	if vr.context.Swapchain != nil {
		vr.context.Swapchain.Destroy()
	}
	vr.deletion.Flush()
	if vr.allocator != nil {
		live := vr.allocator.LiveAllocations()
		if live != 0 {
			core.LogWarn("Live allocations after shutdown: %d", live)
		} else {
			core.LogInfo("Live allocations after shutdown: 0")
		}
	}
	vr.frames = nil
	return err
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogInfo("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
