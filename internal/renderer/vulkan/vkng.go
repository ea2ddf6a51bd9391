package vulkan

import (
	"strings"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// SurfaceSource is implemented by platforms that can create a presentation
// surface for a vkngwrapper instance.
type SurfaceSource interface {
	CreateVulkanSurface(instance core1_0.Instance, surfaces khr_surface.ExtensionDriver) (khr_surface.Surface, error)
}

// VkngDriver implements Driver on top of vkngwrapper.
type VkngDriver struct {
	global   core1_0.GlobalDriver
	instance core1_0.CoreInstanceDriver
	device   core1_0.CoreDeviceDriver

	debug      ext_debug_utils.ExtensionDriver
	messenger  ext_debug_utils.DebugUtilsMessenger
	surfaces   khr_surface.ExtensionDriver
	swapchains khr_swapchain.ExtensionDriver
}

var _ Driver = (*VkngDriver)(nil)

// NewVkngDriver loads the global entry points through the platform's
// vkGetInstanceProcAddr.
func NewVkngDriver(procAddr unsafe.Pointer) (*VkngDriver, error) {
	global, err := core.CreateDriverFromProcAddr(procAddr)
	if err != nil {
		return nil, errors.Wrap(err, "vulkan: load driver")
	}
	return &VkngDriver{global: global}, nil
}

func unwrap[T any](h Handle) T {
	v, ok := h.ref.(T)
	if !ok {
		var want T
		panic(errors.AssertionFailedf("vulkan: handle holds %T, want %T", h.ref, want))
	}
	return v
}

func wrap(v any) Handle {
	return Handle{ref: v}
}

func (d *VkngDriver) AvailableInstanceExtensions() (map[string]bool, error) {
	extensions, res, err := d.global.AvailableExtensions()
	if err != nil {
		return nil, callFailed(err, "vkEnumerateInstanceExtensionProperties", res)
	}

	names := make(map[string]bool, len(extensions))
	for name := range extensions {
		names[name] = true
	}
	return names, nil
}

func (d *VkngDriver) AvailableInstanceLayers() (map[string]bool, error) {
	layers, res, err := d.global.AvailableLayers()
	if err != nil {
		return nil, callFailed(err, "vkEnumerateInstanceLayerProperties", res)
	}

	names := make(map[string]bool, len(layers))
	for name := range layers {
		names[name] = true
	}
	return names, nil
}

func debugSeverity(severity ext_debug_utils.DebugUtilsMessageSeverityFlags) DebugSeverity {
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		return DebugError
	case severity&ext_debug_utils.SeverityWarning != 0:
		return DebugWarning
	case severity&ext_debug_utils.SeverityInfo != 0:
		return DebugInfo
	default:
		return DebugVerbose
	}
}

func debugKinds(types ext_debug_utils.DebugUtilsMessageTypeFlags) string {
	var kinds []string
	if types&ext_debug_utils.TypeGeneral != 0 {
		kinds = append(kinds, "General")
	}
	if types&ext_debug_utils.TypePerformance != 0 {
		kinds = append(kinds, "Performance")
	}
	if types&ext_debug_utils.TypeValidation != 0 {
		kinds = append(kinds, "Validation")
	}
	return strings.Join(kinds, "; ")
}

func debugMessengerInfo(callback DebugCallback) ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning |
			ext_debug_utils.SeverityInfo | ext_debug_utils.SeverityVerbose,
		MessageType: ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback: func(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
			callback(debugSeverity(severity), debugKinds(msgType), data.Message)
			return false
		},
	}
}

func (d *VkngDriver) CreateInstance(info InstanceInfo) error {
	options := core1_0.InstanceCreateInfo{
		ApplicationName:       info.ApplicationName,
		ApplicationVersion:    common.CreateVersion(1, 0, 0),
		EngineName:            info.EngineName,
		EngineVersion:         common.CreateVersion(0, 1, 0),
		APIVersion:            common.Vulkan1_2,
		EnabledExtensionNames: info.Extensions,
		EnabledLayerNames:     info.Layers,
	}
	if info.Portability {
		options.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}
	if info.Debug != nil {
		options.Next = debugMessengerInfo(info.Debug)
	}

	instance, res, err := d.global.CreateInstance(nil, options)
	if err != nil {
		return callFailed(err, "vkCreateInstance", res)
	}
	d.instance = instance
	d.surfaces = khr_surface.CreateExtensionDriverFromCoreDriver(instance)
	return nil
}

func (d *VkngDriver) DestroyInstance() {
	if d.instance == nil {
		return
	}
	d.instance.DestroyInstance(nil)
	d.instance = nil
	d.surfaces = nil
}

func (d *VkngDriver) CreateDebugMessenger(callback DebugCallback) error {
	d.debug = ext_debug_utils.CreateExtensionDriverFromCoreDriver(d.instance)
	messenger, res, err := d.debug.CreateDebugUtilsMessenger(nil, debugMessengerInfo(callback))
	if err != nil {
		return callFailed(err, "vkCreateDebugUtilsMessengerEXT", res)
	}
	d.messenger = messenger
	return nil
}

func (d *VkngDriver) DestroyDebugMessenger() {
	if d.debug == nil {
		return
	}
	d.debug.DestroyDebugUtilsMessenger(d.messenger, nil)
	d.debug = nil
}

func (d *VkngDriver) CreateSurface(platform Platform) (Handle, error) {
	source, ok := platform.(SurfaceSource)
	if !ok {
		return Handle{}, errors.Newf("vulkan: platform %T cannot create presentation surfaces", platform)
	}

	surface, err := source.CreateVulkanSurface(d.instance.Instance(), d.surfaces)
	if err != nil {
		return Handle{}, errors.Wrap(err, "vulkan: create surface")
	}
	return wrap(surface), nil
}

func (d *VkngDriver) DestroySurface(surface Handle) {
	d.surfaces.DestroySurface(unwrap[khr_surface.Surface](surface), nil)
}

func (d *VkngDriver) PhysicalDevices() ([]Handle, error) {
	devices, res, err := d.instance.EnumeratePhysicalDevices()
	if err != nil {
		return nil, callFailed(err, "vkEnumeratePhysicalDevices", res)
	}

	handles := make([]Handle, 0, len(devices))
	for _, device := range devices {
		handles = append(handles, wrap(device))
	}
	return handles, nil
}

func (d *VkngDriver) PhysicalDeviceProperties(physicalDevice Handle) (DeviceProperties, error) {
	props, err := d.instance.GetPhysicalDeviceProperties(unwrap[core1_0.PhysicalDevice](physicalDevice))
	if err != nil {
		return DeviceProperties{}, errors.Wrap(err, "vkGetPhysicalDeviceProperties failed")
	}

	return DeviceProperties{
		Name:          props.DriverName,
		Type:          props.DriverType.String(),
		Discrete:      props.DriverType == core1_0.PhysicalDeviceTypeDiscreteGPU,
		DriverVersion: props.DriverVersion.String(),
		APIVersion:    props.APIVersion.String(),
		CacheUUID:     props.PipelineCacheUUID.String(),
	}, nil
}

func (d *VkngDriver) PhysicalDeviceFeatures(physicalDevice Handle) DeviceFeatures {
	features := d.instance.GetPhysicalDeviceFeatures(unwrap[core1_0.PhysicalDevice](physicalDevice))
	return DeviceFeatures{SamplerAnisotropy: features.SamplerAnisotropy}
}

func (d *VkngDriver) PhysicalDeviceMemory(physicalDevice Handle) MemoryProperties {
	props := d.instance.GetPhysicalDeviceMemoryProperties(unwrap[core1_0.PhysicalDevice](physicalDevice))

	var memory MemoryProperties
	for _, memoryType := range props.MemoryTypes {
		memory.Types = append(memory.Types, MemoryType{Flags: memoryType.PropertyFlags})
	}
	for _, heap := range props.MemoryHeaps {
		memory.Heaps = append(memory.Heaps, MemoryHeap{
			Size:        heap.Size,
			DeviceLocal: heap.Flags&core1_0.MemoryHeapDeviceLocal != 0,
		})
	}
	return memory
}

func (d *VkngDriver) QueueFamilies(physicalDevice Handle) []QueueFamily {
	props := d.instance.GetPhysicalDeviceQueueFamilyProperties(unwrap[core1_0.PhysicalDevice](physicalDevice))

	families := make([]QueueFamily, 0, len(props))
	for _, family := range props {
		families = append(families, QueueFamily{
			Graphics: family.QueueFlags&core1_0.QueueGraphics != 0,
			Compute:  family.QueueFlags&core1_0.QueueCompute != 0,
			Transfer: family.QueueFlags&core1_0.QueueTransfer != 0,
		})
	}
	return families
}

func (d *VkngDriver) SurfaceSupport(physicalDevice Handle, family int, surface Handle) (bool, error) {
	supported, res, err := d.surfaces.GetPhysicalDeviceSurfaceSupport(
		unwrap[khr_surface.Surface](surface), unwrap[core1_0.PhysicalDevice](physicalDevice), family)
	if err != nil {
		return false, callFailed(err, "vkGetPhysicalDeviceSurfaceSupportKHR", res)
	}
	return supported, nil
}

func (d *VkngDriver) DeviceExtensions(physicalDevice Handle) (map[string]bool, error) {
	extensions, res, err := d.instance.EnumerateDeviceExtensionProperties(unwrap[core1_0.PhysicalDevice](physicalDevice))
	if err != nil {
		return nil, callFailed(err, "vkEnumerateDeviceExtensionProperties", res)
	}

	names := make(map[string]bool, len(extensions))
	for name := range extensions {
		names[name] = true
	}
	return names, nil
}

func (d *VkngDriver) SurfaceCapabilities(physicalDevice, surface Handle) (*khr_surface.SurfaceCapabilities, error) {
	capabilities, res, err := d.surfaces.GetPhysicalDeviceSurfaceCapabilities(
		unwrap[khr_surface.Surface](surface), unwrap[core1_0.PhysicalDevice](physicalDevice))
	if err != nil {
		return nil, callFailed(err, "vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	return capabilities, nil
}

func (d *VkngDriver) SurfaceFormats(physicalDevice, surface Handle) ([]khr_surface.SurfaceFormat, error) {
	formats, res, err := d.surfaces.GetPhysicalDeviceSurfaceFormats(
		unwrap[khr_surface.Surface](surface), unwrap[core1_0.PhysicalDevice](physicalDevice))
	if err != nil {
		return nil, callFailed(err, "vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	return formats, nil
}

func (d *VkngDriver) SurfacePresentModes(physicalDevice, surface Handle) ([]khr_surface.PresentMode, error) {
	modes, res, err := d.surfaces.GetPhysicalDeviceSurfacePresentModes(
		unwrap[khr_surface.Surface](surface), unwrap[core1_0.PhysicalDevice](physicalDevice))
	if err != nil {
		return nil, callFailed(err, "vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	return modes, nil
}

func (d *VkngDriver) FormatSupport(physicalDevice Handle, format core1_0.Format) FormatSupport {
	props := d.instance.GetPhysicalDeviceFormatProperties(unwrap[core1_0.PhysicalDevice](physicalDevice), format)
	return FormatSupport{
		Linear:  props.LinearTilingFeatures,
		Optimal: props.OptimalTilingFeatures,
	}
}

func (d *VkngDriver) CreateDevice(physicalDevice Handle, info DeviceInfo) error {
	queues := make([]core1_0.DeviceQueueCreateInfo, 0, len(info.QueueFamilies))
	for _, family := range info.QueueFamilies {
		queues = append(queues, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	device, res, err := d.instance.CreateDevice(unwrap[core1_0.PhysicalDevice](physicalDevice), nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queues,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: info.SamplerAnisotropy,
		},
		EnabledExtensionNames: info.Extensions,
	})
	if err != nil {
		return callFailed(err, "vkCreateDevice", res)
	}

	d.device = device
	d.swapchains = khr_swapchain.CreateExtensionDriverFromCoreDriver(device)
	return nil
}

func (d *VkngDriver) DestroyDevice() {
	if d.device == nil {
		return
	}
	d.device.DestroyDevice(nil)
	d.device = nil
	d.swapchains = nil
}

func (d *VkngDriver) DeviceWaitIdle() error {
	res, err := d.device.DeviceWaitIdle()
	if err != nil {
		return callFailed(err, "vkDeviceWaitIdle", res)
	}
	return nil
}

func (d *VkngDriver) Queue(family int) Handle {
	return wrap(d.device.GetQueue(family, 0))
}

func (d *VkngDriver) QueueWaitIdle(queue Handle) error {
	res, err := d.device.QueueWaitIdle(unwrap[core1_0.Queue](queue))
	if err != nil {
		return callFailed(err, "vkQueueWaitIdle", res)
	}
	return nil
}

func (d *VkngDriver) CreateSwapchain(info SwapchainInfo) (Handle, error) {
	swapchain, res, err := d.swapchains.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: unwrap[khr_surface.Surface](info.Surface),

		MinImageCount:    info.MinImageCount,
		ImageFormat:      info.Format.Format,
		ImageColorSpace:  info.Format.ColorSpace,
		ImageExtent:      info.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   info.SharingMode,
		QueueFamilyIndices: info.QueueFamilyIndices,

		PreTransform:   info.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    info.PresentMode,
		Clipped:        true,
	})
	if err != nil {
		return Handle{}, callFailed(err, "vkCreateSwapchainKHR", res)
	}
	return wrap(swapchain), nil
}

func (d *VkngDriver) DestroySwapchain(swapchain Handle) {
	d.swapchains.DestroySwapchain(unwrap[khr_swapchain.Swapchain](swapchain), nil)
}

func (d *VkngDriver) SwapchainImages(swapchain Handle) ([]Handle, error) {
	images, res, err := d.swapchains.GetSwapchainImages(unwrap[khr_swapchain.Swapchain](swapchain))
	if err != nil {
		return nil, callFailed(err, "vkGetSwapchainImagesKHR", res)
	}

	handles := make([]Handle, 0, len(images))
	for _, image := range images {
		handles = append(handles, wrap(image))
	}
	return handles, nil
}

func (d *VkngDriver) AcquireNextImage(swapchain Handle, timeout time.Duration, semaphore Handle) (int, common.VkResult, error) {
	sem := unwrap[core1_0.Semaphore](semaphore)
	return d.swapchains.AcquireNextImage(unwrap[khr_swapchain.Swapchain](swapchain), timeout, &sem, nil)
}

func (d *VkngDriver) QueuePresent(queue, swapchain Handle, imageIndex int, wait Handle) (common.VkResult, error) {
	return d.swapchains.QueuePresent(unwrap[core1_0.Queue](queue), khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{unwrap[core1_0.Semaphore](wait)},
		Swapchains:     []khr_swapchain.Swapchain{unwrap[khr_swapchain.Swapchain](swapchain)},
		ImageIndices:   []int{imageIndex},
	})
}

func (d *VkngDriver) CreateImage(info ImageInfo) (Handle, error) {
	image, res, err := d.device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        info.Format,
		Tiling:        info.Tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         info.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return Handle{}, callFailed(err, "vkCreateImage", res)
	}
	return wrap(image), nil
}

func (d *VkngDriver) DestroyImage(image Handle) {
	d.device.DestroyImage(unwrap[core1_0.Image](image), nil)
}

func (d *VkngDriver) ImageMemoryRequirements(image Handle) MemoryRequirements {
	reqs := d.device.GetImageMemoryRequirements(unwrap[core1_0.Image](image))
	return MemoryRequirements{Size: reqs.Size, TypeBits: reqs.MemoryTypeBits}
}

func (d *VkngDriver) AllocateMemory(size, memoryTypeIndex int) (Handle, error) {
	memory, res, err := d.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return Handle{}, callFailed(err, "vkAllocateMemory", res)
	}
	return wrap(memory), nil
}

func (d *VkngDriver) FreeMemory(memory Handle) {
	d.device.FreeMemory(unwrap[core1_0.DeviceMemory](memory), nil)
}

func (d *VkngDriver) BindImageMemory(image, memory Handle) error {
	res, err := d.device.BindImageMemory(unwrap[core1_0.Image](image), unwrap[core1_0.DeviceMemory](memory), 0)
	if err != nil {
		return callFailed(err, "vkBindImageMemory", res)
	}
	return nil
}

func (d *VkngDriver) CreateImageView(image Handle, format core1_0.Format, aspect core1_0.ImageAspectFlags) (Handle, error) {
	view, res, err := d.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    unwrap[core1_0.Image](image),
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return Handle{}, callFailed(err, "vkCreateImageView", res)
	}
	return wrap(view), nil
}

func (d *VkngDriver) DestroyImageView(view Handle) {
	d.device.DestroyImageView(unwrap[core1_0.ImageView](view), nil)
}

func (d *VkngDriver) CreateRenderPass(info core1_0.RenderPassCreateInfo) (Handle, error) {
	renderPass, res, err := d.device.CreateRenderPass(nil, info)
	if err != nil {
		return Handle{}, callFailed(err, "vkCreateRenderPass", res)
	}
	return wrap(renderPass), nil
}

func (d *VkngDriver) DestroyRenderPass(renderPass Handle) {
	d.device.DestroyRenderPass(unwrap[core1_0.RenderPass](renderPass), nil)
}

func (d *VkngDriver) CreateFramebuffer(renderPass Handle, attachments []Handle, width, height int) (Handle, error) {
	views := make([]core1_0.ImageView, 0, len(attachments))
	for _, attachment := range attachments {
		views = append(views, unwrap[core1_0.ImageView](attachment))
	}

	framebuffer, res, err := d.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  unwrap[core1_0.RenderPass](renderPass),
		Layers:      1,
		Attachments: views,
		Width:       width,
		Height:      height,
	})
	if err != nil {
		return Handle{}, callFailed(err, "vkCreateFramebuffer", res)
	}
	return wrap(framebuffer), nil
}

func (d *VkngDriver) DestroyFramebuffer(framebuffer Handle) {
	d.device.DestroyFramebuffer(unwrap[core1_0.Framebuffer](framebuffer), nil)
}

func (d *VkngDriver) CreateCommandPool(family int) (Handle, error) {
	pool, res, err := d.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: family,
	})
	if err != nil {
		return Handle{}, callFailed(err, "vkCreateCommandPool", res)
	}
	return wrap(pool), nil
}

func (d *VkngDriver) DestroyCommandPool(pool Handle) {
	d.device.DestroyCommandPool(unwrap[core1_0.CommandPool](pool), nil)
}

func (d *VkngDriver) AllocateCommandBuffer(pool Handle, primary bool) (Handle, error) {
	level := core1_0.CommandBufferLevelSecondary
	if primary {
		level = core1_0.CommandBufferLevelPrimary
	}

	buffers, res, err := d.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        unwrap[core1_0.CommandPool](pool),
		Level:              level,
		CommandBufferCount: 1,
	})
	if err != nil {
		return Handle{}, callFailed(err, "vkAllocateCommandBuffers", res)
	}
	return wrap(buffers[0]), nil
}

func (d *VkngDriver) FreeCommandBuffer(buffer Handle) {
	d.device.FreeCommandBuffers(unwrap[core1_0.CommandBuffer](buffer))
}

func (d *VkngDriver) BeginCommandBuffer(buffer Handle, flags core1_0.CommandBufferUsageFlags) error {
	res, err := d.device.BeginCommandBuffer(unwrap[core1_0.CommandBuffer](buffer), core1_0.CommandBufferBeginInfo{
		Flags: flags,
	})
	if err != nil {
		return callFailed(err, "vkBeginCommandBuffer", res)
	}
	return nil
}

func (d *VkngDriver) EndCommandBuffer(buffer Handle) error {
	res, err := d.device.EndCommandBuffer(unwrap[core1_0.CommandBuffer](buffer))
	if err != nil {
		return callFailed(err, "vkEndCommandBuffer", res)
	}
	return nil
}

func (d *VkngDriver) CmdBeginRenderPass(buffer, renderPass, framebuffer Handle, area core1_0.Rect2D, clearValues []core1_0.ClearValue) error {
	return d.device.CmdBeginRenderPass(unwrap[core1_0.CommandBuffer](buffer), core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  unwrap[core1_0.RenderPass](renderPass),
			Framebuffer: unwrap[core1_0.Framebuffer](framebuffer),
			RenderArea:  area,
			ClearValues: clearValues,
		})
}

func (d *VkngDriver) CmdEndRenderPass(buffer Handle) {
	d.device.CmdEndRenderPass(unwrap[core1_0.CommandBuffer](buffer))
}

func (d *VkngDriver) CreateFence(signaled bool) (Handle, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags = core1_0.FenceCreateSignaled
	}

	fence, res, err := d.device.CreateFence(nil, core1_0.FenceCreateInfo{Flags: flags})
	if err != nil {
		return Handle{}, callFailed(err, "vkCreateFence", res)
	}
	return wrap(fence), nil
}

func (d *VkngDriver) DestroyFence(fence Handle) {
	d.device.DestroyFence(unwrap[core1_0.Fence](fence), nil)
}

func (d *VkngDriver) WaitForFence(fence Handle, timeout time.Duration) (common.VkResult, error) {
	return d.device.WaitForFences(true, timeout, unwrap[core1_0.Fence](fence))
}

func (d *VkngDriver) ResetFence(fence Handle) error {
	res, err := d.device.ResetFences(unwrap[core1_0.Fence](fence))
	if err != nil {
		return callFailed(err, "vkResetFences", res)
	}
	return nil
}

func (d *VkngDriver) CreateSemaphore() (Handle, error) {
	semaphore, res, err := d.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return Handle{}, callFailed(err, "vkCreateSemaphore", res)
	}
	return wrap(semaphore), nil
}

func (d *VkngDriver) DestroySemaphore(semaphore Handle) {
	d.device.DestroySemaphore(unwrap[core1_0.Semaphore](semaphore), nil)
}

func (d *VkngDriver) QueueSubmit(queue Handle, submission Submission) error {
	info := core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{unwrap[core1_0.CommandBuffer](submission.CommandBuffer)},
	}
	if !submission.Wait.IsNull() {
		info.WaitSemaphores = []core1_0.Semaphore{unwrap[core1_0.Semaphore](submission.Wait)}
		info.WaitDstStageMask = []core1_0.PipelineStageFlags{submission.WaitStage}
	}
	if !submission.Signal.IsNull() {
		info.SignalSemaphores = []core1_0.Semaphore{unwrap[core1_0.Semaphore](submission.Signal)}
	}

	var fence *core1_0.Fence
	if !submission.Fence.IsNull() {
		f := unwrap[core1_0.Fence](submission.Fence)
		fence = &f
	}

	res, err := d.device.QueueSubmit(unwrap[core1_0.Queue](queue), fence, info)
	if err != nil {
		return callFailed(err, "vkQueueSubmit", res)
	}
	return nil
}
