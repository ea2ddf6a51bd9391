package vulkan

import (
	"time"

	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// Handle is an opaque reference to an object owned by a Driver. The zero
// Handle is the null handle.
type Handle struct {
	ref any
}

func (h Handle) IsNull() bool {
	return h.ref == nil
}

// Platform is the windowing collaborator consumed by the backend.
type Platform interface {
	// RequiredExtensions lists the instance extensions the platform needs to
	// create a presentation surface.
	RequiredExtensions() []string
	// FramebufferSize reports the drawable size in pixels.
	FramebufferSize() (width, height int)
}

type DebugSeverity int

const (
	DebugVerbose DebugSeverity = iota
	DebugInfo
	DebugWarning
	DebugError
)

// DebugCallback receives validation layer output. kinds is a preformatted
// description of the message types, such as "General; Validation".
type DebugCallback func(severity DebugSeverity, kinds string, message string)

type InstanceInfo struct {
	ApplicationName string
	EngineName      string
	Extensions      []string
	Layers          []string
	// Portability enables enumeration of portability-subset devices.
	Portability bool
	// Debug, when set, is chained into instance creation so that instance
	// creation and destruction are also validated.
	Debug DebugCallback
}

type DeviceProperties struct {
	Name          string
	Type          string
	Discrete      bool
	DriverVersion string
	APIVersion    string
	CacheUUID     string
}

type DeviceFeatures struct {
	SamplerAnisotropy bool
}

type QueueFamily struct {
	Graphics bool
	Compute  bool
	Transfer bool
}

type MemoryType struct {
	Flags core1_0.MemoryPropertyFlags
}

type MemoryHeap struct {
	Size        int
	DeviceLocal bool
}

type MemoryProperties struct {
	Types []MemoryType
	Heaps []MemoryHeap
}

type FormatSupport struct {
	Linear  core1_0.FormatFeatureFlags
	Optimal core1_0.FormatFeatureFlags
}

type DeviceInfo struct {
	QueueFamilies     []int
	Extensions        []string
	SamplerAnisotropy bool
}

type SwapchainInfo struct {
	Surface            Handle
	MinImageCount      int
	Format             khr_surface.SurfaceFormat
	Extent             core1_0.Extent2D
	SharingMode        core1_0.SharingMode
	QueueFamilyIndices []int
	Capabilities       *khr_surface.SurfaceCapabilities
	PresentMode        khr_surface.PresentMode
}

type ImageInfo struct {
	Width, Height int
	Format        core1_0.Format
	Tiling        core1_0.ImageTiling
	Usage         core1_0.ImageUsageFlags
}

type MemoryRequirements struct {
	Size     int
	TypeBits uint32
}

// Submission describes a single queue submit. Null semaphores and fences are
// left out of the submit.
type Submission struct {
	CommandBuffer Handle
	Wait          Handle
	WaitStage     core1_0.PipelineStageFlags
	Signal        Handle
	Fence         Handle
}

// Driver is the set of graphics API entry points the backend is built on.
// Calls that report a VkResult return it so callers can tell recoverable
// results from failures.
type Driver interface {
	AvailableInstanceExtensions() (map[string]bool, error)
	AvailableInstanceLayers() (map[string]bool, error)
	CreateInstance(info InstanceInfo) error
	DestroyInstance()
	CreateDebugMessenger(callback DebugCallback) error
	DestroyDebugMessenger()
	CreateSurface(platform Platform) (Handle, error)
	DestroySurface(surface Handle)

	PhysicalDevices() ([]Handle, error)
	PhysicalDeviceProperties(physicalDevice Handle) (DeviceProperties, error)
	PhysicalDeviceFeatures(physicalDevice Handle) DeviceFeatures
	PhysicalDeviceMemory(physicalDevice Handle) MemoryProperties
	QueueFamilies(physicalDevice Handle) []QueueFamily
	SurfaceSupport(physicalDevice Handle, family int, surface Handle) (bool, error)
	DeviceExtensions(physicalDevice Handle) (map[string]bool, error)
	SurfaceCapabilities(physicalDevice, surface Handle) (*khr_surface.SurfaceCapabilities, error)
	SurfaceFormats(physicalDevice, surface Handle) ([]khr_surface.SurfaceFormat, error)
	SurfacePresentModes(physicalDevice, surface Handle) ([]khr_surface.PresentMode, error)
	FormatSupport(physicalDevice Handle, format core1_0.Format) FormatSupport

	CreateDevice(physicalDevice Handle, info DeviceInfo) error
	DestroyDevice()
	DeviceWaitIdle() error
	Queue(family int) Handle
	QueueWaitIdle(queue Handle) error

	CreateSwapchain(info SwapchainInfo) (Handle, error)
	DestroySwapchain(swapchain Handle)
	SwapchainImages(swapchain Handle) ([]Handle, error)
	AcquireNextImage(swapchain Handle, timeout time.Duration, semaphore Handle) (int, common.VkResult, error)
	QueuePresent(queue, swapchain Handle, imageIndex int, wait Handle) (common.VkResult, error)

	CreateImage(info ImageInfo) (Handle, error)
	DestroyImage(image Handle)
	ImageMemoryRequirements(image Handle) MemoryRequirements
	AllocateMemory(size, memoryTypeIndex int) (Handle, error)
	FreeMemory(memory Handle)
	BindImageMemory(image, memory Handle) error
	CreateImageView(image Handle, format core1_0.Format, aspect core1_0.ImageAspectFlags) (Handle, error)
	DestroyImageView(view Handle)

	CreateRenderPass(info core1_0.RenderPassCreateInfo) (Handle, error)
	DestroyRenderPass(renderPass Handle)
	CreateFramebuffer(renderPass Handle, attachments []Handle, width, height int) (Handle, error)
	DestroyFramebuffer(framebuffer Handle)

	CreateCommandPool(family int) (Handle, error)
	DestroyCommandPool(pool Handle)
	AllocateCommandBuffer(pool Handle, primary bool) (Handle, error)
	FreeCommandBuffer(buffer Handle)
	BeginCommandBuffer(buffer Handle, flags core1_0.CommandBufferUsageFlags) error
	EndCommandBuffer(buffer Handle) error
	CmdBeginRenderPass(buffer, renderPass, framebuffer Handle, area core1_0.Rect2D, clearValues []core1_0.ClearValue) error
	CmdEndRenderPass(buffer Handle)

	CreateFence(signaled bool) (Handle, error)
	DestroyFence(fence Handle)
	WaitForFence(fence Handle, timeout time.Duration) (common.VkResult, error)
	ResetFence(fence Handle) error
	CreateSemaphore() (Handle, error)
	DestroySemaphore(semaphore Handle)
	QueueSubmit(queue Handle, submission Submission) error
}
