package vulkan

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/renderer/internal/logging"
	"github.com/vkngwrapper/renderer/internal/memory"
)

// Context owns every GPU object of one renderer instance. It is driven from
// a single goroutine.
type Context struct {
	ID uuid.UUID

	driver   Driver
	platform Platform
	config   Config
	log      *slog.Logger
	memory   *memory.Tracker[*Image]

	// FramebufferWidth and FramebufferHeight are the size the current
	// swapchain was created for.
	FramebufferWidth  int
	FramebufferHeight int

	// Latest size reported through OnResized. Applied on the next
	// recreation.
	cachedFramebufferWidth  int
	cachedFramebufferHeight int

	// FramebufferSizeGeneration is bumped on every resize.
	// FramebufferSizeLastGeneration is the generation the swapchain was last
	// built for.
	FramebufferSizeGeneration     uint64
	FramebufferSizeLastGeneration uint64

	instanceCreated bool
	debugMessenger  bool
	surface         Handle

	Device         *Device
	Swapchain      *Swapchain
	MainRenderPass *RenderPass

	// GraphicsCommandBuffers holds one buffer per swapchain image.
	GraphicsCommandBuffers []*CommandBuffer

	ImageAvailableSemaphores []Handle
	QueueCompleteSemaphores  []Handle

	InFlightFences []*Fence
	// ImagesInFlight maps each swapchain image to the fence of the frame
	// that last rendered into it. Entries stay nil until first use.
	ImagesInFlight []*Fence

	ImageIndex   int
	CurrentFrame int

	RecreatingSwapchain bool

	// FindMemoryIndex returns the index of a memory type allowed by
	// typeFilter that has flags, or -1. It may be replaced before any image
	// is created.
	FindMemoryIndex func(typeFilter uint32, flags core1_0.MemoryPropertyFlags) int
}

func newContext(driver Driver, platform Platform, config Config) *Context {
	id := uuid.New()
	log := logging.OrNop(config.Logger).With(slog.String("context", id.String()))

	c := &Context{
		ID:       id,
		driver:   driver,
		platform: platform,
		config:   config,
		log:      log,
		memory:   memory.NewTracker[*Image](log),
	}
	c.FindMemoryIndex = c.findMemoryIndex
	return c
}

func (c *Context) Logger() *slog.Logger {
	return c.log
}

// MemoryReport renders the device memory accounted by this context.
func (c *Context) MemoryReport() string {
	return c.memory.Report()
}

func (c *Context) debugCallback(severity DebugSeverity, kinds string, message string) {
	level := slog.LevelError
	switch severity {
	case DebugVerbose:
		level = logging.LevelTrace
	case DebugInfo:
		level = slog.LevelInfo
	case DebugWarning:
		level = slog.LevelWarn
	}
	c.log.Log(context.Background(), level, message, slog.String("types", kinds))
}

func (c *Context) instanceExtensions() ([]string, error) {
	required := []string{khr_surface.ExtensionName}
	required = append(required, c.platform.RequiredExtensions()...)
	if c.config.Validation {
		required = append(required, ext_debug_utils.ExtensionName)
	}

	available, err := c.driver.AvailableInstanceExtensions()
	if err != nil {
		return nil, err
	}

	extensions := make([]string, 0, len(required)+1)
	for _, name := range required {
		if !available[name] {
			return nil, errors.Wrapf(ErrMissingExtension, "instance extension %s", name)
		}
		if !contains(extensions, name) {
			extensions = append(extensions, name)
		}
	}
	if available[khr_portability_enumeration.ExtensionName] {
		extensions = append(extensions, khr_portability_enumeration.ExtensionName)
	}

	c.log.Debug("Required extensions", slog.Any("extensions", extensions))
	return extensions, nil
}

func (c *Context) validationLayers() ([]string, error) {
	if !c.config.Validation {
		return nil, nil
	}

	c.log.Info("Validation layers enabled, enumerating...")
	available, err := c.driver.AvailableInstanceLayers()
	if err != nil {
		return nil, err
	}

	for _, name := range c.config.ValidationLayers {
		if !available[name] {
			return nil, errors.Wrapf(ErrMissingLayer, "validation layer %s (install the LunarG Vulkan SDK)", name)
		}
		c.log.Debug("Found layer", slog.String("layer", name))
	}
	return c.config.ValidationLayers, nil
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}

// initialize brings up every GPU object in creation order. On failure the
// caller must call destroy.
func (c *Context) initialize(applicationName string) error {
	width, height := c.platform.FramebufferSize()
	if width == 0 {
		width = c.config.DefaultWidth
	}
	if height == 0 {
		height = c.config.DefaultHeight
	}
	c.FramebufferWidth, c.FramebufferHeight = width, height
	c.cachedFramebufferWidth, c.cachedFramebufferHeight = width, height

	extensions, err := c.instanceExtensions()
	if err != nil {
		return err
	}
	layers, err := c.validationLayers()
	if err != nil {
		return err
	}

	info := InstanceInfo{
		ApplicationName: applicationName,
		EngineName:      c.config.EngineName,
		Extensions:      extensions,
		Layers:          layers,
		Portability:     contains(extensions, khr_portability_enumeration.ExtensionName),
	}
	if c.config.Validation {
		info.Debug = c.debugCallback
	}
	if err := c.driver.CreateInstance(info); err != nil {
		return err
	}
	c.instanceCreated = true
	c.log.Info("Vulkan instance created")

	if c.config.Validation {
		if err := c.driver.CreateDebugMessenger(c.debugCallback); err != nil {
			return err
		}
		c.debugMessenger = true
		c.log.Debug("Vulkan debugger created")
	}

	c.surface, err = c.driver.CreateSurface(c.platform)
	if err != nil {
		return err
	}
	c.log.Debug("Vulkan surface created")

	c.Device, err = c.CreateDevice(c.config.Requirements)
	if err != nil {
		return err
	}
	c.log.Debug("Vulkan device created")

	c.Swapchain, err = CreateSwapchain(c, c.FramebufferWidth, c.FramebufferHeight)
	if err != nil {
		return err
	}

	extent := c.Swapchain.Extent
	c.MainRenderPass, err = CreateRenderPass(c,
		mgl32.Vec4{0, 0, float32(extent.Width), float32(extent.Height)},
		c.config.ClearColor, c.config.ClearDepth, c.config.ClearStencil)
	if err != nil {
		return err
	}
	c.log.Debug("Vulkan render pass created")

	if err := c.RegenerateFramebuffers(); err != nil {
		return err
	}
	c.log.Debug("Vulkan framebuffers created")

	if err := c.createCommandBuffers(); err != nil {
		return err
	}
	c.log.Debug("Command buffers created")

	if err := c.createSyncObjects(); err != nil {
		return err
	}

	c.log.Info("Vulkan renderer initialized")
	return nil
}

// destroy waits for the device to go idle and releases everything in reverse
// creation order. It tolerates a partially initialized context.
func (c *Context) destroy() error {
	var waitErr error
	if c.Device != nil {
		waitErr = c.driver.DeviceWaitIdle()
	}

	c.destroySyncObjects()
	c.freeCommandBuffers()
	c.destroyFramebuffers()

	if c.MainRenderPass != nil {
		c.MainRenderPass.Destroy(c)
		c.MainRenderPass = nil
	}

	if c.Swapchain != nil {
		c.Swapchain.Destroy(c)
		c.Swapchain = nil
	}

	if c.Device != nil {
		c.log.Debug("Destroying Vulkan device...")
		c.Device.Destroy(c.driver)
		c.Device = nil
	}

	if !c.surface.IsNull() {
		c.log.Debug("Destroying Vulkan surface...")
		c.driver.DestroySurface(c.surface)
		c.surface = Handle{}
	}

	if c.debugMessenger {
		c.log.Debug("Destroying debug messenger")
		c.driver.DestroyDebugMessenger()
		c.debugMessenger = false
	}

	if c.instanceCreated {
		c.log.Debug("Destroying Vulkan instance...")
		c.driver.DestroyInstance()
		c.instanceCreated = false
	}

	if live := c.memory.Live(); live != 0 {
		c.log.Warn("Device memory still tracked after shutdown", slog.Int("allocations", live))
	}
	return waitErr
}

func (c *Context) createCommandBuffers() error {
	c.freeCommandBuffers()

	c.GraphicsCommandBuffers = make([]*CommandBuffer, 0, len(c.Swapchain.Images))
	for range c.Swapchain.Images {
		cb, err := AllocateCommandBuffer(c, c.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		c.GraphicsCommandBuffers = append(c.GraphicsCommandBuffers, cb)
	}
	return nil
}

func (c *Context) freeCommandBuffers() {
	for _, cb := range c.GraphicsCommandBuffers {
		cb.Free(c)
	}
	c.GraphicsCommandBuffers = nil
}

// OnResized records a new framebuffer size. The swapchain is rebuilt by the
// next BeginFrame. Reporting the size already pending does nothing.
func (c *Context) OnResized(width, height int) {
	if width == c.cachedFramebufferWidth && height == c.cachedFramebufferHeight {
		c.log.Debug("Resize to current size ignored", slog.Int("width", width), slog.Int("height", height))
		return
	}

	c.cachedFramebufferWidth = width
	c.cachedFramebufferHeight = height
	c.FramebufferSizeGeneration++
	c.log.Info("Vulkan renderer backend resized",
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Uint64("generation", c.FramebufferSizeGeneration))
}

// RecreateSwapchain rebuilds the swapchain and everything sized by it at the
// most recently reported framebuffer size. It does nothing while a
// recreation is already running or while either dimension is zero.
func (c *Context) RecreateSwapchain() error {
	if c.RecreatingSwapchain {
		c.log.Debug("RecreateSwapchain called when already recreating, booting")
		return nil
	}

	width, height := c.cachedFramebufferWidth, c.cachedFramebufferHeight
	if width == 0 || height == 0 {
		c.log.Debug("RecreateSwapchain called when window is < 1 in a dimension, booting")
		return nil
	}

	c.RecreatingSwapchain = true
	defer func() { c.RecreatingSwapchain = false }()

	if err := c.driver.DeviceWaitIdle(); err != nil {
		return err
	}

	for i := range c.ImagesInFlight {
		c.ImagesInFlight[i] = nil
	}

	c.destroyFramebuffers()
	if err := c.Swapchain.Recreate(c, width, height); err != nil {
		return err
	}

	c.FramebufferWidth, c.FramebufferHeight = width, height
	c.FramebufferSizeLastGeneration = c.FramebufferSizeGeneration

	extent := c.Swapchain.Extent
	c.MainRenderPass.Area = mgl32.Vec4{0, 0, float32(extent.Width), float32(extent.Height)}

	if err := c.RegenerateFramebuffers(); err != nil {
		return err
	}
	if err := c.createCommandBuffers(); err != nil {
		return err
	}
	c.ImagesInFlight = make([]*Fence, len(c.Swapchain.Images))

	c.log.Info("Swapchain recreated",
		slog.Int("width", extent.Width),
		slog.Int("height", extent.Height))
	return nil
}
