package vulkan

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/renderer/internal/memory"
)

// QueueFamilySelection holds the chosen family index per capability, or -1.
type QueueFamilySelection struct {
	Graphics int
	Present  int
	Compute  int
	Transfer int
}

type SwapchainSupport struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

// Device is the selected physical device and the logical device created on
// it.
type Device struct {
	PhysicalDevice Handle
	Properties     DeviceProperties
	Features       DeviceFeatures
	Memory         MemoryProperties

	SwapchainSupport SwapchainSupport

	GraphicsQueueIndex int
	PresentQueueIndex  int
	TransferQueueIndex int
	ComputeQueueIndex  int

	GraphicsQueue Handle
	PresentQueue  Handle
	TransferQueue Handle

	GraphicsCommandPool Handle

	DepthFormat core1_0.Format
}

// selectQueueFamilies picks a family for each capability. Graphics and
// compute take the first family that offers them. Transfer takes the family
// with the fewest graphics and compute capabilities; a dedicated transfer
// family wins. Present prefers the graphics family so that swapchain images
// can stay exclusive.
func selectQueueFamilies(families []QueueFamily, presentSupport func(family int) (bool, error)) (QueueFamilySelection, error) {
	sel := QueueFamilySelection{Graphics: -1, Present: -1, Compute: -1, Transfer: -1}
	minTransferScore := 255

	for i, family := range families {
		transferScore := 0
		if family.Graphics {
			if sel.Graphics == -1 {
				sel.Graphics = i
			}
			transferScore++
		}
		if family.Compute {
			if sel.Compute == -1 {
				sel.Compute = i
			}
			transferScore++
		}
		if family.Transfer && transferScore < minTransferScore {
			minTransferScore = transferScore
			sel.Transfer = i
		}

		supported, err := presentSupport(i)
		if err != nil {
			return sel, err
		}
		if supported && (sel.Present == -1 || i == sel.Graphics) {
			sel.Present = i
		}
	}

	return sel, nil
}

func (s QueueFamilySelection) satisfies(req Requirements) bool {
	return !(req.Graphics && s.Graphics == -1) &&
		!(req.Present && s.Present == -1) &&
		!(req.Compute && s.Compute == -1) &&
		!(req.Transfer && s.Transfer == -1)
}

func querySwapchainSupport(driver Driver, physicalDevice, surface Handle) (SwapchainSupport, error) {
	var support SwapchainSupport
	var err error

	support.Capabilities, err = driver.SurfaceCapabilities(physicalDevice, surface)
	if err != nil {
		return support, err
	}

	support.Formats, err = driver.SurfaceFormats(physicalDevice, surface)
	if err != nil {
		return support, err
	}

	support.PresentModes, err = driver.SurfacePresentModes(physicalDevice, surface)
	return support, err
}

// meetsRequirements reports whether physicalDevice qualifies. A non-nil error
// is a driver failure, not a rejection.
func (c *Context) meetsRequirements(physicalDevice Handle, props DeviceProperties, features DeviceFeatures, req Requirements) (bool, QueueFamilySelection, SwapchainSupport, error) {
	log := c.log.With(slog.String("device", props.Name))

	if req.DiscreteGPU && !props.Discrete {
		log.Info("Device is not a discrete GPU, skipping")
		return false, QueueFamilySelection{}, SwapchainSupport{}, nil
	}

	families := c.driver.QueueFamilies(physicalDevice)
	sel, err := selectQueueFamilies(families, func(family int) (bool, error) {
		return c.driver.SurfaceSupport(physicalDevice, family, c.surface)
	})
	if err != nil {
		return false, sel, SwapchainSupport{}, err
	}

	log.Debug("Queue families",
		slog.Int("graphics", sel.Graphics),
		slog.Int("present", sel.Present),
		slog.Int("compute", sel.Compute),
		slog.Int("transfer", sel.Transfer))

	if !sel.satisfies(req) {
		log.Info("Device does not meet queue requirements, skipping")
		return false, sel, SwapchainSupport{}, nil
	}

	support, err := querySwapchainSupport(c.driver, physicalDevice, c.surface)
	if err != nil {
		return false, sel, support, err
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		log.Info("Required swapchain support not present, skipping device")
		return false, sel, support, nil
	}

	if len(req.DeviceExtensions) > 0 {
		available, err := c.driver.DeviceExtensions(physicalDevice)
		if err != nil {
			return false, sel, support, err
		}
		for _, name := range req.DeviceExtensions {
			if !available[name] {
				log.Info("Required extension not found, skipping device", slog.String("extension", name))
				return false, sel, support, nil
			}
		}
	}

	if req.SamplerAnisotropy && !features.SamplerAnisotropy {
		log.Info("Device does not support sampler anisotropy, skipping")
		return false, sel, support, nil
	}

	return true, sel, support, nil
}

func (c *Context) selectPhysicalDevice(req Requirements) (*Device, error) {
	physicalDevices, err := c.driver.PhysicalDevices()
	if err != nil {
		return nil, err
	}
	if len(physicalDevices) == 0 {
		return nil, errors.Wrap(ErrNoSuitableDevice, "no devices which support Vulkan were found")
	}

	for _, physicalDevice := range physicalDevices {
		props, err := c.driver.PhysicalDeviceProperties(physicalDevice)
		if err != nil {
			return nil, err
		}
		features := c.driver.PhysicalDeviceFeatures(physicalDevice)

		ok, sel, support, err := c.meetsRequirements(physicalDevice, props, features, req)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		device := &Device{
			PhysicalDevice:     physicalDevice,
			Properties:         props,
			Features:           features,
			Memory:             c.driver.PhysicalDeviceMemory(physicalDevice),
			SwapchainSupport:   support,
			GraphicsQueueIndex: sel.Graphics,
			PresentQueueIndex:  sel.Present,
			TransferQueueIndex: sel.Transfer,
			ComputeQueueIndex:  sel.Compute,
		}
		c.logSelectedDevice(device)
		return device, nil
	}

	return nil, ErrNoSuitableDevice
}

func (c *Context) logSelectedDevice(device *Device) {
	c.log.Info("Selected device",
		slog.String("name", device.Properties.Name),
		slog.String("type", device.Properties.Type),
		slog.String("driver", device.Properties.DriverVersion),
		slog.String("api", device.Properties.APIVersion),
		slog.String("pipelineCache", device.Properties.CacheUUID))

	for _, heap := range device.Memory.Heaps {
		if heap.DeviceLocal {
			c.log.Info("Local GPU memory", slog.String("size", memory.FormatSize(uint64(heap.Size))))
		} else {
			c.log.Info("Shared system memory", slog.String("size", memory.FormatSize(uint64(heap.Size))))
		}
	}
}

// uniqueQueueFamilies returns the distinct selected families among graphics,
// present and transfer, in that order.
func (d *Device) uniqueQueueFamilies() []int {
	var families []int
	for _, family := range []int{d.GraphicsQueueIndex, d.PresentQueueIndex, d.TransferQueueIndex} {
		if family == -1 {
			continue
		}
		seen := false
		for _, f := range families {
			if f == family {
				seen = true
				break
			}
		}
		if !seen {
			families = append(families, family)
		}
	}
	return families
}

// CreateDevice selects a physical device meeting req, creates the logical
// device, fetches its queues and creates the graphics command pool.
func (c *Context) CreateDevice(req Requirements) (*Device, error) {
	device, err := c.selectPhysicalDevice(req)
	if err != nil {
		return nil, err
	}

	extensions := append([]string(nil), req.DeviceExtensions...)
	available, err := c.driver.DeviceExtensions(device.PhysicalDevice)
	if err != nil {
		return nil, err
	}
	if available[khr_portability_subset.ExtensionName] {
		extensions = append(extensions, khr_portability_subset.ExtensionName)
	}

	c.log.Info("Creating logical device...")
	err = c.driver.CreateDevice(device.PhysicalDevice, DeviceInfo{
		QueueFamilies:     device.uniqueQueueFamilies(),
		Extensions:        extensions,
		SamplerAnisotropy: req.SamplerAnisotropy,
	})
	if err != nil {
		return nil, err
	}

	if device.GraphicsQueueIndex != -1 {
		device.GraphicsQueue = c.driver.Queue(device.GraphicsQueueIndex)
	}
	if device.PresentQueueIndex != -1 {
		device.PresentQueue = c.driver.Queue(device.PresentQueueIndex)
	}
	if device.TransferQueueIndex != -1 {
		device.TransferQueue = c.driver.Queue(device.TransferQueueIndex)
	}
	c.log.Info("Queues obtained")

	if err := device.DetectDepthFormat(c.driver); err != nil {
		c.driver.DestroyDevice()
		return nil, err
	}

	if device.GraphicsQueueIndex != -1 {
		device.GraphicsCommandPool, err = c.driver.CreateCommandPool(device.GraphicsQueueIndex)
		if err != nil {
			c.driver.DestroyDevice()
			return nil, err
		}
		c.log.Info("Graphics command pool created")
	}

	return device, nil
}

// Destroy releases the command pool and the logical device.
func (d *Device) Destroy(driver Driver) {
	if !d.GraphicsCommandPool.IsNull() {
		driver.DestroyCommandPool(d.GraphicsCommandPool)
		d.GraphicsCommandPool = Handle{}
	}
	driver.DestroyDevice()

	d.GraphicsQueue = Handle{}
	d.PresentQueue = Handle{}
	d.TransferQueue = Handle{}
	d.SwapchainSupport = SwapchainSupport{}
	d.GraphicsQueueIndex = -1
	d.PresentQueueIndex = -1
	d.TransferQueueIndex = -1
	d.ComputeQueueIndex = -1
}

// QuerySwapchainSupport refreshes the cached swapchain support for surface.
func (d *Device) QuerySwapchainSupport(driver Driver, surface Handle) error {
	support, err := querySwapchainSupport(driver, d.PhysicalDevice, surface)
	if err != nil {
		return err
	}
	d.SwapchainSupport = support
	return nil
}

var depthFormatCandidates = []core1_0.Format{
	core1_0.FormatD32SignedFloat,
	core1_0.FormatD32SignedFloatS8UnsignedInt,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
}

// DetectDepthFormat picks the first candidate usable as a depth-stencil
// attachment with either tiling.
func (d *Device) DetectDepthFormat(driver Driver) error {
	for _, format := range depthFormatCandidates {
		support := driver.FormatSupport(d.PhysicalDevice, format)
		if support.Linear&core1_0.FormatFeatureDepthStencilAttachment != 0 ||
			support.Optimal&core1_0.FormatFeatureDepthStencilAttachment != 0 {
			d.DepthFormat = format
			return nil
		}
	}
	return ErrNoDepthFormat
}
