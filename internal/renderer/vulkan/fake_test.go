package vulkan

import (
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type fakePlatform struct {
	extensions    []string
	width, height int
}

func (p *fakePlatform) RequiredExtensions() []string { return p.extensions }

func (p *fakePlatform) FramebufferSize() (int, int) { return p.width, p.height }

var _ Driver = (*fakeDriver)(nil)

type fakePhysicalDevice struct {
	props      DeviceProperties
	features   DeviceFeatures
	memory     MemoryProperties
	families   []QueueFamily
	present    []bool
	extensions map[string]bool
	formats    map[core1_0.Format]FormatSupport
}

type physicalDeviceRef int

type renderPassBegin struct {
	area  core1_0.Rect2D
	clear []core1_0.ClearValue
}

// fakeDriver records every call the backend makes and tracks the objects it
// owns so tests can check that nothing leaks or is released twice.
type fakeDriver struct {
	next int
	live map[int]string
	// released lists object kinds in release order.
	released []string
	misuse   []string

	instanceExtensions map[string]bool
	instanceLayers     map[string]bool
	devices            []*fakePhysicalDevice
	capabilities       khr_surface.SurfaceCapabilities
	formats            []khr_surface.SurfaceFormat
	presentModes       []khr_surface.PresentMode

	instance  int
	messenger int
	device    int

	instanceInfo  InstanceInfo
	deviceInfo    DeviceInfo
	swapchains    []SwapchainInfo
	framebuffers  [][2]int
	passes        []renderPassBegin
	beginFlags    []core1_0.CommandBufferUsageFlags
	submits       []Submission
	presents      int
	waitIdles     int
	queueIdles    int
	fenceWaits    int
	waitedFences  []Handle
	waitTimeouts  []time.Duration
	fenceResets   int
	nextImage     int
	acquireResult []common.VkResult
	presentResult []common.VkResult
	fenceResult   []common.VkResult

	failOn string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		live: map[int]string{},
		instanceExtensions: map[string]bool{
			khr_surface.ExtensionName:     true,
			"VK_KHR_xcb_surface":          true,
			ext_debug_utils.ExtensionName: true,
		},
		instanceLayers: map[string]bool{"VK_LAYER_KHRONOS_validation": true},
		devices:        []*fakePhysicalDevice{newFakePhysicalDevice("Fake GPU")},
		capabilities: khr_surface.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  3,
			CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
			MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
		},
		formats: []khr_surface.SurfaceFormat{
			{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
			{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		},
		presentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeMailbox},
	}
}

func newFakePhysicalDevice(name string) *fakePhysicalDevice {
	return &fakePhysicalDevice{
		props: DeviceProperties{
			Name:          name,
			Type:          "Discrete GPU",
			Discrete:      true,
			DriverVersion: "1.0.0",
			APIVersion:    "1.2.0",
		},
		features: DeviceFeatures{SamplerAnisotropy: true},
		memory: MemoryProperties{
			Types: []MemoryType{
				{Flags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent},
				{Flags: core1_0.MemoryPropertyDeviceLocal},
			},
			Heaps: []MemoryHeap{
				{Size: 8 << 30, DeviceLocal: true},
				{Size: 16 << 30},
			},
		},
		families:   []QueueFamily{{Graphics: true, Compute: true, Transfer: true}},
		present:    []bool{true},
		extensions: map[string]bool{khr_swapchain.ExtensionName: true},
		formats: map[core1_0.Format]FormatSupport{
			core1_0.FormatD32SignedFloat: {Optimal: core1_0.FormatFeatureDepthStencilAttachment},
		},
	}
}

func (f *fakeDriver) fail(call string) error {
	if f.failOn == call {
		return errors.Newf("fake: %s failed", call)
	}
	return nil
}

func (f *fakeDriver) create(kind string) Handle {
	f.next++
	f.live[f.next] = kind
	return Handle{ref: f.next}
}

// unowned returns a handle the backend does not release.
func (f *fakeDriver) unowned() Handle {
	f.next++
	return Handle{ref: f.next}
}

func (f *fakeDriver) release(h Handle, kind string) {
	id, ok := h.ref.(int)
	if !ok || f.live[id] != kind {
		f.misuse = append(f.misuse, fmt.Sprintf("release of %s %v", kind, h.ref))
		return
	}
	delete(f.live, id)
	f.released = append(f.released, kind)
}

func (f *fakeDriver) count(kind string) int {
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (f *fakeDriver) physicalDevice(h Handle) *fakePhysicalDevice {
	return f.devices[int(h.ref.(physicalDeviceRef))]
}

func pop(results *[]common.VkResult) common.VkResult {
	if len(*results) == 0 {
		return core1_0.VKSuccess
	}
	res := (*results)[0]
	*results = (*results)[1:]
	return res
}

func resultErr(res common.VkResult) error {
	if res < 0 {
		return errors.Newf("fake: %s", ResultString(res, false))
	}
	return nil
}

func (f *fakeDriver) AvailableInstanceExtensions() (map[string]bool, error) {
	return f.instanceExtensions, f.fail("AvailableInstanceExtensions")
}

func (f *fakeDriver) AvailableInstanceLayers() (map[string]bool, error) {
	return f.instanceLayers, f.fail("AvailableInstanceLayers")
}

func (f *fakeDriver) CreateInstance(info InstanceInfo) error {
	if err := f.fail("CreateInstance"); err != nil {
		return err
	}
	f.instanceInfo = info
	f.instance = f.create("instance").ref.(int)
	return nil
}

func (f *fakeDriver) DestroyInstance() {
	f.release(Handle{ref: f.instance}, "instance")
}

func (f *fakeDriver) CreateDebugMessenger(callback DebugCallback) error {
	if err := f.fail("CreateDebugMessenger"); err != nil {
		return err
	}
	f.messenger = f.create("messenger").ref.(int)
	return nil
}

func (f *fakeDriver) DestroyDebugMessenger() {
	f.release(Handle{ref: f.messenger}, "messenger")
}

func (f *fakeDriver) CreateSurface(platform Platform) (Handle, error) {
	if err := f.fail("CreateSurface"); err != nil {
		return Handle{}, err
	}
	return f.create("surface"), nil
}

func (f *fakeDriver) DestroySurface(surface Handle) { f.release(surface, "surface") }

func (f *fakeDriver) PhysicalDevices() ([]Handle, error) {
	handles := make([]Handle, 0, len(f.devices))
	for i := range f.devices {
		handles = append(handles, Handle{ref: physicalDeviceRef(i)})
	}
	return handles, f.fail("PhysicalDevices")
}

func (f *fakeDriver) PhysicalDeviceProperties(physicalDevice Handle) (DeviceProperties, error) {
	return f.physicalDevice(physicalDevice).props, nil
}

func (f *fakeDriver) PhysicalDeviceFeatures(physicalDevice Handle) DeviceFeatures {
	return f.physicalDevice(physicalDevice).features
}

func (f *fakeDriver) PhysicalDeviceMemory(physicalDevice Handle) MemoryProperties {
	return f.physicalDevice(physicalDevice).memory
}

func (f *fakeDriver) QueueFamilies(physicalDevice Handle) []QueueFamily {
	return f.physicalDevice(physicalDevice).families
}

func (f *fakeDriver) SurfaceSupport(physicalDevice Handle, family int, surface Handle) (bool, error) {
	return f.physicalDevice(physicalDevice).present[family], nil
}

func (f *fakeDriver) DeviceExtensions(physicalDevice Handle) (map[string]bool, error) {
	return f.physicalDevice(physicalDevice).extensions, nil
}

func (f *fakeDriver) SurfaceCapabilities(physicalDevice, surface Handle) (*khr_surface.SurfaceCapabilities, error) {
	caps := f.capabilities
	return &caps, nil
}

func (f *fakeDriver) SurfaceFormats(physicalDevice, surface Handle) ([]khr_surface.SurfaceFormat, error) {
	return f.formats, nil
}

func (f *fakeDriver) SurfacePresentModes(physicalDevice, surface Handle) ([]khr_surface.PresentMode, error) {
	return f.presentModes, nil
}

func (f *fakeDriver) FormatSupport(physicalDevice Handle, format core1_0.Format) FormatSupport {
	return f.physicalDevice(physicalDevice).formats[format]
}

func (f *fakeDriver) CreateDevice(physicalDevice Handle, info DeviceInfo) error {
	if err := f.fail("CreateDevice"); err != nil {
		return err
	}
	f.deviceInfo = info
	f.device = f.create("device").ref.(int)
	return nil
}

func (f *fakeDriver) DestroyDevice() {
	f.release(Handle{ref: f.device}, "device")
}

func (f *fakeDriver) DeviceWaitIdle() error {
	f.waitIdles++
	return f.fail("DeviceWaitIdle")
}

func (f *fakeDriver) Queue(family int) Handle {
	return Handle{ref: fmt.Sprintf("queue%d", family)}
}

func (f *fakeDriver) QueueWaitIdle(queue Handle) error {
	f.queueIdles++
	return nil
}

func (f *fakeDriver) CreateSwapchain(info SwapchainInfo) (Handle, error) {
	if err := f.fail("CreateSwapchain"); err != nil {
		return Handle{}, err
	}
	f.swapchains = append(f.swapchains, info)
	return f.create("swapchain"), nil
}

func (f *fakeDriver) DestroySwapchain(swapchain Handle) { f.release(swapchain, "swapchain") }

func (f *fakeDriver) SwapchainImages(swapchain Handle) ([]Handle, error) {
	info := f.swapchains[len(f.swapchains)-1]
	images := make([]Handle, info.MinImageCount)
	for i := range images {
		images[i] = f.unowned()
	}
	return images, nil
}

func (f *fakeDriver) AcquireNextImage(swapchain Handle, timeout time.Duration, semaphore Handle) (int, common.VkResult, error) {
	res := pop(&f.acquireResult)
	if err := resultErr(res); err != nil {
		return 0, res, err
	}
	count := f.swapchains[len(f.swapchains)-1].MinImageCount
	index := f.nextImage % count
	f.nextImage++
	return index, res, nil
}

func (f *fakeDriver) QueuePresent(queue, swapchain Handle, imageIndex int, wait Handle) (common.VkResult, error) {
	f.presents++
	res := pop(&f.presentResult)
	return res, resultErr(res)
}

func (f *fakeDriver) CreateImage(info ImageInfo) (Handle, error) {
	if err := f.fail("CreateImage"); err != nil {
		return Handle{}, err
	}
	return f.create("image"), nil
}

func (f *fakeDriver) DestroyImage(image Handle) { f.release(image, "image") }

func (f *fakeDriver) ImageMemoryRequirements(image Handle) MemoryRequirements {
	return MemoryRequirements{Size: 1 << 20, TypeBits: 0b11}
}

func (f *fakeDriver) AllocateMemory(size, memoryTypeIndex int) (Handle, error) {
	if err := f.fail("AllocateMemory"); err != nil {
		return Handle{}, err
	}
	return f.create("memory"), nil
}

func (f *fakeDriver) FreeMemory(memory Handle) { f.release(memory, "memory") }

func (f *fakeDriver) BindImageMemory(image, memory Handle) error {
	return f.fail("BindImageMemory")
}

func (f *fakeDriver) CreateImageView(image Handle, format core1_0.Format, aspect core1_0.ImageAspectFlags) (Handle, error) {
	if err := f.fail("CreateImageView"); err != nil {
		return Handle{}, err
	}
	return f.create("imageView"), nil
}

func (f *fakeDriver) DestroyImageView(view Handle) { f.release(view, "imageView") }

func (f *fakeDriver) CreateRenderPass(info core1_0.RenderPassCreateInfo) (Handle, error) {
	if err := f.fail("CreateRenderPass"); err != nil {
		return Handle{}, err
	}
	return f.create("renderPass"), nil
}

func (f *fakeDriver) DestroyRenderPass(renderPass Handle) { f.release(renderPass, "renderPass") }

func (f *fakeDriver) CreateFramebuffer(renderPass Handle, attachments []Handle, width, height int) (Handle, error) {
	if err := f.fail("CreateFramebuffer"); err != nil {
		return Handle{}, err
	}
	f.framebuffers = append(f.framebuffers, [2]int{width, height})
	return f.create("framebuffer"), nil
}

func (f *fakeDriver) DestroyFramebuffer(framebuffer Handle) { f.release(framebuffer, "framebuffer") }

func (f *fakeDriver) CreateCommandPool(family int) (Handle, error) {
	if err := f.fail("CreateCommandPool"); err != nil {
		return Handle{}, err
	}
	return f.create("commandPool"), nil
}

func (f *fakeDriver) DestroyCommandPool(pool Handle) { f.release(pool, "commandPool") }

func (f *fakeDriver) AllocateCommandBuffer(pool Handle, primary bool) (Handle, error) {
	if err := f.fail("AllocateCommandBuffer"); err != nil {
		return Handle{}, err
	}
	return f.create("commandBuffer"), nil
}

func (f *fakeDriver) FreeCommandBuffer(buffer Handle) { f.release(buffer, "commandBuffer") }

func (f *fakeDriver) BeginCommandBuffer(buffer Handle, flags core1_0.CommandBufferUsageFlags) error {
	f.beginFlags = append(f.beginFlags, flags)
	return f.fail("BeginCommandBuffer")
}

func (f *fakeDriver) EndCommandBuffer(buffer Handle) error {
	return f.fail("EndCommandBuffer")
}

func (f *fakeDriver) CmdBeginRenderPass(buffer, renderPass, framebuffer Handle, area core1_0.Rect2D, clearValues []core1_0.ClearValue) error {
	f.passes = append(f.passes, renderPassBegin{area: area, clear: clearValues})
	return nil
}

func (f *fakeDriver) CmdEndRenderPass(buffer Handle) {}

func (f *fakeDriver) CreateFence(signaled bool) (Handle, error) {
	if err := f.fail("CreateFence"); err != nil {
		return Handle{}, err
	}
	return f.create("fence"), nil
}

func (f *fakeDriver) DestroyFence(fence Handle) { f.release(fence, "fence") }

func (f *fakeDriver) WaitForFence(fence Handle, timeout time.Duration) (common.VkResult, error) {
	f.fenceWaits++
	f.waitedFences = append(f.waitedFences, fence)
	f.waitTimeouts = append(f.waitTimeouts, timeout)
	res := pop(&f.fenceResult)
	return res, resultErr(res)
}

func (f *fakeDriver) ResetFence(fence Handle) error {
	f.fenceResets++
	return nil
}

func (f *fakeDriver) CreateSemaphore() (Handle, error) {
	if err := f.fail("CreateSemaphore"); err != nil {
		return Handle{}, err
	}
	return f.create("semaphore"), nil
}

func (f *fakeDriver) DestroySemaphore(semaphore Handle) { f.release(semaphore, "semaphore") }

func (f *fakeDriver) QueueSubmit(queue Handle, submission Submission) error {
	if err := f.fail("QueueSubmit"); err != nil {
		return err
	}
	f.submits = append(f.submits, submission)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Validation = false
	return cfg
}

func newTestPlatform() *fakePlatform {
	return &fakePlatform{extensions: []string{"VK_KHR_xcb_surface"}, width: 800, height: 600}
}

// newTestBackend initializes a backend against driver with the default test
// configuration.
func newTestBackend(t *testing.T, driver *fakeDriver) *Backend {
	t.Helper()

	b := NewBackend(driver, newTestPlatform(), testConfig())
	if err := b.Initialize("test"); err != nil {
		t.Fatalf("Initialize() = %+v", err)
	}
	return b
}

func checkNoMisuse(t *testing.T, driver *fakeDriver) {
	t.Helper()
	for _, m := range driver.misuse {
		t.Errorf("driver misuse: %s", m)
	}
}

func checkNoLeaks(t *testing.T, driver *fakeDriver) {
	t.Helper()
	for id, kind := range driver.live {
		t.Errorf("leaked %s %d", kind, id)
	}
	checkNoMisuse(t, driver)
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}
