package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

func drawFrame(t *testing.T, b *Backend) bool {
	t.Helper()

	ok, err := b.BeginFrame(1.0 / 60)
	if err != nil {
		t.Fatalf("BeginFrame() = %+v", err)
	}
	if !ok {
		return false
	}
	if err := b.EndFrame(1.0 / 60); err != nil {
		t.Fatalf("EndFrame() = %+v", err)
	}
	return true
}

func TestDrawFrame(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	ctx := b.Context()

	if !drawFrame(t, b) {
		t.Fatal("first frame was skipped")
	}

	if len(driver.submits) != 1 || driver.presents != 1 {
		t.Fatalf("submits = %d, presents = %d, want 1, 1", len(driver.submits), driver.presents)
	}
	s := driver.submits[0]
	if s.Wait != ctx.ImageAvailableSemaphores[0] || s.Signal != ctx.QueueCompleteSemaphores[0] {
		t.Errorf("submit semaphores = %v/%v, want frame 0 semaphores", s.Wait, s.Signal)
	}
	if s.Fence != ctx.InFlightFences[0].Handle {
		t.Errorf("submit fence = %v, want %v", s.Fence, ctx.InFlightFences[0].Handle)
	}
	if s.WaitStage != core1_0.PipelineStageColorAttachmentOutput {
		t.Errorf("submit wait stage = %v, want color attachment output", s.WaitStage)
	}
	if ctx.ImagesInFlight[ctx.ImageIndex] != ctx.InFlightFences[0] {
		t.Error("image slot not associated with the frame fence")
	}
	if ctx.CurrentFrame != 1 {
		t.Errorf("CurrentFrame = %d, want 1", ctx.CurrentFrame)
	}
	if got := ctx.GraphicsCommandBuffers[ctx.ImageIndex].State; got != CommandBufferSubmitted {
		t.Errorf("command buffer state = %v, want %v", got, CommandBufferSubmitted)
	}
	if driver.fenceResets != 1 {
		t.Errorf("fence resets = %d, want 1", driver.fenceResets)
	}

	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	checkNoLeaks(t, driver)
}

func TestFrameIndexWraps(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()
	ctx := b.Context()

	want := []int{1, 0, 1, 0, 1}
	for i, w := range want {
		if !drawFrame(t, b) {
			t.Fatalf("frame %d skipped", i)
		}
		if ctx.CurrentFrame != w {
			t.Errorf("frame %d: CurrentFrame = %d, want %d", i, ctx.CurrentFrame, w)
		}
	}
	if len(driver.submits) != len(want) || driver.presents != len(want) {
		t.Errorf("submits = %d, presents = %d, want %d", len(driver.submits), driver.presents, len(want))
	}
	checkNoMisuse(t, driver)
}

func TestClearValuesAndRenderArea(t *testing.T) {
	driver := newFakeDriver()
	cfg := testConfig()
	cfg.ClearColor = mgl32.Vec4{0.1, 0.2, 0.3, 0.4}
	b := NewBackend(driver, newTestPlatform(), cfg)
	if err := b.Initialize("test"); err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	defer b.Shutdown()

	drawFrame(t, b)

	pass := driver.passes[0]
	if got, want := pass.area.Extent, (core1_0.Extent2D{Width: 800, Height: 600}); got != want {
		t.Errorf("render area = %v, want %v", got, want)
	}
	if len(pass.clear) != 2 {
		t.Fatalf("len(clear values) = %d, want 2", len(pass.clear))
	}
	if got, want := pass.clear[0], core1_0.ClearValue(core1_0.ClearValueFloat{0.1, 0.2, 0.3, 0.4}); got != want {
		t.Errorf("color clear = %v, want %v", got, want)
	}
	if got, want := pass.clear[1], core1_0.ClearValue(core1_0.ClearValueDepthStencil{Depth: 1}); got != want {
		t.Errorf("depth clear = %v, want %v", got, want)
	}
}

func TestResizeSameSizeIsIgnored(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()
	ctx := b.Context()

	b.OnResized(800, 600)
	if ctx.FramebufferSizeGeneration != 0 {
		t.Errorf("FramebufferSizeGeneration = %d, want 0", ctx.FramebufferSizeGeneration)
	}
	if !drawFrame(t, b) {
		t.Error("frame skipped after same-size resize")
	}
	if len(driver.swapchains) != 1 {
		t.Errorf("swapchains created = %d, want 1", len(driver.swapchains))
	}
}

func TestResizeRecreatesOnNextFrame(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	ctx := b.Context()

	drawFrame(t, b)
	b.OnResized(1024, 768)
	if ctx.FramebufferSizeGeneration != 1 {
		t.Errorf("FramebufferSizeGeneration = %d, want 1", ctx.FramebufferSizeGeneration)
	}

	if drawFrame(t, b) {
		t.Error("frame drawn on the resize frame")
	}
	if len(driver.swapchains) != 2 {
		t.Fatalf("swapchains created = %d, want 2", len(driver.swapchains))
	}
	if got, want := ctx.Swapchain.Extent, (core1_0.Extent2D{Width: 1024, Height: 768}); got != want {
		t.Errorf("Extent = %v, want %v", got, want)
	}
	if ctx.FramebufferWidth != 1024 || ctx.FramebufferHeight != 768 {
		t.Errorf("framebuffer size = %dx%d, want 1024x768", ctx.FramebufferWidth, ctx.FramebufferHeight)
	}
	if ctx.FramebufferSizeLastGeneration != ctx.FramebufferSizeGeneration {
		t.Errorf("last generation = %d, want %d", ctx.FramebufferSizeLastGeneration, ctx.FramebufferSizeGeneration)
	}
	for _, size := range driver.framebuffers[len(driver.framebuffers)-len(ctx.Swapchain.Framebuffers):] {
		if size != [2]int{1024, 768} {
			t.Errorf("framebuffer size = %v, want [1024 768]", size)
		}
	}
	for i, fence := range ctx.ImagesInFlight {
		if fence != nil {
			t.Errorf("ImagesInFlight[%d] survived recreation", i)
		}
	}

	if !drawFrame(t, b) {
		t.Fatal("frame after recreation skipped")
	}
	if got := driver.passes[len(driver.passes)-1].area.Extent; got != (core1_0.Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("render area = %v, want 1024x768", got)
	}
	if len(driver.swapchains) != 2 {
		t.Errorf("swapchains created = %d, want 2", len(driver.swapchains))
	}

	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	checkNoLeaks(t, driver)
}

func TestZeroSizePausesRendering(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	ctx := b.Context()

	b.OnResized(0, 0)
	for i := 0; i < 3; i++ {
		if drawFrame(t, b) {
			t.Errorf("frame %d drawn while minimized", i)
		}
	}
	if len(driver.swapchains) != 1 {
		t.Errorf("swapchains created while minimized = %d, want 1", len(driver.swapchains))
	}
	if len(driver.submits) != 0 {
		t.Errorf("submits while minimized = %d, want 0", len(driver.submits))
	}

	b.OnResized(640, 480)
	if drawFrame(t, b) {
		t.Error("frame drawn on the restore frame")
	}
	if !drawFrame(t, b) {
		t.Error("frame after restore skipped")
	}
	if got := ctx.Swapchain.Extent; got != (core1_0.Extent2D{Width: 640, Height: 480}) {
		t.Errorf("Extent = %v, want 640x480", got)
	}

	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	checkNoLeaks(t, driver)
}

func TestStaleAcquireRecreates(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	ctx := b.Context()

	driver.acquireResult = []common.VkResult{khr_swapchain.VKErrorOutOfDate}
	if drawFrame(t, b) {
		t.Error("frame drawn with an out of date swapchain")
	}
	if len(driver.submits) != 0 || driver.presents != 0 {
		t.Errorf("submits = %d, presents = %d, want 0, 0", len(driver.submits), driver.presents)
	}
	if len(driver.swapchains) != 2 {
		t.Errorf("swapchains created = %d, want 2", len(driver.swapchains))
	}

	if got, want := ctx.Swapchain.Extent, (core1_0.Extent2D{Width: 800, Height: 600}); got != want {
		t.Errorf("Extent = %v, want %v", got, want)
	}

	for i := 0; i < 3; i++ {
		if !drawFrame(t, b) {
			t.Errorf("frame %d after recreation skipped", i)
		}
	}
	if len(driver.swapchains) != 2 {
		t.Errorf("swapchains created = %d, want 2", len(driver.swapchains))
	}
	if len(driver.submits) != 3 || driver.presents != 3 {
		t.Errorf("submits = %d, presents = %d, want 3, 3", len(driver.submits), driver.presents)
	}

	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	checkNoLeaks(t, driver)
}

func TestAcquireNotReadySkipsFrame(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()
	ctx := b.Context()

	driver.acquireResult = []common.VkResult{core1_0.VKNotReady}
	ok, err := b.BeginFrame(0)
	if ok || err != nil {
		t.Errorf("BeginFrame() = %v, %v, want false, nil", ok, err)
	}
	if len(driver.swapchains) != 1 {
		t.Errorf("swapchains created = %d, want 1", len(driver.swapchains))
	}
	if ctx.CurrentFrame != 0 {
		t.Errorf("CurrentFrame = %d, want 0", ctx.CurrentFrame)
	}

	if !drawFrame(t, b) {
		t.Error("frame after a not ready acquire skipped")
	}
	if len(driver.submits) != 1 {
		t.Errorf("submits = %d, want 1", len(driver.submits))
	}
}

func TestAcquireErrorIsFatal(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()

	driver.acquireResult = []common.VkResult{core1_0.VKErrorDeviceLost}
	ok, err := b.BeginFrame(0)
	if ok || err == nil {
		t.Errorf("BeginFrame() = %v, %v, want false, error", ok, err)
	}
}

func TestSuboptimalAcquireDraws(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()

	driver.acquireResult = []common.VkResult{khr_swapchain.VKSuboptimal}
	if !drawFrame(t, b) {
		t.Error("frame skipped on suboptimal acquire")
	}
	if len(driver.swapchains) != 1 {
		t.Errorf("swapchains created = %d, want 1", len(driver.swapchains))
	}
}

func TestStalePresentRecreates(t *testing.T) {
	tests := []common.VkResult{khr_swapchain.VKSuboptimal, khr_swapchain.VKErrorOutOfDate}

	for _, res := range tests {
		driver := newFakeDriver()
		b := newTestBackend(t, driver)
		ctx := b.Context()

		driver.presentResult = []common.VkResult{res}
		drawFrame(t, b)
		if len(driver.swapchains) != 2 {
			t.Errorf("%s: swapchains created = %d, want 2", ResultString(res, false), len(driver.swapchains))
		}
		if ctx.CurrentFrame != 1 {
			t.Errorf("%s: CurrentFrame = %d, want 1", ResultString(res, false), ctx.CurrentFrame)
		}
		if !drawFrame(t, b) {
			t.Errorf("%s: frame after recreation skipped", ResultString(res, false))
		}

		if err := b.Shutdown(); err != nil {
			t.Fatalf("Shutdown() = %v", err)
		}
		checkNoLeaks(t, driver)
	}
}

func TestRecreatingSwapchainSkipsFrame(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()
	ctx := b.Context()

	ctx.RecreatingSwapchain = true
	if drawFrame(t, b) {
		t.Error("frame drawn during recreation")
	}
	if err := ctx.RecreateSwapchain(); err != nil {
		t.Errorf("RecreateSwapchain() = %v", err)
	}
	if len(driver.swapchains) != 1 {
		t.Errorf("swapchains created = %d, want 1", len(driver.swapchains))
	}
	ctx.RecreatingSwapchain = false

	if !drawFrame(t, b) {
		t.Error("frame skipped after recreation finished")
	}
}

func TestFenceTimeoutSkipsFrame(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()

	// Both frame slots start signaled; the third frame waits on slot 0.
	drawFrame(t, b)
	drawFrame(t, b)
	driver.fenceResult = []common.VkResult{core1_0.VKTimeout}

	ok, err := b.BeginFrame(0)
	if ok || err != nil {
		t.Errorf("BeginFrame() = %v, %v, want false, nil", ok, err)
	}
	if len(driver.submits) != 2 {
		t.Errorf("submits = %d, want 2", len(driver.submits))
	}
	if !drawFrame(t, b) {
		t.Error("frame after timeout skipped")
	}
}

// With three images and two frame slots the fourth frame acquires image 0,
// which the first slot's fence still guards.
func TestImageInFlightWaitsOnOtherSlot(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()
	ctx := b.Context()

	for i := 0; i < 3; i++ {
		if !drawFrame(t, b) {
			t.Fatalf("frame %d skipped", i)
		}
	}
	if len(ctx.Swapchain.Images) != 3 {
		t.Fatalf("len(Images) = %d, want 3", len(ctx.Swapchain.Images))
	}
	if ctx.ImagesInFlight[0] != ctx.InFlightFences[0] {
		t.Fatal("image 0 not associated with slot 0")
	}

	waits := driver.fenceWaits
	if !drawFrame(t, b) {
		t.Fatal("fourth frame skipped")
	}
	if ctx.ImageIndex != 0 {
		t.Fatalf("ImageIndex = %d, want 0", ctx.ImageIndex)
	}
	if got := driver.fenceWaits - waits; got != 2 {
		t.Errorf("fence waits = %d, want 2", got)
	}
	last := len(driver.waitedFences) - 1
	if got, want := driver.waitedFences[last], ctx.InFlightFences[0].Handle; got != want {
		t.Errorf("waited on %v, want slot 0 fence %v", got, want)
	}
	if got := driver.waitTimeouts[last]; got != common.NoTimeout {
		t.Errorf("image fence wait timeout = %v, want no timeout", got)
	}
	if got, want := driver.submits[3].Fence, ctx.InFlightFences[1].Handle; got != want {
		t.Errorf("submit fence = %v, want slot 1 fence %v", got, want)
	}
	if ctx.ImagesInFlight[0] != ctx.InFlightFences[1] {
		t.Error("image 0 not handed over to slot 1")
	}
}

// An acquired image must not be abandoned: a wait on its fence that comes
// back unsignaled is an error rather than a skipped frame.
func TestAcquiredImageIsNotAbandoned(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()

	for i := 0; i < 3; i++ {
		drawFrame(t, b)
	}
	driver.fenceResult = []common.VkResult{core1_0.VKSuccess, core1_0.VKTimeout}

	ok, err := b.BeginFrame(0)
	if ok || err == nil {
		t.Errorf("BeginFrame() = %v, %v, want false, error", ok, err)
	}
	if len(driver.submits) != 3 {
		t.Errorf("submits = %d, want 3", len(driver.submits))
	}
}

func TestRecreateResetsCurrentFrame(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()
	ctx := b.Context()

	drawFrame(t, b)
	if ctx.CurrentFrame != 1 {
		t.Fatalf("CurrentFrame = %d, want 1", ctx.CurrentFrame)
	}

	b.OnResized(1024, 768)
	if drawFrame(t, b) {
		t.Error("frame drawn on the resize frame")
	}
	if ctx.CurrentFrame != 0 {
		t.Errorf("CurrentFrame = %d, want 0", ctx.CurrentFrame)
	}

	if !drawFrame(t, b) {
		t.Fatal("frame after recreation skipped")
	}
	if got, want := driver.submits[1].Wait, ctx.ImageAvailableSemaphores[0]; got != want {
		t.Errorf("submit wait semaphore = %v, want slot 0 semaphore %v", got, want)
	}
}

func TestDeviceLostIsFatal(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()

	drawFrame(t, b)
	drawFrame(t, b)
	driver.fenceResult = []common.VkResult{core1_0.VKErrorDeviceLost}

	ok, err := b.BeginFrame(0)
	if ok || !errors.Is(err, ErrDeviceLost) {
		t.Errorf("BeginFrame() = %v, %v, want false, ErrDeviceLost", ok, err)
	}
}

func TestShutdownOrder(t *testing.T) {
	driver := newFakeDriver()
	cfg := testConfig()
	cfg.Validation = true
	b := NewBackend(driver, newTestPlatform(), cfg)
	if err := b.Initialize("test"); err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	drawFrame(t, b)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	checkNoLeaks(t, driver)

	order := []string{
		"semaphore", "fence", "commandBuffer", "framebuffer", "renderPass",
		"swapchain", "commandPool", "device", "surface", "messenger", "instance",
	}
	first := map[string]int{}
	last := map[string]int{}
	for i, kind := range driver.released {
		if _, ok := first[kind]; !ok {
			first[kind] = i
		}
		last[kind] = i
	}
	for i := 1; i < len(order); i++ {
		prev, next := order[i-1], order[i]
		if last[prev] > first[next] {
			t.Errorf("%s released after %s", prev, next)
		}
	}

	if err := b.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
	checkNoMisuse(t, driver)
}

func TestInitializeValidation(t *testing.T) {
	driver := newFakeDriver()
	cfg := testConfig()
	cfg.Validation = true
	b := NewBackend(driver, newTestPlatform(), cfg)
	if err := b.Initialize("test"); err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	defer b.Shutdown()

	info := driver.instanceInfo
	if info.Debug == nil {
		t.Error("InstanceInfo.Debug not set with validation enabled")
	}
	if !contains(info.Extensions, ext_debug_utils.ExtensionName) {
		t.Errorf("Extensions = %v, want debug utils", info.Extensions)
	}
	if len(info.Layers) != 1 || info.Layers[0] != "VK_LAYER_KHRONOS_validation" {
		t.Errorf("Layers = %v, want [VK_LAYER_KHRONOS_validation]", info.Layers)
	}
	if driver.count("messenger") != 1 {
		t.Error("debug messenger not created")
	}
	if info.ApplicationName != "test" || info.EngineName != "Oki Engine" {
		t.Errorf("names = %q/%q, want test/Oki Engine", info.ApplicationName, info.EngineName)
	}
}

func TestInitializeFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fakeDriver, *Config)
		wantErr error
	}{
		{
			name: "missing layer",
			setup: func(f *fakeDriver, cfg *Config) {
				cfg.Validation = true
				f.instanceLayers = map[string]bool{}
			},
			wantErr: ErrMissingLayer,
		},
		{
			name: "missing platform extension",
			setup: func(f *fakeDriver, cfg *Config) {
				delete(f.instanceExtensions, "VK_KHR_xcb_surface")
			},
			wantErr: ErrMissingExtension,
		},
		{name: "surface", setup: func(f *fakeDriver, _ *Config) { f.failOn = "CreateSurface" }},
		{name: "swapchain", setup: func(f *fakeDriver, _ *Config) { f.failOn = "CreateSwapchain" }},
		{name: "depth image", setup: func(f *fakeDriver, _ *Config) { f.failOn = "BindImageMemory" }},
		{name: "render pass", setup: func(f *fakeDriver, _ *Config) { f.failOn = "CreateRenderPass" }},
		{name: "framebuffer", setup: func(f *fakeDriver, _ *Config) { f.failOn = "CreateFramebuffer" }},
		{name: "command buffer", setup: func(f *fakeDriver, _ *Config) { f.failOn = "AllocateCommandBuffer" }},
		{name: "fence", setup: func(f *fakeDriver, _ *Config) { f.failOn = "CreateFence" }},
	}

	for _, tt := range tests {
		driver := newFakeDriver()
		cfg := testConfig()
		tt.setup(driver, &cfg)

		b := NewBackend(driver, newTestPlatform(), cfg)
		err := b.Initialize("test")
		if err == nil {
			t.Errorf("%s: Initialize() succeeded", tt.name)
			continue
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: Initialize() = %v, want %v", tt.name, err, tt.wantErr)
		}
		if b.Context() != nil {
			t.Errorf("%s: Context() set after failure", tt.name)
		}
		checkNoLeaks(t, driver)
	}
}

func TestInitializeDefaultSize(t *testing.T) {
	driver := newFakeDriver()
	platform := newTestPlatform()
	platform.width, platform.height = 0, 0

	b := NewBackend(driver, platform, testConfig())
	if err := b.Initialize("test"); err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	defer b.Shutdown()

	if got := driver.swapchains[0].Extent; got != (core1_0.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("Extent = %v, want 800x600", got)
	}
}

func TestInitializeTwice(t *testing.T) {
	driver := newFakeDriver()
	b := newTestBackend(t, driver)
	defer b.Shutdown()

	if err := b.Initialize("again"); err == nil {
		t.Error("second Initialize() succeeded")
	}
}
