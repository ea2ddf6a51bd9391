package vulkan

import (
	"log/slog"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// Swapchain is the presentable image chain together with the depth
// attachment and one framebuffer per image.
type Swapchain struct {
	Handle Handle

	ImageFormat khr_surface.SurfaceFormat
	PresentMode khr_surface.PresentMode
	Extent      core1_0.Extent2D

	MaxFramesInFlight int

	Images       []Handle
	Views        []Handle
	Framebuffers []*Framebuffer

	DepthAttachment *Image
}

func chooseSurfaceFormat(formats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range formats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	if len(formats) == 0 {
		panic(errors.AssertionFailedf("surface reports no formats"))
	}
	return formats[0]
}

func choosePresentMode(modes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, mode := range modes {
		if mode == khr_surface.PresentModeMailbox {
			return mode
		}
	}

	return khr_surface.PresentModeFIFO
}

// extentUndefined reports whether the surface leaves the extent up to the
// swapchain.
func extentUndefined(extent core1_0.Extent2D) bool {
	return uint32(extent.Width) == math.MaxUint32
}

func chooseExtent(capabilities *khr_surface.SurfaceCapabilities, width, height int) core1_0.Extent2D {
	if !extentUndefined(capabilities.CurrentExtent) {
		return capabilities.CurrentExtent
	}

	minExtent := capabilities.MinImageExtent
	maxExtent := capabilities.MaxImageExtent
	return core1_0.Extent2D{
		Width:  clamp(width, minExtent.Width, maxExtent.Width),
		Height: clamp(height, minExtent.Height, maxExtent.Height),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	count := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && count > capabilities.MaxImageCount {
		count = capabilities.MaxImageCount
	}
	return count
}

// CreateSwapchain negotiates and creates a swapchain for the context's
// surface at the requested size.
func CreateSwapchain(ctx *Context, width, height int) (*Swapchain, error) {
	s := &Swapchain{}
	if err := s.create(ctx, width, height); err != nil {
		s.Destroy(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) create(ctx *Context, width, height int) error {
	device := ctx.Device
	if err := device.QuerySwapchainSupport(ctx.driver, ctx.surface); err != nil {
		return err
	}
	support := device.SwapchainSupport

	s.ImageFormat = chooseSurfaceFormat(support.Formats)
	s.PresentMode = choosePresentMode(support.PresentModes)
	s.Extent = chooseExtent(support.Capabilities, width, height)
	s.MaxFramesInFlight = MaxFramesInFlight
	ctx.CurrentFrame = 0

	info := SwapchainInfo{
		Surface:       ctx.surface,
		MinImageCount: chooseImageCount(support.Capabilities),
		Format:        s.ImageFormat,
		Extent:        s.Extent,
		SharingMode:   core1_0.SharingModeExclusive,
		Capabilities:  support.Capabilities,
		PresentMode:   s.PresentMode,
	}
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		info.SharingMode = core1_0.SharingModeConcurrent
		info.QueueFamilyIndices = []int{device.GraphicsQueueIndex, device.PresentQueueIndex}
	}

	handle, err := ctx.driver.CreateSwapchain(info)
	if err != nil {
		return err
	}
	s.Handle = handle

	s.Images, err = ctx.driver.SwapchainImages(handle)
	if err != nil {
		return err
	}

	s.Views = make([]Handle, 0, len(s.Images))
	for _, image := range s.Images {
		view, err := ctx.driver.CreateImageView(image, s.ImageFormat.Format, core1_0.ImageAspectColor)
		if err != nil {
			return err
		}
		s.Views = append(s.Views, view)
	}

	if err := device.DetectDepthFormat(ctx.driver); err != nil {
		return err
	}

	s.DepthAttachment, err = CreateImage(ctx, s.Extent.Width, s.Extent.Height, ImageOptions{
		Format:      device.DepthFormat,
		Tiling:      core1_0.ImageTilingOptimal,
		Usage:       core1_0.ImageUsageDepthStencilAttachment,
		MemoryFlags: core1_0.MemoryPropertyDeviceLocal,
		CreateView:  true,
		ViewAspect:  core1_0.ImageAspectDepth,
	})
	if err != nil {
		return err
	}

	ctx.log.Info("Swapchain created",
		slog.Int("images", len(s.Images)),
		slog.Int("width", s.Extent.Width),
		slog.Int("height", s.Extent.Height),
		slog.Int("presentMode", int(s.PresentMode)))
	return nil
}

// Destroy releases the depth attachment, the image views and the swapchain.
// The images belong to the presentation engine. Framebuffers must already be
// gone.
func (s *Swapchain) Destroy(ctx *Context) {
	if s.DepthAttachment != nil {
		s.DepthAttachment.Destroy(ctx)
		s.DepthAttachment = nil
	}
	for _, view := range s.Views {
		ctx.driver.DestroyImageView(view)
	}
	s.Views = nil
	s.Images = nil
	if !s.Handle.IsNull() {
		ctx.driver.DestroySwapchain(s.Handle)
		s.Handle = Handle{}
	}
}

// Recreate destroys the swapchain and creates it again at the given size.
func (s *Swapchain) Recreate(ctx *Context, width, height int) error {
	s.Destroy(ctx)
	return s.create(ctx, width, height)
}

// AcquireNextImageIndex acquires the next presentable image, signaling
// semaphore when it is ready. ok is false when no image was acquired, either
// because the swapchain was stale and has been recreated or because none was
// ready yet.
func (s *Swapchain) AcquireNextImageIndex(ctx *Context, timeout time.Duration, semaphore Handle) (index int, ok bool, err error) {
	index, res, err := ctx.driver.AcquireNextImage(s.Handle, timeout, semaphore)
	switch {
	case res == khr_swapchain.VKErrorOutOfDate:
		ctx.log.Debug("Swapchain out of date on acquire, recreating")
		return 0, false, ctx.RecreateSwapchain()
	case err != nil || !ResultIsSuccess(res):
		return 0, false, callFailed(err, "vkAcquireNextImageKHR", res)
	case res == core1_0.VKTimeout || res == core1_0.VKNotReady:
		ctx.log.Debug("No swapchain image available", slog.String("result", ResultString(res, false)))
		return 0, false, nil
	default:
		return index, true, nil
	}
}

// Present queues imageIndex for presentation once renderComplete signals and
// advances the current frame. A stale swapchain is recreated.
func (s *Swapchain) Present(ctx *Context, renderComplete Handle, imageIndex int) error {
	res, err := ctx.driver.QueuePresent(ctx.Device.PresentQueue, s.Handle, imageIndex, renderComplete)
	switch {
	case res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal:
		ctx.log.Debug("Swapchain stale on present, recreating", slog.String("result", ResultString(res, false)))
		if err := ctx.RecreateSwapchain(); err != nil {
			return err
		}
	case err != nil:
		return callFailed(err, "vkQueuePresentKHR", res)
	}

	ctx.CurrentFrame = (ctx.CurrentFrame + 1) % s.MaxFramesInFlight
	return nil
}
