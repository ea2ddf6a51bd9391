package vulkan

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/renderer/internal/memory"
)

// Image is a device image with its own memory and an optional view.
type Image struct {
	Handle Handle
	Memory Handle
	View   Handle
	Width  int
	Height int
}

type ImageOptions struct {
	Format      core1_0.Format
	Tiling      core1_0.ImageTiling
	Usage       core1_0.ImageUsageFlags
	MemoryFlags core1_0.MemoryPropertyFlags
	CreateView  bool
	ViewAspect  core1_0.ImageAspectFlags
}

func CreateImage(ctx *Context, width, height int, opts ImageOptions) (*Image, error) {
	img := &Image{Width: width, Height: height}

	handle, err := ctx.driver.CreateImage(ImageInfo{
		Width:  width,
		Height: height,
		Format: opts.Format,
		Tiling: opts.Tiling,
		Usage:  opts.Usage,
	})
	if err != nil {
		return nil, err
	}
	img.Handle = handle

	reqs := ctx.driver.ImageMemoryRequirements(handle)
	memoryType := ctx.FindMemoryIndex(reqs.TypeBits, opts.MemoryFlags)
	if memoryType == -1 {
		img.Destroy(ctx)
		return nil, errors.New("vulkan: required memory type not found, image not valid")
	}

	mem, err := ctx.driver.AllocateMemory(reqs.Size, memoryType)
	if err != nil {
		img.Destroy(ctx)
		return nil, err
	}
	img.Memory = mem
	if err := ctx.memory.Allocate(img, uint64(reqs.Size), memory.TagRenderer); err != nil {
		img.Destroy(ctx)
		return nil, err
	}

	if err := ctx.driver.BindImageMemory(handle, mem); err != nil {
		img.Destroy(ctx)
		return nil, err
	}

	if opts.CreateView {
		if err := img.CreateView(ctx, opts.Format, opts.ViewAspect); err != nil {
			img.Destroy(ctx)
			return nil, err
		}
	}

	ctx.log.Debug("Image created",
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("size", reqs.Size),
		slog.Int("memoryType", memoryType))
	return img, nil
}

func (img *Image) CreateView(ctx *Context, format core1_0.Format, aspect core1_0.ImageAspectFlags) error {
	view, err := ctx.driver.CreateImageView(img.Handle, format, aspect)
	if err != nil {
		return err
	}
	img.View = view
	return nil
}

func (img *Image) Destroy(ctx *Context) {
	if !img.View.IsNull() {
		ctx.driver.DestroyImageView(img.View)
		img.View = Handle{}
	}
	if !img.Memory.IsNull() {
		ctx.driver.FreeMemory(img.Memory)
		img.Memory = Handle{}
		if _, err := ctx.memory.Free(img); err != nil {
			ctx.log.Debug("Image memory was not tracked", slog.Any("error", err))
		}
	}
	if !img.Handle.IsNull() {
		ctx.driver.DestroyImage(img.Handle)
		img.Handle = Handle{}
	}
}

// findMemoryIndex returns the first memory type allowed by typeFilter that
// has every flag in flags, or -1.
func (c *Context) findMemoryIndex(typeFilter uint32, flags core1_0.MemoryPropertyFlags) int {
	for i, memoryType := range c.Device.Memory.Types {
		if typeFilter&(1<<uint(i)) != 0 && memoryType.Flags&flags == flags {
			return i
		}
	}

	c.log.Warn("Unable to find suitable memory type")
	return -1
}
