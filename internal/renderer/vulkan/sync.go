package vulkan

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Fence wraps a driver fence and caches whether it is known to be signaled,
// so repeated waits do not reach the driver.
type Fence struct {
	Handle   Handle
	signaled bool
}

func NewFence(ctx *Context, signaled bool) (*Fence, error) {
	handle, err := ctx.driver.CreateFence(signaled)
	if err != nil {
		return nil, err
	}
	return &Fence{Handle: handle, signaled: signaled}, nil
}

func (f *Fence) Signaled() bool {
	return f.signaled
}

// Wait blocks until the fence signals or timeout elapses. A timeout reports
// false with a nil error. Device loss and memory exhaustion are returned as
// errors matching ErrDeviceLost and ErrOutOfMemory.
func (f *Fence) Wait(ctx *Context, timeout time.Duration) (bool, error) {
	if f.signaled {
		return true, nil
	}

	res, err := ctx.driver.WaitForFence(f.Handle, timeout)
	switch res {
	case core1_0.VKSuccess:
		f.signaled = true
		return true, nil
	case core1_0.VKTimeout:
		ctx.log.Warn("Fence wait timed out", slog.Duration("timeout", timeout))
		return false, nil
	case core1_0.VKErrorDeviceLost:
		ctx.log.Error("Fence wait failed", slog.String("result", ResultString(res, false)))
		return false, errors.Mark(callFailed(err, "vkWaitForFences", res), ErrDeviceLost)
	case core1_0.VKErrorOutOfHostMemory, core1_0.VKErrorOutOfDeviceMemory:
		ctx.log.Error("Fence wait failed", slog.String("result", ResultString(res, false)))
		return false, errors.Mark(callFailed(err, "vkWaitForFences", res), ErrOutOfMemory)
	default:
		ctx.log.Error("Fence wait failed with unknown error", slog.Int("result", int(res)))
		return false, callFailed(err, "vkWaitForFences", res)
	}
}

// Reset returns the fence to the unsignaled state. It is a no-op for a fence
// that is not known to be signaled.
func (f *Fence) Reset(ctx *Context) error {
	if !f.signaled {
		return nil
	}
	if err := ctx.driver.ResetFence(f.Handle); err != nil {
		return err
	}
	f.signaled = false
	return nil
}

func (f *Fence) Destroy(ctx *Context) {
	if !f.Handle.IsNull() {
		ctx.driver.DestroyFence(f.Handle)
		f.Handle = Handle{}
	}
	f.signaled = false
}

func (c *Context) createSyncObjects() error {
	c.ImageAvailableSemaphores = make([]Handle, 0, MaxFramesInFlight)
	c.QueueCompleteSemaphores = make([]Handle, 0, MaxFramesInFlight)
	c.InFlightFences = make([]*Fence, 0, MaxFramesInFlight)

	for i := 0; i < MaxFramesInFlight; i++ {
		imageAvailable, err := c.driver.CreateSemaphore()
		if err != nil {
			return err
		}
		c.ImageAvailableSemaphores = append(c.ImageAvailableSemaphores, imageAvailable)

		queueComplete, err := c.driver.CreateSemaphore()
		if err != nil {
			return err
		}
		c.QueueCompleteSemaphores = append(c.QueueCompleteSemaphores, queueComplete)

		// Created signaled so the first frame does not wait forever.
		fence, err := NewFence(c, true)
		if err != nil {
			return err
		}
		c.InFlightFences = append(c.InFlightFences, fence)
	}

	c.ImagesInFlight = make([]*Fence, len(c.Swapchain.Images))
	return nil
}

func (c *Context) destroySyncObjects() {
	c.ImagesInFlight = nil
	for _, semaphore := range c.ImageAvailableSemaphores {
		c.driver.DestroySemaphore(semaphore)
	}
	for _, semaphore := range c.QueueCompleteSemaphores {
		c.driver.DestroySemaphore(semaphore)
	}
	for _, fence := range c.InFlightFences {
		fence.Destroy(c)
	}
	c.ImageAvailableSemaphores = nil
	c.QueueCompleteSemaphores = nil
	c.InFlightFences = nil
}
