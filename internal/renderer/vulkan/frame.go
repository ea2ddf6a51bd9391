package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// BeginFrame prepares the next frame for recording. It returns false when
// no frame should be drawn, either because the swapchain is being or has
// just been rebuilt or because the frame slot's fence wait timed out. On true the frame's command
// buffer is recording inside the main render pass.
func (c *Context) BeginFrame(deltaTime float64) (bool, error) {
	if c.RecreatingSwapchain {
		if err := c.driver.DeviceWaitIdle(); err != nil {
			return false, err
		}
		c.log.Info("Recreating swapchain, booting")
		return false, nil
	}

	if c.FramebufferSizeGeneration != c.FramebufferSizeLastGeneration {
		if err := c.driver.DeviceWaitIdle(); err != nil {
			return false, err
		}
		if err := c.RecreateSwapchain(); err != nil {
			return false, err
		}
		c.log.Info("Resized, booting")
		return false, nil
	}

	inFlight := c.InFlightFences[c.CurrentFrame]
	ok, err := inFlight.Wait(c, c.config.FrameTimeout)
	if err != nil {
		return false, err
	}
	if !ok {
		c.log.Warn("In-flight fence wait failure")
		return false, nil
	}

	index, ok, err := c.Swapchain.AcquireNextImageIndex(c, common.NoTimeout, c.ImageAvailableSemaphores[c.CurrentFrame])
	if err != nil || !ok {
		return false, err
	}
	c.ImageIndex = index

	// The image may still be in use by an older frame slot. Once acquired the
	// image has to be presented, so this wait cannot give up.
	if previous := c.ImagesInFlight[index]; previous != nil {
		ok, err := previous.Wait(c, common.NoTimeout)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, errors.Newf("vulkan: fence for acquired image %d did not signal", index)
		}
	}

	if err := inFlight.Reset(c); err != nil {
		return false, err
	}

	cb := c.GraphicsCommandBuffers[index]
	cb.Reset()
	if err := cb.Begin(c, false, false, false); err != nil {
		return false, err
	}

	extent := c.Swapchain.Extent
	c.MainRenderPass.Area = mgl32.Vec4{0, 0, float32(extent.Width), float32(extent.Height)}

	if err := c.MainRenderPass.Begin(c, cb, c.Swapchain.Framebuffers[index]); err != nil {
		return false, err
	}
	return true, nil
}

// EndFrame closes the render pass, submits the frame and presents it. It
// must only follow a BeginFrame that returned true.
func (c *Context) EndFrame(deltaTime float64) error {
	cb := c.GraphicsCommandBuffers[c.ImageIndex]

	c.MainRenderPass.End(c, cb)
	if err := cb.End(c); err != nil {
		return err
	}

	inFlight := c.InFlightFences[c.CurrentFrame]
	err := c.driver.QueueSubmit(c.Device.GraphicsQueue, Submission{
		CommandBuffer: cb.Handle,
		Wait:          c.ImageAvailableSemaphores[c.CurrentFrame],
		WaitStage:     core1_0.PipelineStageColorAttachmentOutput,
		Signal:        c.QueueCompleteSemaphores[c.CurrentFrame],
		Fence:         inFlight.Handle,
	})
	if err != nil {
		return err
	}
	cb.UpdateSubmitted()
	c.MainRenderPass.State = RenderPassSubmitted
	c.ImagesInFlight[c.ImageIndex] = inFlight

	return c.Swapchain.Present(c, c.QueueCompleteSemaphores[c.CurrentFrame], c.ImageIndex)
}

// ImmediateSubmit records a single-use command buffer with record, submits
// it on the graphics queue and waits for it to finish.
func (c *Context) ImmediateSubmit(record func(cb *CommandBuffer) error) error {
	cb, err := AllocateAndBeginSingleUse(c, c.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	if err := record(cb); err != nil {
		cb.Free(c)
		return err
	}
	return cb.EndSingleUse(c, c.Device.GraphicsQueue)
}
