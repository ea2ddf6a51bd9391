package vulkan

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type RenderPassState int

const (
	RenderPassNotAllocated RenderPassState = iota
	RenderPassReady
	RenderPassRecording
	RenderPassInRenderPass
	RenderPassRecordingEnded
	RenderPassSubmitted
)

func (s RenderPassState) String() string {
	switch s {
	case RenderPassNotAllocated:
		return "NotAllocated"
	case RenderPassReady:
		return "Ready"
	case RenderPassRecording:
		return "Recording"
	case RenderPassInRenderPass:
		return "InRenderPass"
	case RenderPassRecordingEnded:
		return "RecordingEnded"
	case RenderPassSubmitted:
		return "Submitted"
	default:
		return fmt.Sprintf("RenderPassState(%d)", int(s))
	}
}

// RenderPass is the main color + depth pass. Its render area is updated in
// place when the framebuffer size changes.
type RenderPass struct {
	Handle Handle

	// Area is x, y, width and height of the render area.
	Area mgl32.Vec4

	ClearColor mgl32.Vec4
	Depth      float32
	Stencil    uint32

	State RenderPassState
}

func mainRenderPassInfo(colorFormat, depthFormat core1_0.Format) core1_0.RenderPassCreateInfo {
	return core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         colorFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
			{
				Format:         depthFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentRead | core1_0.AccessColorAttachmentWrite,
			},
		},
	}
}

// CreateRenderPass creates the main render pass against the current
// swapchain color format and device depth format.
func CreateRenderPass(ctx *Context, area mgl32.Vec4, clearColor mgl32.Vec4, depth float32, stencil uint32) (*RenderPass, error) {
	handle, err := ctx.driver.CreateRenderPass(mainRenderPassInfo(ctx.Swapchain.ImageFormat.Format, ctx.Device.DepthFormat))
	if err != nil {
		return nil, err
	}

	return &RenderPass{
		Handle:     handle,
		Area:       area,
		ClearColor: clearColor,
		Depth:      depth,
		Stencil:    stencil,
		State:      RenderPassReady,
	}, nil
}

func (rp *RenderPass) Destroy(ctx *Context) {
	if !rp.Handle.IsNull() {
		ctx.driver.DestroyRenderPass(rp.Handle)
		rp.Handle = Handle{}
	}
	rp.State = RenderPassNotAllocated
}

func (rp *RenderPass) renderArea() core1_0.Rect2D {
	return core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: int(rp.Area.X()), Y: int(rp.Area.Y())},
		Extent: core1_0.Extent2D{Width: int(rp.Area.Z()), Height: int(rp.Area.W())},
	}
}

func (rp *RenderPass) clearValues() []core1_0.ClearValue {
	c := rp.ClearColor
	return []core1_0.ClearValue{
		core1_0.ClearValueFloat{c.X(), c.Y(), c.Z(), c.W()},
		core1_0.ClearValueDepthStencil{Depth: rp.Depth, Stencil: rp.Stencil},
	}
}

// Begin starts the pass on cb against framebuffer.
func (rp *RenderPass) Begin(ctx *Context, cb *CommandBuffer, framebuffer *Framebuffer) error {
	cb.expect("begin render pass", CommandBufferRecording)

	if err := ctx.driver.CmdBeginRenderPass(cb.Handle, rp.Handle, framebuffer.Handle, rp.renderArea(), rp.clearValues()); err != nil {
		return err
	}
	cb.enterRenderPass()
	rp.State = RenderPassInRenderPass
	return nil
}

func (rp *RenderPass) End(ctx *Context, cb *CommandBuffer) {
	cb.exitRenderPass()
	ctx.driver.CmdEndRenderPass(cb.Handle)
	rp.State = RenderPassRecording
}
